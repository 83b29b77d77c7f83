package config

import (
	"github.com/hashicorp/hcl/v2"
)

var blockSchema = []hcl.BlockHeaderSchema{
	{
		Type:       "assert",
		LabelNames: []string{"name"},
	},
	{
		Type:       "auth",
		LabelNames: []string{},
	},
	{
		Type:       "const",
		LabelNames: []string{},
	},
	{
		Type:       "directory",
		LabelNames: []string{},
	},
	{
		Type:       "server",
		LabelNames: []string{"type", "name"},
	},
	{
		Type:       "stats",
		LabelNames: []string{},
	},
	{
		Type:       "websocket",
		LabelNames: []string{},
	},
}

var configSchema = &hcl.BodySchema{
	Blocks: blockSchema,
}
