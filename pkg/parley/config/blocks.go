package config

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
)

type BlockHandler interface {
	Preprocess(block *hcl.Block) hcl.Diagnostics
	FinishPreprocessing(config *Config) hcl.Diagnostics
	Process(config *Config, block *hcl.Block) hcl.Diagnostics
	FinishProcessing(config *Config) hcl.Diagnostics
}

type BlockHandlerBase struct {
}

func (b *BlockHandlerBase) Preprocess(block *hcl.Block) hcl.Diagnostics {
	return nil
}

func (b *BlockHandlerBase) FinishPreprocessing(config *Config) hcl.Diagnostics {
	return nil
}

func (b *BlockHandlerBase) Process(config *Config, block *hcl.Block) hcl.Diagnostics {
	return nil
}

func (b *BlockHandlerBase) FinishProcessing(config *Config) hcl.Diagnostics {
	return nil
}

// handlerOrder is the order blocks are processed in. Constants are
// evaluated during preprocessing, so every other block may refer to them.
var handlerOrder = []string{
	"const",
	"server",
	"websocket",
	"auth",
	"directory",
	"stats",
	"assert",
}

func GetBlockHandlers() map[string]BlockHandler {
	return map[string]BlockHandler{
		"assert":    NewAssertBlockHandler(),
		"auth":      NewAuthBlockHandler(),
		"const":     NewConstBlockHandler(),
		"directory": NewDirectoryBlockHandler(),
		"server":    NewServerBlockHandler(),
		"stats":     NewStatsBlockHandler(),
		"websocket": NewWebSocketBlockHandler(),
	}
}

// singleton rejects a second block of a type that may appear only once.
type singleton struct {
	seen *hcl.Range
}

func (s *singleton) check(block *hcl.Block) hcl.Diagnostics {
	if s.seen != nil {
		return hcl.Diagnostics{
			&hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Duplicate block",
				Detail:   fmt.Sprintf("Only one %s block is allowed; the first is at %s", block.Type, s.seen),
				Subject:  &block.DefRange,
			},
		}
	}
	s.seen = block.DefRange.Ptr()
	return nil
}
