package config

import (
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
)

type ServerDefinition struct {
	Type            string         `hcl:"type,label"`
	Name            string         `hcl:"name,label"`
	Listen          *string        `hcl:"listen,optional"`
	BasePath        *string        `hcl:"base_path,optional"`
	ShutdownTimeout hcl.Expression `hcl:"shutdown_timeout,optional"`
}

type ServerBlockHandler struct {
	BlockHandlerBase
	singleton
}

func NewServerBlockHandler() *ServerBlockHandler {
	return &ServerBlockHandler{}
}

func (h *ServerBlockHandler) Process(config *Config, block *hcl.Block) hcl.Diagnostics {
	if block.Labels[0] != "http" {
		return hcl.Diagnostics{
			&hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Unsupported server type",
				Detail:   fmt.Sprintf("Server type %q is not supported; only \"http\" is", block.Labels[0]),
				Subject:  block.LabelRanges[0].Ptr(),
			},
		}
	}

	diags := h.check(block)
	if diags.HasErrors() {
		return diags
	}

	serverDef := ServerDefinition{}
	diags = gohcl.DecodeBody(block.Body, config.evalCtx, &serverDef)
	if diags.HasErrors() {
		return diags
	}

	config.Server.Name = block.Labels[1]

	if serverDef.Listen != nil {
		if *serverDef.Listen == "" {
			return diags.Append(&hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Invalid listen address",
				Detail:   "listen must not be empty",
				Subject:  &block.DefRange,
			})
		}
		config.Server.Listen = *serverDef.Listen
	}

	if serverDef.BasePath != nil {
		config.Server.BasePath = normalizeBasePath(*serverDef.BasePath)
	}

	diags = diags.Extend(config.optionalDuration(serverDef.ShutdownTimeout, &config.Server.ShutdownTimeout))

	return diags
}

// normalizeBasePath returns path with one leading slash and no trailing
// slash, or "" for the root.
func normalizeBasePath(path string) string {
	path = strings.Trim(strings.TrimSpace(path), "/")
	if path == "" {
		return ""
	}
	return "/" + path
}
