package config

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"

	"github.com/tsarna/parley/pkg/parley/registry"
)

type WebSocketDefinition struct {
	QueueSize      *int           `hcl:"queue_size,optional"`
	PingInterval   hcl.Expression `hcl:"ping_interval,optional"`
	WriteTimeout   hcl.Expression `hcl:"write_timeout,optional"`
	ReadTimeout    hcl.Expression `hcl:"read_timeout,optional"`
	ReadLimit      *int64         `hcl:"read_limit,optional"`
	TraceTopics    []string       `hcl:"trace_topics,optional"`
	OriginPatterns []string       `hcl:"origin_patterns,optional"`
}

type WebSocketBlockHandler struct {
	BlockHandlerBase
	singleton
}

func NewWebSocketBlockHandler() *WebSocketBlockHandler {
	return &WebSocketBlockHandler{}
}

func (h *WebSocketBlockHandler) Process(config *Config, block *hcl.Block) hcl.Diagnostics {
	diags := h.check(block)
	if diags.HasErrors() {
		return diags
	}

	wsDef := WebSocketDefinition{}
	diags = gohcl.DecodeBody(block.Body, config.evalCtx, &wsDef)
	if diags.HasErrors() {
		return diags
	}

	ws := &config.WebSocket

	if wsDef.QueueSize != nil {
		if *wsDef.QueueSize < 1 {
			diags = diags.Append(&hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Invalid queue_size",
				Detail:   fmt.Sprintf("queue_size must be at least 1, got %d", *wsDef.QueueSize),
				Subject:  &block.DefRange,
			})
		} else {
			ws.QueueSize = *wsDef.QueueSize
		}
	}

	if wsDef.ReadLimit != nil {
		if *wsDef.ReadLimit < 1 {
			diags = diags.Append(&hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Invalid read_limit",
				Detail:   fmt.Sprintf("read_limit must be at least 1, got %d", *wsDef.ReadLimit),
				Subject:  &block.DefRange,
			})
		} else {
			ws.ReadLimit = *wsDef.ReadLimit
		}
	}

	diags = diags.Extend(config.optionalDuration(wsDef.PingInterval, &ws.PingInterval))
	diags = diags.Extend(config.optionalDuration(wsDef.WriteTimeout, &ws.WriteTimeout))
	diags = diags.Extend(config.optionalDuration(wsDef.ReadTimeout, &ws.ReadTimeout))

	for _, pattern := range wsDef.TraceTopics {
		if err := registry.ValidatePattern(pattern); err != nil {
			diags = diags.Append(&hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Invalid trace topic pattern",
				Detail:   err.Error(),
				Subject:  &block.DefRange,
			})
		}
	}
	ws.TraceTopics = wsDef.TraceTopics
	ws.OriginPatterns = wsDef.OriginPatterns

	return diags
}
