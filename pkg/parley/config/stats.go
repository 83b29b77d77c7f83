package config

import (
	"fmt"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"

	"github.com/tsarna/parley/pkg/parley/stats"
)

type StatsDefinition struct {
	Schedule *string `hcl:"schedule,optional"`
	Timezone *string `hcl:"timezone,optional"`
	Disabled bool    `hcl:"disabled,optional"`
}

type StatsBlockHandler struct {
	BlockHandlerBase
	singleton
}

func NewStatsBlockHandler() *StatsBlockHandler {
	return &StatsBlockHandler{}
}

func (h *StatsBlockHandler) Process(config *Config, block *hcl.Block) hcl.Diagnostics {
	diags := h.check(block)
	if diags.HasErrors() {
		return diags
	}

	statsDef := StatsDefinition{}
	diags = gohcl.DecodeBody(block.Body, config.evalCtx, &statsDef)
	if diags.HasErrors() {
		return diags
	}

	config.Stats.Enabled = !statsDef.Disabled

	if statsDef.Schedule != nil {
		if _, err := stats.Parser.Parse(*statsDef.Schedule); err != nil {
			diags = diags.Append(&hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Invalid schedule",
				Detail:   fmt.Sprintf("Invalid schedule %q: %s", *statsDef.Schedule, err),
				Subject:  &block.DefRange,
			})
		} else {
			config.Stats.Schedule = *statsDef.Schedule
		}
	}

	if statsDef.Timezone != nil {
		location, err := time.LoadLocation(*statsDef.Timezone)
		if err != nil {
			diags = diags.Append(&hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Invalid timezone",
				Detail:   fmt.Sprintf("Invalid timezone: %s", *statsDef.Timezone),
				Subject:  &block.DefRange,
			})
		} else {
			config.Stats.Location = location
		}
	}

	return diags
}
