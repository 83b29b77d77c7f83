package config

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"go.uber.org/zap"
)

// Assert fails the build when its condition is false. It lets deployments
// check their own constants and environment before the server starts.
type Assert struct {
	Name      string `hcl:"name,label"`
	Condition bool   `hcl:"condition"`
	Message   string `hcl:"message,optional"`
}

type AssertBlockHandler struct {
	BlockHandlerBase
}

func NewAssertBlockHandler() *AssertBlockHandler {
	return &AssertBlockHandler{}
}

func (h *AssertBlockHandler) Process(config *Config, block *hcl.Block) hcl.Diagnostics {
	assertion := Assert{}
	diags := gohcl.DecodeBody(block.Body, config.evalCtx, &assertion)
	if diags.HasErrors() {
		return diags
	}
	assertion.Name = block.Labels[0]

	if assertion.Condition {
		return nil
	}

	config.Logger.Error("Assertion failed", zap.String("assert", assertion.Name), zap.Any("location", block.DefRange))

	detail := fmt.Sprintf("Assertion %s failed", assertion.Name)
	if assertion.Message != "" {
		detail += ": " + assertion.Message
	}

	return hcl.Diagnostics{
		&hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Assertion failed",
			Detail:   detail,
			Subject:  &block.DefRange,
		},
	}
}
