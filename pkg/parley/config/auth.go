package config

import (
	"fmt"
	"net/url"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
)

type AuthDefinition struct {
	HMACSecret  *string        `hcl:"hmac_secret,optional"`
	Audience    *string        `hcl:"audience,optional"`
	Leeway      hcl.Expression `hcl:"leeway,optional"`
	UserService *string        `hcl:"user_service,optional"`
	Timeout     hcl.Expression `hcl:"timeout,optional"`
}

type AuthBlockHandler struct {
	BlockHandlerBase
	singleton
}

func NewAuthBlockHandler() *AuthBlockHandler {
	return &AuthBlockHandler{}
}

func (h *AuthBlockHandler) Process(config *Config, block *hcl.Block) hcl.Diagnostics {
	diags := h.check(block)
	if diags.HasErrors() {
		return diags
	}

	authDef := AuthDefinition{}
	diags = gohcl.DecodeBody(block.Body, config.evalCtx, &authDef)
	if diags.HasErrors() {
		return diags
	}

	if authDef.HMACSecret != nil {
		config.Auth.HMACSecret = *authDef.HMACSecret
	}
	if authDef.Audience != nil {
		config.Auth.Audience = *authDef.Audience
	}

	if authDef.UserService != nil && *authDef.UserService != "" {
		u, err := url.Parse(*authDef.UserService)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			diags = diags.Append(&hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Invalid user_service URL",
				Detail:   fmt.Sprintf("user_service must be an absolute http or https URL, got %q", *authDef.UserService),
				Subject:  &block.DefRange,
			})
		} else {
			config.Auth.UserService = *authDef.UserService
		}
	}

	diags = diags.Extend(config.optionalDuration(authDef.Leeway, &config.Auth.Leeway))
	diags = diags.Extend(config.optionalDuration(authDef.Timeout, &config.Auth.Timeout))

	return diags
}

func (h *AuthBlockHandler) FinishProcessing(config *Config) hcl.Diagnostics {
	if config.Auth.HMACSecret != "" || config.Auth.UserService != "" {
		return nil
	}

	diag := &hcl.Diagnostic{
		Severity: hcl.DiagError,
		Summary:  "No token validation configured",
		Detail:   "Set hmac_secret or user_service in the auth block",
	}
	if h.seen != nil {
		diag.Subject = h.seen
	}
	return hcl.Diagnostics{diag}
}
