package config

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/tsarna/go2cty2go"
	"go.uber.org/zap"

	"github.com/tsarna/parley/pkg/parley/model"
)

// DirectoryBlockHandler seeds the local user directory. Every directory
// block contributes to the same list; user ids must be unique across them.
type DirectoryBlockHandler struct {
	BlockHandlerBase

	ids map[string]hcl.Range
}

func NewDirectoryBlockHandler() *DirectoryBlockHandler {
	return &DirectoryBlockHandler{
		ids: make(map[string]hcl.Range),
	}
}

func (h *DirectoryBlockHandler) Process(config *Config, block *hcl.Block) hcl.Diagnostics {
	content, diags := block.Body.Content(&hcl.BodySchema{
		Attributes: []hcl.AttributeSchema{
			{Name: "users", Required: true},
		},
	})
	if diags.HasErrors() {
		return diags
	}

	attr := content.Attributes["users"]
	val, evalDiags := attr.Expr.Value(config.evalCtx)
	diags = diags.Extend(evalDiags)
	if evalDiags.HasErrors() {
		return diags
	}

	raw, err := go2cty2go.CtyToAny(val)
	if err != nil {
		return diags.Append(&hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Invalid users",
			Detail:   fmt.Sprintf("Failed to convert users: %s", err),
			Subject:  attr.Expr.Range().Ptr(),
		})
	}

	entries, ok := raw.([]any)
	if !ok {
		return diags.Append(&hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Invalid users",
			Detail:   fmt.Sprintf("users must be a list of objects, got %T", raw),
			Subject:  attr.Expr.Range().Ptr(),
		})
	}

	for i, entry := range entries {
		user, err := userFromMap(entry)
		if err != nil {
			diags = diags.Append(&hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Invalid user",
				Detail:   fmt.Sprintf("users[%d]: %s", i, err),
				Subject:  attr.Expr.Range().Ptr(),
			})
			continue
		}
		if previous, exists := h.ids[user.ID]; exists {
			diags = diags.Append(&hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Duplicate user",
				Detail:   fmt.Sprintf("User %s is already defined at %s", user.ID, previous),
				Subject:  attr.Expr.Range().Ptr(),
			})
			continue
		}
		h.ids[user.ID] = attr.Expr.Range()
		config.Users = append(config.Users, user)
	}

	return diags
}

func (h *DirectoryBlockHandler) FinishProcessing(config *Config) hcl.Diagnostics {
	if len(config.Users) > 0 {
		config.Logger.Debug("Directory seeded", zap.Int("users", len(config.Users)))
	}
	return nil
}

func userFromMap(entry any) (model.User, error) {
	fields, ok := entry.(map[string]any)
	if !ok {
		return model.User{}, fmt.Errorf("expected an object, got %T", entry)
	}

	var user model.User
	var err error

	if user.ID, err = stringField(fields, "id"); err != nil {
		return user, err
	}
	if user.ID == "" {
		return user, fmt.Errorf("id is required")
	}
	if user.Username, err = stringField(fields, "username"); err != nil {
		return user, err
	}
	if user.Username == "" {
		user.Username = user.ID
	}
	if user.Email, err = stringField(fields, "email"); err != nil {
		return user, err
	}
	if user.FullName, err = stringField(fields, "full_name"); err != nil {
		return user, err
	}

	role, err := stringField(fields, "role")
	if err != nil {
		return user, err
	}
	switch model.UserRole(role) {
	case "":
		user.Role = model.UserRoleUser
	case model.UserRoleUser, model.UserRoleAdmin:
		user.Role = model.UserRole(role)
	default:
		return user, fmt.Errorf("unknown role %q", role)
	}

	if user.AvatarURL, err = optionalStringField(fields, "avatar_url"); err != nil {
		return user, err
	}
	if user.Description, err = optionalStringField(fields, "description"); err != nil {
		return user, err
	}

	for key := range fields {
		switch key {
		case "id", "username", "email", "full_name", "role", "avatar_url", "description":
		default:
			return user, fmt.Errorf("unknown attribute %q", key)
		}
	}

	return user, nil
}

func stringField(fields map[string]any, key string) (string, error) {
	v, ok := fields[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s must be a string, got %T", key, v)
	}
	return s, nil
}

func optionalStringField(fields map[string]any, key string) (*string, error) {
	if v, ok := fields[key]; !ok || v == nil {
		return nil, nil
	}
	s, err := stringField(fields, key)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
