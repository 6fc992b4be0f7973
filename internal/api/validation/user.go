package validation

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/velia-hr/portal/internal/role"
)

const maxEmailLength = 254

var validate = validator.New()

// LocalLoginRequest mirrors the fields of a local login.
type LocalLoginRequest struct {
	Username string
	Password string
}

// ValidateLocalLoginRequest validates a local login.
func ValidateLocalLoginRequest(req LocalLoginRequest) []FieldError {
	var errs []FieldError
	if strings.TrimSpace(req.Username) == "" {
		errs = append(errs, FieldError{Field: "username", Message: "username is required"})
	}
	if req.Password == "" {
		errs = append(errs, FieldError{Field: "password", Message: "password is required"})
	}
	return errs
}

// ValidateIdPLoginRequest validates an identity-provider login.
func ValidateIdPLoginRequest(idToken string) []FieldError {
	if strings.TrimSpace(idToken) == "" {
		return []FieldError{{Field: "idToken", Message: "idToken is required"}}
	}
	return nil
}

// SetRoleRequest mirrors the fields of a role assignment.
type SetRoleRequest struct {
	Email   string
	NewRole string
}

// ValidateSetRoleRequest validates a role assignment. Role names are matched
// strictly, so typos are rejected instead of falling back to the default.
func ValidateSetRoleRequest(req SetRoleRequest) []FieldError {
	var errs []FieldError
	errs = append(errs, validateEmail("email", req.Email)...)
	errs = append(errs, validateRole("new_role", req.NewRole)...)
	return errs
}

// ValidateRoleRequest validates a self-service role request.
func ValidateRoleRequest(target string) []FieldError {
	return validateRole("role", target)
}

func validateEmail(field, email string) []FieldError {
	email = strings.TrimSpace(email)
	switch {
	case email == "":
		return []FieldError{{Field: field, Message: field + " is required"}}
	case len(email) > maxEmailLength:
		return []FieldError{{Field: field, Message: field + " must be at most 254 characters"}}
	}
	// A bare address only; "Ann <ann@x.com>" names no account.
	if err := validate.Var(email, "email"); err != nil {
		return []FieldError{{Field: field, Message: field + " must be a valid email address"}}
	}
	return nil
}

func validateRole(field, name string) []FieldError {
	if strings.TrimSpace(name) == "" {
		return []FieldError{{Field: field, Message: field + " is required"}}
	}
	if _, err := role.ParseRole(name); err != nil {
		return []FieldError{{Field: field, Message: field + " must be one of admin, hr, manager, facilitator, simple"}}
	}
	return nil
}
