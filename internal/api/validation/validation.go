// Package validation checks request payloads before they reach services.
package validation

// FieldError describes a validation failure on a single request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}
