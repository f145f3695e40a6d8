package contract

import "errors"

var (
	ErrSchemaViolation = errors.New("tool arguments violate schema")
	ErrUnknownTool     = errors.New("unknown tool")
	ErrValidation      = errors.New("validation failed")
)
