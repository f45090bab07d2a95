package policy

import "errors"

var (
	ErrNotFound   = errors.New("policy not found")
	ErrValidation = errors.New("invalid policy")
)
