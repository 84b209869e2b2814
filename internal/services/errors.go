package services

import "strings"

// ValidationError carries every violated rule, not just the first one.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Violations, "; ")
}

// SignatureError means a webhook payload failed its HMAC check.
type SignatureError struct {
	Reason string
}

func (e *SignatureError) Error() string {
	return "signature verification failed: " + e.Reason
}
