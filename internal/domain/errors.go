package domain

import "fmt"

// Sentinel errors for the domain layer. Every external-call boundary wraps
// its failures in exactly one of these so callers can dispatch on category.
var (
	ErrClassify        = fmt.Errorf("classification failed")
	ErrGenerate        = fmt.Errorf("generation failed")
	ErrToolNotFound    = fmt.Errorf("tool not found")
	ErrToolFailure     = fmt.Errorf("tool execution failed")
	ErrStore           = fmt.Errorf("conversation store failed")
	ErrCatalog         = fmt.Errorf("catalog lookup failed")
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrRateLimit       = fmt.Errorf("rate limit exceeded")
	ErrAuthInvalid     = fmt.Errorf("authentication failed")
	ErrContextOverflow = fmt.Errorf("context window exceeded")
	ErrConnectionGone  = fmt.Errorf("connection no longer valid")
)

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}
