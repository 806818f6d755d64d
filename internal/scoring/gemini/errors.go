package gemini

import "fmt"

// Category classifies a failed scoring call. It is also the metrics outcome label.
type Category string

const (
	CategoryTimeout        Category = "timeout"
	CategoryOutage         Category = "outage"
	CategoryAuthentication Category = "authentication"
	CategoryRateLimited    Category = "rate_limited"
	CategoryBadData        Category = "bad_data"
	CategoryInternal       Category = "internal"
)

// Error is returned by Client for every failure.
type Error struct {
	Category   Category
	Message    string
	StatusCode int
	Underlying error
}

func (e *Error) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("gemini [%s]: %s: %v", e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("gemini [%s]: %s", e.Category, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Underlying
}

func newError(category Category, message string, underlying error) *Error {
	return &Error{Category: category, Message: message, Underlying: underlying}
}
