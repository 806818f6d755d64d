package validation

import (
	"fmt"

	dErrors "miriesgo/pkg/domain-errors"
)

const (
	// MaxBodySize caps JSON request bodies (64 KB).
	MaxBodySize = 64 * 1024

	MaxFlags          = 50
	MaxFlagLength     = 100
	MaxFullNameLength = 255
	MaxContactLength  = 255
	MaxEmailLength    = 255
	MaxPageSize       = 100
	DefaultPageSize   = 20
)

// CheckSliceCount validates that a slice does not exceed the maximum count.
func CheckSliceCount(fieldName string, count, max int) error {
	if count > max {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("too many %s: max %d allowed", fieldName, max))
	}
	return nil
}

// CheckStringLength validates that a string does not exceed the maximum length.
func CheckStringLength(fieldName, value string, max int) error {
	if len(value) > max {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s exceeds max length of %d", fieldName, max))
	}
	return nil
}

// CheckEachStringLength validates that each string in a slice does not exceed the maximum length.
func CheckEachStringLength(fieldName string, values []string, max int) error {
	for _, v := range values {
		if len(v) > max {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s exceeds max length of %d", fieldName, max))
		}
	}
	return nil
}

// ClampPage normalizes pagination parameters: page starts at 1 and size
// falls back to DefaultPageSize, capped at MaxPageSize.
func ClampPage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return page, size
}
