// Package domain provides type-safe identifiers to prevent mixing up IDs at compile time.
package domain

import (
	"strconv"

	dErrors "miriesgo/pkg/domain-errors"
)

// Distinct ID types over BIGSERIAL surrogate keys - the compiler prevents
// passing a LoanID where a ClientID is expected.
type (
	ClientID  int64
	LoanID    int64
	PaymentID int64
	CompanyID int64
	UserID    int64
	SessionID int64
)

// Parse functions - use at trust boundaries (handlers, API inputs).

func ParseClientID(s string) (ClientID, error) {
	v, err := parseSerial(s, "client ID")
	return ClientID(v), err
}

func ParseLoanID(s string) (LoanID, error) {
	v, err := parseSerial(s, "loan ID")
	return LoanID(v), err
}

func ParseCompanyID(s string) (CompanyID, error) {
	v, err := parseSerial(s, "company ID")
	return CompanyID(v), err
}

func ParseUserID(s string) (UserID, error) {
	v, err := parseSerial(s, "user ID")
	return UserID(v), err
}

func (id ClientID) String() string  { return strconv.FormatInt(int64(id), 10) }
func (id LoanID) String() string    { return strconv.FormatInt(int64(id), 10) }
func (id PaymentID) String() string { return strconv.FormatInt(int64(id), 10) }
func (id CompanyID) String() string { return strconv.FormatInt(int64(id), 10) }
func (id UserID) String() string    { return strconv.FormatInt(int64(id), 10) }
func (id SessionID) String() string { return strconv.FormatInt(int64(id), 10) }

// IsNil reports an unassigned identifier. Serial keys start at 1.

func (id ClientID) IsNil() bool  { return id <= 0 }
func (id LoanID) IsNil() bool    { return id <= 0 }
func (id CompanyID) IsNil() bool { return id <= 0 }
func (id UserID) IsNil() bool    { return id <= 0 }

func parseSerial(s, label string) (int64, error) {
	if s == "" {
		return 0, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be empty")
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v <= 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	return v, nil
}
