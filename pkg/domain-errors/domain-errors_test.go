package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
)

type DomainErrorsSuite struct {
	suite.Suite
}

func TestDomainErrorsSuite(t *testing.T) {
	suite.Run(t, new(DomainErrorsSuite))
}

func (s *DomainErrorsSuite) TestErrorMessage() {
	s.Run("message wins over code", func() {
		err := &Error{Code: CodeNotFound, Message: "client not found"}
		s.Equal("client not found", err.Error())
	})

	s.Run("falls back to code", func() {
		err := &Error{Code: CodeUnavailable}
		s.Equal("service_unavailable", err.Error())
	})
}

func (s *DomainErrorsSuite) TestIsMatchesByCode() {
	loanMissing := New(CodeNotFound, "loan not found")
	clientMissing := New(CodeNotFound, "client not found")

	s.True(errors.Is(loanMissing, clientMissing))
	s.False(errors.Is(loanMissing, New(CodeInternal, "")))
	s.False(errors.Is(loanMissing, errors.New("not found")))
}

func (s *DomainErrorsSuite) TestWrap() {
	s.Run("storage failure becomes internal and keeps the cause", func() {
		cause := errors.New("connection reset by peer")
		err := Wrap(fmt.Errorf("update loan: %w", cause), CodeInternal, "failed to update loan")

		var domainErr *Error
		s.Require().True(errors.As(err, &domainErr))
		s.Equal(CodeInternal, domainErr.Code)
		s.Equal("failed to update loan", domainErr.Message)
		s.ErrorIs(err, cause)
	})

	s.Run("wrapping a domain error preserves its code", func() {
		inner := New(CodeNotFound, "client not found")
		err := Wrap(inner, CodeInternal, "reconcile client")

		s.True(HasCode(err, CodeNotFound))
		s.False(HasCode(err, CodeInternal))
	})

	s.Run("unavailable survives wrapping", func() {
		err := Wrap(New(CodeUnavailable, "scoring timed out"), CodeInternal, "score report")
		s.True(HasCode(err, CodeUnavailable))
	})
}

func (s *DomainErrorsSuite) TestHasCode() {
	s.False(HasCode(nil, CodeNotFound))
	s.False(HasCode(errors.New("plain"), CodeNotFound))
	s.True(HasCode(fmt.Errorf("outer: %w", New(CodeLocked, "account locked")), CodeLocked))
}
