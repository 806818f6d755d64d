package models

import (
	"time"

	id "miriesgo/pkg/domain"
)

// User is a back-office operator. Email doubles as the login username.
type User struct {
	ID                  id.UserID
	CompanyID           *id.CompanyID
	FullName            string
	NationalIdentifier  string
	Email               string
	Phone               string
	PasswordHash        string
	Role                id.Role
	IsActive            bool
	FailedLoginAttempts int
	LockedUntil         *time.Time
	LastLogin           *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time

	// CompanyName is resolved for responses and never stored.
	CompanyName string
}

// IsLocked reports whether a lockout is still running at now.
func (u *User) IsLocked(now time.Time) bool {
	return u.LockedUntil != nil && now.Before(*u.LockedUntil)
}

// LoginState is the part of a user that login attempts mutate.
type LoginState struct {
	FailedLoginAttempts int
	LockedUntil         *time.Time
	LastLogin           *time.Time
}

// LockoutPolicy locks an account for Duration after MaxAttempts consecutive
// failures.
type LockoutPolicy struct {
	MaxAttempts int
	Duration    time.Duration
}

var DefaultLockoutPolicy = LockoutPolicy{MaxAttempts: 5, Duration: 30 * time.Minute}

// RecordFailure returns the state after one more failed attempt. Reaching the
// threshold sets LockedUntil and resets the counter.
func (p LockoutPolicy) RecordFailure(u *User, now time.Time) (LoginState, bool) {
	state := LoginState{FailedLoginAttempts: u.FailedLoginAttempts + 1, LastLogin: u.LastLogin}
	if state.FailedLoginAttempts >= p.MaxAttempts {
		until := now.Add(p.Duration)
		state.LockedUntil = &until
		state.FailedLoginAttempts = 0
		return state, true
	}
	return state, false
}

// RecordSuccess clears failures and stamps the login time.
func (p LockoutPolicy) RecordSuccess(now time.Time) LoginState {
	return LoginState{LastLogin: &now}
}

type NewUser struct {
	CompanyID          *id.CompanyID
	FullName           string
	NationalIdentifier string
	Email              string
	Phone              string
	PasswordHash       string
	Role               id.Role
}

// UserPatch carries admin edits; nil means unchanged. ClearCompany detaches
// the user from any company.
type UserPatch struct {
	FullName     *string
	Phone        *string
	Role         *id.Role
	IsActive     *bool
	CompanyID    *id.CompanyID
	ClearCompany bool
	PasswordHash *string
}

func (p UserPatch) IsEmpty() bool {
	return p.FullName == nil && p.Phone == nil && p.Role == nil && p.IsActive == nil &&
		p.CompanyID == nil && !p.ClearCompany && p.PasswordHash == nil
}

func (p UserPatch) Apply(u *User) {
	if p.FullName != nil {
		u.FullName = *p.FullName
	}
	if p.Phone != nil {
		u.Phone = *p.Phone
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
	if p.IsActive != nil {
		u.IsActive = *p.IsActive
	}
	if p.ClearCompany {
		u.CompanyID = nil
	} else if p.CompanyID != nil {
		c := *p.CompanyID
		u.CompanyID = &c
	}
	if p.PasswordHash != nil {
		u.PasswordHash = *p.PasswordHash
	}
}

// Token is an issued access token as returned to the caller.
type Token struct {
	AccessToken string
	JTI         string
	ExpiresAt   time.Time
	ExpiresIn   time.Duration
	User        *User
}

// Session is one issued token as seen by the operator: where it was used
// from and until when. Closing a session also revokes its token.
type Session struct {
	ID           id.SessionID
	UserID       id.UserID
	JTI          string
	IPAddress    string
	UserAgent    string
	CreatedAt    time.Time
	LastActivity time.Time
	ExpiresAt    time.Time
	IsActive     bool
}

// IsOpen reports whether the session is still usable at now.
func (s *Session) IsOpen(now time.Time) bool {
	return s.IsActive && now.Before(s.ExpiresAt)
}

type NewSession struct {
	UserID    id.UserID
	JTI       string
	IPAddress string
	UserAgent string
	CreatedAt time.Time
	ExpiresAt time.Time
}
