package models

import (
	"fmt"
	"time"

	id "miriesgo/pkg/domain"
	"miriesgo/pkg/validation"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusInactive  Status = "inactive"
	StatusSuspended Status = "suspended"
)

func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.IsValid() {
		return "", fmt.Errorf("invalid company status %q", s)
	}
	return st, nil
}

func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusSuspended:
		return true
	}
	return false
}

func (s Status) String() string { return string(s) }

// Company is a lender reporting to the bureau. NIT and TransUnion code are
// unique and never change after creation.
type Company struct {
	ID             id.CompanyID
	Name           string
	NIT            string
	TransUnionCode string
	Address        string
	Phone          string
	Email          string
	Status         Status
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type NewCompany struct {
	Name           string
	NIT            string
	TransUnionCode string
	Address        string
	Phone          string
	Email          string
}

// Patch carries the mutable fields; nil means unchanged.
type Patch struct {
	Name    *string
	Address *string
	Phone   *string
	Email   *string
	Status  *Status
}

func (p Patch) IsEmpty() bool {
	return p.Name == nil && p.Address == nil && p.Phone == nil && p.Email == nil && p.Status == nil
}

func (p Patch) Apply(c *Company) {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Address != nil {
		c.Address = *p.Address
	}
	if p.Phone != nil {
		c.Phone = *p.Phone
	}
	if p.Email != nil {
		c.Email = *p.Email
	}
	if p.Status != nil {
		c.Status = *p.Status
	}
}

// ListFilter selects a page of companies. Search matches name, NIT or code,
// case-insensitively.
type ListFilter struct {
	Page   int
	Size   int
	Search string
	Status *Status
}

// Normalize clamps paging to sane bounds.
func (f *ListFilter) Normalize() {
	f.Page, f.Size = validation.ClampPage(f.Page, f.Size)
}

func (f ListFilter) Offset() int {
	return (f.Page - 1) * f.Size
}

type Page struct {
	Companies []*Company
	Total     int
	Page      int
	Pages     int
}

func NewPage(companies []*Company, total int, f ListFilter) *Page {
	pages := 0
	if f.Size > 0 {
		pages = (total + f.Size - 1) / f.Size
	}
	return &Page{Companies: companies, Total: total, Page: f.Page, Pages: pages}
}

// Member is an active operator attached to a company.
type Member struct {
	ID        id.UserID
	FullName  string
	Email     string
	Role      id.Role
	LastLogin *time.Time
	CreatedAt time.Time
}

// Roster is a company with its active members.
type Roster struct {
	Company *Company
	Members []Member
}
