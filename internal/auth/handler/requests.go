package handler

import (
	"miriesgo/internal/auth/models"
	"miriesgo/internal/auth/service"
	id "miriesgo/pkg/domain"
	dErrors "miriesgo/pkg/domain-errors"
	s "miriesgo/pkg/platform/strings"
	"miriesgo/pkg/validation"
)

// LoginRequest follows the OAuth2 password form: the username is the email.
type LoginRequest struct {
	Username string `json:"username" validate:"required,notblank,max=255"`
	Password string `json:"password" validate:"required,max=128"`
}

func (r *LoginRequest) Normalize() {
	s.TrimStrings(&r.Username)
}

func (r *LoginRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	return validation.Validate(r)
}

type CreateUserRequest struct {
	FullName           string `json:"full_name" validate:"required,notblank,max=255"`
	NationalIdentifier string `json:"national_identifier" validate:"required,notblank,max=20"`
	Email              string `json:"email" validate:"required,email,max=255"`
	Phone              string `json:"phone" validate:"max=20"`
	Password           string `json:"password" validate:"required,min=8,max=72"`
	Role               string `json:"role" validate:"required,oneof=admin manager analyst"`
	CompanyID          *int64 `json:"company_id" validate:"omitempty,gt=0"`
}

func (r *CreateUserRequest) Sanitize() {
	r.FullName = s.Sanitize(r.FullName)
	r.NationalIdentifier = s.Sanitize(r.NationalIdentifier)
	r.Phone = s.Sanitize(r.Phone)
}

func (r *CreateUserRequest) Normalize() {
	s.TrimStrings(&r.FullName, &r.NationalIdentifier, &r.Email, &r.Phone, &r.Role)
}

func (r *CreateUserRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	return validation.Validate(r)
}

func (r *CreateUserRequest) ToInput() service.CreateUserInput {
	in := service.CreateUserInput{
		FullName:           r.FullName,
		NationalIdentifier: r.NationalIdentifier,
		Email:              r.Email,
		Phone:              r.Phone,
		Password:           r.Password,
		Role:               id.Role(r.Role),
	}
	if r.CompanyID != nil {
		c := id.CompanyID(*r.CompanyID)
		in.CompanyID = &c
	}
	return in
}

// UpdateUserRequest is sparse. company_id 0 detaches the user from its company.
type UpdateUserRequest struct {
	FullName  *string `json:"full_name" validate:"omitempty,notblank,max=255"`
	Phone     *string `json:"phone" validate:"omitempty,max=20"`
	Role      *string `json:"role" validate:"omitempty,oneof=admin manager analyst"`
	IsActive  *bool   `json:"is_active"`
	CompanyID *int64  `json:"company_id" validate:"omitempty,gte=0"`
	Password  *string `json:"password" validate:"omitempty,min=8,max=72"`
}

func (r *UpdateUserRequest) Sanitize() {
	r.FullName = s.SanitizePtr(r.FullName)
	r.Phone = s.SanitizePtr(r.Phone)
}

func (r *UpdateUserRequest) Normalize() {
	r.FullName = s.TrimSpacePtr(r.FullName)
	r.Phone = s.TrimSpacePtr(r.Phone)
	r.Role = s.TrimSpacePtr(r.Role)
}

func (r *UpdateUserRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if err := validation.Validate(r); err != nil {
		return err
	}
	if r.ToPatch().IsEmpty() && r.Password == nil {
		return dErrors.New(dErrors.CodeValidation, "at least one field must be provided")
	}
	return nil
}

func (r *UpdateUserRequest) ToPatch() models.UserPatch {
	p := models.UserPatch{FullName: r.FullName, Phone: r.Phone, IsActive: r.IsActive}
	if r.Role != nil {
		role := id.Role(*r.Role)
		p.Role = &role
	}
	if r.CompanyID != nil {
		if *r.CompanyID == 0 {
			p.ClearCompany = true
		} else {
			c := id.CompanyID(*r.CompanyID)
			p.CompanyID = &c
		}
	}
	return p
}

type ResetPasswordRequest struct {
	NewPassword string `json:"new_password" validate:"required,min=8,max=72"`
}

func (r *ResetPasswordRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	return validation.Validate(r)
}
