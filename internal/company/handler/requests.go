package handler

import (
	"miriesgo/internal/company/models"
	dErrors "miriesgo/pkg/domain-errors"
	s "miriesgo/pkg/platform/strings"
	"miriesgo/pkg/validation"
)

type CreateCompanyRequest struct {
	Name    string `json:"name" validate:"required,notblank,max=255"`
	NIT     string `json:"nit" validate:"required,notblank,max=20"`
	Code    string `json:"code" validate:"required,notblank,max=10"`
	Address string `json:"address" validate:"max=255"`
	Phone   string `json:"phone" validate:"max=20"`
	Email   string `json:"email" validate:"omitempty,email,max=255"`
}

func (r *CreateCompanyRequest) Sanitize() {
	r.Name = s.Sanitize(r.Name)
	r.NIT = s.Sanitize(r.NIT)
	r.Code = s.Sanitize(r.Code)
	r.Address = s.Sanitize(r.Address)
	r.Phone = s.Sanitize(r.Phone)
	r.Email = s.Sanitize(r.Email)
}

func (r *CreateCompanyRequest) Normalize() {
	s.TrimStrings(&r.Name, &r.NIT, &r.Code, &r.Address, &r.Phone, &r.Email)
}

func (r *CreateCompanyRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	return validation.Validate(r)
}

func (r *CreateCompanyRequest) ToNewCompany() models.NewCompany {
	return models.NewCompany{
		Name:           r.Name,
		NIT:            r.NIT,
		TransUnionCode: r.Code,
		Address:        r.Address,
		Phone:          r.Phone,
		Email:          r.Email,
	}
}

// UpdateCompanyRequest is sparse. NIT and code cannot change.
type UpdateCompanyRequest struct {
	Name    *string `json:"name" validate:"omitempty,notblank,max=255"`
	Address *string `json:"address" validate:"omitempty,max=255"`
	Phone   *string `json:"phone" validate:"omitempty,max=20"`
	Email   *string `json:"email" validate:"omitempty,email,max=255"`
	Status  *string `json:"status" validate:"omitempty,oneof=active inactive suspended"`
}

func (r *UpdateCompanyRequest) Sanitize() {
	r.Name = s.SanitizePtr(r.Name)
	r.Address = s.SanitizePtr(r.Address)
	r.Phone = s.SanitizePtr(r.Phone)
	r.Email = s.SanitizePtr(r.Email)
}

func (r *UpdateCompanyRequest) Normalize() {
	r.Name = s.TrimSpacePtr(r.Name)
	r.Address = s.TrimSpacePtr(r.Address)
	r.Phone = s.TrimSpacePtr(r.Phone)
	r.Email = s.TrimSpacePtr(r.Email)
	r.Status = s.TrimSpacePtr(r.Status)
}

func (r *UpdateCompanyRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if err := validation.Validate(r); err != nil {
		return err
	}
	if r.ToPatch().IsEmpty() {
		return dErrors.New(dErrors.CodeValidation, "at least one field must be provided")
	}
	return nil
}

func (r *UpdateCompanyRequest) ToPatch() models.Patch {
	p := models.Patch{Name: r.Name, Address: r.Address, Phone: r.Phone, Email: r.Email}
	if r.Status != nil {
		st := models.Status(*r.Status)
		p.Status = &st
	}
	return p
}
