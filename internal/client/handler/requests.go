package handler

import (
	"miriesgo/internal/client/models"
	dErrors "miriesgo/pkg/domain-errors"
	s "miriesgo/pkg/platform/strings"
	"miriesgo/pkg/validation"
)

// UpdateClientRequest is the full desired state of a client's mutable data.
type UpdateClientRequest struct {
	FullName string   `json:"fullName" validate:"required,notblank,max=255"`
	Address  string   `json:"address" validate:"required,notblank,max=255"`
	Phone    string   `json:"phone" validate:"required,notblank,max=255"`
	Email    string   `json:"email" validate:"required,notblank,max=255"`
	Flags    []string `json:"flags"`
}

func (r *UpdateClientRequest) Sanitize() {
	r.FullName = s.Sanitize(r.FullName)
	r.Address = s.Sanitize(r.Address)
	r.Phone = s.Sanitize(r.Phone)
	r.Email = s.Sanitize(r.Email)
	for i := range r.Flags {
		r.Flags[i] = s.Sanitize(r.Flags[i])
	}
}

func (r *UpdateClientRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if err := validation.CheckSliceCount("flags", len(r.Flags), validation.MaxFlags); err != nil {
		return err
	}
	if s.HasBlank(r.Flags) {
		return dErrors.New(dErrors.CodeValidation, "flags must not contain blank tags")
	}
	return validation.Validate(r)
}

func (r *UpdateClientRequest) ToPayload() models.UpdatePayload {
	return models.UpdatePayload{
		FullName: r.FullName,
		Address:  r.Address,
		Phone:    r.Phone,
		Email:    r.Email,
		Flags:    r.Flags,
	}
}
