package handler

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"miriesgo/internal/loan/models"
	dErrors "miriesgo/pkg/domain-errors"
	s "miriesgo/pkg/platform/strings"
)

// UpdateLoanRequest is a sparse patch. Absent fields are left untouched.
// Clients commonly send back the whole loan they fetched, so the read-only
// fields are accepted and ignored.
type UpdateLoanRequest struct {
	Status         *string          `json:"status"`
	CurrentBalance *decimal.Decimal `json:"current_balance"`
	InterestRate   *decimal.Decimal `json:"interest_rate"`
	Modality       *string          `json:"modality"`
	Installments   *int             `json:"installments"`
	OriginalAmount *decimal.Decimal `json:"original_amount"`

	ID              json.RawMessage `json:"id,omitempty"`
	ClientID        json.RawMessage `json:"client_id,omitempty"`
	OriginationDate json.RawMessage `json:"origination_date,omitempty"`
	LastReportDate  json.RawMessage `json:"last_report_date,omitempty"`
	Payments        json.RawMessage `json:"payments,omitempty"`
}

func (r *UpdateLoanRequest) Normalize() {
	r.Status = s.TrimSpacePtr(r.Status)
	r.Modality = s.TrimSpacePtr(r.Modality)
}

func (r *UpdateLoanRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	_, err := r.ToPatch()
	return err
}

func (r *UpdateLoanRequest) ToPatch() (models.LoanPatch, error) {
	patch := models.LoanPatch{
		CurrentBalance: r.CurrentBalance,
		InterestRate:   r.InterestRate,
		Installments:   r.Installments,
		OriginalAmount: r.OriginalAmount,
	}
	if r.Status != nil {
		st, err := models.ParseLoanStatus(*r.Status)
		if err != nil {
			return patch, err
		}
		patch.Status = &st
	}
	if r.Modality != nil {
		m, err := models.ParseModality(*r.Modality)
		if err != nil {
			return patch, err
		}
		patch.Modality = &m
	}
	return patch, patch.Validate()
}
