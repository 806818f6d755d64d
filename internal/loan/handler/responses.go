package handler

import (
	"miriesgo/internal/loan/models"
)

const dateLayout = "2006-01-02"

type PaymentResponse struct {
	ID                  int64   `json:"id"`
	LoanID              int64   `json:"loan_id"`
	InstallmentNumber   int     `json:"installment_number"`
	ExpectedPaymentDate string  `json:"expected_payment_date"`
	ActualPaymentDate   *string `json:"actual_payment_date"`
	AmountPaid          *string `json:"amount_paid"`
	Status              string  `json:"status"`
}

type LoanResponse struct {
	ID              int64             `json:"id"`
	ClientID        int64             `json:"client_id"`
	CompanyID       int64             `json:"company_id"`
	OriginationDate string            `json:"origination_date"`
	OriginalAmount  string            `json:"original_amount"`
	Modality        string            `json:"modality"`
	InterestRate    string            `json:"interest_rate"`
	Installments    int               `json:"installments"`
	CurrentBalance  string            `json:"current_balance"`
	Status          string            `json:"status"`
	LastReportDate  string            `json:"last_report_date"`
	Payments        []PaymentResponse `json:"payments"`
}

func toLoanResponse(l *models.Loan) *LoanResponse {
	res := &LoanResponse{
		ID:              int64(l.ID),
		ClientID:        int64(l.ClientID),
		CompanyID:       int64(l.CompanyID),
		OriginationDate: l.OriginationDate.Format(dateLayout),
		OriginalAmount:  l.OriginalAmount.StringFixed(2),
		Modality:        string(l.Modality),
		InterestRate:    l.InterestRate.StringFixed(2),
		Installments:    l.Installments,
		CurrentBalance:  l.CurrentBalance.StringFixed(2),
		Status:          string(l.Status),
		LastReportDate:  l.LastReportDate.Format(dateLayout),
		Payments:        make([]PaymentResponse, 0, len(l.Payments)),
	}
	for _, p := range l.Payments {
		pr := PaymentResponse{
			ID:                  int64(p.ID),
			LoanID:              int64(p.LoanID),
			InstallmentNumber:   p.InstallmentNumber,
			ExpectedPaymentDate: p.ExpectedPaymentDate.Format(dateLayout),
			Status:              string(p.Status),
		}
		if p.ActualPaymentDate != nil {
			d := p.ActualPaymentDate.Format(dateLayout)
			pr.ActualPaymentDate = &d
		}
		if p.AmountPaid != nil {
			a := p.AmountPaid.StringFixed(2)
			pr.AmountPaid = &a
		}
		res.Payments = append(res.Payments, pr)
	}
	return res
}
