// Package models holds the credit report read model. It is assembled from
// the client identity store and the loan ledger and never persisted.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type CreditReport struct {
	Client      ReportClient `json:"client"`
	Loans       []ReportLoan `json:"loans"`
	DebtSummary DebtSummary  `json:"debtSummary"`
}

type HistoricEntry struct {
	Value        string    `json:"value"`
	DateModified time.Time `json:"dateModified"`
}

type ReportClient struct {
	ID                 int64           `json:"id"`
	NationalIdentifier string          `json:"nationalIdentifier"`
	FullName           string          `json:"fullName"`
	BirthDate          *string         `json:"birthDate"`
	Addresses          []HistoricEntry `json:"addresses"`
	Phones             []HistoricEntry `json:"phones"`
	Emails             []HistoricEntry `json:"emails"`
	Flags              []string        `json:"flags"`
}

type ReportPayment struct {
	ID                  int64   `json:"id"`
	LoanID              int64   `json:"loan_id"`
	InstallmentNumber   int     `json:"installment_number"`
	ExpectedPaymentDate string  `json:"expected_payment_date"`
	ActualPaymentDate   *string `json:"actual_payment_date"`
	AmountPaid          *string `json:"amount_paid"`
	Status              string  `json:"status"`
	DaysLate            int     `json:"days_late"`
}

type ReportLoan struct {
	ID              int64           `json:"id"`
	ClientID        int64           `json:"client_id"`
	CompanyID       int64           `json:"company_id"`
	OriginationDate string          `json:"origination_date"`
	OriginalAmount  string          `json:"original_amount"`
	Modality        string          `json:"modality"`
	InterestRate    string          `json:"interest_rate"`
	Installments    int             `json:"installments"`
	CurrentBalance  string          `json:"current_balance"`
	Status          string          `json:"status"`
	LastReportDate  string          `json:"last_report_date"`
	Payments        []ReportPayment `json:"payments"`
}

// DebtSummary totals a client's loans. Amounts are fixed-point strings
// with two decimals.
type DebtSummary struct {
	TotalCredits        int    `json:"totalCredits"`
	ActiveCredits       int    `json:"activeCredits"`
	PaidCredits         int    `json:"paidCredits"`
	TotalOriginalAmount string `json:"totalOriginalAmount"`
	TotalCurrentBalance string `json:"totalCurrentBalance"`
}

// Totals accumulates a DebtSummary with exact decimal arithmetic.
type Totals struct {
	Total          int
	Active         int
	OriginalAmount decimal.Decimal
	CurrentBalance decimal.Decimal
}

func (t *Totals) Add(active bool, original, balance decimal.Decimal) {
	t.Total++
	if active {
		t.Active++
	}
	t.OriginalAmount = t.OriginalAmount.Add(original)
	t.CurrentBalance = t.CurrentBalance.Add(balance)
}

func (t Totals) Summary() DebtSummary {
	return DebtSummary{
		TotalCredits:        t.Total,
		ActiveCredits:       t.Active,
		PaidCredits:         t.Total - t.Active,
		TotalOriginalAmount: t.OriginalAmount.StringFixed(2),
		TotalCurrentBalance: t.CurrentBalance.StringFixed(2),
	}
}
