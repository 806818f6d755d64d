package models

import (
	"math"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	id "miriesgo/pkg/domain"
	dErrors "miriesgo/pkg/domain-errors"
)

// LoanStatus values are stored and rendered in Spanish, as reported to the bureau.
type LoanStatus string

const (
	StatusCurrent    LoanStatus = "Vigente"
	StatusDelinquent LoanStatus = "En Mora"
	StatusPaid       LoanStatus = "Pagado"
	StatusCancelled  LoanStatus = "Cancelado"
	StatusChargedOff LoanStatus = "Castigado"
	StatusLegal      LoanStatus = "En Jurídica"
	StatusSeized     LoanStatus = "Embargo"
	StatusFraudulent LoanStatus = "Fraudulento"
	StatusLost       LoanStatus = "Siniestrado"
)

var loanStatuses = []LoanStatus{
	StatusCurrent, StatusDelinquent, StatusPaid, StatusCancelled, StatusChargedOff,
	StatusLegal, StatusSeized, StatusFraudulent, StatusLost,
}

func ParseLoanStatus(s string) (LoanStatus, error) {
	st := LoanStatus(s)
	if !st.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "invalid loan status: "+s)
	}
	return st, nil
}

func (s LoanStatus) IsValid() bool {
	for _, v := range loanStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// IsTerminal reports a loan that no longer carries debt.
func (s LoanStatus) IsTerminal() bool {
	return s == StatusPaid || s == StatusCancelled
}

func (s LoanStatus) String() string { return string(s) }

type Modality string

const (
	ModalityDaily    Modality = "Diario"
	ModalityWeekly   Modality = "Semanal"
	ModalityBiweekly Modality = "Quincenal"
	ModalityMonthly  Modality = "Mensual"
	ModalityYearly   Modality = "Anual"
)

func ParseModality(s string) (Modality, error) {
	m := Modality(s)
	if !m.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "invalid modality: "+s)
	}
	return m, nil
}

func (m Modality) IsValid() bool {
	switch m {
	case ModalityDaily, ModalityWeekly, ModalityBiweekly, ModalityMonthly, ModalityYearly:
		return true
	}
	return false
}

// InstallmentDate returns the due date of installment n for a loan
// originated on from.
func (m Modality) InstallmentDate(from time.Time, n int) time.Time {
	switch m {
	case ModalityDaily:
		return from.AddDate(0, 0, n)
	case ModalityWeekly:
		return from.AddDate(0, 0, 7*n)
	case ModalityBiweekly:
		return from.AddDate(0, 0, 15*n)
	case ModalityYearly:
		return from.AddDate(n, 0, 0)
	default:
		return from.AddDate(0, n, 0)
	}
}

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "Pendiente"
	PaymentPaid    PaymentStatus = "Pagado"
	PaymentLate    PaymentStatus = "En Mora"
)

func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentPending, PaymentPaid, PaymentLate:
		return true
	}
	return false
}

type Loan struct {
	ID              id.LoanID
	ClientID        id.ClientID
	CompanyID       id.CompanyID
	OriginationDate time.Time
	OriginalAmount  decimal.Decimal
	Modality        Modality
	InterestRate    decimal.Decimal
	Installments    int
	CurrentBalance  decimal.Decimal
	Status          LoanStatus
	LastReportDate  time.Time
	Payments        []Payment
}

type Payment struct {
	ID                  id.PaymentID
	LoanID              id.LoanID
	InstallmentNumber   int
	ExpectedPaymentDate time.Time
	ActualPaymentDate   *time.Time
	AmountPaid          *decimal.Decimal
	Status              PaymentStatus
}

// DaysLate is the whole number of days between the expected date and the
// actual payment date, or today while unpaid. Never negative.
func (p Payment) DaysLate(today time.Time) int {
	end := today
	if p.ActualPaymentDate != nil {
		end = *p.ActualPaymentDate
	}
	d := DaysBetween(p.ExpectedPaymentDate, end)
	if d < 0 {
		return 0
	}
	return d
}

// DaysBetween counts calendar days from a to b, ignoring time of day.
func DaysBetween(a, b time.Time) int {
	da := Date(a)
	db := Date(b)
	return int(db.Sub(da).Hours() / 24)
}

// Date truncates t to midnight UTC of its calendar day.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// LoanPatch carries only the fields an operator changed.
type LoanPatch struct {
	Status         *LoanStatus
	CurrentBalance *decimal.Decimal
	InterestRate   *decimal.Decimal
	Modality       *Modality
	Installments   *int
	OriginalAmount *decimal.Decimal
}

// IsEmpty reports a patch with no fields set.
func (p LoanPatch) IsEmpty() bool {
	return p.Status == nil && p.CurrentBalance == nil && p.InterestRate == nil &&
		p.Modality == nil && p.Installments == nil && p.OriginalAmount == nil
}

// Column limits: amounts are NUMERIC(15,2), interest_rate NUMERIC(5,2),
// installments INTEGER. Both decimal bounds are exclusive.
var (
	MaxAmount       = decimal.New(1, 13)
	MaxInterestRate = decimal.New(1, 3)
)

const MaxInstallments = math.MaxInt32

// Validate rejects unknown enum values and amounts outside the column range.
func (p LoanPatch) Validate() error {
	if p.Status != nil && !p.Status.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "invalid loan status: "+string(*p.Status))
	}
	if p.Modality != nil && !p.Modality.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "invalid modality: "+string(*p.Modality))
	}
	if p.Installments != nil && (*p.Installments <= 0 || *p.Installments > MaxInstallments) {
		return dErrors.New(dErrors.CodeValidation, "installments must be between 1 and "+strconv.Itoa(MaxInstallments))
	}
	amounts := []struct {
		name  string
		value *decimal.Decimal
		limit decimal.Decimal
	}{
		{"current_balance", p.CurrentBalance, MaxAmount},
		{"interest_rate", p.InterestRate, MaxInterestRate},
		{"original_amount", p.OriginalAmount, MaxAmount},
	}
	for _, a := range amounts {
		if a.value == nil {
			continue
		}
		if a.value.IsNegative() {
			return dErrors.New(dErrors.CodeValidation, a.name+" must not be negative")
		}
		if a.value.Round(2).GreaterThanOrEqual(a.limit) {
			return dErrors.New(dErrors.CodeValidation, a.name+" must be less than "+a.limit.String())
		}
	}
	return nil
}

// Apply copies the set fields onto l.
func (p LoanPatch) Apply(l *Loan) {
	if p.Status != nil {
		l.Status = *p.Status
	}
	if p.CurrentBalance != nil {
		l.CurrentBalance = *p.CurrentBalance
	}
	if p.InterestRate != nil {
		l.InterestRate = *p.InterestRate
	}
	if p.Modality != nil {
		l.Modality = *p.Modality
	}
	if p.Installments != nil {
		l.Installments = *p.Installments
	}
	if p.OriginalAmount != nil {
		l.OriginalAmount = *p.OriginalAmount
	}
}

// Summary is the per-loan projection the dashboard aggregates.
type Summary struct {
	LoanID            id.LoanID
	ClientID          id.ClientID
	CompanyID         id.CompanyID
	Status            LoanStatus
	MaxDaysLateUnpaid int
}
