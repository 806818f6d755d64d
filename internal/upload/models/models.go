package models

import (
	"time"

	"github.com/shopspring/decimal"

	loanmodels "miriesgo/internal/loan/models"
)

type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobSuccess    JobStatus = "success"
	JobPartial    JobStatus = "partial"
	JobError      JobStatus = "error"
)

func (s JobStatus) IsFinal() bool {
	return s == JobSuccess || s == JobPartial || s == JobError
}

// Record is one parsed line of a bureau file.
type Record struct {
	Line               int
	NationalIdentifier string
	FullName           string
	BirthDate          *time.Time
	CompanyNIT         string
	OriginationDate    time.Time
	OriginalAmount     decimal.Decimal
	Modality           loanmodels.Modality
	InterestRate       decimal.Decimal
	Installments       int
	CurrentBalance     decimal.Decimal
	Status             loanmodels.LoanStatus
}

type ProcessResult struct {
	Status           JobStatus `json:"status"`
	Message          string    `json:"message"`
	FileName         string    `json:"fileName"`
	TotalRecords     int       `json:"totalRecords"`
	ProcessedRecords int       `json:"processedRecords"`
	NewClients       int       `json:"newClients"`
	NewLoans         int       `json:"newLoans"`
	UpdatedLoans     int       `json:"updatedLoans"`
	Errors           []string  `json:"errors"`
}

// Finish derives the overall status from the counters.
func (r *ProcessResult) Finish() {
	switch {
	case r.TotalRecords == 0:
		r.Status = JobError
		r.Message = "el archivo no contiene registros"
	case len(r.Errors) == 0:
		r.Status = JobSuccess
		r.Message = "archivo procesado correctamente"
	case r.ProcessedRecords > 0:
		r.Status = JobPartial
		r.Message = "archivo procesado con errores"
	default:
		r.Status = JobError
		r.Message = "ningún registro pudo procesarse"
	}
	if r.Errors == nil {
		r.Errors = []string{}
	}
}

type Job struct {
	ID          string         `json:"jobId"`
	FileName    string         `json:"fileName"`
	Status      JobStatus      `json:"status"`
	SubmittedBy int64          `json:"submittedBy,omitempty"`
	SubmittedAt time.Time      `json:"submittedAt"`
	FinishedAt  *time.Time     `json:"finishedAt,omitempty"`
	Result      *ProcessResult `json:"result,omitempty"`
}
