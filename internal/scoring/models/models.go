package models

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	dErrors "miriesgo/pkg/domain-errors"
)

const (
	MinScore = 300
	MaxScore = 850
)

// Assessment is the risk band. Values are the Spanish labels shown to operators.
type Assessment string

const (
	AssessmentVeryLow  Assessment = "Muy Bajo"
	AssessmentLow      Assessment = "Bajo"
	AssessmentMedium   Assessment = "Medio"
	AssessmentHigh     Assessment = "Alto"
	AssessmentVeryHigh Assessment = "Muy Alto"
)

var assessmentAliases = map[string]Assessment{
	"muy bajo":  AssessmentVeryLow,
	"verylow":   AssessmentVeryLow,
	"very low":  AssessmentVeryLow,
	"very_low":  AssessmentVeryLow,
	"bajo":      AssessmentLow,
	"low":       AssessmentLow,
	"medio":     AssessmentMedium,
	"medium":    AssessmentMedium,
	"alto":      AssessmentHigh,
	"high":      AssessmentHigh,
	"muy alto":  AssessmentVeryHigh,
	"veryhigh":  AssessmentVeryHigh,
	"very high": AssessmentVeryHigh,
	"very_high": AssessmentVeryHigh,
}

// ParseAssessment accepts the Spanish labels and their English names in any case.
func ParseAssessment(s string) (Assessment, error) {
	if a, ok := assessmentAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return a, nil
	}
	return "", fmt.Errorf("unknown assessment %q", s)
}

type RiskScore struct {
	Score      int        `json:"score"`
	Assessment Assessment `json:"assessment"`
	Reasoning  string     `json:"reasoning"`
}

// Validate checks the score range and normalizes the assessment label.
func (r *RiskScore) Validate() error {
	if r.Score < MinScore || r.Score > MaxScore {
		return fmt.Errorf("score %d outside [%d, %d]", r.Score, MinScore, MaxScore)
	}
	a, err := ParseAssessment(string(r.Assessment))
	if err != nil {
		return err
	}
	r.Assessment = a
	r.Reasoning = strings.TrimSpace(r.Reasoning)
	return nil
}

// SimplifiedReport is the reduced report sent to the model: no names,
// identifiers or contact data.
type SimplifiedReport struct {
	Client      SimplifiedClient `json:"client"`
	DebtSummary json.RawMessage  `json:"debtSummary"`
	Loans       []SimplifiedLoan `json:"loans"`
}

type SimplifiedClient struct {
	BirthDate *string  `json:"birthDate"`
	Flags     []string `json:"flags"`
}

type SimplifiedLoan struct {
	Status          string          `json:"status"`
	OriginalAmount  decimal.Decimal `json:"originalAmount"`
	CurrentBalance  decimal.Decimal `json:"currentBalance"`
	PaymentsSummary string          `json:"paymentsSummary"`
}

// ReportInput is a credit report as submitted by a client. It accepts both
// snake_case and camelCase loan amounts and ignores everything it does not use.
type ReportInput struct {
	Client struct {
		BirthDate *string  `json:"birthDate"`
		Flags     []string `json:"flags"`
	} `json:"client"`
	DebtSummary json.RawMessage `json:"debtSummary"`
	Loans       []struct {
		Status              string              `json:"status"`
		OriginalAmount      decimal.NullDecimal `json:"original_amount"`
		OriginalAmountCamel decimal.NullDecimal `json:"originalAmount"`
		CurrentBalance      decimal.NullDecimal `json:"current_balance"`
		CurrentBalanceCamel decimal.NullDecimal `json:"currentBalance"`
		Payments            []struct {
			Status string `json:"status"`
		} `json:"payments"`
	} `json:"loans"`
}

// Simplify reduces a submitted report to what the model needs.
func Simplify(in ReportInput) (SimplifiedReport, error) {
	if len(in.DebtSummary) == 0 || string(in.DebtSummary) == "null" {
		return SimplifiedReport{}, dErrors.New(dErrors.CodeValidation, "report.debtSummary is required")
	}
	out := SimplifiedReport{
		Client: SimplifiedClient{
			BirthDate: in.Client.BirthDate,
			Flags:     in.Client.Flags,
		},
		DebtSummary: in.DebtSummary,
		Loans:       make([]SimplifiedLoan, 0, len(in.Loans)),
	}
	if out.Client.Flags == nil {
		out.Client.Flags = []string{}
	}
	for _, l := range in.Loans {
		paid := 0
		for _, p := range l.Payments {
			if p.Status == "Pagado" {
				paid++
			}
		}
		out.Loans = append(out.Loans, SimplifiedLoan{
			Status:          l.Status,
			OriginalAmount:  firstSet(l.OriginalAmount, l.OriginalAmountCamel),
			CurrentBalance:  firstSet(l.CurrentBalance, l.CurrentBalanceCamel),
			PaymentsSummary: fmt.Sprintf("%d pagadas de %d", paid, len(l.Payments)),
		})
	}
	return out, nil
}

func firstSet(values ...decimal.NullDecimal) decimal.Decimal {
	for _, v := range values {
		if v.Valid {
			return v.Decimal
		}
	}
	return decimal.Zero
}
