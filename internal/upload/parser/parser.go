// Package parser reads pipe-delimited bureau files.
package parser

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	loanmodels "miriesgo/internal/loan/models"
	"miriesgo/internal/upload/models"
)

const (
	fieldCount = 11
	dateLayout = "2006-01-02"
	maxLine    = 64 * 1024
)

// LineError describes a rejected line. The line number is 1-based.
type LineError struct {
	Line int
	Msg  string
}

func (e LineError) Error() string {
	return fmt.Sprintf("línea %d: %s", e.Line, e.Msg)
}

// Parse returns the valid records, the per-line errors and the number of
// data lines seen. Blank lines and lines starting with # are not data.
func Parse(r io.Reader) ([]models.Record, []LineError, int, error) {
	var (
		records []models.Record
		errs    []LineError
		total   int
	)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), maxLine)
	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimSpace(strings.TrimPrefix(sc.Text(), "\ufeff"))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		total++
		rec, err := ParseLine(line)
		if err != nil {
			errs = append(errs, LineError{Line: n, Msg: err.Error()})
			continue
		}
		rec.Line = n
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, nil, total, fmt.Errorf("read file: %w", err)
	}
	return records, errs, total, nil
}

// ParseLine parses one record:
// identifier|full name|birth date|company NIT|origination date|original amount|
// modality|interest rate|installments|current balance|status
func ParseLine(line string) (models.Record, error) {
	f := strings.Split(line, "|")
	if len(f) != fieldCount {
		return models.Record{}, fmt.Errorf("se esperaban %d campos, se encontraron %d", fieldCount, len(f))
	}
	for i := range f {
		f[i] = strings.TrimSpace(f[i])
	}

	rec := models.Record{
		NationalIdentifier: f[0],
		FullName:           f[1],
		CompanyNIT:         f[3],
	}
	if rec.NationalIdentifier == "" || len(rec.NationalIdentifier) > 20 {
		return rec, fmt.Errorf("identificación inválida")
	}
	if rec.FullName == "" {
		return rec, fmt.Errorf("nombre requerido")
	}
	if rec.CompanyNIT == "" {
		return rec, fmt.Errorf("NIT de la empresa requerido")
	}

	if f[2] != "" {
		bd, err := time.Parse(dateLayout, f[2])
		if err != nil {
			return rec, fmt.Errorf("fecha de nacimiento inválida: %s", f[2])
		}
		rec.BirthDate = &bd
	}

	var err error
	if rec.OriginationDate, err = time.Parse(dateLayout, f[4]); err != nil {
		return rec, fmt.Errorf("fecha de originación inválida: %s", f[4])
	}
	if rec.OriginalAmount, err = amount(f[5], "monto original", loanmodels.MaxAmount); err != nil {
		return rec, err
	}
	if rec.Modality, err = loanmodels.ParseModality(f[6]); err != nil {
		return rec, fmt.Errorf("modalidad inválida: %s", f[6])
	}
	if rec.InterestRate, err = amount(f[7], "tasa de interés", loanmodels.MaxInterestRate); err != nil {
		return rec, err
	}
	if rec.Installments, err = strconv.Atoi(f[8]); err != nil || rec.Installments <= 0 || rec.Installments > loanmodels.MaxInstallments {
		return rec, fmt.Errorf("número de cuotas inválido: %s", f[8])
	}
	if rec.CurrentBalance, err = amount(f[9], "saldo actual", loanmodels.MaxAmount); err != nil {
		return rec, err
	}
	if rec.Status, err = loanmodels.ParseLoanStatus(f[10]); err != nil {
		return rec, fmt.Errorf("estado inválido: %s", f[10])
	}
	return rec, nil
}

func amount(s, label string, limit decimal.Decimal) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%s inválido: %s", label, s)
	}
	if d.Round(2).GreaterThanOrEqual(limit) {
		return decimal.Zero, fmt.Errorf("%s fuera de rango: %s", label, s)
	}
	return d, nil
}
