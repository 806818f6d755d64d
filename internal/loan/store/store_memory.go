package store

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"miriesgo/internal/loan/models"
	id "miriesgo/pkg/domain"
	"miriesgo/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu            sync.RWMutex
	nextLoanID    int64
	nextPaymentID int64
	loans         map[id.LoanID]*models.Loan
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{loans: make(map[id.LoanID]*models.Loan)}
}

func (s *InMemoryStore) FindByID(_ context.Context, loanID id.LoanID) (*models.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.loans[loanID]
	if !ok {
		return nil, fmt.Errorf("loan %s: %w", loanID, sentinel.ErrNotFound)
	}
	return cloneLoan(l), nil
}

// ListByClient returns the client's loans oldest first, payments by installment.
func (s *InMemoryStore) ListByClient(_ context.Context, clientID id.ClientID) ([]*models.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Loan, 0)
	for _, l := range s.loans {
		if l.ClientID == clientID {
			out = append(out, cloneLoan(l))
		}
	}
	slices.SortFunc(out, func(a, b *models.Loan) int {
		if c := a.OriginationDate.Compare(b.OriginationDate); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (s *InMemoryStore) FindByClientCompanyAndDate(_ context.Context, clientID id.ClientID, companyID id.CompanyID, origination time.Time) (*models.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if l := s.match(clientID, companyID, origination); l != nil {
		return cloneLoan(l), nil
	}
	return nil, nil
}

func (s *InMemoryStore) match(clientID id.ClientID, companyID id.CompanyID, origination time.Time) *models.Loan {
	day := models.Date(origination)
	for _, l := range s.loans {
		if l.ClientID == clientID && l.CompanyID == companyID && models.Date(l.OriginationDate).Equal(day) {
			return l
		}
	}
	return nil
}

// Create stores the loan and its payments, assigning ids in place.
func (s *InMemoryStore) Create(_ context.Context, loan *models.Loan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.match(loan.ClientID, loan.CompanyID, loan.OriginationDate) != nil {
		return fmt.Errorf("loan for client %s: %w", loan.ClientID, sentinel.ErrAlreadyUsed)
	}
	s.nextLoanID++
	loan.ID = id.LoanID(s.nextLoanID)
	for i := range loan.Payments {
		s.nextPaymentID++
		loan.Payments[i].ID = id.PaymentID(s.nextPaymentID)
		loan.Payments[i].LoanID = loan.ID
	}
	s.loans[loan.ID] = cloneLoan(loan)
	return nil
}

// Update persists the mutable loan fields. Payments are left untouched.
func (s *InMemoryStore) Update(_ context.Context, loan *models.Loan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.loans[loan.ID]
	if !ok {
		return fmt.Errorf("loan %s: %w", loan.ID, sentinel.ErrNotFound)
	}
	payments := stored.Payments
	updated := cloneLoan(loan)
	updated.Payments = payments
	s.loans[loan.ID] = updated
	return nil
}

func (s *InMemoryStore) CountByClient(_ context.Context, clientID id.ClientID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, l := range s.loans {
		if l.ClientID == clientID {
			n++
		}
	}
	return n, nil
}

func (s *InMemoryStore) Summaries(_ context.Context, today time.Time) ([]models.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Summary, 0, len(s.loans))
	for _, l := range s.loans {
		sum := models.Summary{LoanID: l.ID, ClientID: l.ClientID, CompanyID: l.CompanyID, Status: l.Status}
		for _, p := range l.Payments {
			if p.ActualPaymentDate != nil {
				continue
			}
			sum.MaxDaysLateUnpaid = max(sum.MaxDaysLateUnpaid, p.DaysLate(today))
		}
		out = append(out, sum)
	}
	slices.SortFunc(out, func(a, b models.Summary) int { return cmp.Compare(a.LoanID, b.LoanID) })
	return out, nil
}

// Snapshot lets tx.InMemory roll the store back when a unit of work fails.
func (s *InMemoryStore) Snapshot() func() {
	s.mu.RLock()
	nextLoan, nextPayment := s.nextLoanID, s.nextPaymentID
	loans := make(map[id.LoanID]*models.Loan, len(s.loans))
	for k, l := range s.loans {
		loans[k] = cloneLoan(l)
	}
	s.mu.RUnlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.nextLoanID, s.nextPaymentID = nextLoan, nextPayment
		s.loans = loans
	}
}

func cloneLoan(l *models.Loan) *models.Loan {
	out := *l
	out.Payments = slices.Clone(l.Payments)
	slices.SortFunc(out.Payments, func(a, b models.Payment) int {
		return cmp.Compare(a.InstallmentNumber, b.InstallmentNumber)
	})
	return &out
}
