package models

import (
	loanmodels "miriesgo/internal/loan/models"
	id "miriesgo/pkg/domain"
)

// Delay buckets, keyed the way the front end renders them.
const (
	Bucket1To30  = "1-30"
	Bucket31To60 = "31-60"
	Bucket61To90 = "61-90"
	Bucket91Plus = "91+"
)

type Counters struct {
	TotalClients          int            `json:"totalClients"`
	ActiveClientsUpToDate int            `json:"activeClientsUpToDate"`
	ClientsWithArrears    int            `json:"clientsWithArrears"`
	ClientsInLegal        int            `json:"clientsInLegal"`
	MoraDistribution      map[string]int `json:"moraDistribution"`
}

type CompanyCounters struct {
	Company   string `json:"company"`
	CompanyID int64  `json:"companyId"`
	Counters
}

type Dashboard struct {
	General   Counters          `json:"general"`
	Companies []CompanyCounters `json:"companies"`
}

func IsArrears(s loanmodels.LoanStatus) bool {
	return s == loanmodels.StatusDelinquent || s == loanmodels.StatusChargedOff
}

func IsLegal(s loanmodels.LoanStatus) bool {
	return s == loanmodels.StatusLegal || s == loanmodels.StatusSeized
}

// Bucket returns the delay bucket for a number of days late, or "" when the
// client is not late at all.
func Bucket(daysLate int) string {
	switch {
	case daysLate <= 0:
		return ""
	case daysLate <= 30:
		return Bucket1To30
	case daysLate <= 60:
		return Bucket31To60
	case daysLate <= 90:
		return Bucket61To90
	default:
		return Bucket91Plus
	}
}

// Tally computes counters over loan summaries. total is the client count the
// up-to-date figure is derived from.
func Tally(total int, summaries []loanmodels.Summary) Counters {
	arrears := map[id.ClientID]struct{}{}
	legal := map[id.ClientID]struct{}{}
	worst := map[id.ClientID]int{}
	for _, sum := range summaries {
		if IsArrears(sum.Status) {
			arrears[sum.ClientID] = struct{}{}
		}
		if IsLegal(sum.Status) {
			legal[sum.ClientID] = struct{}{}
		}
		if sum.MaxDaysLateUnpaid > worst[sum.ClientID] {
			worst[sum.ClientID] = sum.MaxDaysLateUnpaid
		}
	}

	c := Counters{
		TotalClients:       total,
		ClientsWithArrears: len(arrears),
		ClientsInLegal:     len(legal),
		MoraDistribution: map[string]int{
			Bucket1To30: 0, Bucket31To60: 0, Bucket61To90: 0, Bucket91Plus: 0,
		},
	}
	c.ActiveClientsUpToDate = max(total-c.ClientsWithArrears-c.ClientsInLegal, 0)
	for _, days := range worst {
		if b := Bucket(days); b != "" {
			c.MoraDistribution[b]++
		}
	}
	return c
}

// DistinctClients counts the clients that appear in summaries.
func DistinctClients(summaries []loanmodels.Summary) int {
	seen := map[id.ClientID]struct{}{}
	for _, sum := range summaries {
		seen[sum.ClientID] = struct{}{}
	}
	return len(seen)
}
