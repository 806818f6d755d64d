package handler

import (
	"time"

	"miriesgo/internal/client/models"
)

const dateLayout = "2006-01-02"

type HistoricEntry struct {
	Value        string    `json:"value"`
	DateModified time.Time `json:"dateModified"`
}

type ClientResponse struct {
	ID                 int64           `json:"id"`
	NationalIdentifier string          `json:"nationalIdentifier"`
	FullName           string          `json:"fullName"`
	BirthDate          *string         `json:"birthDate"`
	Addresses          []HistoricEntry `json:"addresses"`
	Phones             []HistoricEntry `json:"phones"`
	Emails             []HistoricEntry `json:"emails"`
	Flags              []string        `json:"flags"`
}

func toClientResponse(c *models.Client) *ClientResponse {
	res := &ClientResponse{
		ID:                 int64(c.ID),
		NationalIdentifier: c.NationalIdentifier,
		FullName:           c.FullName,
		Addresses:          historic(c, models.KindAddress),
		Phones:             historic(c, models.KindPhone),
		Emails:             historic(c, models.KindEmail),
		Flags:              c.Tags(),
	}
	if c.BirthDate != nil {
		bd := c.BirthDate.Format(dateLayout)
		res.BirthDate = &bd
	}
	return res
}

func historic(c *models.Client, kind models.HistoryKind) []HistoricEntry {
	entries := models.HistoryOf(c, kind)
	out := make([]HistoricEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, HistoricEntry{Value: e.Value, DateModified: e.RecordedAt})
	}
	return out
}
