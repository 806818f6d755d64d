package handler

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"miriesgo/internal/scoring/handler/mocks"
	"miriesgo/internal/scoring/models"
	dErrors "miriesgo/pkg/domain-errors"
)

//go:generate mockgen -source=handler.go -destination=mocks/scoring-mocks.go -package=mocks Service

func newRouter(t *testing.T) (*mocks.MockService, chi.Router) {
	svc := mocks.NewMockService(gomock.NewController(t))
	r := chi.NewRouter()
	New(svc, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	return svc, r
}

func post(r chi.Router, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/risk-score", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

const reportBody = `{"report": {
	"client": {"id": 1, "fullName": "Ana", "birthDate": "1985-03-14", "flags": []},
	"debtSummary": {"totalCredits": 1},
	"loans": [{"id": 7, "status": "Vigente", "original_amount": "100.00", "current_balance": "40.00", "payments": []}]
}}`

func TestHandleRiskScore(t *testing.T) {
	t.Run("scores a full report with extra fields", func(t *testing.T) {
		svc, r := newRouter(t)
		svc.EXPECT().ScoreReport(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ any, in models.ReportInput) (*models.RiskScore, error) {
				assert.Len(t, in.Loans, 1)
				return &models.RiskScore{Score: 705, Assessment: models.AssessmentMedium, Reasoning: "Estable."}, nil
			})

		w := post(r, reportBody)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"score":705,"assessment":"Medio","reasoning":"Estable."}`, w.Body.String())
	})

	t.Run("collaborator failure is 503", func(t *testing.T) {
		svc, r := newRouter(t)
		svc.EXPECT().ScoreReport(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeUnavailable, "scoring service unavailable"))

		w := post(r, reportBody)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("missing report", func(t *testing.T) {
		_, r := newRouter(t)
		w := post(r, `{}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("malformed json", func(t *testing.T) {
		_, r := newRouter(t)
		w := post(r, `{"report":`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
