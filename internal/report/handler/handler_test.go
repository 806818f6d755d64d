package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"miriesgo/internal/report/handler/mocks"
	"miriesgo/internal/report/models"
	dErrors "miriesgo/pkg/domain-errors"
)

//go:generate mockgen -source=handler.go -destination=mocks/report-mocks.go -package=mocks Service

func newRouter(t *testing.T) (*mocks.MockService, chi.Router) {
	svc := mocks.NewMockService(gomock.NewController(t))
	r := chi.NewRouter()
	New(svc, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	return svc, r
}

func get(r chi.Router, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestHandleGetReport(t *testing.T) {
	t.Run("renders empty loans as an array", func(t *testing.T) {
		svc, r := newRouter(t)
		svc.EXPECT().BuildReport(gomock.Any(), "123456780").Return(&models.CreditReport{
			Client: models.ReportClient{NationalIdentifier: "123456780"},
			Loans:  []models.ReportLoan{},
			DebtSummary: models.DebtSummary{
				TotalOriginalAmount: "0.00",
				TotalCurrentBalance: "0.00",
			},
		}, nil)

		w := get(r, "/reports/123456780")
		require.Equal(t, http.StatusOK, w.Code)

		var body map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.JSONEq(t, `[]`, string(body["loans"]))
		assert.Contains(t, string(body["debtSummary"]), `"totalOriginalAmount":"0.00"`)
	})

	t.Run("missing client is 404 not 500", func(t *testing.T) {
		svc, r := newRouter(t)
		svc.EXPECT().BuildReport(gomock.Any(), "999").Return(nil, dErrors.New(dErrors.CodeNotFound, "client not found"))

		w := get(r, "/reports/999")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("storage failure hides detail", func(t *testing.T) {
		svc, r := newRouter(t)
		svc.EXPECT().BuildReport(gomock.Any(), "1").
			Return(nil, dErrors.Wrap(errors.New("pq: relation loans does not exist"), dErrors.CodeInternal, "failed to build credit report"))

		w := get(r, "/reports/1")
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "relation")
	})

	t.Run("overlong identifier", func(t *testing.T) {
		_, r := newRouter(t)
		w := get(r, "/reports/123456789012345678901")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
