package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"miriesgo/internal/company/handler/mocks"
	"miriesgo/internal/company/models"
	id "miriesgo/pkg/domain"
	dErrors "miriesgo/pkg/domain-errors"
	"miriesgo/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/company-mocks.go -package=mocks Service

type CompanyHandlerSuite struct {
	suite.Suite
	service   *mocks.MockService
	router    chi.Router
	role      id.Role
	companyID *id.CompanyID
}

func TestCompanyHandlerSuite(t *testing.T) {
	suite.Run(t, new(CompanyHandlerSuite))
}

func (s *CompanyHandlerSuite) SetupTest() {
	s.service = mocks.NewMockService(gomock.NewController(s.T()))
	s.role = id.RoleAdmin
	s.companyID = nil

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := requestcontext.WithPrincipal(r.Context(), requestcontext.Principal{
				UserID: 1, Role: s.role, CompanyID: s.companyID,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	s.router = r
}

func (s *CompanyHandlerSuite) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func sample() *models.Company {
	return &models.Company{ID: 2, Name: "Financiera Andina", NIT: "900123456", TransUnionCode: "FA01", Status: models.StatusActive}
}

func (s *CompanyHandlerSuite) TestList() {
	s.Run("defaults to active companies", func() {
		s.service.EXPECT().List(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, f models.ListFilter) (*models.Page, error) {
				s.Require().NotNil(f.Status)
				s.Equal(models.StatusActive, *f.Status)
				s.Equal(2, f.Page)
				s.Equal("andina", f.Search)
				return &models.Page{Companies: []*models.Company{sample()}, Total: 1, Page: 2, Pages: 1}, nil
			})

		w := s.do(http.MethodGet, "/companies?page=2&search=andina", nil)
		s.Require().Equal(http.StatusOK, w.Code)
		var res CompaniesListResponse
		s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &res))
		s.Equal(1, res.Total)
		s.Equal("FA01", res.Companies[0].Code)
	})

	s.Run("active_only=false lists all", func() {
		s.service.EXPECT().List(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, f models.ListFilter) (*models.Page, error) {
				s.Nil(f.Status)
				return &models.Page{}, nil
			})
		w := s.do(http.MethodGet, "/companies?active_only=false", nil)
		s.Equal(http.StatusOK, w.Code)
	})

	s.Run("bad status", func() {
		w := s.do(http.MethodGet, "/companies?status=closed", nil)
		s.Equal(http.StatusBadRequest, w.Code)
	})

	s.Run("managers are forbidden", func() {
		s.role = id.RoleManager
		defer func() { s.role = id.RoleAdmin }()
		w := s.do(http.MethodGet, "/companies", nil)
		s.Equal(http.StatusForbidden, w.Code)
	})
}

func (s *CompanyHandlerSuite) TestGetOwnCompany() {
	s.role = id.RoleAnalyst
	own := id.CompanyID(2)
	s.companyID = &own

	s.service.EXPECT().Get(gomock.Any(), id.CompanyID(2)).Return(sample(), nil)
	w := s.do(http.MethodGet, "/companies/2", nil)
	s.Equal(http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/companies/3", nil)
	s.Equal(http.StatusForbidden, w.Code)
}

func (s *CompanyHandlerSuite) TestUsers() {
	roster := &models.Roster{Company: sample(), Members: []models.Member{
		{ID: 7, FullName: "Laura Gómez", Email: "laura@andina.co", Role: id.RoleAnalyst},
	}}

	s.Run("admin sees any company", func() {
		s.service.EXPECT().Users(gomock.Any(), id.CompanyID(2)).Return(roster, nil)
		w := s.do(http.MethodGet, "/companies/2/users", nil)
		s.Require().Equal(http.StatusOK, w.Code)
		var res CompanyUsersResponse
		s.Require().NoError(json.NewDecoder(w.Body).Decode(&res))
		s.Equal(int64(2), res.CompanyID)
		s.Equal("Financiera Andina", res.CompanyName)
		s.Equal(1, res.TotalUsers)
		s.Require().Len(res.Users, 1)
		s.Equal("analyst", res.Users[0].Role)
	})

	s.Run("member of another company is forbidden", func() {
		s.role = id.RoleManager
		other := id.CompanyID(3)
		s.companyID = &other
		defer func() { s.role, s.companyID = id.RoleAdmin, nil }()
		w := s.do(http.MethodGet, "/companies/2/users", nil)
		s.Equal(http.StatusForbidden, w.Code)
	})

	s.Run("unknown company", func() {
		s.service.EXPECT().Users(gomock.Any(), id.CompanyID(99)).
			Return(nil, dErrors.New(dErrors.CodeNotFound, "company not found"))
		w := s.do(http.MethodGet, "/companies/99/users", nil)
		s.Equal(http.StatusNotFound, w.Code)
	})
}

func (s *CompanyHandlerSuite) TestCreate() {
	s.Run("created", func() {
		s.service.EXPECT().Create(gomock.Any(), models.NewCompany{Name: "Crediya", NIT: "901777000", TransUnionCode: "CY03"}).
			Return(&models.Company{ID: 5, Name: "Crediya", NIT: "901777000", TransUnionCode: "CY03", Status: models.StatusActive}, nil)
		w := s.do(http.MethodPost, "/companies", map[string]string{"name": " Crediya ", "nit": "901777000", "code": "CY03"})
		s.Equal(http.StatusCreated, w.Code)
	})

	s.Run("duplicate is 409", func() {
		s.service.EXPECT().Create(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeConflict, "a company with that NIT already exists"))
		w := s.do(http.MethodPost, "/companies", map[string]string{"name": "X", "nit": "901777000", "code": "CY03"})
		s.Equal(http.StatusConflict, w.Code)
	})

	s.Run("missing nit", func() {
		w := s.do(http.MethodPost, "/companies", map[string]string{"name": "X", "code": "CY03"})
		s.Equal(http.StatusBadRequest, w.Code)
	})
}

func (s *CompanyHandlerSuite) TestUpdateAndDelete() {
	s.Run("empty patch rejected", func() {
		w := s.do(http.MethodPut, "/companies/2", map[string]string{})
		s.Equal(http.StatusBadRequest, w.Code)
	})

	s.Run("status change", func() {
		s.service.EXPECT().Update(gomock.Any(), id.CompanyID(2), gomock.Any()).
			DoAndReturn(func(_ context.Context, _ id.CompanyID, p models.Patch) (*models.Company, error) {
				s.Require().NotNil(p.Status)
				s.Equal(models.StatusSuspended, *p.Status)
				return sample(), nil
			})
		w := s.do(http.MethodPut, "/companies/2", map[string]string{"status": "suspended"})
		s.Equal(http.StatusOK, w.Code)
	})

	s.Run("soft delete", func() {
		s.service.EXPECT().Deactivate(gomock.Any(), id.CompanyID(2)).Return(nil)
		w := s.do(http.MethodDelete, "/companies/2", nil)
		s.Equal(http.StatusOK, w.Code)
	})
}
