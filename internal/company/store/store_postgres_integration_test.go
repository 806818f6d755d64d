//go:build integration

package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"miriesgo/internal/company/models"
	"miriesgo/internal/company/store"
	"miriesgo/pkg/platform/sentinel"
	"miriesgo/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateAll(context.Background()))
}

func (s *PostgresStoreSuite) TestCreateFindUpdate() {
	ctx := context.Background()
	c, err := s.store.Create(ctx, models.NewCompany{Name: "Financiera Andina", NIT: "900123456", TransUnionCode: "FA01"})
	s.Require().NoError(err)
	s.Equal(models.StatusActive, c.Status)

	_, err = s.store.Create(ctx, models.NewCompany{Name: "Copia", NIT: "900123456", TransUnionCode: "XX"})
	s.ErrorIs(err, sentinel.ErrAlreadyUsed)

	c.Name = "Financiera Andina S.A."
	c.Status = models.StatusSuspended
	s.Require().NoError(s.store.Update(ctx, c))

	got, err := s.store.FindByNIT(ctx, "900123456")
	s.Require().NoError(err)
	s.Equal("Financiera Andina S.A.", got.Name)
	s.Equal(models.StatusSuspended, got.Status)

	_, err = s.store.FindByID(ctx, 999)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestListFilters() {
	ctx := context.Background()
	for _, nc := range []models.NewCompany{
		{Name: "Banco Caribe", NIT: "800555111", TransUnionCode: "BC02"},
		{Name: "Crediya", NIT: "901777000", TransUnionCode: "CY03"},
		{Name: "Financiera Andina", NIT: "900123456", TransUnionCode: "FA01"},
	} {
		_, err := s.store.Create(ctx, nc)
		s.Require().NoError(err)
	}

	page, total, err := s.store.List(ctx, models.ListFilter{Page: 2, Size: 2})
	s.Require().NoError(err)
	s.Equal(3, total)
	s.Require().Len(page, 1)
	s.Equal("Financiera Andina", page[0].Name)

	page, total, err = s.store.List(ctx, models.ListFilter{Page: 1, Size: 20, Search: "caribe"})
	s.Require().NoError(err)
	s.Equal(1, total)
	s.Equal("800555111", page[0].NIT)

	active := models.StatusActive
	_, total, err = s.store.List(ctx, models.ListFilter{Page: 1, Size: 20, Status: &active})
	s.Require().NoError(err)
	s.Equal(3, total)
}
