package repositories

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/suite"

	"github.com/turtacn/aptrec/internal/infrastructure/database/postgres"
	"github.com/turtacn/aptrec/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/turtacn/aptrec/pkg/errors"
)

type ListingRepoTestSuite struct {
	suite.Suite
	mock sqlmock.Sqlmock
	db   *sql.DB
	repo *ListingRepository
}

func (s *ListingRepoTestSuite) SetupTest() {
	var err error
	s.db, s.mock, err = sqlmock.New()
	s.Require().NoError(err)

	log := logging.NewNopLogger()
	s.repo = NewListingRepository(postgres.NewConnectionWithDB(s.db, log), nil, log)
}

func (s *ListingRepoTestSuite) TearDownTest() {
	s.NoError(s.mock.ExpectationsWereMet())
	s.db.Close()
}

func (s *ListingRepoTestSuite) TestLinks() {
	s.mock.ExpectQuery("SELECT property_name, link FROM listings WHERE property_name = ANY").
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"property_name", "link"}).
			AddRow("B", "https://listings.example/b").
			AddRow("C", "https://listings.example/c"))

	links, err := s.repo.Links(context.Background(), []string{"B", "C", "Z"})
	s.Require().NoError(err)
	s.Equal(map[string]string{"B": "https://listings.example/b", "C": "https://listings.example/c"}, links)
}

func (s *ListingRepoTestSuite) TestLinks_EmptyInputSkipsQuery() {
	links, err := s.repo.Links(context.Background(), nil)
	s.NoError(err)
	s.Empty(links)
}

func (s *ListingRepoTestSuite) TestLinks_QueryError() {
	s.mock.ExpectQuery("SELECT property_name, link FROM listings").
		WillReturnError(errors.New("connection reset"))

	_, err := s.repo.Links(context.Background(), []string{"B"})
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeDatabaseError))
}

func (s *ListingRepoTestSuite) TestGet() {
	now := time.Now()
	s.mock.ExpectQuery("SELECT property_name, link, updated_at FROM listings WHERE property_name").
		WithArgs("B").
		WillReturnRows(sqlmock.NewRows([]string{"property_name", "link", "updated_at"}).
			AddRow("B", "https://listings.example/b", now))

	l, err := s.repo.Get(context.Background(), "B")
	s.Require().NoError(err)
	s.Equal("https://listings.example/b", l.Link)
	s.Equal(now, l.UpdatedAt)
}

func (s *ListingRepoTestSuite) TestGet_NotFound() {
	s.mock.ExpectQuery("SELECT property_name, link, updated_at FROM listings").
		WithArgs("Z").
		WillReturnError(sql.ErrNoRows)

	_, err := s.repo.Get(context.Background(), "Z")
	s.True(pkgerrors.IsNotFound(err))
}

func (s *ListingRepoTestSuite) TestList() {
	now := time.Now()
	s.mock.ExpectQuery("SELECT property_name, link, updated_at FROM listings ORDER BY property_name").
		WithArgs(100, 0).
		WillReturnRows(sqlmock.NewRows([]string{"property_name", "link", "updated_at"}).
			AddRow("A", "a", now).AddRow("B", "b", now))

	out, err := s.repo.List(context.Background(), 0, 0)
	s.Require().NoError(err)
	s.Len(out, 2)
	s.Equal("B", out[1].PropertyName)
}

func (s *ListingRepoTestSuite) TestCount() {
	s.mock.ExpectQuery("SELECT COUNT").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	n, err := s.repo.Count(context.Background())
	s.NoError(err)
	s.Equal(4, n)
}

func (s *ListingRepoTestSuite) TestUpsert() {
	s.mock.ExpectExec("INSERT INTO listings").
		WithArgs("B", "https://listings.example/b").
		WillReturnResult(sqlmock.NewResult(0, 1))

	s.NoError(s.repo.Upsert(context.Background(), Listing{PropertyName: "B", Link: "https://listings.example/b"}))
}

func (s *ListingRepoTestSuite) TestUpsert_RequiresName() {
	err := s.repo.Upsert(context.Background(), Listing{Link: "x"})
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeBadRequest))
}

func (s *ListingRepoTestSuite) TestDelete() {
	s.mock.ExpectExec("DELETE FROM listings").WithArgs("B").WillReturnResult(sqlmock.NewResult(0, 1))
	s.NoError(s.repo.Delete(context.Background(), "B"))

	s.mock.ExpectExec("DELETE FROM listings").WithArgs("Z").WillReturnResult(sqlmock.NewResult(0, 0))
	s.True(pkgerrors.IsNotFound(s.repo.Delete(context.Background(), "Z")))
}

func (s *ListingRepoTestSuite) TestImport_WithoutPool() {
	_, err := s.repo.Import(context.Background(), []Listing{{PropertyName: "A", Link: "a"}})
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeNotImplemented))

	n, err := s.repo.Import(context.Background(), nil)
	s.NoError(err)
	s.Zero(n)
}

func TestListingRepoTestSuite(t *testing.T) {
	suite.Run(t, new(ListingRepoTestSuite))
}
