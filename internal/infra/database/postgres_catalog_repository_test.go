package database

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"bus_pass_service/internal/domain/buspass"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var routeRowColumns = []string{"id", "name", "bus_number", "stops", "timings", "created_at"}

func TestCatalogRepository_CreateAndListRoutes(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresCatalogRepository(db)
	now := time.Now()

	route := &buspass.Route{
		Name:      "Route 1",
		BusNumber: "MH12-1234",
		Stops:     buspass.Stops{{Name: "Swargate"}, {Name: "Katraj"}},
		Timings:   types.JSONText(`{"morning":"07:30"}`),
	}
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO routes")).
		WithArgs("Route 1", "MH12-1234", `[{"name":"Swargate"},{"name":"Katraj"}]`, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(5, now))

	require.NoError(t, repo.CreateRoute(context.Background(), route))
	assert.Equal(t, int64(5), route.ID)

	mock.ExpectQuery(regexp.QuoteMeta("FROM routes ORDER BY id")).
		WillReturnRows(sqlmock.NewRows(routeRowColumns).
			AddRow(5, "Route 1", "MH12-1234", `[{"name":"Swargate","lat":18.5},{"name":"Katraj"}]`, `{"morning":"07:30"}`, now).
			AddRow(6, "Route 2", "MH12-9999", nil, nil, now))

	routes, err := repo.ListRoutes(context.Background())
	require.NoError(t, err)
	require.Len(t, routes, 2)
	assert.True(t, routes[0].Stops.Has("Katraj"))
	assert.Equal(t, 18.5, routes[0].Stops[0].Lat)
	assert.Nil(t, routes[1].Stops)
}

func TestCatalogRepository_UpsertPricing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresCatalogRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (location) DO UPDATE SET price = EXCLUDED.price")).
		WithArgs("Katraj", 1800.0).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))

	pricing := &buspass.Pricing{Location: "Katraj", Price: 1800}
	require.NoError(t, repo.UpsertPricing(context.Background(), pricing))
	assert.Equal(t, int64(3), pricing.ID)
}

func TestCatalogRepository_CreateUserDuplicateEmail(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresCatalogRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs("Asha", "asha@college.in", "+919800000001", "hash", buspass.RoleStudent).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "users_email_key"})

	user := &buspass.User{Name: "Asha", Email: "asha@college.in", Phone: "+919800000001", Role: buspass.RoleStudent}
	assert.ErrorIs(t, repo.CreateUser(context.Background(), user, "hash"), ErrDuplicateEmail)
}

func TestCatalogRepository_UpsertProfile(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresCatalogRepository(db)
	now := time.Now()

	profile := &buspass.Profile{
		UserID:          1,
		PRN:             sql.NullString{String: "PRN001", Valid: true},
		PassNo:          sql.NullString{String: "BP00001234", Valid: true},
		Location:        sql.NullString{String: "Katraj", Valid: true},
		Semester:        sql.NullString{String: "6", Valid: true},
		SemesterEndDate: sql.NullTime{Time: time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC), Valid: true},
		RouteID:         sql.NullInt64{Int64: 5, Valid: true},
		BusNumber:       sql.NullString{String: "MH12-1234", Valid: true},
		IsComplete:      true,
	}
	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (user_id) DO UPDATE SET")).
		WithArgs(int64(1), "PRN001", "BP00001234", "Katraj", "6", "2025-06-30", int64(5), "MH12-1234", true).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(8, now))
	require.NoError(t, repo.UpsertProfile(context.Background(), profile))
	assert.Equal(t, int64(8), profile.ID)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO profiles")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "profiles_prn_key"})
	assert.ErrorIs(t, repo.UpsertProfile(context.Background(), profile), ErrDuplicatePRN)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO profiles")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "profiles_pass_no_key"})
	assert.ErrorIs(t, repo.UpsertProfile(context.Background(), profile), ErrDuplicatePassNumber)
}

func TestCatalogRepository_ListPaymentsAndStudents(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresCatalogRepository(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("FROM payments ORDER BY created_at DESC")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "pass_id", "amount", "payment_method", "transaction_id", "status", "created_at"}).
			AddRow(21, 1, 11, 1500.0, "Mock Payment", "TXNABC", "Completed", now))
	payments, err := repo.ListPayments(context.Background())
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, "TXNABC", payments[0].TransactionID)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE role = $1")).
		WithArgs(buspass.RoleStudent).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "phone", "role", "created_at"}).
			AddRow(1, "Asha", "asha@college.in", "+919800000001", "student", now))
	students, err := repo.ListStudents(context.Background())
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, "Asha", students[0].Name)
}
