package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/theatre-api/internal/model"
	"github.com/jwalitptl/theatre-api/internal/repository"
	apperrors "github.com/jwalitptl/theatre-api/pkg/errors"
)

func setupMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return sqlx.NewDb(mockDB, "postgres"), mock
}

func TestTheatreCreateDuplicateCode(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewTheatreRepository(db)

	mock.ExpectExec("INSERT INTO theatres").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "theatres_facility_code_key"})

	err := repo.Create(context.Background(), &model.Theatre{
		FacilityID: uuid.New(),
		Name:       "Main 1",
		Code:       "OT1",
		Type:       model.TheatreTypeGeneral,
		Status:     model.TheatreStatusAvailable,
		IsActive:   true,
	})

	assert.True(t, apperrors.HasCode(err, apperrors.ErrDuplicateCode))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTheatreUpdateStatusNotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewTheatreRepository(db)

	mock.ExpectExec("UPDATE theatres SET status").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), uuid.New(), model.TheatreStatusCleaning)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))
}

func TestTheatreCountByStatus(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewTheatreRepository(db)
	facility := uuid.New()

	mock.ExpectQuery("SELECT status, COUNT").
		WithArgs(facility).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("AVAILABLE", 3).
			AddRow("IN_USE", 1))

	counts, err := repo.CountByStatus(context.Background(), facility)
	require.NoError(t, err)
	assert.Equal(t, 3, counts[model.TheatreStatusAvailable])
	assert.Equal(t, 1, counts[model.TheatreStatusInUse])
}

func TestSurgicalCaseUpdateStaleVersion(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewSurgicalCaseRepository(db)

	mock.ExpectExec("UPDATE surgery_cases SET").
		WillReturnResult(sqlmock.NewResult(0, 0))

	c := &model.SurgicalCase{Base: model.Base{ID: uuid.New()}, Version: 3, Status: model.CaseStatusPreOp}
	err := repo.Update(context.Background(), c)

	assert.ErrorIs(t, err, repository.ErrStaleVersion)
	assert.Equal(t, 3, c.Version)
}

func TestSurgicalCaseUpdateBumpsVersion(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewSurgicalCaseRepository(db)

	mock.ExpectExec("UPDATE surgery_cases SET").
		WillReturnResult(sqlmock.NewResult(0, 1))

	c := &model.SurgicalCase{Base: model.Base{ID: uuid.New()}, Version: 3}
	require.NoError(t, repo.Update(context.Background(), c))
	assert.Equal(t, 4, c.Version)
}

func TestSurgicalCaseCreateMapsConstraintViolations(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewSurgicalCaseRepository(db)

	mock.ExpectExec("INSERT INTO surgery_cases").
		WillReturnError(&pq.Error{Code: "23P01", Constraint: "surgery_cases_no_overlap"})
	mock.ExpectExec("INSERT INTO surgery_cases").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "surgery_cases_case_number_key"})

	err := repo.Create(context.Background(), &model.SurgicalCase{})
	assert.ErrorIs(t, err, repository.ErrTheatreDoubleBooked)

	err = repo.Create(context.Background(), &model.SurgicalCase{})
	assert.ErrorIs(t, err, repository.ErrDuplicateCaseNumber)
}

func TestSurgicalCaseGetByIDNotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewSurgicalCaseRepository(db)

	mock.ExpectQuery(`FROM "surgery_cases"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetByID(context.Background(), uuid.New())
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))
}

func TestLockTheatreDayRequiresTransaction(t *testing.T) {
	db, _ := setupMockDB(t)
	repo := NewSurgicalCaseRepository(db)

	err := repo.LockTheatreDay(context.Background(), uuid.New(), model.NewDate(2024, time.June, 1))
	assert.Error(t, err)
}

func TestWithinTxCommitsAndShares(t *testing.T) {
	db, mock := setupMockDB(t)
	tx := NewTransactor(db)
	cases := NewSurgicalCaseRepository(db)
	numbers := NewCaseNumberRepository(db)
	facility := uuid.New()
	day := model.NewDate(2024, time.June, 1)

	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("WITH used AS").
		WithArgs(facility, day, "SUR20240601-%").
		WillReturnRows(sqlmock.NewRows([]string{"last_value"}).AddRow(7))
	mock.ExpectCommit()

	var seq int
	err := tx.WithinTx(context.Background(), func(ctx context.Context) error {
		if err := cases.LockTheatreDay(ctx, uuid.New(), day); err != nil {
			return err
		}
		var err error
		seq, err = numbers.Next(ctx, facility, day)
		return err
	})

	require.NoError(t, err)
	assert.Equal(t, 7, seq)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	db, mock := setupMockDB(t)
	tx := NewTransactor(db)

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := tx.WithinTx(context.Background(), func(ctx context.Context) error { return boom })

	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConsumableCostByItem(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewConsumableRepository(db)
	item := uuid.New()

	mock.ExpectQuery(`FROM "surgery_consumables" AS "sc"`).
		WillReturnRows(sqlmock.NewRows([]string{
			"inventory_item_id", "item_code", "item_name", "total_quantity", "total_cost", "case_count",
		}).AddRow(item.String(), "GLV-7", "Sterile gloves", "8", "12000", 2))

	lines, err := repo.CostByItem(context.Background(), uuid.New(),
		model.NewDate(2024, time.June, 1), model.NewDate(2024, time.June, 30))
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, item, lines[0].InventoryItemID)
	assert.True(t, decimal.NewFromInt(12000).Equal(lines[0].TotalCost))
	assert.Equal(t, 2, lines[0].CaseCount)
}

func TestInventoryDeductStockInsufficient(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewInventoryRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE inventory_items").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	err := repo.DeductStock(context.Background(), model.StockDeduction{
		ItemID:     uuid.New(),
		FacilityID: uuid.New(),
		Quantity:   decimal.NewFromInt(5),
	})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrInsufficientStock))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrationsLoadInOrder(t *testing.T) {
	migrations, err := NewMigrator(nil).LoadMigrations()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)

	for i := 1; i < len(migrations); i++ {
		assert.Less(t, migrations[i-1].Version, migrations[i].Version)
	}
	assert.Contains(t, migrations[1].SQL, "surgery_cases_no_overlap")
}

// Allocation is one upsert statement; concurrent bookers serialize on the
// counter row's lock inside ON CONFLICT DO UPDATE, never on a read-then-write.
func TestCaseNumberNextIsSingleUpsert(t *testing.T) {
	db, mock := setupMockDB(t)
	numbers := NewCaseNumberRepository(db)
	facilityID := uuid.New()
	day := model.NewDate(2024, time.June, 1)

	mock.ExpectQuery(`(?s)INSERT INTO case_number_counters.*ON CONFLICT \(facility_id, seq_date\)\s+DO UPDATE SET last_value = GREATEST`).
		WithArgs(facilityID.String(), "2024-06-01", "SUR20240601-%").
		WillReturnRows(sqlmock.NewRows([]string{"last_value"}).AddRow(7))

	next, err := numbers.Next(context.Background(), facilityID, day)
	require.NoError(t, err)
	assert.Equal(t, 7, next)
	assert.NoError(t, mock.ExpectationsWereMet())
}
