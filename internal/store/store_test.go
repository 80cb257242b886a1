package store

import (
	"context"
	"database/sql/driver"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// A helper function to create a mock database connection.
func newTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func TestGormStore_CompareAndSetOccupied(t *testing.T) {
	at := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	distance := 120.0

	testCases := []struct {
		name             string
		distance         *float64
		mockExpectations func(mock sqlmock.Sqlmock)
		expectedSwapped  bool
	}{
		{
			name: "Row still holds the expected state, should swap",
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(`UPDATE "spots" SET "occupied"=$1,"updated_at"=$2 WHERE id = $3 AND occupied = $4`)).
					WithArgs(true, at, 1, false).
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			},
			expectedSwapped: true,
		},
		{
			name: "Row changed underneath, should report mismatch",
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(`UPDATE "spots" SET "occupied"=$1,"updated_at"=$2 WHERE id = $3 AND occupied = $4`)).
					WithArgs(true, at, 1, false).
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectCommit()
			},
			expectedSwapped: false,
		},
		{
			name:     "Distance reading is written in the same statement",
			distance: &distance,
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(`UPDATE "spots" SET "distance_updated_at"=$1,"last_distance"=$2,"occupied"=$3,"updated_at"=$4 WHERE id = $5 AND occupied = $6`)).
					WithArgs(at, distance, true, at, 1, false).
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			},
			expectedSwapped: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gormDB, mock := newTestDB(t)
			store := NewGormStore(gormDB)

			tc.mockExpectations(mock)

			swapped, err := store.CompareAndSetOccupied(context.Background(), 1, false, true, at, tc.distance)
			assert.NoError(t, err)
			assert.Equal(t, tc.expectedSwapped, swapped)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestGormStore_GetSpot_NotFound(t *testing.T) {
	gormDB, mock := newTestDB(t)
	store := NewGormStore(gormDB)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "spots" WHERE "spots"."id" = $1 ORDER BY "spots"."id" LIMIT $2`)).
		WithArgs(99, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "occupied", "updated_at"}))

	_, err := store.GetSpot(context.Background(), 99)
	assert.ErrorIs(t, err, ErrSpotNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_SetOccupied(t *testing.T) {
	at := time.Now().UTC()

	t.Run("updates the row", func(t *testing.T) {
		gormDB, mock := newTestDB(t)
		store := NewGormStore(gormDB)

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE "spots" SET "occupied"=$1,"updated_at"=$2 WHERE id = $3`)).
			WithArgs(false, Any{}, 2).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		assert.NoError(t, store.SetOccupied(context.Background(), 2, false, at))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown spot", func(t *testing.T) {
		gormDB, mock := newTestDB(t)
		store := NewGormStore(gormDB)

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE "spots" SET "occupied"=$1,"updated_at"=$2 WHERE id = $3`)).
			WithArgs(true, Any{}, 42).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		assert.ErrorIs(t, store.SetOccupied(context.Background(), 42, true, at), ErrSpotNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

// Any is a helper for sqlmock to match any argument.
type Any struct{}

// Match satisfies the sqlmock.Argument interface
func (a Any) Match(v driver.Value) bool {
	return true
}
