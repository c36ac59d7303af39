package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentineltrace/threat-intel/internal/model"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &Store{db: db}, mock
}

func indicatorRow(id uuid.UUID, inserted bool) *sqlmock.Rows {
	now := time.Now()
	cols := []string{
		"id", "ioc_type", "value", "severity", "confidence", "threat_score", "tlp",
		"first_seen", "last_seen", "expiration", "tags", "source_ids", "created_at", "updated_at", "inserted",
	}
	return sqlmock.NewRows(cols).AddRow(
		id, "ip", "8.8.8.8", "high", 80, 80, "amber",
		now, now, nil, pq.StringArray{"botnet"}, pq.StringArray{}, now, now, inserted,
	)
}

func TestUpsertIndicator_Inserted(t *testing.T) {
	s, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectQuery("INSERT INTO indicators").
		WillReturnRows(indicatorRow(id, true))

	ind := model.Indicator{
		IocType:   model.IocTypeIP,
		Value:     "8.8.8.8",
		Severity:  model.SeverityHigh,
		Tlp:       model.TlpAmber,
		FirstSeen: time.Now(),
		Tags:      []string{"botnet"},
	}
	got, inserted, err := s.UpsertIndicator(context.Background(), ind)
	assert.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, "8.8.8.8", got.Value)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertIndicator_Merged(t *testing.T) {
	s, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectQuery("INSERT INTO indicators").
		WillReturnRows(indicatorRow(id, false))

	ind := model.Indicator{IocType: model.IocTypeIP, Value: "8.8.8.8", FirstSeen: time.Now()}
	_, inserted, err := s.UpsertIndicator(context.Background(), ind)
	assert.NoError(t, err)
	assert.False(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetIndicator_NotFound(t *testing.T) {
	s, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM indicators WHERE id = \\$1").
		WithArgs(id).
		WillReturnError(sql.ErrNoRows)

	_, err := s.GetIndicator(context.Background(), id)
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteExpired(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("DELETE FROM indicators WHERE expiration").
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := s.DeleteExpired(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountSightings(t *testing.T) {
	s, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM sightings WHERE indicator_id = \\$1").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	n, err := s.CountSightings(context.Background(), id)
	assert.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
