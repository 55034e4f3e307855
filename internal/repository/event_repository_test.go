package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/agenda-api/internal/models"
)

func newEventRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	return sqlxDB, mock, func() {
		sqlxDB.Close()
		db.Close()
	}
}

func TestEventRepositoryCreateAssignsID(t *testing.T) {
	db, mock, cleanup := newEventRepoMock(t)
	defer cleanup()
	repo := NewEventRepository(db)

	mock.ExpectExec("INSERT INTO events").
		WithArgs(sqlmock.AnyArg(), "Reunião", "Rua A, 100", "25/12/2025", "14:30").
		WillReturnResult(sqlmock.NewResult(1, 1))

	event := &models.Event{
		Description: "Reunião",
		Place:       "Rua A, 100",
		Date:        "25/12/2025",
		Time:        "14:30",
	}
	require.NoError(t, repo.Create(context.Background(), event))
	assert.NotEmpty(t, event.ID)
}

func TestEventRepositoryCreateKeepsExistingID(t *testing.T) {
	db, mock, cleanup := newEventRepoMock(t)
	defer cleanup()
	repo := NewEventRepository(db)

	mock.ExpectExec("INSERT INTO events").
		WithArgs("evt-1", "Consulta", "Av. B, 20", "01/01/2026", "09:00").
		WillReturnResult(sqlmock.NewResult(1, 1))

	event := &models.Event{ID: "evt-1", Description: "Consulta", Place: "Av. B, 20", Date: "01/01/2026", Time: "09:00"}
	require.NoError(t, repo.Create(context.Background(), event))
	assert.Equal(t, "evt-1", event.ID)
}

func TestEventRepositoryList(t *testing.T) {
	db, mock, cleanup := newEventRepoMock(t)
	defer cleanup()
	repo := NewEventRepository(db)

	rows := sqlmock.NewRows([]string{"id", "descricao", "local", "data", "hora"}).
		AddRow("evt-2", "Almoço", "Praça C", "10/03/2026", "12:00").
		AddRow("evt-1", "Reunião", "Rua A, 100", "25/12/2025", "14:30")
	mock.ExpectQuery("SELECT id, descricao, local, data, hora FROM events").
		WillReturnRows(rows)

	events, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "Almoço", events[0].Description)
}

func TestEventRepositoryDeleteReportsMissing(t *testing.T) {
	db, mock, cleanup := newEventRepoMock(t)
	defer cleanup()
	repo := NewEventRepository(db)

	mock.ExpectExec("DELETE FROM events").
		WithArgs("gone").
		WillReturnResult(sqlmock.NewResult(0, 0))

	deleted, err := repo.Delete(context.Background(), "gone")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestEventRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newEventRepoMock(t)
	defer cleanup()
	repo := NewEventRepository(db)

	mock.ExpectExec("DELETE FROM events").
		WithArgs("evt-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	deleted, err := repo.Delete(context.Background(), "evt-1")
	require.NoError(t, err)
	assert.True(t, deleted)
}
