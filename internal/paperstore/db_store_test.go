package paperstore

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/aihub/paperqa-go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockDBStore(t *testing.T) (*DBStore, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	return NewDBStoreWithDB(db), mock
}

func TestDBStoreList(t *testing.T) {
	store, mock := newMockDBStore(t)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"paper_id", "title", "status", "file_key", "chunk_count", "created_at", "updated_at"}).
		AddRow("p_b", "B", models.PaperStatusIndexed, "k2", 8, now, now).
		AddRow("p_a", "A", models.PaperStatusFailed, "k1", 0, now, now)
	mock.ExpectQuery(`SELECT \* FROM "papers" ORDER BY created_at DESC`).WillReturnRows(rows)

	papers, err := store.List()
	require.NoError(t, err)
	require.Len(t, papers, 2)
	assert.Equal(t, "p_b", papers[0].PaperID)
	assert.Equal(t, models.PaperStatusFailed, papers[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDBStoreGetNotFound(t *testing.T) {
	store, mock := newMockDBStore(t)

	mock.ExpectQuery(`SELECT \* FROM "papers" WHERE paper_id = \$1`).
		WithArgs("p_missing", 1).
		WillReturnRows(sqlmock.NewRows([]string{"paper_id"}))

	got, err := store.Get("p_missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDBStoreUpsertRejectsInvalidStatus(t *testing.T) {
	store, _ := newMockDBStore(t)
	err := store.Upsert(models.Paper{PaperID: "p_x", Status: "done"})
	assert.Error(t, err)
}
