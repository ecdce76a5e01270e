package database_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/pageindexer/internal/database"
)

var siteColumns = []string{
	"id", "canonical_url", "name", "auto_indexing_enabled",
	"indexnow_key", "credentials", "settings", "created_at", "updated_at",
}

func newMockSiteRepo(t *testing.T) (*database.SiteRepository, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	db := sqlx.NewDb(mockDB, "postgres")
	return database.NewSiteRepository(db), mock
}

func siteRow(id, canonicalURL, name string, autoIndex bool) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(siteColumns).
		AddRow(id, canonicalURL, name, autoIndex, nil, []byte(`{}`), []byte(`{}`), now, now)
}

func TestSiteRepository_Upsert(t *testing.T) {
	repo, mock := newMockSiteRepo(t)

	mock.ExpectQuery("INSERT INTO sites").
		WithArgs(sqlmock.AnyArg(), "https://example.com/", "Example").
		WillReturnRows(siteRow("site-1", "https://example.com/", "Example", false))

	site, err := repo.Upsert(context.Background(), "https://example.com/", "Example")
	require.NoError(t, err)
	assert.Equal(t, "site-1", site.ID)
	assert.Equal(t, "https://example.com/", site.CanonicalURL)
	assert.False(t, site.AutoIndexingEnabled)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSiteRepository_GetByID_NotFound(t *testing.T) {
	repo, mock := newMockSiteRepo(t)

	mock.ExpectQuery("SELECT (.+) FROM sites WHERE id").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows(siteColumns))

	_, err := repo.GetByID(context.Background(), "ghost")
	assert.ErrorIs(t, err, database.ErrSiteNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSiteRepository_GetByCanonicalURL(t *testing.T) {
	repo, mock := newMockSiteRepo(t)

	mock.ExpectQuery("SELECT (.+) FROM sites WHERE canonical_url").
		WithArgs("https://example.com/").
		WillReturnRows(siteRow("site-1", "https://example.com/", "Example", true))

	site, err := repo.GetByCanonicalURL(context.Background(), "https://example.com/")
	require.NoError(t, err)
	assert.Equal(t, "site-1", site.ID)
	assert.True(t, site.AutoIndexingEnabled)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSiteRepository_List_EmptyIsNotNil(t *testing.T) {
	repo, mock := newMockSiteRepo(t)

	mock.ExpectQuery("SELECT (.+) FROM sites ORDER BY canonical_url").
		WillReturnRows(sqlmock.NewRows(siteColumns))

	sites, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, sites)
	assert.Empty(t, sites)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSiteRepository_SetAutoIndexing(t *testing.T) {
	repo, mock := newMockSiteRepo(t)

	mock.ExpectExec("UPDATE sites SET auto_indexing_enabled").
		WithArgs(true, "site-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetAutoIndexing(context.Background(), "site-1", true))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSiteRepository_SetAutoIndexing_UnknownSite(t *testing.T) {
	repo, mock := newMockSiteRepo(t)

	mock.ExpectExec("UPDATE sites SET auto_indexing_enabled").
		WithArgs(false, "ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SetAutoIndexing(context.Background(), "ghost", false)
	assert.ErrorIs(t, err, database.ErrSiteNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSiteRepository_SetIndexNowKey_Clears(t *testing.T) {
	repo, mock := newMockSiteRepo(t)

	mock.ExpectExec("UPDATE sites SET indexnow_key").
		WithArgs(nil, "site-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetIndexNowKey(context.Background(), "site-1", nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSiteRepository_Delete(t *testing.T) {
	repo, mock := newMockSiteRepo(t)

	mock.ExpectExec("DELETE FROM sites").
		WithArgs("site-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), "site-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
