package gateway

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"spyglass/pkg/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock, *sql.DB) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return NewPostgresStore(db), mock, db
}

func testWindow() models.TimeWindow {
	return models.TimeWindow{
		From: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC),
	}
}

func TestCountPosts(t *testing.T) {
	store, mock, db := setupMockStore(t)
	defer db.Close()

	window := testWindow()
	mock.ExpectQuery("SELECT COUNT\\(\\*\\)\\s+FROM channel_posts").
		WithArgs("durov", window.From, window.To).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

	count, err := store.CountPosts(context.Background(), "durov", window)
	require.NoError(t, err)
	assert.Equal(t, int64(42), count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountPosts_QueryError(t *testing.T) {
	store, mock, db := setupMockStore(t)
	defer db.Close()

	mock.ExpectQuery("FROM channel_posts").
		WillReturnError(fmt.Errorf("connection reset"))

	_, err := store.CountPosts(context.Background(), "durov", testWindow())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "count posts")
}

func TestSumViews(t *testing.T) {
	store, mock, db := setupMockStore(t)
	defer db.Close()

	window := testWindow()
	mock.ExpectQuery("COALESCE\\(SUM\\(views\\), 0\\)\\s+FROM channel_posts").
		WithArgs("durov", window.From, window.To).
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(123456))

	total, err := store.SumViews(context.Background(), "durov", window)
	require.NoError(t, err)
	assert.Equal(t, int64(123456), total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTopPostsByViews(t *testing.T) {
	store, mock, db := setupMockStore(t)
	defer db.Close()

	window := testWindow()
	published := time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{
		"message_id", "published_at", "views", "forwards", "replies",
		"reactions", "title", "permalink",
	}).
		AddRow(101, published, 9000, 120, 30, `{"👍": 55, "🔥": 7}`, "Launch post", "t.me/durov/101").
		AddRow(102, published.Add(-time.Hour), 4500, 60, 12, "", "Follow-up", "t.me/durov/102")

	mock.ExpectQuery("FROM channel_posts").
		WithArgs("durov", window.From, window.To, 10).
		WillReturnRows(rows)

	posts, err := store.TopPostsByViews(context.Background(), "durov", window, 10)
	require.NoError(t, err)
	require.Len(t, posts, 2)

	assert.Equal(t, int64(101), posts[0].MessageID)
	assert.Equal(t, int64(9000), posts[0].Views)
	assert.Equal(t, int64(55), posts[0].Reactions["👍"])
	assert.Equal(t, int64(7), posts[0].Reactions["🔥"])
	assert.Equal(t, "Launch post", posts[0].Title)

	// Empty reactions column scans to an empty (non-nil) map.
	assert.NotNil(t, posts[1].Reactions)
	assert.Empty(t, posts[1].Reactions)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTopPostsByViews_ReactionsCastToText(t *testing.T) {
	store, mock, db := setupMockStore(t)
	defer db.Close()

	// reactions is JSONB; it must be cast to text before the empty-string
	// COALESCE or postgres rejects the query at parse time.
	mock.ExpectQuery(`COALESCE\(reactions::text, ''\)`).
		WillReturnRows(sqlmock.NewRows([]string{
			"message_id", "published_at", "views", "forwards", "replies",
			"reactions", "title", "permalink",
		}))

	_, err := store.TopPostsByViews(context.Background(), "durov", testWindow(), 5)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTopPostsByViews_ScanError(t *testing.T) {
	store, mock, db := setupMockStore(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{
		"message_id", "published_at", "views", "forwards", "replies",
		"reactions", "title", "permalink",
	}).AddRow("not-an-int", "not-a-time", 1, 1, 1, "", "", "")

	mock.ExpectQuery("FROM channel_posts").WillReturnRows(rows)

	_, err := store.TopPostsByViews(context.Background(), "durov", testWindow(), 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scan post")
}

func TestTopEdges(t *testing.T) {
	store, mock, db := setupMockStore(t)
	defer db.Close()

	window := testWindow()
	rows := sqlmock.NewRows([]string{"src_channel", "dst_channel", "total"}).
		AddRow("other_channel", "durov", 18).
		AddRow("durov", "third_channel", 5)

	mock.ExpectQuery("FROM channel_edges").
		WithArgs("durov", "mention", window.From, window.To, 20).
		WillReturnRows(rows)

	edges, err := store.TopEdges(context.Background(), "durov", window, models.EdgeMention, 20)
	require.NoError(t, err)
	require.Len(t, edges, 2)
	assert.Equal(t, "other_channel", edges[0].Src)
	assert.Equal(t, "durov", edges[0].Dst)
	assert.Equal(t, int64(18), edges[0].Count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTopEdges_QueryError(t *testing.T) {
	store, mock, db := setupMockStore(t)
	defer db.Close()

	mock.ExpectQuery("FROM channel_edges").
		WillReturnError(fmt.Errorf("relation does not exist"))

	_, err := store.TopEdges(context.Background(), "durov", testWindow(), models.EdgeForward, 20)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "top edges")
}
