package gateway

import (
	"context"
	"database/sql"
	"fmt"

	"spyglass/pkg/database"
	"spyglass/pkg/models"
)

// PostgresStore implements the posts and edges ports on top of the
// relational state store (channel_posts, channel_edges).
type PostgresStore struct {
	db database.PostgresConn
}

// NewPostgresStore wraps an existing connection.
func NewPostgresStore(db database.PostgresConn) *PostgresStore {
	return &PostgresStore{db: db}
}

// CountPosts returns the number of posts published inside the window.
func (s *PostgresStore) CountPosts(ctx context.Context, channel string, window models.TimeWindow) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM channel_posts
		WHERE channel_id = $1 AND published_at >= $2 AND published_at <= $3`,
		channel, window.From, window.To).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count posts: %w", err)
	}
	return count, nil
}

// SumViews returns total views across posts published inside the window.
func (s *PostgresStore) SumViews(ctx context.Context, channel string, window models.TimeWindow) (int64, error) {
	var total int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(views), 0)
		FROM channel_posts
		WHERE channel_id = $1 AND published_at >= $2 AND published_at <= $3`,
		channel, window.From, window.To).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum views: %w", err)
	}
	return total, nil
}

// TopPostsByViews returns up to limit posts ordered by views descending.
// Reactions are parsed defensively here, once, at the boundary.
func (s *PostgresStore) TopPostsByViews(ctx context.Context, channel string, window models.TimeWindow, limit int) ([]models.PostRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT message_id, published_at,
		       COALESCE(views, 0), COALESCE(forwards, 0), COALESCE(replies, 0),
		       COALESCE(reactions::text, ''), COALESCE(title, ''), COALESCE(permalink, '')
		FROM channel_posts
		WHERE channel_id = $1 AND published_at >= $2 AND published_at <= $3
		ORDER BY views DESC
		LIMIT $4`,
		channel, window.From, window.To, limit)
	if err != nil {
		return nil, fmt.Errorf("top posts: %w", err)
	}
	defer rows.Close()

	var posts []models.PostRecord
	for rows.Next() {
		var p models.PostRecord
		var reactions sql.NullString
		if err := rows.Scan(&p.MessageID, &p.PublishedAt,
			&p.Views, &p.Forwards, &p.Replies,
			&reactions, &p.Title, &p.Permalink); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		p.Reactions = parseReactions([]byte(reactions.String))
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// TopEdges returns the heaviest mention/forward edges touching the channel.
func (s *PostgresStore) TopEdges(ctx context.Context, channel string, window models.TimeWindow, kind models.EdgeKind, limit int) ([]models.EdgeCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT src_channel, dst_channel, SUM(cnt) AS total
		FROM channel_edges
		WHERE (src_channel = $1 OR dst_channel = $1)
		  AND kind = $2 AND day >= $3 AND day <= $4
		GROUP BY src_channel, dst_channel
		ORDER BY total DESC
		LIMIT $5`,
		channel, string(kind), window.From, window.To, limit)
	if err != nil {
		return nil, fmt.Errorf("top edges: %w", err)
	}
	defer rows.Close()

	var edges []models.EdgeCount
	for rows.Next() {
		var e models.EdgeCount
		if err := rows.Scan(&e.Src, &e.Dst, &e.Count); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}
