// Package comment stores the comment thread attached to each shared video.
// Threads are keyed by share id, so a link and its comments stay together.
package comment

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shortsfeed/shortsfeed/internal/database"
)

const listLimit = 100

var ErrNotFound = errors.New("comment not found")

type Comment struct {
	ID        string
	VideoID   string
	DeviceID  string
	Username  string
	Body      string
	CreatedAt time.Time
}

type Store struct {
	db database.DBTX
}

func NewStore(db database.DBTX) *Store {
	return &Store{db: db}
}

// DefaultUsername is used when a viewer posts without a name.
func DefaultUsername() string {
	return fmt.Sprintf("User%d", rand.IntN(10000))
}

// List returns the newest comments on a video first.
func (s *Store) List(ctx context.Context, videoID string) ([]Comment, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, video_id, device_id, username, body, created_at
		 FROM comments WHERE video_id = $1
		 ORDER BY created_at DESC LIMIT $2`,
		videoID, listLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	comments := make([]Comment, 0)
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.VideoID, &c.DeviceID, &c.Username, &c.Body, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	return comments, nil
}

func (s *Store) Post(ctx context.Context, videoID, deviceID, username, body string) (Comment, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		username = DefaultUsername()
	}
	c := Comment{
		ID:       uuid.NewString(),
		VideoID:  videoID,
		DeviceID: deviceID,
		Username: username,
		Body:     strings.TrimSpace(body),
	}
	err := s.db.QueryRow(ctx,
		`INSERT INTO comments (id, video_id, device_id, username, body)
		 VALUES ($1, $2, $3, $4, $5) RETURNING created_at`,
		c.ID, c.VideoID, c.DeviceID, c.Username, c.Body,
	).Scan(&c.CreatedAt)
	if err != nil {
		return Comment{}, fmt.Errorf("insert comment: %w", err)
	}
	return c, nil
}

// Delete removes a comment only when deviceID wrote it.
func (s *Store) Delete(ctx context.Context, videoID, commentID, deviceID string) error {
	if _, err := uuid.Parse(commentID); err != nil {
		return ErrNotFound
	}
	tag, err := s.db.Exec(ctx,
		`DELETE FROM comments WHERE id = $1 AND video_id = $2 AND device_id = $3`,
		commentID, videoID, deviceID,
	)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) Count(ctx context.Context, videoID string) (int, error) {
	var n int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM comments WHERE video_id = $1`, videoID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count comments: %w", err)
	}
	return n, nil
}
