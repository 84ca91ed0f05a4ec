package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/wagnerlima/memory-cloud/cocoon-mcp/internal/models"
)

// Notify records a notification. It satisfies notify.Sink; delivery to the
// recipient is somebody else's job.
func (s *Store) Notify(ctx context.Context, recipient, typ, message string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications (id, recipient, type, message, created_at) VALUES (?, ?, ?, ?, ?)`,
		uuid.New().String(), recipient, typ, message, s.stamp(),
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// ListNotifications returns the newest notifications for a recipient, newest
// first. A non-positive limit returns all of them.
func (s *Store) ListNotifications(ctx context.Context, recipient string, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, recipient, type, message, created_at FROM notifications
		 WHERE recipient = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		recipient, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.Recipient, &n.Type, &n.Message, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
