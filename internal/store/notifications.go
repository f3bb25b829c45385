package store

import (
	"context"
	"fmt"

	"sales-order-service/internal/models"

	"github.com/jmoiron/sqlx"
)

func insertNotification(ctx context.Context, tx *sqlx.Tx, n *models.Notification) error {
	if n == nil {
		return nil
	}
	err := tx.QueryRowxContext(ctx, `
		INSERT INTO notifications (message, role, user_id)
		VALUES ($1, $2, $3)
		RETURNING id, timestamp, is_read`,
		n.Message, n.Role, n.UserID).Scan(&n.ID, &n.Timestamp, &n.IsRead)
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

// ListNotifications returns the most recent notifications addressed to any of the roles
func (s *Store) ListNotifications(ctx context.Context, roles []string, limit int) ([]models.Notification, error) {
	query, args, err := sqlx.In(
		"SELECT * FROM notifications WHERE role IN (?) ORDER BY timestamp DESC, id DESC LIMIT ?",
		roles, limit)
	if err != nil {
		return nil, err
	}
	notifications := []models.Notification{}
	err = s.db.SelectContext(ctx, &notifications, s.db.Rebind(query), args...)
	return notifications, err
}

// MarkNotificationsRead flags every unread notification addressed to the roles
func (s *Store) MarkNotificationsRead(ctx context.Context, roles []string) (int64, error) {
	query, args, err := sqlx.In("UPDATE notifications SET is_read = TRUE WHERE is_read = FALSE AND role IN (?)", roles)
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ClearNotifications deletes every notification addressed to the roles
func (s *Store) ClearNotifications(ctx context.Context, roles []string) (int64, error) {
	query, args, err := sqlx.In("DELETE FROM notifications WHERE role IN (?)", roles)
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
