package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/teacher-transfer-api/internal/models"
)

// NotificationRepository manages persistence for in-app notifications.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository constructs a NotificationRepository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create inserts a new notification.
func (r *NotificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	if notification.ID == "" {
		notification.ID = uuid.NewString()
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO notifications (id, from_user_id, to_user_id, message, read, created_at)
		VALUES (:id, :from_user_id, :to_user_id, :message, :read, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, notification); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// ListByRecipient returns the recipient's notifications, newest first, with
// the sender's teacher profile joined in when one exists.
func (r *NotificationRepository) ListByRecipient(ctx context.Context, userID string) ([]models.NotificationView, error) {
	const query = `SELECT n.id, n.message, n.read, n.created_at,
		       CASE WHEN t.id IS NULL THEN NULL ELSE t.first_name || ' ' || t.last_name END AS sender_name,
		       t.email AS sender_email
		FROM notifications n
		JOIN users u ON u.id = n.from_user_id
		LEFT JOIN teachers t ON t.id = u.teacher_profile_id
		WHERE n.to_user_id = $1
		ORDER BY n.created_at DESC`
	var notifications []models.NotificationView
	if err := r.db.SelectContext(ctx, &notifications, query, userID); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return notifications, nil
}

// MarkRead flags a notification as read. Scoped to the recipient so users
// cannot mark messages addressed to someone else.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, userID string) error {
	const query = `UPDATE notifications SET read = TRUE WHERE id = $1 AND to_user_id = $2`
	result, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check notification rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Counts returns the unread and read totals for a recipient.
func (r *NotificationRepository) Counts(ctx context.Context, userID string) (*models.NotificationCounts, error) {
	const query = `SELECT
		       COUNT(*) FILTER (WHERE NOT read) AS unread,
		       COUNT(*) FILTER (WHERE read) AS read
		FROM notifications WHERE to_user_id = $1`
	var counts models.NotificationCounts
	if err := r.db.GetContext(ctx, &counts, query, userID); err != nil {
		return nil, fmt.Errorf("count notifications: %w", err)
	}
	return &counts, nil
}
