package models

import "time"

// Notification is an in-app message between two users with a read flag.
type Notification struct {
	ID         string    `db:"id" json:"id"`
	FromUserID string    `db:"from_user_id" json:"fromUserId"`
	ToUserID   string    `db:"to_user_id" json:"toUserId"`
	Message    string    `db:"message" json:"message"`
	Read       bool      `db:"read" json:"read"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

// NotificationView joins the sender's teacher profile for display.
type NotificationView struct {
	ID          string    `db:"id" json:"id"`
	Message     string    `db:"message" json:"message"`
	Read        bool      `db:"read" json:"read"`
	SenderName  *string   `db:"sender_name" json:"from,omitempty"`
	SenderEmail *string   `db:"sender_email" json:"fromEmail,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// NotificationCounts summarises unread/read totals for a recipient.
type NotificationCounts struct {
	Unread int `db:"unread" json:"unreadCount"`
	Read   int `db:"read" json:"readCount"`
}
