package dto

// CreateNotificationRequest sends an in-app message to another user. The
// sender is taken from the authenticated session.
type CreateNotificationRequest struct {
	ToUserID string `json:"toUserId" validate:"required,uuid4"`
	Message  string `json:"message" validate:"required"`
}
