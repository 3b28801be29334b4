package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/teacher-transfer-api/internal/dto"
	"github.com/noah-isme/teacher-transfer-api/internal/models"
	appErrors "github.com/noah-isme/teacher-transfer-api/pkg/errors"
	"github.com/noah-isme/teacher-transfer-api/pkg/mailer"
)

type notificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	ListByRecipient(ctx context.Context, userID string) ([]models.NotificationView, error)
	MarkRead(ctx context.Context, id, userID string) error
	Counts(ctx context.Context, userID string) (*models.NotificationCounts, error)
}

type notificationUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type notificationTeacherRepository interface {
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
}

// NotificationService manages in-app messages between users.
type NotificationService struct {
	repo      notificationRepository
	users     notificationUserRepository
	teachers  notificationTeacherRepository
	mail      mailer.Sender
	validator *validator.Validate
	logger    *zap.Logger
}

// NewNotificationService constructs a NotificationService instance.
func NewNotificationService(repo notificationRepository, users notificationUserRepository, teachers notificationTeacherRepository, mail mailer.Sender, validate *validator.Validate, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	return &NotificationService{repo: repo, users: users, teachers: teachers, mail: mail, validator: validate, logger: logger}
}

// Send creates a notification from the actor to another user.
func (s *NotificationService) Send(ctx context.Context, actor *models.JWTClaims, req dto.CreateNotificationRequest) (*models.Notification, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid notification payload")
	}
	if req.ToUserID == actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cannot send a notification to yourself")
	}

	recipient, err := s.users.FindByID(ctx, req.ToUserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "recipient not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify recipient")
	}

	notification := &models.Notification{
		FromUserID: actor.UserID,
		ToUserID:   req.ToUserID,
		Message:    req.Message,
	}
	if err := s.repo.Create(ctx, notification); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create notification")
	}

	s.dispatchEmailCopy(recipient, req.Message)
	return notification, nil
}

// dispatchEmailCopy mails the notification text to the recipient's registered
// address when one exists. Admin accounts carry no teacher profile and get
// the in-app copy only.
func (s *NotificationService) dispatchEmailCopy(recipient *models.User, message string) {
	if s.mail == nil || s.teachers == nil || recipient.TeacherProfileID == nil {
		return
	}
	profileID := *recipient.TeacherProfileID
	go func() {
		teacher, err := s.teachers.FindByID(context.Background(), profileID)
		if err != nil || teacher.Email == "" {
			return
		}
		if err := s.mail.Deliver(teacher.Email, "New notification", message, "School System"); err != nil {
			s.logger.Warn("failed to send notification email", zap.Error(err), zap.String("email", teacher.Email))
		}
	}()
}

// Inbox returns the actor's notifications, newest first.
func (s *NotificationService) Inbox(ctx context.Context, actor *models.JWTClaims) ([]models.NotificationView, error) {
	notifications, err := s.repo.ListByRecipient(ctx, actor.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	return notifications, nil
}

// MarkRead flags one of the actor's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, actor *models.JWTClaims, id string) error {
	if err := s.repo.MarkRead(ctx, id, actor.UserID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notification read")
	}
	return nil
}

// Counts returns the actor's unread and read totals.
func (s *NotificationService) Counts(ctx context.Context, actor *models.JWTClaims) (*models.NotificationCounts, error) {
	counts, err := s.repo.Counts(ctx, actor.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count notifications")
	}
	return counts, nil
}
