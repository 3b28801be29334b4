package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/teacher-transfer-api/internal/dto"
	"github.com/noah-isme/teacher-transfer-api/internal/models"
	"github.com/noah-isme/teacher-transfer-api/internal/repository"
	appErrors "github.com/noah-isme/teacher-transfer-api/pkg/errors"
	"github.com/noah-isme/teacher-transfer-api/pkg/export"
	"github.com/noah-isme/teacher-transfer-api/pkg/mailer"
)

type transferRepository interface {
	Create(ctx context.Context, request *models.TransferRequest) error
	GetByID(ctx context.Context, id string) (*models.TransferRequest, error)
	GetDetailByID(ctx context.Context, id string) (*models.TransferRequestDetail, error)
	List(ctx context.Context, filter models.TransferFilter) ([]models.TransferRequestDetail, error)
	HasPending(ctx context.Context, teacherID string) (bool, error)
	UpdateStatus(ctx context.Context, params repository.UpdateTransferStatusParams) error
	Approve(ctx context.Context, params repository.ApproveTransferParams) error
}

type transferTeacherRepository interface {
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
}

type transferSchoolRepository interface {
	FindByID(ctx context.Context, id string) (*models.School, error)
}

// TransferService manages the transfer request workflow.
type TransferService struct {
	transfers transferRepository
	teachers  transferTeacherRepository
	schools   transferSchoolRepository
	letters   *export.LetterExporter
	mail      mailer.Sender
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTransferService constructs a TransferService instance.
func NewTransferService(
	transfers transferRepository,
	teachers transferTeacherRepository,
	schools transferSchoolRepository,
	letters *export.LetterExporter,
	mail mailer.Sender,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
) *TransferService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	if letters == nil {
		letters = export.NewLetterExporter()
	}
	return &TransferService{
		transfers: transfers,
		teachers:  teachers,
		schools:   schools,
		letters:   letters,
		mail:      mail,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
}

// Request files a new transfer petition. Teacher actors always file for
// themselves; admins may file on behalf of any teacher. The origin school is
// snapshotted from the teacher's current posting at this moment and never
// re-derived later.
func (s *TransferService) Request(ctx context.Context, actor *models.JWTClaims, req dto.CreateTransferRequest) (*models.TransferRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid transfer payload")
	}

	teacherID := req.TeacherID
	switch actor.Role {
	case models.RoleTeacher, models.RoleHeadteacher:
		if actor.TeacherProfileID == nil {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "account has no teacher profile")
		}
		if teacherID != "" && teacherID != *actor.TeacherProfileID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot file a transfer for another teacher")
		}
		teacherID = *actor.TeacherProfileID
	case models.RoleAdmin:
		if teacherID == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "teacherId is required")
		}
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "role cannot file transfer requests")
	}

	teacher, err := s.teachers.FindByID(ctx, teacherID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}

	if _, err := s.schools.FindByID(ctx, req.ToSchoolID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "destination school not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify school")
	}

	if req.ToSchoolID == teacher.CurrentSchoolID {
		return nil, appErrors.Clone(appErrors.ErrConflict, "destination school matches the current posting")
	}

	pending, err := s.transfers.HasPending(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check pending requests")
	}
	if pending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "teacher already has a pending transfer request")
	}

	request := &models.TransferRequest{
		TeacherID:    teacherID,
		FromSchoolID: teacher.CurrentSchoolID,
		ToSchoolID:   req.ToSchoolID,
		Status:       models.TransferStatusPending,
	}
	if err := s.transfers.Create(ctx, request); err != nil {
		if constraint, ok := repository.UniqueConstraint(err); ok && constraint == "transfer_requests_pending_teacher_key" {
			return nil, appErrors.Clone(appErrors.ErrConflict, "teacher already has a pending transfer request")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create transfer request")
	}

	s.dispatchMail(teacher.Email, "Transfer request received",
		fmt.Sprintf("Your transfer request has been filed and is pending review. Reference: <strong>%s</strong>.", request.ID))

	return request, nil
}

// List returns the transfer requests visible to the actor. Admins see
// everything, teachers see their own filings, headteachers see requests
// originating from their school.
func (s *TransferService) List(ctx context.Context, actor *models.JWTClaims) ([]models.TransferRequestDetail, error) {
	filter, err := s.visibilityFilter(ctx, actor)
	if err != nil {
		return nil, err
	}
	requests, err := s.transfers.List(ctx, *filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list transfer requests")
	}
	return requests, nil
}

// Get returns one transfer request if it falls inside the actor's scope.
func (s *TransferService) Get(ctx context.Context, actor *models.JWTClaims, id string) (*models.TransferRequestDetail, error) {
	detail, err := s.transfers.GetDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "transfer request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load transfer request")
	}
	if err := s.authorizeView(ctx, actor, &detail.TransferRequest); err != nil {
		return nil, err
	}
	return detail, nil
}

// UpdateStatus applies a reviewer decision. Closed requests admit no further
// transitions regardless of role; a losing concurrent decider observes a
// conflict rather than overwriting the winner.
func (s *TransferService) UpdateStatus(ctx context.Context, actor *models.JWTClaims, id string, req dto.UpdateTransferStatusRequest) (*models.TransferRequestDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	target := models.TransferStatus(req.Status)
	if !target.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "status is not a valid transfer status")
	}

	request, err := s.transfers.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "transfer request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load transfer request")
	}
	if request.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrConflict, "transfer request is already closed")
	}

	expected, err := s.authorizeDecision(ctx, actor, request, target)
	if err != nil {
		return nil, err
	}

	if target == models.TransferStatusApproved {
		err = s.transfers.Approve(ctx, repository.ApproveTransferParams{
			ID:        id,
			TeacherID: request.TeacherID,
			ToSchool:  request.ToSchoolID,
			Reason:    req.Reason,
			Expected:  expected,
		})
	} else {
		err = s.transfers.UpdateStatus(ctx, repository.UpdateTransferStatusParams{
			ID:       id,
			Status:   target,
			Reason:   req.Reason,
			Expected: expected,
		})
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "transfer request was decided concurrently")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update transfer request")
	}

	updated, err := s.transfers.GetDetailByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload transfer request")
	}

	s.metrics.RecordTransferDecision(string(updated.Status))

	s.dispatchMail(updated.TeacherEmail, "Transfer request update",
		fmt.Sprintf("Your transfer request to <strong>%s</strong> is now <strong>%s</strong>.%s",
			updated.ToSchoolName, statusLabel(updated.Status), reasonSuffix(updated.StatusReason)))

	return updated, nil
}

// Letter renders the decision letter PDF for a closed transfer request.
func (s *TransferService) Letter(ctx context.Context, actor *models.JWTClaims, id string) ([]byte, error) {
	detail, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !detail.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrConflict, "transfer request has no decision yet")
	}

	letter, err := s.letters.Render(export.TransferLetter{
		Reference:   detail.ID,
		TeacherName: detail.TeacherFirstName + " " + detail.TeacherLastName,
		FromSchool:  detail.FromSchoolName,
		ToSchool:    detail.ToSchoolName,
		Status:      statusLabel(detail.Status),
		Reason:      detail.StatusReason,
		DecidedAt:   detail.CreatedAt,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render decision letter")
	}
	return letter, nil
}

func (s *TransferService) visibilityFilter(ctx context.Context, actor *models.JWTClaims) (*models.TransferFilter, error) {
	switch actor.Role {
	case models.RoleAdmin:
		return &models.TransferFilter{}, nil
	case models.RoleTeacher:
		if actor.TeacherProfileID == nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "account has no linked teacher profile")
		}
		return &models.TransferFilter{TeacherID: *actor.TeacherProfileID}, nil
	case models.RoleHeadteacher:
		if actor.TeacherProfileID == nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "account has no linked teacher profile")
		}
		school, err := s.actorSchool(ctx, actor)
		if err != nil {
			return nil, err
		}
		return &models.TransferFilter{FromSchoolID: school}, nil
	}
	return nil, appErrors.Clone(appErrors.ErrForbidden, "role cannot view transfer requests")
}

func (s *TransferService) authorizeView(ctx context.Context, actor *models.JWTClaims, request *models.TransferRequest) error {
	switch actor.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleTeacher:
		if actor.TeacherProfileID != nil && request.TeacherID == *actor.TeacherProfileID {
			return nil
		}
	case models.RoleHeadteacher:
		school, err := s.actorSchool(ctx, actor)
		if err != nil {
			return err
		}
		if request.FromSchoolID == school {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrForbidden, "transfer request is outside your scope")
}

// authorizeDecision enforces the two-step review: a headteacher endorses or
// declines pending requests that originate from their own school, then an
// admin makes the final call. Admins may also decide straight from pending.
func (s *TransferService) authorizeDecision(ctx context.Context, actor *models.JWTClaims, request *models.TransferRequest, target models.TransferStatus) ([]models.TransferStatus, error) {
	switch actor.Role {
	case models.RoleHeadteacher:
		if target != models.TransferStatusHeadteacherApproved && target != models.TransferStatusHeadteacherRejected {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "headteachers may only endorse or decline requests")
		}
		school, err := s.actorSchool(ctx, actor)
		if err != nil {
			return nil, err
		}
		if request.FromSchoolID != school {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "request did not originate from your school")
		}
		return []models.TransferStatus{models.TransferStatusPending}, nil
	case models.RoleAdmin:
		switch target {
		case models.TransferStatusApproved, models.TransferStatusRejected:
			return []models.TransferStatus{models.TransferStatusPending, models.TransferStatusHeadteacherApproved}, nil
		case models.TransferStatusPending:
			// Sends an endorsed request back for another look.
			return []models.TransferStatus{models.TransferStatusHeadteacherApproved}, nil
		}
		return nil, appErrors.Clone(appErrors.ErrForbidden, "admins decide with approved, rejected or a reset to pending")
	}
	return nil, appErrors.Clone(appErrors.ErrForbidden, "role cannot decide transfer requests")
}

func (s *TransferService) actorSchool(ctx context.Context, actor *models.JWTClaims) (string, error) {
	if actor.TeacherProfileID == nil {
		return "", appErrors.Clone(appErrors.ErrForbidden, "account has no teacher profile")
	}
	teacher, err := s.teachers.FindByID(ctx, *actor.TeacherProfileID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", appErrors.Clone(appErrors.ErrForbidden, "teacher profile no longer exists")
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher profile")
	}
	return teacher.CurrentSchoolID, nil
}

func (s *TransferService) dispatchMail(to, subject, message string) {
	if s.mail == nil || to == "" {
		return
	}
	go func() {
		if err := s.mail.Deliver(to, subject, message, "School System"); err != nil {
			s.logger.Warn("failed to send transfer email", zap.Error(err), zap.String("email", to))
		}
	}()
}

func statusLabel(status models.TransferStatus) string {
	return strings.ReplaceAll(string(status), "_", " ")
}

func reasonSuffix(reason string) string {
	if reason == "" {
		return ""
	}
	return fmt.Sprintf("<br><br>Remarks: %s", reason)
}
