package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/teacher-transfer-api/internal/dto"
	"github.com/noah-isme/teacher-transfer-api/internal/models"
	appErrors "github.com/noah-isme/teacher-transfer-api/pkg/errors"
)

type teacherRepository interface {
	List(ctx context.Context) ([]models.TeacherDetail, error)
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
	FindDetailByID(ctx context.Context, id string) (*models.TeacherDetail, error)
	UpdateProfile(ctx context.Context, teacher *models.Teacher) error
	Delete(ctx context.Context, id string) error
}

type teacherDocumentStore interface {
	Delete(filename string) error
	Path(filename string) string
}

// TeacherService manages teacher profiles.
type TeacherService struct {
	repo      teacherRepository
	store     teacherDocumentStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTeacherService constructs a TeacherService instance.
func NewTeacherService(repo teacherRepository, store teacherDocumentStore, validate *validator.Validate, logger *zap.Logger) *TeacherService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	return &TeacherService{repo: repo, store: store, validator: validate, logger: logger}
}

// List returns all teacher profiles with their current school.
func (s *TeacherService) List(ctx context.Context) ([]models.TeacherDetail, error) {
	teachers, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list teachers")
	}
	return teachers, nil
}

// Get returns one teacher profile. Teacher actors may only read their own.
func (s *TeacherService) Get(ctx context.Context, actor *models.JWTClaims, id string) (*models.TeacherDetail, error) {
	if err := authorizeProfileAccess(actor, id); err != nil {
		return nil, err
	}

	teacher, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	return teacher, nil
}

// Update modifies the mutable parts of a profile. The current school is not
// among them; it changes only through an approved transfer.
func (s *TeacherService) Update(ctx context.Context, actor *models.JWTClaims, id string, req dto.UpdateTeacherRequest) (*models.Teacher, error) {
	if err := authorizeProfileAccess(actor, id); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid teacher payload")
	}
	if req.MaritalStatus != "" && !models.MaritalStatus(req.MaritalStatus).Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "maritalStatus must be one of Single, Married, Divorced, Widowed")
	}
	if req.CurrentPosition != "" && !models.Position(req.CurrentPosition).Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "currentPosition is not a recognised post")
	}

	teacher, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}

	teacher.FirstName = req.FirstName
	teacher.LastName = req.LastName
	teacher.Address = req.Address
	teacher.SubjectSpecialization = req.SubjectSpecialization
	if req.CurrentPosition != "" {
		teacher.CurrentPosition = req.CurrentPosition
	}
	if req.MaritalStatus != "" {
		status := models.MaritalStatus(req.MaritalStatus)
		teacher.MaritalStatus = &status
	}
	if req.Experience != nil {
		experience, err := json.Marshal(req.Experience)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode experience")
		}
		teacher.Experience = experience
	}

	if err := s.repo.UpdateProfile(ctx, teacher); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update teacher")
	}
	return teacher, nil
}

// Document resolves one of a teacher's uploaded files for download. The same
// access rule as Get applies: teacher actors only reach their own documents.
func (s *TeacherService) Document(ctx context.Context, actor *models.JWTClaims, id, kind string) (path, filename string, err error) {
	if err := authorizeProfileAccess(actor, id); err != nil {
		return "", "", err
	}

	teacher, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", "", appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}

	var stored string
	switch kind {
	case DocumentKindMedical:
		stored = teacher.MedicalCertificate
	case DocumentKindAcademic:
		stored = teacher.AcademicQualifications
	case DocumentKindProfessional:
		stored = teacher.ProfessionalQualifications
	default:
		return "", "", appErrors.Clone(appErrors.ErrValidation, "unknown document kind")
	}
	if stored == "" {
		return "", "", appErrors.Clone(appErrors.ErrNotFound, "document has not been uploaded")
	}
	return s.store.Path(stored), stored, nil
}

// Delete removes a teacher profile along with its stored documents. The
// linked user account falls with the profile.
func (s *TeacherService) Delete(ctx context.Context, id string) error {
	teacher, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "teacher is still referenced")
	}

	for _, doc := range []string{teacher.MedicalCertificate, teacher.AcademicQualifications, teacher.ProfessionalQualifications} {
		if doc == "" {
			continue
		}
		if err := s.store.Delete(doc); err != nil {
			s.logger.Warn("failed to remove teacher document", zap.Error(err), zap.String("path", doc))
		}
	}
	return nil
}

// authorizeProfileAccess lets admins and headteachers through and pins
// teacher actors to their own profile.
func authorizeProfileAccess(actor *models.JWTClaims, teacherID string) error {
	switch actor.Role {
	case models.RoleAdmin, models.RoleHeadteacher:
		return nil
	case models.RoleTeacher:
		if actor.TeacherProfileID != nil && *actor.TeacherProfileID == teacherID {
			return nil
		}
		return appErrors.Clone(appErrors.ErrForbidden, "cannot access another teacher's profile")
	}
	return appErrors.Clone(appErrors.ErrForbidden, "role cannot access teacher profiles")
}
