package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/teacher-transfer-api/internal/dto"
	"github.com/noah-isme/teacher-transfer-api/internal/models"
	"github.com/noah-isme/teacher-transfer-api/internal/repository"
	appErrors "github.com/noah-isme/teacher-transfer-api/pkg/errors"
)

const (
	schoolListCacheKey    = "schools:list"
	schoolCacheKeyPattern = "schools:*"
)

type schoolRepository interface {
	List(ctx context.Context) ([]models.School, error)
	FindByID(ctx context.Context, id string) (*models.School, error)
	Create(ctx context.Context, school *models.School) error
	Update(ctx context.Context, school *models.School) error
	Delete(ctx context.Context, id string) error
}

// SchoolService manages the school directory with a read-through cache on
// the listing, which every registration and transfer form hits.
type SchoolService struct {
	repo      schoolRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSchoolService constructs a SchoolService instance.
func NewSchoolService(repo schoolRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *SchoolService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	return &SchoolService{repo: repo, cache: cache, validator: validate, logger: logger}
}

// List returns all schools, served from cache when warm.
func (s *SchoolService) List(ctx context.Context) ([]models.School, error) {
	var cached []models.School
	if hit, err := s.cache.Get(ctx, schoolListCacheKey, &cached); err == nil && hit {
		return cached, nil
	}

	schools, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list schools")
	}

	if err := s.cache.Set(ctx, schoolListCacheKey, schools, 0); err != nil {
		s.logger.Debug("school list cache not updated", zap.Error(err))
	}
	return schools, nil
}

// Get returns one school by ID.
func (s *SchoolService) Get(ctx context.Context, id string) (*models.School, error) {
	key := fmt.Sprintf("schools:id:%s", id)
	var cached models.School
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return &cached, nil
	}

	school, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "school not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load school")
	}

	if err := s.cache.Set(ctx, key, school, 0); err != nil {
		s.logger.Debug("school cache not updated", zap.Error(err))
	}
	return school, nil
}

// Create registers a new school.
func (s *SchoolService) Create(ctx context.Context, req dto.CreateSchoolRequest) (*models.School, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid school payload")
	}

	school := &models.School{
		Name:     req.Name,
		Code:     req.Code,
		District: req.District,
		Province: req.Province,
	}
	if err := s.repo.Create(ctx, school); err != nil {
		if constraint, ok := repository.UniqueConstraint(err); ok && constraint == "schools_code_key" {
			return nil, appErrors.Clone(appErrors.ErrConflict, "a school with this code already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create school")
	}

	s.invalidateCache(ctx)
	return school, nil
}

// Update modifies an existing school.
func (s *SchoolService) Update(ctx context.Context, id string, req dto.UpdateSchoolRequest) (*models.School, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid school payload")
	}

	school, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "school not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load school")
	}

	school.Name = req.Name
	school.Code = req.Code
	school.District = req.District
	school.Province = req.Province

	if err := s.repo.Update(ctx, school); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "school not found")
		}
		if constraint, ok := repository.UniqueConstraint(err); ok && constraint == "schools_code_key" {
			return nil, appErrors.Clone(appErrors.ErrConflict, "a school with this code already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update school")
	}

	s.invalidateCache(ctx)
	return school, nil
}

// Delete removes a school. Schools referenced by teachers or transfer
// requests stay put; the foreign keys reject the delete.
func (s *SchoolService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "school not found")
		}
		return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "school is still referenced")
	}

	s.invalidateCache(ctx)
	return nil
}

func (s *SchoolService) invalidateCache(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, schoolCacheKeyPattern); err != nil {
		s.logger.Debug("school cache not invalidated", zap.Error(err))
	}
}
