package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/teacher-transfer-api/internal/dto"
	"github.com/noah-isme/teacher-transfer-api/internal/models"
	appErrors "github.com/noah-isme/teacher-transfer-api/pkg/errors"
)

type teacherCrudStub struct {
	teachers map[string]*models.Teacher
	deleted  []string
}

func newTeacherCrudStub() *teacherCrudStub {
	return &teacherCrudStub{teachers: make(map[string]*models.Teacher)}
}

func (s *teacherCrudStub) List(ctx context.Context) ([]models.TeacherDetail, error) {
	result := make([]models.TeacherDetail, 0, len(s.teachers))
	for _, teacher := range s.teachers {
		result = append(result, models.TeacherDetail{Teacher: *teacher})
	}
	return result, nil
}

func (s *teacherCrudStub) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	if teacher, ok := s.teachers[id]; ok {
		copy := *teacher
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (s *teacherCrudStub) FindDetailByID(ctx context.Context, id string) (*models.TeacherDetail, error) {
	teacher, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.TeacherDetail{Teacher: *teacher, SchoolName: "Alpha"}, nil
}

func (s *teacherCrudStub) UpdateProfile(ctx context.Context, teacher *models.Teacher) error {
	if _, ok := s.teachers[teacher.ID]; !ok {
		return sql.ErrNoRows
	}
	copy := *teacher
	s.teachers[teacher.ID] = &copy
	return nil
}

func (s *teacherCrudStub) Delete(ctx context.Context, id string) error {
	if _, ok := s.teachers[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.teachers, id)
	s.deleted = append(s.deleted, id)
	return nil
}

type docDeleteStub struct {
	removed []string
}

func (s *docDeleteStub) Delete(filename string) error {
	s.removed = append(s.removed, filename)
	return nil
}

func (s *docDeleteStub) Path(filename string) string {
	return "/uploads/" + filename
}

func newTeacherServiceFixture() (*TeacherService, *teacherCrudStub, *docDeleteStub) {
	repo := newTeacherCrudStub()
	repo.teachers["teacher-1"] = &models.Teacher{
		ID:                         "teacher-1",
		FirstName:                  "Chanda",
		LastName:                   "Mwila",
		MedicalCertificate:         "medical_1.pdf",
		AcademicQualifications:     "academic_1.pdf",
		ProfessionalQualifications: "professional_1.pdf",
		CurrentSchoolID:            "school-a",
	}
	store := &docDeleteStub{}
	return NewTeacherService(repo, store, nil, nil), repo, store
}

func TestTeacherGetPinsTeacherActorsToOwnProfile(t *testing.T) {
	svc, _, _ := newTeacherServiceFixture()

	_, err := svc.Get(context.Background(), teacherClaims("teacher-2"), "teacher-1")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	detail, err := svc.Get(context.Background(), teacherClaims("teacher-1"), "teacher-1")
	require.NoError(t, err)
	require.Equal(t, "Alpha", detail.SchoolName)

	_, err = svc.Get(context.Background(), adminClaims(), "teacher-1")
	require.NoError(t, err)
}

func TestTeacherUpdateDoesNotTouchSchool(t *testing.T) {
	svc, repo, _ := newTeacherServiceFixture()

	updated, err := svc.Update(context.Background(), adminClaims(), "teacher-1", dto.UpdateTeacherRequest{
		FirstName:     "Chileshe",
		LastName:      "Mwila",
		MaritalStatus: "Married",
	})
	require.NoError(t, err)
	require.Equal(t, "Chileshe", updated.FirstName)
	require.Equal(t, "school-a", repo.teachers["teacher-1"].CurrentSchoolID)
}

func TestTeacherUpdateRejectsUnknownEnumValues(t *testing.T) {
	svc, _, _ := newTeacherServiceFixture()

	_, err := svc.Update(context.Background(), adminClaims(), "teacher-1", dto.UpdateTeacherRequest{
		FirstName:     "A",
		LastName:      "B",
		MaritalStatus: "Complicated",
	})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestTeacherDocumentResolvesStoredFile(t *testing.T) {
	svc, _, _ := newTeacherServiceFixture()

	path, filename, err := svc.Document(context.Background(), adminClaims(), "teacher-1", DocumentKindMedical)
	require.NoError(t, err)
	require.Equal(t, "medical_1.pdf", filename)
	require.Equal(t, "/uploads/medical_1.pdf", path)

	_, _, err = svc.Document(context.Background(), adminClaims(), "teacher-1", "somethingElse")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, _, err = svc.Document(context.Background(), teacherClaims("teacher-2"), "teacher-1", DocumentKindMedical)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestTeacherDeleteRemovesDocuments(t *testing.T) {
	svc, repo, store := newTeacherServiceFixture()

	require.NoError(t, svc.Delete(context.Background(), "teacher-1"))
	require.Empty(t, repo.teachers)
	require.ElementsMatch(t, []string{"medical_1.pdf", "academic_1.pdf", "professional_1.pdf"}, store.removed)
}

func TestTeacherDeleteUnknownID(t *testing.T) {
	svc, _, _ := newTeacherServiceFixture()

	err := svc.Delete(context.Background(), "missing")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
