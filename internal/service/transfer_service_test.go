package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/teacher-transfer-api/internal/dto"
	"github.com/noah-isme/teacher-transfer-api/internal/models"
	"github.com/noah-isme/teacher-transfer-api/internal/repository"
	appErrors "github.com/noah-isme/teacher-transfer-api/pkg/errors"
)

type transferRepoStub struct {
	requests   map[string]*models.TransferRequest
	teachers   *teacherRepoStub
	filter     models.TransferFilter
	approveErr error
}

func newTransferRepoStub(teachers *teacherRepoStub) *transferRepoStub {
	return &transferRepoStub{requests: make(map[string]*models.TransferRequest), teachers: teachers}
}

func (s *transferRepoStub) Create(ctx context.Context, request *models.TransferRequest) error {
	for _, existing := range s.requests {
		if existing.TeacherID == request.TeacherID && existing.Status == models.TransferStatusPending {
			return errors.New("duplicate pending request")
		}
	}
	if request.ID == "" {
		request.ID = "req-" + request.TeacherID
	}
	copy := *request
	s.requests[request.ID] = &copy
	return nil
}

func (s *transferRepoStub) GetByID(ctx context.Context, id string) (*models.TransferRequest, error) {
	if request, ok := s.requests[id]; ok {
		copy := *request
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (s *transferRepoStub) GetDetailByID(ctx context.Context, id string) (*models.TransferRequestDetail, error) {
	request, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.TransferRequestDetail{TransferRequest: *request, TeacherEmail: "teacher@example.com"}, nil
}

func (s *transferRepoStub) List(ctx context.Context, filter models.TransferFilter) ([]models.TransferRequestDetail, error) {
	s.filter = filter
	var result []models.TransferRequestDetail
	for _, request := range s.requests {
		if filter.TeacherID != "" && request.TeacherID != filter.TeacherID {
			continue
		}
		if filter.FromSchoolID != "" && request.FromSchoolID != filter.FromSchoolID {
			continue
		}
		result = append(result, models.TransferRequestDetail{TransferRequest: *request})
	}
	return result, nil
}

func (s *transferRepoStub) HasPending(ctx context.Context, teacherID string) (bool, error) {
	for _, request := range s.requests {
		if request.TeacherID == teacherID && request.Status == models.TransferStatusPending {
			return true, nil
		}
	}
	return false, nil
}

func (s *transferRepoStub) UpdateStatus(ctx context.Context, params repository.UpdateTransferStatusParams) error {
	request, ok := s.requests[params.ID]
	if !ok {
		return sql.ErrNoRows
	}
	if !stubStatusExpected(request.Status, params.Expected) {
		return sql.ErrNoRows
	}
	request.Status = params.Status
	request.StatusReason = params.Reason
	return nil
}

func (s *transferRepoStub) Approve(ctx context.Context, params repository.ApproveTransferParams) error {
	if s.approveErr != nil {
		return s.approveErr
	}
	request, ok := s.requests[params.ID]
	if !ok {
		return sql.ErrNoRows
	}
	if !stubStatusExpected(request.Status, params.Expected) {
		return sql.ErrNoRows
	}
	if teacher, ok := s.teachers.teachers[params.TeacherID]; ok {
		teacher.CurrentSchoolID = params.ToSchool
	}
	request.Status = models.TransferStatusApproved
	request.StatusReason = params.Reason
	return nil
}

func stubStatusExpected(status models.TransferStatus, expected []models.TransferStatus) bool {
	for _, candidate := range expected {
		if status == candidate {
			return true
		}
	}
	return false
}

type teacherRepoStub struct {
	teachers map[string]*models.Teacher
}

func newTeacherRepoStub() *teacherRepoStub {
	return &teacherRepoStub{teachers: make(map[string]*models.Teacher)}
}

func (s *teacherRepoStub) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	if teacher, ok := s.teachers[id]; ok {
		copy := *teacher
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

type schoolRepoStub struct {
	schools map[string]*models.School
}

func newSchoolRepoStub() *schoolRepoStub {
	return &schoolRepoStub{schools: make(map[string]*models.School)}
}

func (s *schoolRepoStub) FindByID(ctx context.Context, id string) (*models.School, error) {
	if school, ok := s.schools[id]; ok {
		copy := *school
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func newTransferFixture() (*TransferService, *transferRepoStub, *teacherRepoStub) {
	teachers := newTeacherRepoStub()
	teachers.teachers["teacher-1"] = &models.Teacher{ID: "teacher-1", Email: "t1@example.com", CurrentSchoolID: "school-a"}
	teachers.teachers["teacher-2"] = &models.Teacher{ID: "teacher-2", Email: "t2@example.com", CurrentSchoolID: "school-b"}
	teachers.teachers["head-1"] = &models.Teacher{ID: "head-1", Email: "h1@example.com", CurrentSchoolID: "school-a"}

	schools := newSchoolRepoStub()
	schools.schools["school-a"] = &models.School{ID: "school-a", Name: "Alpha"}
	schools.schools["school-b"] = &models.School{ID: "school-b", Name: "Beta"}

	transfers := newTransferRepoStub(teachers)
	svc := NewTransferService(transfers, teachers, schools, nil, nil, nil, nil, nil)
	return svc, transfers, teachers
}

func teacherClaims(profileID string) *models.JWTClaims {
	return &models.JWTClaims{UserID: "user-" + profileID, Role: models.RoleTeacher, TeacherProfileID: &profileID}
}

func headteacherClaims(profileID string) *models.JWTClaims {
	return &models.JWTClaims{UserID: "user-" + profileID, Role: models.RoleHeadteacher, TeacherProfileID: &profileID}
}

func adminClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}
}

func TestTransferRequestSnapshotsOriginSchool(t *testing.T) {
	svc, _, _ := newTransferFixture()

	request, err := svc.Request(context.Background(), teacherClaims("teacher-1"), dto.CreateTransferRequest{ToSchoolID: "school-b"})
	require.NoError(t, err)
	require.Equal(t, "school-a", request.FromSchoolID)
	require.Equal(t, models.TransferStatusPending, request.Status)
}

func TestTransferRequestUnknownDestinationSchool(t *testing.T) {
	svc, _, _ := newTransferFixture()

	_, err := svc.Request(context.Background(), teacherClaims("teacher-1"), dto.CreateTransferRequest{ToSchoolID: "school-z"})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestTransferListRequiresLinkedProfile(t *testing.T) {
	svc, _, _ := newTransferFixture()

	for _, role := range []models.UserRole{models.RoleTeacher, models.RoleHeadteacher} {
		claims := &models.JWTClaims{UserID: "user-orphan", Role: role}
		_, err := svc.List(context.Background(), claims)
		require.Error(t, err)
		require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	}
}

func TestTransferRequestRejectsSameSchool(t *testing.T) {
	svc, _, _ := newTransferFixture()

	_, err := svc.Request(context.Background(), teacherClaims("teacher-1"), dto.CreateTransferRequest{ToSchoolID: "school-a"})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestTransferRequestSinglePending(t *testing.T) {
	svc, _, _ := newTransferFixture()
	claims := teacherClaims("teacher-1")

	_, err := svc.Request(context.Background(), claims, dto.CreateTransferRequest{ToSchoolID: "school-b"})
	require.NoError(t, err)

	_, err = svc.Request(context.Background(), claims, dto.CreateTransferRequest{ToSchoolID: "school-b"})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestTransferRequestTeacherCannotFileForOthers(t *testing.T) {
	svc, _, _ := newTransferFixture()

	_, err := svc.Request(context.Background(), teacherClaims("teacher-1"), dto.CreateTransferRequest{TeacherID: "teacher-2", ToSchoolID: "school-a"})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestTransferListScopesByRole(t *testing.T) {
	svc, transfers, _ := newTransferFixture()

	_, err := svc.Request(context.Background(), teacherClaims("teacher-1"), dto.CreateTransferRequest{ToSchoolID: "school-b"})
	require.NoError(t, err)
	_, err = svc.Request(context.Background(), teacherClaims("teacher-2"), dto.CreateTransferRequest{ToSchoolID: "school-a"})
	require.NoError(t, err)

	own, err := svc.List(context.Background(), teacherClaims("teacher-1"))
	require.NoError(t, err)
	require.Len(t, own, 1)
	require.Equal(t, "teacher-1", own[0].TeacherID)

	fromSchoolA, err := svc.List(context.Background(), headteacherClaims("head-1"))
	require.NoError(t, err)
	require.Len(t, fromSchoolA, 1)
	require.Equal(t, "school-a", fromSchoolA[0].FromSchoolID)
	require.Equal(t, "school-a", transfers.filter.FromSchoolID)

	all, err := svc.List(context.Background(), adminClaims())
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestTransferHeadteacherEndorsesOwnSchoolOnly(t *testing.T) {
	svc, _, _ := newTransferFixture()

	request, err := svc.Request(context.Background(), teacherClaims("teacher-2"), dto.CreateTransferRequest{ToSchoolID: "school-a"})
	require.NoError(t, err)

	// head-1 works at school-a; this request originates from school-b.
	_, err = svc.UpdateStatus(context.Background(), headteacherClaims("head-1"), request.ID, dto.UpdateTransferStatusRequest{Status: "headteacher_approved"})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestTransferHeadteacherCannotFinalize(t *testing.T) {
	svc, _, _ := newTransferFixture()

	request, err := svc.Request(context.Background(), teacherClaims("teacher-1"), dto.CreateTransferRequest{ToSchoolID: "school-b"})
	require.NoError(t, err)

	_, err = svc.UpdateStatus(context.Background(), headteacherClaims("head-1"), request.ID, dto.UpdateTransferStatusRequest{Status: "approved"})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestTransferApprovalReassignsTeacher(t *testing.T) {
	svc, _, teachers := newTransferFixture()

	request, err := svc.Request(context.Background(), teacherClaims("teacher-1"), dto.CreateTransferRequest{ToSchoolID: "school-b"})
	require.NoError(t, err)

	endorsed, err := svc.UpdateStatus(context.Background(), headteacherClaims("head-1"), request.ID, dto.UpdateTransferStatusRequest{Status: "headteacher_approved"})
	require.NoError(t, err)
	require.Equal(t, models.TransferStatusHeadteacherApproved, endorsed.Status)

	approved, err := svc.UpdateStatus(context.Background(), adminClaims(), request.ID, dto.UpdateTransferStatusRequest{Status: "approved", Reason: "post available"})
	require.NoError(t, err)
	require.Equal(t, models.TransferStatusApproved, approved.Status)
	require.Equal(t, "school-b", teachers.teachers["teacher-1"].CurrentSchoolID)
}

func TestTransferApprovalFailureLeavesStateUntouched(t *testing.T) {
	svc, transfers, teachers := newTransferFixture()

	request, err := svc.Request(context.Background(), teacherClaims("teacher-1"), dto.CreateTransferRequest{ToSchoolID: "school-b"})
	require.NoError(t, err)

	transfers.approveErr = errors.New("tx aborted")
	_, err = svc.UpdateStatus(context.Background(), adminClaims(), request.ID, dto.UpdateTransferStatusRequest{Status: "approved"})
	require.Error(t, err)

	current, err := transfers.GetByID(context.Background(), request.ID)
	require.NoError(t, err)
	require.Equal(t, models.TransferStatusPending, current.Status)
	require.Equal(t, "school-a", teachers.teachers["teacher-1"].CurrentSchoolID)
}

func TestTransferClosedRequestsAdmitNoTransitions(t *testing.T) {
	svc, _, _ := newTransferFixture()

	request, err := svc.Request(context.Background(), teacherClaims("teacher-1"), dto.CreateTransferRequest{ToSchoolID: "school-b"})
	require.NoError(t, err)

	_, err = svc.UpdateStatus(context.Background(), adminClaims(), request.ID, dto.UpdateTransferStatusRequest{Status: "rejected", Reason: "no vacancy"})
	require.NoError(t, err)

	for _, status := range []string{"approved", "rejected", "headteacher_approved"} {
		_, err = svc.UpdateStatus(context.Background(), adminClaims(), request.ID, dto.UpdateTransferStatusRequest{Status: status})
		require.Error(t, err)
		require.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	}
}

func TestTransferHeadteacherRejectionIsTerminal(t *testing.T) {
	svc, _, _ := newTransferFixture()

	request, err := svc.Request(context.Background(), teacherClaims("teacher-1"), dto.CreateTransferRequest{ToSchoolID: "school-b"})
	require.NoError(t, err)

	declined, err := svc.UpdateStatus(context.Background(), headteacherClaims("head-1"), request.ID, dto.UpdateTransferStatusRequest{Status: "headteacher_rejected", Reason: "staffing"})
	require.NoError(t, err)
	require.True(t, declined.Status.Terminal())

	_, err = svc.UpdateStatus(context.Background(), adminClaims(), request.ID, dto.UpdateTransferStatusRequest{Status: "approved"})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestTransferAdminResetReopensEndorsedRequest(t *testing.T) {
	svc, _, _ := newTransferFixture()

	request, err := svc.Request(context.Background(), teacherClaims("teacher-1"), dto.CreateTransferRequest{ToSchoolID: "school-b"})
	require.NoError(t, err)

	_, err = svc.UpdateStatus(context.Background(), headteacherClaims("head-1"), request.ID, dto.UpdateTransferStatusRequest{Status: "headteacher_approved"})
	require.NoError(t, err)

	reopened, err := svc.UpdateStatus(context.Background(), adminClaims(), request.ID, dto.UpdateTransferStatusRequest{Status: "pending", Reason: "endorsement needs review"})
	require.NoError(t, err)
	require.Equal(t, models.TransferStatusPending, reopened.Status)

	// A request that is already pending has no endorsement to unwind.
	_, err = svc.UpdateStatus(context.Background(), adminClaims(), request.ID, dto.UpdateTransferStatusRequest{Status: "pending"})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	_, err = svc.UpdateStatus(context.Background(), headteacherClaims("head-1"), request.ID, dto.UpdateTransferStatusRequest{Status: "pending"})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestTransferRoundTripAfterApproval(t *testing.T) {
	svc, _, teachers := newTransferFixture()

	first, err := svc.Request(context.Background(), teacherClaims("teacher-1"), dto.CreateTransferRequest{ToSchoolID: "school-b"})
	require.NoError(t, err)
	_, err = svc.UpdateStatus(context.Background(), adminClaims(), first.ID, dto.UpdateTransferStatusRequest{Status: "approved"})
	require.NoError(t, err)
	require.Equal(t, "school-b", teachers.teachers["teacher-1"].CurrentSchoolID)

	back, err := svc.Request(context.Background(), teacherClaims("teacher-1"), dto.CreateTransferRequest{ToSchoolID: "school-a"})
	require.NoError(t, err)
	require.Equal(t, "school-b", back.FromSchoolID)

	_, err = svc.UpdateStatus(context.Background(), adminClaims(), back.ID, dto.UpdateTransferStatusRequest{Status: "approved"})
	require.NoError(t, err)
	require.Equal(t, "school-a", teachers.teachers["teacher-1"].CurrentSchoolID)
}

func TestTransferLetterRequiresDecision(t *testing.T) {
	svc, _, _ := newTransferFixture()

	request, err := svc.Request(context.Background(), teacherClaims("teacher-1"), dto.CreateTransferRequest{ToSchoolID: "school-b"})
	require.NoError(t, err)

	_, err = svc.Letter(context.Background(), adminClaims(), request.ID)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	_, err = svc.UpdateStatus(context.Background(), adminClaims(), request.ID, dto.UpdateTransferStatusRequest{Status: "approved"})
	require.NoError(t, err)

	letter, err := svc.Letter(context.Background(), adminClaims(), request.ID)
	require.NoError(t, err)
	require.NotEmpty(t, letter)
}
