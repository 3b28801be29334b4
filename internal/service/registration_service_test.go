package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/teacher-transfer-api/internal/dto"
	"github.com/noah-isme/teacher-transfer-api/internal/models"
	appErrors "github.com/noah-isme/teacher-transfer-api/pkg/errors"
)

type registrationTeacherStub struct {
	emails        map[string]bool
	nrcs          map[string]bool
	tsNos         map[string]bool
	created       *models.Teacher
	createdBy     *models.User
	createErr     error
	usernameRaces int
	createCalls   int
}

func newRegistrationTeacherStub() *registrationTeacherStub {
	return &registrationTeacherStub{
		emails: make(map[string]bool),
		nrcs:   make(map[string]bool),
		tsNos:  make(map[string]bool),
	}
}

func (s *registrationTeacherStub) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return s.emails[strings.ToLower(email)], nil
}

func (s *registrationTeacherStub) ExistsByNRC(ctx context.Context, nrc string) (bool, error) {
	return s.nrcs[nrc], nil
}

func (s *registrationTeacherStub) ExistsByTsNo(ctx context.Context, tsNo string) (bool, error) {
	return s.tsNos[tsNo], nil
}

func (s *registrationTeacherStub) CreateWithAccount(ctx context.Context, teacher *models.Teacher, user *models.User) error {
	s.createCalls++
	if s.createErr != nil {
		return s.createErr
	}
	if s.usernameRaces > 0 {
		s.usernameRaces--
		return &pq.Error{Code: "23505", Constraint: "users_username_key"}
	}
	teacher.ID = "teacher-new"
	user.ID = "user-new"
	user.TeacherProfileID = &teacher.ID
	s.created = teacher
	s.createdBy = user
	return nil
}

type registrationUserStub struct {
	taken   map[string]bool
	created *models.User
}

func newRegistrationUserStub() *registrationUserStub {
	return &registrationUserStub{taken: make(map[string]bool)}
}

func (s *registrationUserStub) UsernameExists(ctx context.Context, username string) (bool, error) {
	return s.taken[username], nil
}

func (s *registrationUserStub) Create(ctx context.Context, user *models.User) error {
	user.ID = "user-admin"
	s.created = user
	return nil
}

type documentStoreStub struct {
	saved   map[string][]byte
	deleted []string
}

func newDocumentStoreStub() *documentStoreStub {
	return &documentStoreStub{saved: make(map[string][]byte)}
}

func (s *documentStoreStub) SaveStream(filename string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	s.saved[filename] = data
	return filename, nil
}

func (s *documentStoreStub) Delete(filename string) error {
	s.deleted = append(s.deleted, filename)
	delete(s.saved, filename)
	return nil
}

func newRegistrationFixture() (*RegistrationService, *registrationTeacherStub, *registrationUserStub, *documentStoreStub) {
	teachers := newRegistrationTeacherStub()
	users := newRegistrationUserStub()
	schools := newSchoolRepoStub()
	schools.schools["school-a"] = &models.School{ID: "school-a", Name: "Alpha"}
	store := newDocumentStoreStub()
	svc := NewRegistrationService(teachers, users, schools, store, nil, nil, nil, RegistrationConfig{MaxFileSizeBytes: 1 << 20})
	return svc, teachers, users, store
}

func pdfUploads() []DocumentUpload {
	kinds := []string{DocumentKindMedical, DocumentKindAcademic, DocumentKindProfessional}
	uploads := make([]DocumentUpload, 0, len(kinds))
	for _, kind := range kinds {
		content := []byte("%PDF-1.4\n% " + kind + " content")
		uploads = append(uploads, DocumentUpload{
			Kind:     kind,
			Filename: kind + ".pdf",
			Size:     int64(len(content)),
			Content:  bytes.NewReader(content),
		})
	}
	return uploads
}

func teacherPayload() string {
	return `{
		"firstName": "Chanda",
		"lastName": "Mwila",
		"email": "chanda.mwila@example.com",
		"nrc": "123456/78/9",
		"tsNo": "TS-1001",
		"currentSchoolType": "Secondary",
		"currentPosition": "Class Teacher",
		"currentSchoolId": "school-a"
	}`
}

func TestRegisterTeacherGeneratesCredentials(t *testing.T) {
	svc, teachers, _, store := newRegistrationFixture()

	result, err := svc.Register(context.Background(), dto.RegisterForm{Role: "TEACHER", TeacherData: teacherPayload()}, pdfUploads())
	require.NoError(t, err)

	require.Equal(t, "TEACHER", result.Role)
	require.True(t, strings.HasPrefix(result.Username, "chmw"), "username %q should start with name stem", result.Username)
	require.GreaterOrEqual(t, len(result.Username), 4)
	require.NotEmpty(t, result.Password)

	require.NotNil(t, teachers.created)
	require.Equal(t, "chanda.mwila@example.com", teachers.created.Email)
	require.NotEmpty(t, teachers.created.MedicalCertificate)
	require.Len(t, store.saved, 3)

	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(teachers.createdBy.PasswordHash), []byte(result.Password)))
}

func TestRegisterAdminUsesFixedStem(t *testing.T) {
	svc, _, users, _ := newRegistrationFixture()

	result, err := svc.Register(context.Background(), dto.RegisterForm{Role: "ADMIN"}, nil)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(result.Username, "admin"))
	require.Equal(t, models.RoleAdmin, users.created.Role)
	require.Nil(t, result.TeacherProfileID)
}

func TestRegisterRejectsUnknownRole(t *testing.T) {
	svc, _, _, _ := newRegistrationFixture()

	_, err := svc.Register(context.Background(), dto.RegisterForm{Role: "SUPERADMIN"}, nil)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestRegisterRejectsUnknownPayloadFields(t *testing.T) {
	svc, _, _, _ := newRegistrationFixture()

	payload := `{"firstName":"A","lastName":"B","email":"a@b.com","nrc":"123456/78/9","tsNo":"TS-1","currentSchoolType":"Primary","currentPosition":"HOD","currentSchoolId":"school-a","isAdmin":true}`
	_, err := svc.Register(context.Background(), dto.RegisterForm{Role: "TEACHER", TeacherData: payload}, pdfUploads())
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestRegisterRejectsBadNRC(t *testing.T) {
	svc, _, _, _ := newRegistrationFixture()

	payload := strings.Replace(teacherPayload(), "123456/78/9", "12345678", 1)
	_, err := svc.Register(context.Background(), dto.RegisterForm{Role: "TEACHER", TeacherData: payload}, pdfUploads())
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestRegisterDuplicateFieldsConflict(t *testing.T) {
	cases := []struct {
		name string
		prep func(*registrationTeacherStub)
		want string
	}{
		{"email", func(s *registrationTeacherStub) { s.emails["chanda.mwila@example.com"] = true }, "email"},
		{"nrc", func(s *registrationTeacherStub) { s.nrcs["123456/78/9"] = true }, "NRC"},
		{"tsNo", func(s *registrationTeacherStub) { s.tsNos["TS-1001"] = true }, "TS number"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, teachers, _, _ := newRegistrationFixture()
			tc.prep(teachers)

			_, err := svc.Register(context.Background(), dto.RegisterForm{Role: "TEACHER", TeacherData: teacherPayload()}, pdfUploads())
			require.Error(t, err)
			appErr := appErrors.FromError(err)
			require.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
			require.Contains(t, appErr.Message, tc.want)
		})
	}
}

func TestRegisterRejectsNonPDFDocument(t *testing.T) {
	svc, _, _, store := newRegistrationFixture()

	uploads := pdfUploads()
	fake := []byte("<html><body>not a pdf</body></html>")
	uploads[1] = DocumentUpload{
		Kind:     DocumentKindAcademic,
		Filename: "cert.pdf",
		Size:     int64(len(fake)),
		Content:  bytes.NewReader(fake),
	}

	_, err := svc.Register(context.Background(), dto.RegisterForm{Role: "TEACHER", TeacherData: teacherPayload()}, uploads)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	require.Empty(t, store.saved, "earlier documents must be cleaned up")
}

func TestRegisterRequiresAllDocuments(t *testing.T) {
	svc, _, _, _ := newRegistrationFixture()

	uploads := pdfUploads()[:2]
	_, err := svc.Register(context.Background(), dto.RegisterForm{Role: "TEACHER", TeacherData: teacherPayload()}, uploads)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestRegisterRejectsOversizedDocument(t *testing.T) {
	svc, _, _, _ := newRegistrationFixture()

	uploads := pdfUploads()
	uploads[0].Size = 2 << 20
	_, err := svc.Register(context.Background(), dto.RegisterForm{Role: "TEACHER", TeacherData: teacherPayload()}, uploads)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestRegisterCleansUpDocumentsOnProvisioningFailure(t *testing.T) {
	svc, teachers, _, store := newRegistrationFixture()
	teachers.createErr = fmt.Errorf("insert failed")

	_, err := svc.Register(context.Background(), dto.RegisterForm{Role: "TEACHER", TeacherData: teacherPayload()}, pdfUploads())
	require.Error(t, err)
	require.Empty(t, store.saved)
	require.Len(t, store.deleted, 3)
}

func TestRegisterUsernameCollisionRetries(t *testing.T) {
	svc, _, users, _ := newRegistrationFixture()
	for i := 0; i < 100; i++ {
		users.taken[fmt.Sprintf("chmw%02d", i)] = false
	}
	users.taken["chmw00"] = true

	result, err := svc.Register(context.Background(), dto.RegisterForm{Role: "TEACHER", TeacherData: teacherPayload()}, pdfUploads())
	require.NoError(t, err)
	require.NotEqual(t, "chmw00", result.Username)
}

func TestRegisterNamesFirstMissingField(t *testing.T) {
	svc, _, _, _ := newRegistrationFixture()

	payload := strings.Replace(teacherPayload(), `"lastName": "Mwila",`, "", 1)
	_, err := svc.Register(context.Background(), dto.RegisterForm{Role: "TEACHER", TeacherData: payload}, pdfUploads())
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	require.Contains(t, appErr.Message, "lastName")
}

func TestRegisterRerollsUsernameOnLostInsertRace(t *testing.T) {
	svc, teachers, _, _ := newRegistrationFixture()
	teachers.usernameRaces = 1

	result, err := svc.Register(context.Background(), dto.RegisterForm{Role: "TEACHER", TeacherData: teacherPayload()}, pdfUploads())
	require.NoError(t, err)
	require.Equal(t, 2, teachers.createCalls)
	require.True(t, strings.HasPrefix(result.Username, "chmw"))
	require.NotNil(t, teachers.created)
}

func TestRegisterExhaustsInsertRaceRetries(t *testing.T) {
	svc, teachers, _, store := newRegistrationFixture()
	teachers.usernameRaces = usernameInsertRetries + 1

	_, err := svc.Register(context.Background(), dto.RegisterForm{Role: "TEACHER", TeacherData: teacherPayload()}, pdfUploads())
	require.Error(t, err)
	require.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	require.Empty(t, store.saved)
}

func TestRegisterRejectsProfessionalQualificationsField(t *testing.T) {
	svc, _, _, _ := newRegistrationFixture()

	payload := strings.Replace(teacherPayload(), `"tsNo": "TS-1001",`, `"tsNo": "TS-1001", "professionalQualifications": "BEd",`, 1)
	_, err := svc.Register(context.Background(), dto.RegisterForm{Role: "TEACHER", TeacherData: payload}, pdfUploads())
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestUsernameStemFallbacks(t *testing.T) {
	require.Equal(t, "chmw", usernameStem("Chanda", "Mwila"))
	require.Equal(t, "xxyy", usernameStem("", ""))
	require.Equal(t, "axyy", usernameStem("A", "42"))
}
