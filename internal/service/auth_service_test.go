package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/teacher-transfer-api/internal/models"
	appErrors "github.com/noah-isme/teacher-transfer-api/pkg/errors"
)

type authUserStub struct {
	users map[string]*models.User
}

func newAuthUserStub() *authUserStub {
	return &authUserStub{users: make(map[string]*models.User)}
}

func (s *authUserStub) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	for _, user := range s.users {
		if user.Username == username {
			copy := *user
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *authUserStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := s.users[id]; ok {
		copy := *user
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func newAuthFixture(t *testing.T) (*AuthService, *authUserStub, *teacherRepoStub) {
	t.Helper()
	users := newAuthUserStub()
	teachers := newTeacherRepoStub()

	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	require.NoError(t, err)
	profileID := "teacher-1"
	users.users["user-1"] = &models.User{
		ID:               "user-1",
		Username:         "chmw42",
		PasswordHash:     string(hash),
		Role:             models.RoleTeacher,
		TeacherProfileID: &profileID,
	}
	teachers.teachers["teacher-1"] = &models.Teacher{ID: "teacher-1", FirstName: "Chanda", LastName: "Mwila", CurrentSchoolID: "school-a"}

	svc := NewAuthService(users, teachers, nil, nil, AuthConfig{
		TokenSecret: "0123456789abcdef0123456789abcdef",
		TokenExpiry: time.Hour,
		Issuer:      "teacher-transfer-api",
	})
	return svc, users, teachers
}

func TestAuthLoginIssuesValidToken(t *testing.T) {
	svc, _, _ := newAuthFixture(t)

	res, err := svc.Login(context.Background(), models.LoginRequest{Username: "chmw42", Password: "correct-horse"})
	require.NoError(t, err)
	require.NotEmpty(t, res.Token)
	require.Equal(t, int64(3600), res.ExpiresIn)
	require.Equal(t, models.RoleTeacher, res.User.Role)
	require.NotNil(t, res.User.Teacher)

	claims, err := svc.ValidateToken(res.Token)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.UserID)
	require.Equal(t, "chmw42", claims.Username)
	require.Equal(t, models.RoleTeacher, claims.Role)
	require.NotNil(t, claims.TeacherProfileID)
	require.Equal(t, "teacher-1", *claims.TeacherProfileID)
}

func TestAuthLoginNamesMissingField(t *testing.T) {
	svc, _, _ := newAuthFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "chmw42"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	require.Contains(t, appErr.Message, "password")
}

func TestAuthLoginUnknownUsername(t *testing.T) {
	svc, _, _ := newAuthFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "nobody", Password: "whatever"})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAuthLoginWrongPassword(t *testing.T) {
	svc, _, _ := newAuthFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "chmw42", Password: "wrong"})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthValidateTokenRejectsWrongSecret(t *testing.T) {
	svc, _, _ := newAuthFixture(t)

	res, err := svc.Login(context.Background(), models.LoginRequest{Username: "chmw42", Password: "correct-horse"})
	require.NoError(t, err)

	other := NewAuthService(newAuthUserStub(), newTeacherRepoStub(), nil, nil, AuthConfig{
		TokenSecret: "another-secret-another-secret-32",
		TokenExpiry: time.Hour,
	})
	_, err = other.ValidateToken(res.Token)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAuthValidateTokenRejectsGarbage(t *testing.T) {
	svc, _, _ := newAuthFixture(t)

	_, err := svc.ValidateToken("not-a-token")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAuthMeLoadsTeacherProfile(t *testing.T) {
	svc, _, _ := newAuthFixture(t)

	info, err := svc.Me(context.Background(), "user-1")
	require.NoError(t, err)
	require.Equal(t, "chmw42", info.Username)
	require.NotNil(t, info.Teacher)
	require.Equal(t, "Chanda Mwila", info.Teacher.FullName())
}

func TestAuthMeUnknownUser(t *testing.T) {
	svc, _, _ := newAuthFixture(t)

	_, err := svc.Me(context.Background(), "user-404")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
