package service

import (
	"bytes"
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/teacher-transfer-api/internal/dto"
	"github.com/noah-isme/teacher-transfer-api/internal/models"
	"github.com/noah-isme/teacher-transfer-api/internal/repository"
	appErrors "github.com/noah-isme/teacher-transfer-api/pkg/errors"
	"github.com/noah-isme/teacher-transfer-api/pkg/mailer"
	"github.com/noah-isme/teacher-transfer-api/pkg/storage"
)

var nrcPattern = regexp.MustCompile(`^\d{6}/\d{2}/\d$`)

// DocumentKindMedical and friends name the qualification documents collected
// at registration. Each kind is a distinct multipart field.
const (
	DocumentKindMedical      = "medicalCertificate"
	DocumentKindAcademic     = "academicQualifications"
	DocumentKindProfessional = "professionalQualifications"
)

var requiredDocumentKinds = []string{DocumentKindMedical, DocumentKindAcademic, DocumentKindProfessional}

// usernameInsertRetries bounds how often a lost insert race re-rolls the
// username suffix before giving up.
const usernameInsertRetries = 3

// DocumentUpload is one uploaded qualification document.
type DocumentUpload struct {
	Kind     string
	Filename string
	Size     int64
	Content  io.Reader
}

type registrationTeacherRepository interface {
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByNRC(ctx context.Context, nrc string) (bool, error)
	ExistsByTsNo(ctx context.Context, tsNo string) (bool, error)
	CreateWithAccount(ctx context.Context, teacher *models.Teacher, user *models.User) error
}

type registrationUserRepository interface {
	UsernameExists(ctx context.Context, username string) (bool, error)
	Create(ctx context.Context, user *models.User) error
}

type registrationSchoolRepository interface {
	FindByID(ctx context.Context, id string) (*models.School, error)
}

type documentStore interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Delete(filename string) error
}

// RegistrationConfig bounds the upload surface.
type RegistrationConfig struct {
	MaxFileSizeBytes int64
}

// RegistrationService provisions teacher, headteacher and admin accounts.
type RegistrationService struct {
	teachers  registrationTeacherRepository
	users     registrationUserRepository
	schools   registrationSchoolRepository
	store     documentStore
	mail      mailer.Sender
	validator *validator.Validate
	logger    *zap.Logger
	config    RegistrationConfig
}

// NewRegistrationService constructs a RegistrationService instance.
func NewRegistrationService(
	teachers registrationTeacherRepository,
	users registrationUserRepository,
	schools registrationSchoolRepository,
	store documentStore,
	mail mailer.Sender,
	validate *validator.Validate,
	logger *zap.Logger,
	config RegistrationConfig,
) *RegistrationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	if config.MaxFileSizeBytes <= 0 {
		config.MaxFileSizeBytes = 10 << 20
	}
	return &RegistrationService{
		teachers:  teachers,
		users:     users,
		schools:   schools,
		store:     store,
		mail:      mail,
		validator: validate,
		logger:    logger,
		config:    config,
	}
}

// Register provisions an account for the given role. Teacher and headteacher
// registrations carry a profile payload plus three qualification documents;
// admin registrations carry neither. The generated password is returned once
// and never stored in plaintext.
func (s *RegistrationService) Register(ctx context.Context, form dto.RegisterForm, documents []DocumentUpload) (*dto.RegisterResult, error) {
	role := models.UserRole(strings.ToUpper(strings.TrimSpace(form.Role)))
	if !role.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "role must be one of ADMIN, TEACHER, HEADTEACHER")
	}

	switch role {
	case models.RoleAdmin:
		return s.registerAdmin(ctx)
	case models.RoleTeacher, models.RoleHeadteacher:
		return s.registerTeacher(ctx, role, form.TeacherData, documents)
	}
	return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported role")
}

func (s *RegistrationService) registerAdmin(ctx context.Context) (*dto.RegisterResult, error) {
	password, err := generatePassword()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate password")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	var user *models.User
	for attempt := 0; ; attempt++ {
		username, err := s.uniqueUsername(ctx, "admin")
		if err != nil {
			return nil, err
		}
		user = &models.User{Username: username, PasswordHash: string(hash), Role: models.RoleAdmin}
		err = s.users.Create(ctx, user)
		if err == nil {
			break
		}
		// The precheck can lose a race; roll a fresh suffix and try again.
		if constraint, ok := repository.UniqueConstraint(err); ok && constraint == "users_username_key" && attempt < usernameInsertRetries {
			continue
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create admin account")
	}

	s.logger.Info("admin account provisioned", zap.String("username", user.Username))

	return &dto.RegisterResult{
		UserID:   user.ID,
		Username: user.Username,
		Password: password,
		Role:     string(models.RoleAdmin),
	}, nil
}

func (s *RegistrationService) registerTeacher(ctx context.Context, role models.UserRole, rawData string, documents []DocumentUpload) (*dto.RegisterResult, error) {
	input, err := dto.ParseTeacherData(rawData)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, validationMessage(err, "invalid teacher data"))
	}
	if !nrcPattern.MatchString(input.NRC) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "nrc must match the format 000000/00/0")
	}
	if input.MaritalStatus != "" && !models.MaritalStatus(input.MaritalStatus).Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "maritalStatus must be one of Single, Married, Divorced, Widowed")
	}
	if !models.SchoolType(input.CurrentSchoolType).Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "currentSchoolType must be one of Community, Primary, Secondary")
	}
	if !models.Position(input.CurrentPosition).Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "currentPosition is not a recognised post")
	}

	if _, err := s.schools.FindByID(ctx, input.CurrentSchoolID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "school not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify school")
	}

	if err := s.checkDuplicates(ctx, input); err != nil {
		return nil, err
	}

	paths, err := s.storeDocuments(documents)
	if err != nil {
		return nil, err
	}
	cleanup := func() {
		for _, path := range paths {
			if err := s.store.Delete(path); err != nil {
				s.logger.Warn("failed to remove orphaned document", zap.Error(err), zap.String("path", path))
			}
		}
	}

	experience, err := json.Marshal(input.Experience)
	if err != nil {
		cleanup()
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode experience")
	}
	if input.Experience == nil {
		experience = []byte("[]")
	}

	teacher := &models.Teacher{
		FirstName:                  strings.TrimSpace(input.FirstName),
		LastName:                   strings.TrimSpace(input.LastName),
		Email:                      strings.ToLower(strings.TrimSpace(input.Email)),
		NRC:                        input.NRC,
		TsNo:                       strings.TrimSpace(input.TsNo),
		Address:                    input.Address,
		MedicalCertificate:         paths[DocumentKindMedical],
		AcademicQualifications:     paths[DocumentKindAcademic],
		ProfessionalQualifications: paths[DocumentKindProfessional],
		CurrentSchoolType:          input.CurrentSchoolType,
		CurrentPosition:            input.CurrentPosition,
		SubjectSpecialization:      input.SubjectSpecialization,
		Experience:                 experience,
		CurrentSchoolID:            input.CurrentSchoolID,
	}
	if input.MaritalStatus != "" {
		status := models.MaritalStatus(input.MaritalStatus)
		teacher.MaritalStatus = &status
	}

	password, err := generatePassword()
	if err != nil {
		cleanup()
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate password")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		cleanup()
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	stem := usernameStem(teacher.FirstName, teacher.LastName)
	var user *models.User
	for attempt := 0; ; attempt++ {
		username, err := s.uniqueUsername(ctx, stem)
		if err != nil {
			cleanup()
			return nil, err
		}
		user = &models.User{Username: username, PasswordHash: string(hash), Role: role}
		err = s.teachers.CreateWithAccount(ctx, teacher, user)
		if err == nil {
			break
		}
		// The precheck can lose a race; roll a fresh suffix and try again.
		if constraint, ok := repository.UniqueConstraint(err); ok && constraint == "users_username_key" && attempt < usernameInsertRetries {
			continue
		}
		cleanup()
		if conflict := conflictFromConstraint(err); conflict != nil {
			return nil, conflict
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to provision account")
	}

	s.dispatchWelcomeEmail(teacher, user.Username, password)
	s.logger.Info("teacher account provisioned",
		zap.String("username", user.Username),
		zap.String("role", string(role)),
		zap.String("teacherId", teacher.ID))

	return &dto.RegisterResult{
		UserID:           user.ID,
		Username:         user.Username,
		Password:         password,
		Role:             string(role),
		TeacherProfileID: &teacher.ID,
	}, nil
}

func (s *RegistrationService) checkDuplicates(ctx context.Context, input *dto.TeacherDataInput) error {
	exists, err := s.teachers.ExistsByEmail(ctx, input.Email)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "a teacher with this email already exists")
	}

	exists, err = s.teachers.ExistsByNRC(ctx, input.NRC)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check nrc")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "a teacher with this NRC already exists")
	}

	exists, err = s.teachers.ExistsByTsNo(ctx, input.TsNo)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check ts number")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "a teacher with this TS number already exists")
	}
	return nil
}

// storeDocuments validates and persists the qualification documents. Each
// file is sniffed rather than trusted: the declared extension carries no
// weight, only the leading bytes do.
func (s *RegistrationService) storeDocuments(documents []DocumentUpload) (map[string]string, error) {
	byKind := make(map[string]DocumentUpload, len(documents))
	for _, doc := range documents {
		byKind[doc.Kind] = doc
	}

	paths := make(map[string]string, len(requiredDocumentKinds))
	saved := make([]string, 0, len(requiredDocumentKinds))
	fail := func(err error) (map[string]string, error) {
		for _, path := range saved {
			if removeErr := s.store.Delete(path); removeErr != nil {
				s.logger.Warn("failed to remove orphaned document", zap.Error(removeErr), zap.String("path", path))
			}
		}
		return nil, err
	}

	for _, kind := range requiredDocumentKinds {
		doc, ok := byKind[kind]
		if !ok {
			return fail(appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s document is required", kind)))
		}
		if doc.Size > s.config.MaxFileSizeBytes {
			return fail(appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s exceeds the maximum file size", kind)))
		}

		head := make([]byte, 512)
		n, err := io.ReadFull(doc.Content, head)
		if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
			return fail(appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload"))
		}
		head = head[:n]
		if contentType := http.DetectContentType(head); contentType != "application/pdf" {
			return fail(appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s must be a PDF document", kind)))
		}

		filename := storage.GenerateFilename(kind, doc.Filename)
		reader := io.MultiReader(bytes.NewReader(head), doc.Content)
		path, err := s.store.SaveStream(filename, reader)
		if err != nil {
			return fail(appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store document"))
		}
		paths[kind] = path
		saved = append(saved, path)
	}
	return paths, nil
}

// uniqueUsername appends a two-digit suffix to the stem and retries on
// collision. The users_username_key constraint remains the final arbiter.
func (s *RegistrationService) uniqueUsername(ctx context.Context, stem string) (string, error) {
	for attempt := 0; attempt < 20; attempt++ {
		suffix, err := randomDigits(2)
		if err != nil {
			return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate username")
		}
		candidate := stem + suffix
		taken, err := s.users.UsernameExists(ctx, candidate)
		if err != nil {
			return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check username")
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", appErrors.Clone(appErrors.ErrInternal, "could not allocate a unique username")
}

func (s *RegistrationService) dispatchWelcomeEmail(teacher *models.Teacher, username, password string) {
	if s.mail == nil {
		return
	}
	message := fmt.Sprintf(
		"Welcome to the School System, %s. Your account has been created.<br><br>Username: <strong>%s</strong><br>Temporary password: <strong>%s</strong><br><br>Please log in and keep your credentials safe.",
		teacher.FullName(), username, password,
	)
	go func() {
		if err := s.mail.Deliver(teacher.Email, "Your School System account", message, "School System"); err != nil {
			s.logger.Warn("failed to send welcome email", zap.Error(err), zap.String("email", teacher.Email))
		}
	}()
}

func conflictFromConstraint(err error) error {
	constraint, ok := repository.UniqueConstraint(err)
	if !ok {
		return nil
	}
	switch constraint {
	case "teachers_email_key":
		return appErrors.Clone(appErrors.ErrConflict, "a teacher with this email already exists")
	case "teachers_nrc_key":
		return appErrors.Clone(appErrors.ErrConflict, "a teacher with this NRC already exists")
	case "teachers_ts_no_key":
		return appErrors.Clone(appErrors.ErrConflict, "a teacher with this TS number already exists")
	case "users_username_key":
		return appErrors.Clone(appErrors.ErrConflict, "username already taken")
	}
	return appErrors.Clone(appErrors.ErrConflict, "duplicate record")
}

// usernameStem takes the first two letters of each name part, lowercased.
// Names too short or without ASCII letters fall back to fixed fillers so the
// stem is always four characters.
func usernameStem(firstName, lastName string) string {
	first := letterPrefix(firstName, 2)
	last := letterPrefix(lastName, 2)
	if first == "" {
		first = "xx"
	}
	if last == "" {
		last = "yy"
	}
	for len(first) < 2 {
		first += "x"
	}
	for len(last) < 2 {
		last += "y"
	}
	return first + last
}

func letterPrefix(raw string, n int) string {
	var b strings.Builder
	for _, r := range strings.ToLower(raw) {
		if r >= 'a' && r <= 'z' {
			b.WriteRune(r)
			if b.Len() == n {
				break
			}
		}
	}
	return b.String()
}

func randomDigits(n int) (string, error) {
	var b strings.Builder
	for i := 0; i < n; i++ {
		digit, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "%d", digit.Int64())
	}
	return b.String(), nil
}

const passwordAlphabet = "abcdefghijkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func generatePassword() (string, error) {
	const length = 10
	var b strings.Builder
	for i := 0; i < length; i++ {
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(passwordAlphabet))))
		if err != nil {
			return "", err
		}
		b.WriteByte(passwordAlphabet[idx.Int64()])
	}
	return b.String(), nil
}
