package dto

import (
	"bytes"
	"encoding/json"

	"github.com/noah-isme/teacher-transfer-api/internal/models"
	appErrors "github.com/noah-isme/teacher-transfer-api/pkg/errors"
)

// RegisterForm is the multipart surface of the registration endpoint. The
// teacher payload travels as one JSON part next to the document files.
type RegisterForm struct {
	Role        string `form:"role"`
	TeacherData string `form:"teacherData"`
}

// TeacherDataInput is the typed registration payload for teacher and
// headteacher accounts.
type TeacherDataInput struct {
	FirstName             string                   `json:"firstName" validate:"required"`
	LastName              string                   `json:"lastName" validate:"required"`
	Email                 string                   `json:"email" validate:"required,email"`
	NRC                   string                   `json:"nrc" validate:"required"`
	TsNo                  string                   `json:"tsNo" validate:"required"`
	Address               string                   `json:"address"`
	MaritalStatus         string                   `json:"maritalStatus"`
	CurrentSchoolType     string                   `json:"currentSchoolType" validate:"required"`
	CurrentPosition       string                   `json:"currentPosition" validate:"required"`
	SubjectSpecialization string                   `json:"subjectSpecialization"`
	Experience            []models.ExperienceEntry `json:"experience"`
	CurrentSchoolID       string                   `json:"currentSchoolId" validate:"required"`
}

// ParseTeacherData decodes the JSON teacher payload, failing closed: unknown
// fields and trailing garbage are rejected rather than guessed at.
func ParseTeacherData(raw string) (*TeacherDataInput, error) {
	if raw == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "teacherData is required")
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.DisallowUnknownFields()
	var input TeacherDataInput
	if err := dec.Decode(&input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "teacherData must be a JSON object")
	}
	if dec.More() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "teacherData contains trailing data")
	}
	return &input, nil
}

// RegisterResult is returned once per registration; the plaintext password is
// never retrievable again.
type RegisterResult struct {
	UserID           string  `json:"userId"`
	Username         string  `json:"username"`
	Password         string  `json:"password"`
	Role             string  `json:"role"`
	TeacherProfileID *string `json:"teacherProfileId,omitempty"`
}
