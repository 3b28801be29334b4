package models

import (
	"encoding/json"
	"time"
)

// MaritalStatus enumerates the accepted marital status values.
type MaritalStatus string

const (
	MaritalSingle   MaritalStatus = "Single"
	MaritalMarried  MaritalStatus = "Married"
	MaritalDivorced MaritalStatus = "Divorced"
	MaritalWidowed  MaritalStatus = "Widowed"
)

// Valid reports whether the value belongs to the enum.
func (m MaritalStatus) Valid() bool {
	switch m {
	case MaritalSingle, MaritalMarried, MaritalDivorced, MaritalWidowed:
		return true
	}
	return false
}

// SchoolType enumerates the school categories a teacher can serve at.
type SchoolType string

const (
	SchoolTypeCommunity SchoolType = "Community"
	SchoolTypePrimary   SchoolType = "Primary"
	SchoolTypeSecondary SchoolType = "Secondary"
)

// Valid reports whether the value belongs to the enum.
func (s SchoolType) Valid() bool {
	switch s {
	case SchoolTypeCommunity, SchoolTypePrimary, SchoolTypeSecondary:
		return true
	}
	return false
}

// Position enumerates the posts a teacher can hold.
type Position string

const (
	PositionClassTeacher   Position = "Class Teacher"
	PositionSubjectTeacher Position = "Subject Teacher"
	PositionSeniorTeacher  Position = "Senior Teacher"
	PositionHOD            Position = "HOD"
	PositionDeputyHead     Position = "Deputy Head"
	PositionHeadTeacher    Position = "Head Teacher"
)

// Valid reports whether the value belongs to the enum.
func (p Position) Valid() bool {
	switch p {
	case PositionClassTeacher, PositionSubjectTeacher, PositionSeniorTeacher,
		PositionHOD, PositionDeputyHead, PositionHeadTeacher:
		return true
	}
	return false
}

// ExperienceEntry is one prior posting in a teacher's service history.
type ExperienceEntry struct {
	School string `json:"school"`
	Years  int    `json:"years"`
}

// Teacher represents a teacher profile record. The three qualification
// document fields hold storage keys assigned at registration time.
type Teacher struct {
	ID                         string          `db:"id" json:"id"`
	FirstName                  string          `db:"first_name" json:"firstName"`
	LastName                   string          `db:"last_name" json:"lastName"`
	Email                      string          `db:"email" json:"email"`
	NRC                        string          `db:"nrc" json:"nrc"`
	TsNo                       string          `db:"ts_no" json:"tsNo"`
	Address                    string          `db:"address" json:"address"`
	MaritalStatus              *MaritalStatus  `db:"marital_status" json:"maritalStatus,omitempty"`
	MedicalCertificate         string          `db:"medical_certificate" json:"medicalCertificate"`
	AcademicQualifications     string          `db:"academic_qualifications" json:"academicQualifications"`
	ProfessionalQualifications string          `db:"professional_qualifications" json:"professionalQualifications"`
	CurrentSchoolType          string          `db:"current_school_type" json:"currentSchoolType"`
	CurrentPosition            string          `db:"current_position" json:"currentPosition"`
	SubjectSpecialization      string          `db:"subject_specialization" json:"subjectSpecialization"`
	Experience                 json.RawMessage `db:"experience" json:"experience"`
	CurrentSchoolID            string          `db:"current_school_id" json:"currentSchoolId"`
	CreatedAt                  time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt                  time.Time       `db:"updated_at" json:"updatedAt"`
}

// FullName joins the name parts for display and notifications.
func (t *Teacher) FullName() string {
	return t.FirstName + " " + t.LastName
}

// TeacherDetail is a teacher row with its current school joined in.
type TeacherDetail struct {
	Teacher
	SchoolName     string `db:"school_name" json:"currentSchoolName"`
	SchoolCode     string `db:"school_code" json:"currentSchoolCode"`
	SchoolDistrict string `db:"school_district" json:"currentSchoolDistrict"`
}
