package dto

import "github.com/noah-isme/teacher-transfer-api/internal/models"

// UpdateTeacherRequest updates the mutable parts of a teacher profile.
// The current school is deliberately absent: it changes only through an
// approved transfer.
type UpdateTeacherRequest struct {
	FirstName             string                   `json:"firstName" validate:"required"`
	LastName              string                   `json:"lastName" validate:"required"`
	Address               string                   `json:"address"`
	MaritalStatus         string                   `json:"maritalStatus"`
	CurrentPosition       string                   `json:"currentPosition"`
	SubjectSpecialization string                   `json:"subjectSpecialization"`
	Experience            []models.ExperienceEntry `json:"experience"`
}
