package models

import "time"

// TransferStatus captures the workflow states of a transfer request.
type TransferStatus string

const (
	TransferStatusPending             TransferStatus = "pending"
	TransferStatusHeadteacherApproved TransferStatus = "headteacher_approved"
	TransferStatusHeadteacherRejected TransferStatus = "headteacher_rejected"
	TransferStatusApproved            TransferStatus = "approved"
	TransferStatusRejected            TransferStatus = "rejected"
)

// Valid reports whether the status belongs to the enum.
func (s TransferStatus) Valid() bool {
	switch s {
	case TransferStatusPending, TransferStatusHeadteacherApproved, TransferStatusHeadteacherRejected,
		TransferStatusApproved, TransferStatusRejected:
		return true
	}
	return false
}

// Terminal reports whether the workflow is closed. A closed request admits no
// further transitions; a fresh request must be filed for further movement.
func (s TransferStatus) Terminal() bool {
	switch s {
	case TransferStatusApproved, TransferStatusRejected, TransferStatusHeadteacherRejected:
		return true
	}
	return false
}

// TransferRequest is a teacher's petition to move between schools.
// FromSchoolID is a snapshot of the teacher's school at creation time and is
// never re-derived. Requests are never physically deleted.
type TransferRequest struct {
	ID           string         `db:"id" json:"id"`
	TeacherID    string         `db:"teacher_id" json:"teacherId"`
	FromSchoolID string         `db:"from_school_id" json:"fromSchoolId"`
	ToSchoolID   string         `db:"to_school_id" json:"toSchoolId"`
	Status       TransferStatus `db:"status" json:"status"`
	StatusReason string         `db:"status_reason" json:"statusReason"`
	CreatedAt    time.Time      `db:"created_at" json:"createdAt"`
}

// TransferRequestDetail joins the teacher and school names for presentation.
type TransferRequestDetail struct {
	TransferRequest
	TeacherFirstName string `db:"teacher_first_name" json:"teacherFirstName"`
	TeacherLastName  string `db:"teacher_last_name" json:"teacherLastName"`
	TeacherEmail     string `db:"teacher_email" json:"-"`
	FromSchoolName   string `db:"from_school_name" json:"fromSchoolName"`
	ToSchoolName     string `db:"to_school_name" json:"toSchoolName"`
}

// TransferFilter constrains listing queries to a visibility scope.
type TransferFilter struct {
	TeacherID    string
	FromSchoolID string
}
