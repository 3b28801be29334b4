package dto

// CreateTransferRequest submits a new transfer petition. TeacherID may be
// omitted by teacher actors; it then resolves from the caller's own profile.
type CreateTransferRequest struct {
	TeacherID  string `json:"teacherId"`
	ToSchoolID string `json:"toSchoolId" validate:"required"`
}

// UpdateTransferStatusRequest carries a reviewer decision.
type UpdateTransferStatusRequest struct {
	Status string `json:"status" validate:"required"`
	Reason string `json:"reason"`
}
