package dto

// CreateSchoolRequest creates a school record.
type CreateSchoolRequest struct {
	Name     string `json:"name" validate:"required"`
	Code     string `json:"code" validate:"required"`
	District string `json:"district"`
	Province string `json:"province"`
}

// UpdateSchoolRequest updates mutable school attributes.
type UpdateSchoolRequest struct {
	Name     string `json:"name" validate:"required"`
	Code     string `json:"code" validate:"required"`
	District string `json:"district"`
	Province string `json:"province"`
}
