package models

import "time"

// School is the reference record teachers and transfers point at.
type School struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Code      string    `db:"code" json:"code"`
	District  string    `db:"district" json:"district"`
	Province  string    `db:"province" json:"province"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}
