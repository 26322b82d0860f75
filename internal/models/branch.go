package models

import (
	"time"

	"github.com/google/uuid"
)

// Branch is a bank branch accounts are opened at.
type Branch struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	Name      string     `json:"name" db:"name"`
	Phone     string     `json:"phone" db:"phone"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt *time.Time `json:"-" db:"deleted_at"`
}

type CreateBranchRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// UpdateBranchParams carries the patchable branch fields; nil means
// "leave unchanged".
type UpdateBranchParams struct {
	Name  *string `json:"name,omitempty"`
	Phone *string `json:"phone,omitempty"`
}

// Address is a mailing address attached to a user.
type Address struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	UserID     uuid.UUID  `json:"user_id" db:"user_id"`
	Street     string     `json:"street" db:"street"`
	City       string     `json:"city" db:"city"`
	Province   string     `json:"province" db:"province"`
	PostalCode string     `json:"postal_code" db:"postal_code"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt  *time.Time `json:"-" db:"deleted_at"`
}

type CreateAddressRequest struct {
	UserID     uuid.UUID `json:"user_id"`
	Street     string    `json:"street"`
	City       string    `json:"city"`
	Province   string    `json:"province"`
	PostalCode string    `json:"postal_code"`
}
