package domain

import (
	"time"

	"github.com/google/uuid"
)

// Borrower is the person a loan is issued to
type Borrower struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	Name      string    `json:"name" db:"name"`
	Area      string    `json:"area" db:"area"`
	Phone     string    `json:"phone" db:"phone"`
	LeaderTag string    `json:"leader_tag" db:"leader_tag"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
