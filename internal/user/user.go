package user

import (
	"time"

	"github.com/google/uuid"
)

// User is a directory entry. UUID is stable and immutable after creation;
// AltIDs maps alternate-id field names to values used by external systems.
type User struct {
	UUID        uuid.UUID         `json:"uuid"`
	FullName    string            `json:"full_name"`
	Email       string            `json:"email"`
	PhoneNumber *string           `json:"phone_number,omitempty"`
	AltIDs      map[string]string `json:"alt_ids,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   *time.Time        `json:"updated_at,omitempty"`
}

// Patch carries a partial update. Nil fields are left untouched.
type Patch struct {
	FullName    *string           `json:"full_name"`
	Email       *string           `json:"email"`
	PhoneNumber *string           `json:"phone_number"`
	AltIDs      map[string]string `json:"alt_ids"`
}

// Apply merges the patch into the user, changing only the supplied fields.
func (u *User) Apply(p Patch, now time.Time) {
	if p.FullName != nil {
		u.FullName = *p.FullName
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.PhoneNumber != nil {
		u.PhoneNumber = p.PhoneNumber
	}
	if p.AltIDs != nil {
		u.AltIDs = p.AltIDs
	}
	t := now.UTC()
	u.UpdatedAt = &t
}
