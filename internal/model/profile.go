package model

import "time"

// Profile is the public directory entry for a platform user. Profiles
// are read-only to this client; they back assignee pickers and the
// display-name denormalization on tasks.
type Profile struct {
	// ID equals the platform user id.
	ID string `json:"id" db:"id"`

	// DisplayName is the name shown in lists and forms.
	DisplayName string `json:"display_name" db:"display_name"`

	// Email is optional contact information.
	Email string `json:"email,omitempty" db:"email"`

	// CreatedAt is when the profile was provisioned.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
