package domain

import "time"

// User represents a registered account. PasswordHash never leaves the service layer.
type User struct {
	ID           int64
	Name         string
	Alias        string
	Email        *string
	Photo        *string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ProfileUpdate carries optional profile changes. Nil fields are left untouched,
// an empty Email or Photo clears the stored value.
type ProfileUpdate struct {
	Name  *string
	Email *string
	Photo *string
}
