package models

import "time"

// User is an account. The login is encrypted at rest; LoginHash is its
// deterministic hash used for equality lookups.
type User struct {
	ID           string
	Login        string
	LoginHash    string
	PasswordHash []byte
	Salt         []byte
	IsConfirm    bool
	CreatedOn    time.Time
	UpdatedOn    time.Time
	DeletedOn    *time.Time
}
