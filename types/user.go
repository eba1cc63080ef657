package types

import "time"

// DefaultRole is assigned to every new account. Roles are recorded but not enforced.
const DefaultRole = "user"

// User represents an account in the system.
type User struct {
	// ID is the internal identifier of the user. Sessions reference it so that
	// a username change keeps them bound to the same account.
	ID int `json:"id" db:"id"`

	// Username is the unique login name chosen by the user. Items reference
	// their owner by this value.
	Username string `json:"username" db:"username"`

	// Role is recorded for every account (e.g., "user", "admin") but
	// no route checks it.
	Role string `json:"role" db:"role"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// This field is never rendered or exported.
	PasswordHash string `json:"-" db:"password_hash"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
