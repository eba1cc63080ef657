package types

import "time"

// Item is a single entry on a user's to-do list.
type Item struct {
	// ID is an opaque identifier assigned by the store.
	ID string `json:"id" db:"id"`

	// Name is the task text.
	Name string `json:"name" db:"name"`

	// Owner is the username of the list the item belongs to.
	Owner string `json:"owner" db:"owner"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// DefaultItems are the entries placed on a list the first time it is viewed empty.
var DefaultItems = []string{
	"Welcome to your ToDo List!",
	"Hit + to add a new item.",
	"<-- Check this to delete an item.",
}
