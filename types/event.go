package types

// Activity event types published after account and list changes.
const (
	EventUserRegistered = "user.registered"
	EventUserRenamed    = "user.renamed"
	EventListSeeded     = "list.seeded"
	EventItemAdded      = "item.added"
	EventItemDeleted    = "item.deleted"
)

// Event is the payload sent to the activity channel.
type Event struct {
	Type        string `json:"type"`
	Username    string `json:"username,omitempty"`
	OldUsername string `json:"old_username,omitempty"`
	ItemID      string `json:"item_id,omitempty"`
	ItemName    string `json:"item_name,omitempty"`
	Count       int    `json:"count,omitempty"`
}
