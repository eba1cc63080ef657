package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/todolist-app/server/types"
)

const exportContentType = "application/json"

// ObjectStore is the subset of object storage used for list snapshots.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

// UserLister enumerates every account.
type UserLister interface {
	List(ctx context.Context) ([]types.User, error)
}

// ItemLister reads a single owner's items.
type ItemLister interface {
	ListByOwner(ctx context.Context, owner string) ([]types.Item, error)
}

// Snapshot is the exported form of one user's list. Credentials are never included.
type Snapshot struct {
	Username   string         `json:"username"`
	ExportedAt time.Time      `json:"exported_at"`
	Items      []SnapshotItem `json:"items"`
}

type SnapshotItem struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// ExportService writes per-user list snapshots to object storage.
type ExportService struct {
	users   UserLister
	items   ItemLister
	objects ObjectStore
	now     func() time.Time
}

func NewExportService(users UserLister, items ItemLister, objects ObjectStore) *ExportService {
	return &ExportService{
		users:   users,
		items:   items,
		objects: objects,
		now:     time.Now,
	}
}

// ExportAll writes a snapshot for every user and returns how many were written.
func (s *ExportService) ExportAll(ctx context.Context) (int, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return 0, storeError("list users", err)
	}

	written := 0
	for _, user := range users {
		if err := s.ExportUser(ctx, user.Username); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

// ExportUser writes the snapshot for a single user, replacing any previous one.
func (s *ExportService) ExportUser(ctx context.Context, username string) error {
	items, err := s.items.ListByOwner(ctx, username)
	if err != nil {
		return storeError("list items", err)
	}

	snapshot := Snapshot{
		Username:   username,
		ExportedAt: s.now().UTC(),
		Items:      make([]SnapshotItem, 0, len(items)),
	}
	for _, item := range items {
		snapshot.Items = append(snapshot.Items, SnapshotItem{
			ID:        item.ID,
			Name:      item.Name,
			CreatedAt: item.CreatedAt,
		})
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	key := ExportKey(username)
	if err := s.objects.Put(ctx, key, bytes.NewReader(data), int64(len(data)), exportContentType); err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

// Load reads back the latest snapshot for username.
func (s *ExportService) Load(ctx context.Context, username string) (Snapshot, error) {
	key := ExportKey(username)
	reader, err := s.objects.Get(ctx, key)
	if err != nil {
		return Snapshot{}, fmt.Errorf("download %s: %w", key, err)
	}
	defer reader.Close()

	var snapshot Snapshot
	if err := json.NewDecoder(reader).Decode(&snapshot); err != nil {
		return Snapshot{}, fmt.Errorf("decode %s: %w", key, err)
	}
	return snapshot, nil
}

// ExportKey is the object key holding username's snapshot.
func ExportKey(username string) string {
	return "exports/" + url.PathEscape(username) + ".json"
}
