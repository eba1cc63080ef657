package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/todolist-app/server/internal/store"
	"github.com/todolist-app/server/types"
	"golang.org/x/sync/singleflight"
)

const (
	maxItemLength = 500
	seedTimeout   = 10 * time.Second
)

// ItemRepository defines persistence operations for list items.
type ItemRepository interface {
	ListByOwner(ctx context.Context, owner string) ([]types.Item, error)
	Get(ctx context.Context, id string) (types.Item, error)
	Create(ctx context.Context, item types.Item) (types.Item, error)
	SeedIfEmpty(ctx context.Context, owner string, names []string) ([]types.Item, bool, error)
	DeleteOwned(ctx context.Context, id, owner string) error
}

// ListService encapsulates per-user list use-cases.
type ListService struct {
	repo   ItemRepository
	events *Events
	seeds  singleflight.Group
}

func NewListService(repo ItemRepository, events *Events) *ListService {
	return &ListService{repo: repo, events: events}
}

// GetOrSeed returns the actor's items, creating the default items the first
// time the list is found empty. Concurrent calls for the same owner share a
// single seed attempt.
func (s *ListService) GetOrSeed(ctx context.Context, actor types.User, username string) ([]types.Item, error) {
	if actor.Username == "" {
		return nil, ErrUnauthenticated
	}
	if actor.Username != username {
		return nil, ErrForbidden
	}

	items, err := s.repo.ListByOwner(ctx, username)
	if err != nil {
		return nil, storeError("list items", err)
	}
	if len(items) > 0 {
		return items, nil
	}

	// The shared seed outlives any one caller; each caller still stops
	// waiting when its own request ends.
	ch := s.seeds.DoChan(username, func() (any, error) {
		seedCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), seedTimeout)
		defer cancel()

		seededItems, seeded, err := s.repo.SeedIfEmpty(seedCtx, username, types.DefaultItems)
		if err != nil {
			return nil, err
		}
		if seeded {
			s.events.emit(seedCtx, types.Event{Type: types.EventListSeeded, Username: username, Count: len(seededItems)})
		}
		return seededItems, nil
	})

	select {
	case <-ctx.Done():
		return nil, storeError("seed items", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, storeError("seed items", res.Err)
		}
		// Callers sharing a flight get the same slice.
		return slices.Clone(res.Val.([]types.Item)), nil
	}
}

// Add appends an item to the actor's list. Text is trimmed; blank text and
// text longer than maxItemLength runes are rejected.
func (s *ListService) Add(ctx context.Context, actor types.User, text string) (types.Item, error) {
	if actor.Username == "" {
		return types.Item{}, ErrUnauthenticated
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return types.Item{}, invalid("Item text is required.")
	}
	if utf8.RuneCountInString(text) > maxItemLength {
		return types.Item{}, invalid(fmt.Sprintf("Item text must be at most %d characters.", maxItemLength))
	}

	item, err := s.repo.Create(ctx, types.Item{Name: text, Owner: actor.Username})
	if err != nil {
		return types.Item{}, storeError("create item", err)
	}

	s.events.emit(ctx, types.Event{Type: types.EventItemAdded, Username: item.Owner, ItemID: item.ID, ItemName: item.Name})
	return item, nil
}

// Delete removes one of the actor's items. Items owned by someone else are
// left untouched and yield ErrForbidden.
func (s *ListService) Delete(ctx context.Context, actor types.User, itemID string) error {
	if actor.Username == "" {
		return ErrUnauthenticated
	}

	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return ErrNotFound
	}

	item, err := s.repo.Get(ctx, itemID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return storeError("load item", err)
	}
	if item.Owner != actor.Username {
		return ErrForbidden
	}

	if err := s.repo.DeleteOwned(ctx, itemID, actor.Username); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return storeError("delete item", err)
	}

	s.events.emit(ctx, types.Event{Type: types.EventItemDeleted, Username: actor.Username, ItemID: itemID})
	return nil
}
