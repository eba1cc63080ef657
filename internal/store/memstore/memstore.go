// Package memstore keeps users, items and sessions in memory. It mirrors the
// behaviour of the Postgres repositories in package store and is used by tests
// that do not need a database.
package memstore

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/todolist-app/server/internal/store"
	"github.com/todolist-app/server/types"
)

// Store holds all three tables behind one lock so a rename can move items
// atomically, like the SQL transaction does.
type Store struct {
	mu       sync.Mutex
	nextID   int
	users    map[int]types.User
	items    map[string]types.Item
	sessions map[string]types.Session
	seq      int
}

func New() *Store {
	return &Store{
		nextID:   1,
		users:    make(map[int]types.User),
		items:    make(map[string]types.Item),
		sessions: make(map[string]types.Session),
	}
}

func (s *Store) Users() *Users       { return &Users{s: s} }
func (s *Store) Items() *Items       { return &Items{s: s} }
func (s *Store) Sessions() *Sessions { return &Sessions{s: s} }

type Users struct{ s *Store }

func (u *Users) GetByID(ctx context.Context, id int) (types.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()

	user, ok := u.s.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (u *Users) GetByUsername(ctx context.Context, username string) (types.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()

	if user, ok := u.s.userByName(username); ok {
		return user, nil
	}
	return types.User{}, store.ErrNotFound
}

func (u *Users) List(ctx context.Context) ([]types.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()

	users := make([]types.User, 0, len(u.s.users))
	for _, user := range u.s.users {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b types.User) int { return a.ID - b.ID })
	return users, nil
}

func (u *Users) Create(ctx context.Context, user types.User) (types.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()

	if _, taken := u.s.userByName(user.Username); taken {
		return types.User{}, store.ErrConflict
	}
	now := time.Now()
	user.ID = u.s.nextID
	u.s.nextID++
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.Role == "" {
		user.Role = types.DefaultRole
	}
	u.s.users[user.ID] = user
	return user, nil
}

func (u *Users) Update(ctx context.Context, user types.User) (types.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()

	previous, ok := u.s.users[user.ID]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	if other, taken := u.s.userByName(user.Username); taken && other.ID != user.ID {
		return types.User{}, store.ErrConflict
	}

	user.CreatedAt = previous.CreatedAt
	user.UpdatedAt = time.Now()
	u.s.users[user.ID] = user

	if previous.Username != user.Username {
		for id, item := range u.s.items {
			if item.Owner == previous.Username {
				item.Owner = user.Username
				u.s.items[id] = item
			}
		}
	}
	return user, nil
}

type Items struct{ s *Store }

func (i *Items) ListByOwner(ctx context.Context, owner string) ([]types.Item, error) {
	i.s.mu.Lock()
	defer i.s.mu.Unlock()
	return i.s.itemsOf(owner), nil
}

func (i *Items) Get(ctx context.Context, id string) (types.Item, error) {
	i.s.mu.Lock()
	defer i.s.mu.Unlock()

	item, ok := i.s.items[id]
	if !ok {
		return types.Item{}, store.ErrNotFound
	}
	return item, nil
}

func (i *Items) Create(ctx context.Context, item types.Item) (types.Item, error) {
	i.s.mu.Lock()
	defer i.s.mu.Unlock()
	return i.s.insertItem(item.Owner, item.Name), nil
}

func (i *Items) SeedIfEmpty(ctx context.Context, owner string, names []string) ([]types.Item, bool, error) {
	i.s.mu.Lock()
	defer i.s.mu.Unlock()

	if existing := i.s.itemsOf(owner); len(existing) > 0 {
		return existing, false, nil
	}
	items := make([]types.Item, 0, len(names))
	for _, name := range names {
		items = append(items, i.s.insertItem(owner, name))
	}
	return items, true, nil
}

func (i *Items) DeleteOwned(ctx context.Context, id, owner string) error {
	i.s.mu.Lock()
	defer i.s.mu.Unlock()

	item, ok := i.s.items[id]
	if !ok || item.Owner != owner {
		return store.ErrNotFound
	}
	delete(i.s.items, id)
	return nil
}

// InsertAll adds one item per name for owner in a single step, without
// checking for existing items.
func (i *Items) InsertAll(owner string, names []string) []types.Item {
	i.s.mu.Lock()
	defer i.s.mu.Unlock()

	items := make([]types.Item, 0, len(names))
	for _, name := range names {
		items = append(items, i.s.insertItem(owner, name))
	}
	return items
}

// Count returns the number of stored items across all owners.
func (i *Items) Count() int {
	i.s.mu.Lock()
	defer i.s.mu.Unlock()
	return len(i.s.items)
}

type Sessions struct{ s *Store }

func (ss *Sessions) Create(ctx context.Context, userID int, ttl time.Duration) (types.Session, error) {
	ss.s.mu.Lock()
	defer ss.s.mu.Unlock()

	now := time.Now()
	session := types.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	ss.s.sessions[session.ID] = session
	return session, nil
}

func (ss *Sessions) Get(ctx context.Context, id string) (types.Session, error) {
	ss.s.mu.Lock()
	defer ss.s.mu.Unlock()

	session, ok := ss.s.sessions[id]
	if !ok {
		return types.Session{}, store.ErrNotFound
	}
	return session, nil
}

func (ss *Sessions) Delete(ctx context.Context, id string) error {
	ss.s.mu.Lock()
	defer ss.s.mu.Unlock()
	delete(ss.s.sessions, id)
	return nil
}

// Put stores session as-is, e.g. one that has already expired.
func (ss *Sessions) Put(session types.Session) {
	ss.s.mu.Lock()
	defer ss.s.mu.Unlock()
	ss.s.sessions[session.ID] = session
}

// Len returns the number of stored sessions.
func (ss *Sessions) Len() int {
	ss.s.mu.Lock()
	defer ss.s.mu.Unlock()
	return len(ss.s.sessions)
}

func (s *Store) userByName(username string) (types.User, bool) {
	for _, user := range s.users {
		if user.Username == username {
			return user, true
		}
	}
	return types.User{}, false
}

func (s *Store) insertItem(owner, name string) types.Item {
	s.seq++
	item := types.Item{
		ID:    uuid.NewString(),
		Name:  name,
		Owner: owner,
		// The sequence keeps insertion order when timestamps collide.
		CreatedAt: time.Now().Add(time.Duration(s.seq) * time.Nanosecond),
	}
	s.items[item.ID] = item
	return item
}

func (s *Store) itemsOf(owner string) []types.Item {
	items := make([]types.Item, 0)
	for _, item := range s.items {
		if item.Owner == owner {
			items = append(items, item)
		}
	}
	slices.SortFunc(items, func(a, b types.Item) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return items
}
