package services

import (
	"context"
	"errors"
	"runtime"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/todolist-app/server/internal/store/memstore"
	"github.com/todolist-app/server/types"
)

// racyItems checks for emptiness and inserts in two separate steps, so two
// overlapping seeds would both insert.
type racyItems struct {
	*memstore.Items
}

func (r racyItems) SeedIfEmpty(ctx context.Context, owner string, names []string) ([]types.Item, bool, error) {
	existing, err := r.ListByOwner(ctx, owner)
	if err != nil {
		return nil, false, err
	}
	if len(existing) > 0 {
		return existing, false, nil
	}
	runtime.Gosched()

	items := r.InsertAll(owner, names)
	return items, true, nil
}

// blockingItems holds SeedIfEmpty until release is closed or the seed's own
// context ends.
type blockingItems struct {
	*memstore.Items
	enterOnce sync.Once
	entered   chan struct{}
	release   chan struct{}
}

func (b *blockingItems) SeedIfEmpty(ctx context.Context, owner string, names []string) ([]types.Item, bool, error) {
	b.enterOnce.Do(func() { close(b.entered) })
	select {
	case <-b.release:
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
	return b.Items.SeedIfEmpty(ctx, owner, names)
}

func itemNames(items []types.Item) []string {
	names := make([]string, 0, len(items))
	for _, item := range items {
		names = append(names, item.Name)
	}
	return names
}

func TestGetOrSeedDefaults(t *testing.T) {
	mem := memstore.New()
	lists := NewListService(mem.Items(), nil)
	ctx := context.Background()
	alice := types.User{ID: 1, Username: "alice"}

	first, err := lists.GetOrSeed(ctx, alice, "alice")
	if err != nil {
		t.Fatalf("first visit: %v", err)
	}
	if !slices.Equal(itemNames(first), types.DefaultItems) {
		t.Fatalf("unexpected defaults: %v", itemNames(first))
	}

	second, err := lists.GetOrSeed(ctx, alice, "alice")
	if err != nil {
		t.Fatalf("second visit: %v", err)
	}
	if len(second) != len(types.DefaultItems) {
		t.Fatalf("expected %d items on second visit, got %d", len(types.DefaultItems), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Fatalf("items were reseeded: %v vs %v", first[i], second[i])
		}
	}
}

func TestGetOrSeedOtherUserForbidden(t *testing.T) {
	mem := memstore.New()
	lists := NewListService(mem.Items(), nil)
	ctx := context.Background()

	_, err := lists.GetOrSeed(ctx, types.User{ID: 1, Username: "alice"}, "bob")
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if mem.Items().Count() != 0 {
		t.Fatalf("bob's list was seeded by alice")
	}

	if _, err := lists.GetOrSeed(ctx, types.User{}, "bob"); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestGetOrSeedConcurrentSeedsOnce(t *testing.T) {
	mem := memstore.New()
	lists := NewListService(racyItems{mem.Items()}, nil)
	ctx := context.Background()
	alice := types.User{ID: 1, Username: "alice"}

	const visitors = 32
	var wg sync.WaitGroup
	start := make(chan struct{})
	errs := make(chan error, visitors)
	for range visitors {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			items, err := lists.GetOrSeed(ctx, alice, "alice")
			if err != nil {
				errs <- err
				return
			}
			if len(items) != len(types.DefaultItems) {
				errs <- errors.New("visitor saw " + strings.Join(itemNames(items), ","))
			}
		}()
	}
	close(start)
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
	if got := mem.Items().Count(); got != len(types.DefaultItems) {
		t.Fatalf("expected %d stored items, got %d", len(types.DefaultItems), got)
	}
}

func TestGetOrSeedCancelledVisitorDoesNotFailOthers(t *testing.T) {
	mem := memstore.New()
	repo := &blockingItems{Items: mem.Items(), entered: make(chan struct{}), release: make(chan struct{})}
	lists := NewListService(repo, nil)
	alice := types.User{ID: 1, Username: "alice"}

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := lists.GetOrSeed(firstCtx, alice, "alice")
		firstErr <- err
	}()
	<-repo.entered

	type result struct {
		items []types.Item
		err   error
	}
	second := make(chan result, 1)
	go func() {
		items, err := lists.GetOrSeed(context.Background(), alice, "alice")
		second <- result{items, err}
	}()
	// Let the second visitor join the running seed.
	time.Sleep(50 * time.Millisecond)

	cancelFirst()
	select {
	case err := <-firstErr:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected the cancelled visitor to see context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("cancelled visitor kept waiting for the seed")
	}

	close(repo.release)
	select {
	case res := <-second:
		if res.err != nil {
			t.Fatalf("second visitor failed: %v", res.err)
		}
		if !slices.Equal(itemNames(res.items), types.DefaultItems) {
			t.Fatalf("unexpected items %v", itemNames(res.items))
		}
	case <-time.After(time.Second):
		t.Fatalf("second visitor never finished")
	}
	if got := mem.Items().Count(); got != len(types.DefaultItems) {
		t.Fatalf("expected %d stored items, got %d", len(types.DefaultItems), got)
	}
}

func TestAddAndDelete(t *testing.T) {
	mem := memstore.New()
	lists := NewListService(mem.Items(), nil)
	ctx := context.Background()
	alice := types.User{ID: 1, Username: "alice"}

	if _, err := lists.GetOrSeed(ctx, alice, "alice"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	added, err := lists.Add(ctx, alice, "  Buy milk ")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if added.Name != "Buy milk" || added.Owner != "alice" {
		t.Fatalf("unexpected item %+v", added)
	}

	items, err := lists.GetOrSeed(ctx, alice, "alice")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 4 || items[3].ID != added.ID {
		t.Fatalf("expected new item last, got %v", itemNames(items))
	}

	if err := lists.Delete(ctx, alice, added.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	items, err = lists.GetOrSeed(ctx, alice, "alice")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !slices.Equal(itemNames(items), types.DefaultItems) {
		t.Fatalf("unexpected items after delete: %v", itemNames(items))
	}

	if err := lists.Delete(ctx, alice, added.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestAddRejectsBlankAndLongText(t *testing.T) {
	mem := memstore.New()
	lists := NewListService(mem.Items(), nil)
	ctx := context.Background()
	alice := types.User{ID: 1, Username: "alice"}

	for _, text := range []string{"", "   \t", strings.Repeat("é", maxItemLength+1)} {
		_, err := lists.Add(ctx, alice, text)
		var validationErr *ValidationError
		if !errors.As(err, &validationErr) {
			t.Fatalf("text of %d runes: expected validation error, got %v", len([]rune(text)), err)
		}
	}
	if mem.Items().Count() != 0 {
		t.Fatalf("rejected text was stored")
	}

	if _, err := lists.Add(ctx, alice, strings.Repeat("é", maxItemLength)); err != nil {
		t.Fatalf("text at the limit rejected: %v", err)
	}
}

func TestDeleteOtherUsersItemForbidden(t *testing.T) {
	mem := memstore.New()
	lists := NewListService(mem.Items(), nil)
	ctx := context.Background()
	alice := types.User{ID: 1, Username: "alice"}
	bob := types.User{ID: 2, Username: "bob"}

	item, err := lists.Add(ctx, bob, "Bob's item")
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	if err := lists.Delete(ctx, alice, item.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := mem.Items().Get(ctx, item.ID); err != nil {
		t.Fatalf("bob's item was removed: %v", err)
	}
}

func TestListEmitsEvents(t *testing.T) {
	mem := memstore.New()
	pub := &recordingPublisher{}
	lists := NewListService(mem.Items(), NewEvents(pub, "activity"))
	ctx := context.Background()
	alice := types.User{ID: 1, Username: "alice"}

	if _, err := lists.GetOrSeed(ctx, alice, "alice"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := lists.GetOrSeed(ctx, alice, "alice"); err != nil {
		t.Fatalf("second visit: %v", err)
	}
	item, err := lists.Add(ctx, alice, "Buy milk")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := lists.Delete(ctx, alice, item.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	want := []string{types.EventListSeeded, types.EventItemAdded, types.EventItemDeleted}
	if got := pub.types(); !slices.Equal(got, want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	if seeded := pub.events()[0]; seeded.Count != len(types.DefaultItems) {
		t.Fatalf("seed event count = %d", seeded.Count)
	}
}
