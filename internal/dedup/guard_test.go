package dedup

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/chainreact/pushgate/internal/domain"
)

// mockStore records inserted ledger rows and rejects repeated keys.
type mockStore struct {
	mu       sync.Mutex
	inserted []domain.DedupRecord
	seen     map[string]bool
	failWith error
}

func newMockStore() *mockStore {
	return &mockStore{seen: make(map[string]bool)}
}

func (s *mockStore) InsertDedupRecord(ctx context.Context, rec domain.DedupRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	if s.seen[rec.Key] {
		return ErrDuplicateNotification
	}
	s.seen[rec.Key] = true
	s.inserted = append(s.inserted, rec)
	return nil
}

func (s *mockStore) insertCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inserted)
}

func TestKey_MailCollapsesChangeType(t *testing.T) {
	env := domain.Envelope{
		ChangeType:   "created",
		ResourceData: domain.ResourceData{ID: "msg-1"},
	}
	created := Key("user-1", env, domain.KindMail)

	env.ChangeType = "updated"
	updated := Key("user-1", env, domain.KindMail)

	if created != updated {
		t.Errorf("mail keys should collapse change types: %q != %q", created, updated)
	}
	if created != "user-1|msg-1" {
		t.Errorf("unexpected mail key: %q", created)
	}
}

func TestKey_OtherKindsIncludeChangeType(t *testing.T) {
	env := domain.Envelope{
		ChangeType:   "created",
		ResourceData: domain.ResourceData{ID: "ev-1"},
	}
	created := Key("user-1", env, domain.KindEvent)

	env.ChangeType = "updated"
	updated := Key("user-1", env, domain.KindEvent)

	if created == updated {
		t.Errorf("event keys should differ per change type, both %q", created)
	}
	if created != "user-1|ev-1|created" {
		t.Errorf("unexpected event key: %q", created)
	}
}

func TestKey_FallbackOwnerAndResource(t *testing.T) {
	env := domain.Envelope{ChangeType: "created", Resource: "me/events/abc"}
	got := Key("", env, domain.KindEvent)
	want := "unknown|me/events/abc|created"
	if got != want {
		t.Errorf("Key = %q, want %q", got, want)
	}

	got = Key("", domain.Envelope{ChangeType: "created"}, domain.KindEvent)
	want = "unknown|none|created"
	if got != want {
		t.Errorf("Key with no resource = %q, want %q", got, want)
	}
}

func TestFirstDelivery_FirstThenDuplicate(t *testing.T) {
	store := newMockStore()
	guard := NewGuard(store)

	env := domain.Envelope{
		ChangeType:   "created",
		ResourceData: domain.ResourceData{ID: "msg-1"},
	}

	if !guard.FirstDelivery(context.Background(), "user-1", env, domain.KindMail) {
		t.Fatal("first delivery should pass")
	}
	if guard.FirstDelivery(context.Background(), "user-1", env, domain.KindMail) {
		t.Error("second delivery should be detected as duplicate")
	}
	if store.insertCount() != 1 {
		t.Errorf("expected 1 ledger row, got %d", store.insertCount())
	}
}

func TestFirstDelivery_MailCreatedUpdatedPair(t *testing.T) {
	store := newMockStore()
	guard := NewGuard(store)

	env := domain.Envelope{
		ChangeType:   "created",
		ResourceData: domain.ResourceData{ID: "msg-1"},
	}
	if !guard.FirstDelivery(context.Background(), "user-1", env, domain.KindMail) {
		t.Fatal("created delivery should pass")
	}

	env.ChangeType = "updated"
	if guard.FirstDelivery(context.Background(), "user-1", env, domain.KindMail) {
		t.Error("updated delivery of the same mail item should collapse as duplicate")
	}
}

func TestFirstDelivery_LedgerErrorFailsOpen(t *testing.T) {
	store := newMockStore()
	store.failWith = errors.New("connection refused")
	guard := NewGuard(store)

	env := domain.Envelope{
		ChangeType:   "created",
		ResourceData: domain.ResourceData{ID: "msg-1"},
	}
	if !guard.FirstDelivery(context.Background(), "user-1", env, domain.KindMail) {
		t.Error("ledger error should fail open, not block the trigger")
	}
}

func TestFirstDelivery_DifferentOwnersIndependent(t *testing.T) {
	store := newMockStore()
	guard := NewGuard(store)

	env := domain.Envelope{
		ChangeType:   "created",
		ResourceData: domain.ResourceData{ID: "msg-1"},
	}
	if !guard.FirstDelivery(context.Background(), "user-1", env, domain.KindMail) {
		t.Fatal("first owner should pass")
	}
	if !guard.FirstDelivery(context.Background(), "user-2", env, domain.KindMail) {
		t.Error("same resource for a different owner should not collide")
	}
}
