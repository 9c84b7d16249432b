package state_test

import (
	"errors"
	"testing"

	"github.com/nexus-rd/nexus/internal/testutil"
	"github.com/nexus-rd/nexus/pkg/domain"
	"github.com/nexus-rd/nexus/pkg/state"
)

func TestMemoryStore_PutAndGet(t *testing.T) {
	store := state.NewMemoryStore()
	s := state.NewSession(testutil.NewTestQuery("test query"))

	testutil.AssertNoError(t, store.Put(s), "Put")

	got, err := store.Get(s.ID())
	testutil.AssertNoError(t, err, "Get")
	if got.ID() != s.ID() {
		t.Errorf("Get returned session %v, want %v", got.ID(), s.ID())
	}
}

func TestMemoryStore_GetUnknown(t *testing.T) {
	store := state.NewMemoryStore()

	_, err := store.Get("no-such-session")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Get(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_DuplicatePut(t *testing.T) {
	store := state.NewMemoryStore()
	s := state.NewSession(testutil.NewTestQuery("test query"))

	testutil.AssertNoError(t, store.Put(s), "first Put")

	err := store.Put(s)
	if !errors.Is(err, domain.ErrStateViolation) {
		t.Errorf("duplicate Put error = %v, want ErrStateViolation", err)
	}
}

func TestMemoryStore_ActiveCount(t *testing.T) {
	store := state.NewMemoryStore()

	running := state.NewSession(testutil.NewTestQuery("running"))
	done := state.NewSession(testutil.NewTestQuery("done"))
	testutil.AssertNoError(t, store.Put(running), "Put running")
	testutil.AssertNoError(t, store.Put(done), "Put done")

	done.Fail(errors.New("stopped"))

	if got := store.ActiveCount(); got != 1 {
		t.Errorf("ActiveCount = %d, want 1", got)
	}
}

func TestMemoryStore_List(t *testing.T) {
	store := state.NewMemoryStore()
	for i := 0; i < 3; i++ {
		testutil.AssertNoError(t, store.Put(state.NewSession(testutil.NewTestQuery("q"))), "Put")
	}

	if got := len(store.List()); got != 3 {
		t.Errorf("List = %d sessions, want 3", got)
	}
}
