package session

import (
	"testing"
	"time"
)

func TestCreateAndGet(t *testing.T) {
	st := NewStore()
	s, err := st.Create("abc", time.Now())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if st.Get("abc") != s {
		t.Fatal("Get after Create should return the same session")
	}
}

func TestCreateDuplicateReturnsExists(t *testing.T) {
	st := NewStore()
	st.Create("abc", time.Now())
	if _, err := st.Create("abc", time.Now()); err != ErrExists {
		t.Fatalf("Create duplicate = %v, want ErrExists", err)
	}
}

func TestCreateReservedLatestRejected(t *testing.T) {
	st := NewStore()
	if _, err := st.Create(LatestAlias, time.Now()); err != ErrReservedID {
		t.Fatalf("Create(latest) = %v, want ErrReservedID", err)
	}
}

func TestDeleteRoundTrip(t *testing.T) {
	st := NewStore()
	st.Create("abc", time.Now())
	st.SetLatest("abc")

	if err := st.Delete("abc"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	ids, hasLatest := st.List()
	for _, id := range ids {
		if id == "abc" {
			t.Fatal("abc should not be listed after Delete")
		}
	}
	if hasLatest {
		t.Fatal("latest pointer should be cleared when the latest session is deleted")
	}
}

func TestDeleteNotFound(t *testing.T) {
	st := NewStore()
	if err := st.Delete("nope"); err != ErrNotFound {
		t.Fatalf("Delete(nope) = %v, want ErrNotFound", err)
	}
}

func TestLatestAliasResolution(t *testing.T) {
	st := NewStore()
	s, _ := st.Create("abc", time.Now())
	st.SetLatest("abc")
	if got := st.Get(LatestAlias); got != s {
		t.Fatalf("Get(latest) = %v, want session abc", got)
	}
}

func TestGetLatestEmptyReturnsNil(t *testing.T) {
	st := NewStore()
	if got := st.Get(LatestAlias); got != nil {
		t.Fatalf("Get(latest) with no latest set = %v, want nil", got)
	}
}

func TestCreateAutoMintsMonotonicUniqueIDs(t *testing.T) {
	st := NewStore()
	first := st.CreateAuto(time.Now())
	if first.ID() != "1000" {
		t.Fatalf("first minted id = %q, want 1000", first.ID())
	}
	second := st.CreateAuto(time.Now())
	if second.ID() == first.ID() {
		t.Fatal("CreateAuto must not repeat an id")
	}
	if st.Get(first.ID()) != first || st.Get(second.ID()) != second {
		t.Fatal("minted sessions must be retrievable by their ids")
	}
}

func TestCreateAutoSkipsCollisions(t *testing.T) {
	st := NewStore()
	// Manually occupy the floor id to force CreateAuto to advance.
	st.Create("1000", time.Now())
	s := st.CreateAuto(time.Now())
	if s.ID() == "1000" {
		t.Fatal("CreateAuto must skip an id already in use")
	}
}
