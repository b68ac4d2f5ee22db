package session

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"rosterbot/internal/docstore"
	"rosterbot/pkg/logx"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	store, err := docstore.New(filepath.Join(t.TempDir(), "applications.json"))
	if err != nil {
		t.Fatalf("docstore.New: %v", err)
	}
	r, err := New(store, logx.Nop(), 5)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func TestCreateAndSummarize(t *testing.T) {
	t.Parallel()
	r := newTestRegistry(t)

	if _, err := r.CreateSession("m1", 42, "2024-07"); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if _, _, err := r.AddApplication("m1", 1, "A", []string{"2024-07-10", "2024-07-12"}, ""); err != nil {
		t.Fatalf("AddApplication A: %v", err)
	}
	if _, _, err := r.AddApplication("m1", 2, "B", []string{"2024-07-10"}, "evenings only"); err != nil {
		t.Fatalf("AddApplication B: %v", err)
	}

	sum, err := r.Summary("m1")
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.Total != 2 || sum.UniqueUsers != 2 {
		t.Fatalf("total/unique = %d/%d, want 2/2", sum.Total, sum.UniqueUsers)
	}
	wantCounts := map[string]int{"2024-07-10": 2, "2024-07-12": 1}
	if !reflect.DeepEqual(sum.DateCounts, wantCounts) {
		t.Fatalf("DateCounts = %v, want %v", sum.DateCounts, wantCounts)
	}
	if !reflect.DeepEqual(sum.PopularDates, []string{"2024-07-10"}) {
		t.Fatalf("PopularDates = %v, want [2024-07-10]", sum.PopularDates)
	}
}

func TestPopularDatesFirstSeenOrder(t *testing.T) {
	t.Parallel()
	r := newTestRegistry(t)

	if _, err := r.CreateSession("m1", 1, "2024-07"); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	// 07-20 becomes contested only after 07-05 is; order must follow first
	// appearance, not count and not lexicographic order.
	apps := []struct {
		user  int64
		dates []string
	}{
		{1, []string{"2024-07-20", "2024-07-05"}},
		{2, []string{"2024-07-05"}},
		{3, []string{"2024-07-20", "2024-07-20"}},
	}
	for _, a := range apps {
		if _, _, err := r.AddApplication("m1", a.user, "u", a.dates, ""); err != nil {
			t.Fatalf("AddApplication user %d: %v", a.user, err)
		}
	}

	sum, err := r.Summary("m1")
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if want := []string{"2024-07-20", "2024-07-05"}; !reflect.DeepEqual(sum.PopularDates, want) {
		t.Fatalf("PopularDates = %v, want %v", sum.PopularDates, want)
	}
}

func TestDuplicateSubmission(t *testing.T) {
	t.Parallel()
	r := newTestRegistry(t)

	if _, err := r.CreateSession("m1", 1, "2024-07"); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if _, _, err := r.AddApplication("m1", 7, "A", []string{"2024-07-10"}, ""); err != nil {
		t.Fatalf("first AddApplication: %v", err)
	}
	_, _, err := r.AddApplication("m1", 7, "A", []string{"2024-07-11"}, "")
	if !errors.Is(err, ErrDuplicateSubmission) {
		t.Fatalf("err = %v, want ErrDuplicateSubmission", err)
	}

	// The same user may still apply to a different session.
	if _, err := r.CreateSession("m2", 1, "2024-08"); err != nil {
		t.Fatalf("CreateSession m2: %v", err)
	}
	if _, _, err := r.AddApplication("m2", 7, "A", []string{"2024-08-01"}, ""); err != nil {
		t.Fatalf("AddApplication to m2: %v", err)
	}
}

func TestDeadlineEnforcedAtSubmission(t *testing.T) {
	t.Parallel()
	r := newTestRegistry(t)

	base := time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return base }
	if _, err := r.CreateSession("m1", 1, "2024-07"); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	// Inside the window.
	r.now = func() time.Time { return base.AddDate(0, 0, 4) }
	if _, _, err := r.AddApplication("m1", 1, "A", []string{"2024-07-10"}, ""); err != nil {
		t.Fatalf("AddApplication inside window: %v", err)
	}

	// Past the deadline the session is still active, but submissions fail.
	r.now = func() time.Time { return base.AddDate(0, 0, 6) }
	_, _, err := r.AddApplication("m1", 2, "B", []string{"2024-07-10"}, "")
	if !errors.Is(err, ErrDeadlinePassed) {
		t.Fatalf("err = %v, want ErrDeadlinePassed", err)
	}
	active := r.ActiveSessions()
	if len(active) != 1 || active[0].MessageID != "m1" {
		t.Fatalf("expected m1 still active, got %v", active)
	}
}

func TestCloseIdempotent(t *testing.T) {
	t.Parallel()
	r := newTestRegistry(t)

	if _, err := r.CreateSession("m1", 1, "2024-07"); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if _, _, err := r.AddApplication("m1", 3, "C", []string{"2024-07-10"}, ""); err != nil {
		t.Fatalf("AddApplication: %v", err)
	}
	first, err := r.CloseSession("m1")
	if err != nil {
		t.Fatalf("first CloseSession: %v", err)
	}
	if first.MessageID != "m1" || first.Status != StatusClosed || first.Total != 1 {
		t.Fatalf("first close summary = %+v", first)
	}
	second, err := r.CloseSession("m1")
	if err != nil {
		t.Fatalf("second CloseSession: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("second close summary %+v differs from first %+v", second, first)
	}

	_, _, err = r.AddApplication("m1", 1, "A", []string{"2024-07-10"}, "")
	if !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("err = %v, want ErrSessionClosed", err)
	}
	if got := r.ActiveSessions(); len(got) != 0 {
		t.Fatalf("expected no active sessions, got %v", got)
	}
}

func TestUnknownSessionLeavesDiskUnchanged(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "applications.json")
	store, err := docstore.New(path)
	if err != nil {
		t.Fatalf("docstore.New: %v", err)
	}
	r, err := New(store, logx.Nop(), 5)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := r.CreateSession("m1", 1, "2024-07"); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	if _, _, err := r.AddApplication("nope", 1, "A", []string{"2024-07-10"}, ""); !errors.Is(err, ErrUnknownSession) {
		t.Fatalf("AddApplication err = %v, want ErrUnknownSession", err)
	}
	if _, err := r.CloseSession("nope"); !errors.Is(err, ErrUnknownSession) {
		t.Fatalf("CloseSession err = %v, want ErrUnknownSession", err)
	}
	if _, err := r.Summary("nope"); !errors.Is(err, ErrUnknownSession) {
		t.Fatalf("Summary err = %v, want ErrUnknownSession", err)
	}

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile after: %v", err)
	}
	if string(before) != string(after) {
		t.Fatal("document changed by failed operations")
	}
}

func TestPersistReloadRoundTrip(t *testing.T) {
	t.Parallel()
	store, err := docstore.New(filepath.Join(t.TempDir(), "applications.json"))
	if err != nil {
		t.Fatalf("docstore.New: %v", err)
	}

	r1, err := New(store, logx.Nop(), 5)
	if err != nil {
		t.Fatalf("New r1: %v", err)
	}
	if _, err := r1.CreateSession("m1", 42, "2024-07"); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if _, _, err := r1.AddApplication("m1", 1, "A", []string{"2024-07-10", "2024-07-12"}, "notes"); err != nil {
		t.Fatalf("AddApplication: %v", err)
	}

	r2, err := New(store, logx.Nop(), 5)
	if err != nil {
		t.Fatalf("New r2: %v", err)
	}
	sum, err := r2.Summary("m1")
	if err != nil {
		t.Fatalf("Summary after reload: %v", err)
	}
	if sum.Total != 1 || sum.ChannelID != 42 || sum.Month != "2024-07" {
		t.Fatalf("unexpected summary after reload: %+v", sum)
	}
	ref, ok := r2.UserApplication(1)
	if !ok || ref.MessageID != "m1" {
		t.Fatalf("UserApplication after reload = %+v, %v", ref, ok)
	}
}

func TestCleanupRetention(t *testing.T) {
	t.Parallel()
	r := newTestRegistry(t)

	now := time.Date(2024, 8, 15, 12, 0, 0, 0, time.UTC)

	r.now = func() time.Time { return now.AddDate(0, 0, -40) }
	if _, err := r.CreateSession("old", 1, "2024-07"); err != nil {
		t.Fatalf("CreateSession old: %v", err)
	}
	if _, _, err := r.AddApplication("old", 9, "Z", []string{"2024-07-01"}, ""); err != nil {
		t.Fatalf("AddApplication old: %v", err)
	}

	r.now = func() time.Time { return now.AddDate(0, 0, -10) }
	if _, err := r.CreateSession("fresh", 1, "2024-08"); err != nil {
		t.Fatalf("CreateSession fresh: %v", err)
	}

	r.now = func() time.Time { return now }
	removed, err := r.Cleanup(30)
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, err := r.Summary("old"); !errors.Is(err, ErrUnknownSession) {
		t.Fatalf("old session should be gone, got err = %v", err)
	}
	if _, err := r.Summary("fresh"); err != nil {
		t.Fatalf("fresh session should survive: %v", err)
	}
	if _, ok := r.UserApplication(9); ok {
		t.Fatal("user index entry for removed session should be pruned")
	}
}
