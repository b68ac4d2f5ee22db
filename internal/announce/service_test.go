package announce

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"rosterbot/internal/sendlog"
	"rosterbot/internal/session"
	"rosterbot/internal/transport"
	"rosterbot/pkg/logx"
)

type flakySender struct {
	mu       sync.Mutex
	failures int // fail this many sends before succeeding
	calls    int
}

func (f *flakySender) SendText(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) (transport.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return transport.MessageRef{}, errors.New("network error")
	}
	return transport.MessageRef{ChatID: to.ChatID, MessageID: 500 + f.calls}, nil
}

type memSendlog struct {
	mu      sync.Mutex
	entries []sendlog.Entry
}

func (m *memSendlog) Append(ctx context.Context, e sendlog.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func (m *memSendlog) Recent(ctx context.Context, limit int) ([]sendlog.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sendlog.Entry(nil), m.entries...), nil
}

func (m *memSendlog) Close() error { return nil }

type recordingSessions struct {
	mu      sync.Mutex
	created []string
}

func (r *recordingSessions) CreateSession(messageID string, channelID int64, month string) (session.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, messageID+"/"+month)
	return session.Session{ChannelID: channelID, Month: month}, nil
}

type collectingAdmins struct {
	mu    sync.Mutex
	texts []string
}

func (c *collectingAdmins) Broadcast(ctx context.Context, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.texts = append(c.texts, text)
}

func TestRenderTemplate(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 7, 20, 9, 0, 0, 0, time.UTC)
	got := renderTemplate("Sign-up for {month} {year} opens {date} (day {day})", now)
	want := "Sign-up for August 2024 opens 20.07.2024 (day 20)"
	if got != want {
		t.Fatalf("renderTemplate = %q, want %q", got, want)
	}
}

func TestTargetMonthYearRollover(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 12, 20, 9, 0, 0, 0, time.UTC)
	target := targetMonth(now)
	if target.Year() != 2025 || target.Month() != time.January {
		t.Fatalf("targetMonth = %v", target)
	}
}

func TestSendWithRetryRecoversAndLogs(t *testing.T) {
	t.Parallel()
	sender := &flakySender{failures: 2}
	logStore := &memSendlog{}
	s := New(sender, &recordingSessions{}, nil, logStore, nil, logx.Nop())

	ref, err := s.sendWithRetry(context.Background(), -100, "hello")
	if err != nil {
		t.Fatalf("sendWithRetry: %v", err)
	}
	if ref.MessageID == 0 {
		t.Fatal("expected message ref")
	}

	entries, _ := logStore.Recent(context.Background(), 0)
	if len(entries) != 3 {
		t.Fatalf("log entries = %d, want 3", len(entries))
	}
	if entries[0].Status != sendlog.StatusFail || entries[0].Attempt != 1 {
		t.Fatalf("first entry = %+v", entries[0])
	}
	if entries[2].Status != sendlog.StatusSuccess || entries[2].Attempt != 3 {
		t.Fatalf("last entry = %+v", entries[2])
	}
}

func TestSendWithRetryGivesUpAfterThree(t *testing.T) {
	t.Parallel()
	sender := &flakySender{failures: 10}
	logStore := &memSendlog{}
	s := New(sender, &recordingSessions{}, nil, logStore, nil, logx.Nop())

	_, err := s.sendWithRetry(context.Background(), -100, "hello")
	if err == nil {
		t.Fatal("expected error after exhausted attempts")
	}
	if sender.calls != 3 {
		t.Fatalf("calls = %d, want 3", sender.calls)
	}
	entries, _ := logStore.Recent(context.Background(), 0)
	for _, e := range entries {
		if e.Status != sendlog.StatusFail {
			t.Fatalf("unexpected status %q", e.Status)
		}
	}
}

func TestAnnounceCreatesSessionAndNotifiesOnFailure(t *testing.T) {
	t.Parallel()
	sessions := &recordingSessions{}
	admins := &collectingAdmins{}
	sender := &flakySender{}
	s := New(sender, sessions, admins, &memSendlog{}, nil, logx.Nop())
	s.now = func() time.Time { return time.Date(2024, 7, 20, 9, 0, 0, 0, time.UTC) }
	s.cfg = Config{Location: time.UTC, DefaultMessage: "sign-up {month}"}

	s.announce(context.Background(), Channel{ID: -100})
	if len(sessions.created) != 1 || !strings.HasSuffix(sessions.created[0], "/2024-08") {
		t.Fatalf("created = %v", sessions.created)
	}
	if len(admins.texts) != 0 {
		t.Fatalf("unexpected admin notices: %v", admins.texts)
	}

	// All attempts failing must DM admins instead.
	failing := &flakySender{failures: 100}
	s2 := New(failing, sessions, admins, &memSendlog{}, nil, logx.Nop())
	s2.cfg = Config{Location: time.UTC, DefaultMessage: "m"}
	s2.announce(context.Background(), Channel{ID: -200})
	if len(admins.texts) != 1 || !strings.Contains(admins.texts[0], "failed") {
		t.Fatalf("admin notices = %v", admins.texts)
	}
}

func TestAnnounceNow(t *testing.T) {
	t.Parallel()
	sessions := &recordingSessions{}
	s := New(&flakySender{}, sessions, nil, &memSendlog{}, nil, logx.Nop())
	s.now = func() time.Time { return time.Date(2024, 7, 5, 12, 0, 0, 0, time.UTC) }

	id, err := s.AnnounceNow(context.Background(), -300, "extra shift call")
	if err != nil {
		t.Fatalf("AnnounceNow: %v", err)
	}
	if id == "" {
		t.Fatal("expected message id")
	}
	if len(sessions.created) != 1 {
		t.Fatalf("created = %v", sessions.created)
	}
}

func TestSendTestLogsTestStatus(t *testing.T) {
	t.Parallel()
	logStore := &memSendlog{}
	s := New(&flakySender{}, &recordingSessions{}, nil, logStore, nil, logx.Nop())
	s.cfg = Config{DefaultMessage: "msg {month}", Location: time.UTC}

	if err := s.SendTest(context.Background(), -400); err != nil {
		t.Fatalf("SendTest: %v", err)
	}
	entries, _ := logStore.Recent(context.Background(), 0)
	if len(entries) != 1 || entries[0].Status != sendlog.StatusTest {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestStartDisabledAndStop(t *testing.T) {
	t.Parallel()
	s := New(&flakySender{}, &recordingSessions{}, nil, nil, nil, logx.Nop())
	if err := s.Start(context.Background(), Config{Enabled: false}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if runs := s.NextRuns(); runs != nil {
		t.Fatalf("NextRuns on disabled announcer = %v", runs)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}

func TestStartSchedulesChannels(t *testing.T) {
	t.Parallel()
	s := New(&flakySender{}, &recordingSessions{}, nil, nil, nil, logx.Nop())
	cfg := Config{
		Enabled:        true,
		Location:       time.UTC,
		Channels:       []Channel{{ID: -1}, {ID: -2}},
		DefaultMessage: "m",
	}
	if err := s.Start(context.Background(), cfg); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		s.Stop(ctx)
	}()

	runs := s.NextRuns()
	if len(runs) != 2 {
		t.Fatalf("NextRuns = %v", runs)
	}
	for _, r := range runs {
		if r.At.IsZero() {
			t.Fatalf("zero next run for channel %d", r.ChannelID)
		}
		if r.At.Day() != 20 || r.At.Hour() != 9 {
			t.Fatalf("next run %v not on day 20 09:00", r.At)
		}
	}
}
