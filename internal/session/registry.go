// Package session tracks monthly sign-up sessions: one per posted
// announcement, keyed by the announcement message id, collecting
// reply-based applications until the deadline.
package session

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"rosterbot/internal/docstore"
	"rosterbot/pkg/logx"
)

// Registry is the single-writer session store. All state lives in one JSON
// document persisted after every mutation.
type Registry struct {
	mu    sync.Mutex
	log   logx.Logger
	store *docstore.Store
	now   func() time.Time

	deadlineDays int

	data document
}

func New(store *docstore.Store, log logx.Logger, deadlineDays int) (*Registry, error) {
	if deadlineDays <= 0 {
		deadlineDays = 5
	}
	r := &Registry{
		log:          log.With(logx.String("component", "session")),
		store:        store,
		now:          time.Now,
		deadlineDays: deadlineDays,
		data:         newDocument(),
	}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload re-reads the document from disk, replacing in-memory state.
// Called at startup and after a failed persist before trusting reads.
func (r *Registry) Reload() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc := newDocument()
	ok, err := r.store.Load(&doc)
	if err != nil {
		return fmt.Errorf("session: load: %w", err)
	}
	if doc.Applications == nil {
		doc.Applications = make(map[string]*Session)
	}
	if doc.UserApplications == nil {
		doc.UserApplications = make(map[string]UserRef)
	}
	r.data = doc
	if ok {
		r.log.Debug("registry loaded",
			logx.Int("sessions", len(doc.Applications)),
			logx.Int("user_refs", len(doc.UserApplications)))
	}
	return nil
}

// SetDeadlineDays updates the deadline window for sessions created from now
// on. Existing sessions keep their recorded deadline.
func (r *Registry) SetDeadlineDays(days int) {
	if days <= 0 {
		return
	}
	r.mu.Lock()
	r.deadlineDays = days
	r.mu.Unlock()
}

// CreateSession starts tracking applications for a posted announcement.
// An existing session under the same message id is replaced.
func (r *Registry) CreateSession(messageID string, channelID int64, month string) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	s := &Session{
		ChannelID:    channelID,
		Month:        month,
		Status:       StatusActive,
		CreatedAt:    now,
		Deadline:     now.AddDate(0, 0, r.deadlineDays),
		Applications: []Application{},
	}
	if _, exists := r.data.Applications[messageID]; exists {
		r.log.Warn("replacing existing session", logx.String("message_id", messageID))
	}
	r.data.Applications[messageID] = s

	if err := r.persistLocked(); err != nil {
		return Session{}, err
	}
	r.log.Info("session created",
		logx.String("message_id", messageID),
		logx.Int64("channel_id", channelID),
		logx.String("month", month),
		logx.Time("deadline", s.Deadline))
	return *s, nil
}

// AddApplication records one user's submission. Returns the stored
// application and the session's application count after the add.
func (r *Registry) AddApplication(messageID string, userID int64, userName string, dates []string, info string) (Application, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.data.Applications[messageID]
	if !ok {
		return Application{}, 0, fmt.Errorf("session %s: %w", messageID, ErrUnknownSession)
	}
	if s.Status != StatusActive {
		return Application{}, 0, fmt.Errorf("session %s: %w", messageID, ErrSessionClosed)
	}

	now := r.now()
	if now.After(s.Deadline) {
		return Application{}, 0, fmt.Errorf("session %s: %w", messageID, ErrDeadlinePassed)
	}

	userKey := formatID(userID)
	if ref, dup := r.data.UserApplications[userKey]; dup && ref.MessageID == messageID {
		return Application{}, 0, fmt.Errorf("user %d in session %s: %w", userID, messageID, ErrDuplicateSubmission)
	}

	app := Application{
		UserID:         userID,
		UserName:       userName,
		RequestedDates: append([]string(nil), dates...),
		AdditionalInfo: info,
		AppliedAt:      now,
	}
	s.Applications = append(s.Applications, app)
	r.data.UserApplications[userKey] = UserRef{MessageID: messageID, AppliedDate: now}

	if err := r.persistLocked(); err != nil {
		return Application{}, 0, err
	}
	r.log.Info("application recorded",
		logx.String("message_id", messageID),
		logx.Int64("user_id", userID),
		logx.Int("dates", len(app.RequestedDates)),
		logx.Int("total", len(s.Applications)))
	return app, len(s.Applications), nil
}

// CloseSession marks a session closed and returns its final digest. Closing
// an already-closed session is a no-op; closing an unknown one fails without
// touching disk.
func (r *Registry) CloseSession(messageID string) (Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.data.Applications[messageID]
	if !ok {
		return Summary{}, fmt.Errorf("session %s: %w", messageID, ErrUnknownSession)
	}
	if s.Status == StatusClosed {
		return summarize(messageID, s), nil
	}
	s.Status = StatusClosed

	if err := r.persistLocked(); err != nil {
		return Summary{}, err
	}
	r.log.Info("session closed",
		logx.String("message_id", messageID),
		logx.Int("applications", len(s.Applications)))
	return summarize(messageID, s), nil
}

// Summary computes the digest for one session.
func (r *Registry) Summary(messageID string) (Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.data.Applications[messageID]
	if !ok {
		return Summary{}, fmt.Errorf("session %s: %w", messageID, ErrUnknownSession)
	}
	return summarize(messageID, s), nil
}

// ActiveSessions returns digests of every session still marked active,
// oldest first.
func (r *Registry) ActiveSessions() []Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Summary, 0, len(r.data.Applications))
	for id, s := range r.data.Applications {
		if s.Status == StatusActive {
			out = append(out, summarize(id, s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// UserApplication reports which session the user last applied to.
func (r *Registry) UserApplication(userID int64) (UserRef, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ref, ok := r.data.UserApplications[formatID(userID)]
	return ref, ok
}

// Cleanup drops sessions created more than retentionDays ago, then prunes
// user index entries that point at removed sessions. Returns the number of
// sessions removed.
func (r *Registry) Cleanup(retentionDays int) (int, error) {
	if retentionDays <= 0 {
		retentionDays = 30
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().AddDate(0, 0, -retentionDays)
	removed := 0
	for id, s := range r.data.Applications {
		if s.CreatedAt.Before(cutoff) {
			delete(r.data.Applications, id)
			removed++
		}
	}
	pruned := 0
	for user, ref := range r.data.UserApplications {
		if _, ok := r.data.Applications[ref.MessageID]; !ok {
			delete(r.data.UserApplications, user)
			pruned++
		}
	}

	if removed == 0 && pruned == 0 {
		return 0, nil
	}
	if err := r.persistLocked(); err != nil {
		return removed, err
	}
	r.log.Info("cleanup done",
		logx.Int("sessions_removed", removed),
		logx.Int("user_refs_pruned", pruned))
	return removed, nil
}

func (r *Registry) persistLocked() error {
	if err := r.store.Save(r.data); err != nil {
		r.log.Error("persist failed", logx.Err(err))
		return fmt.Errorf("session: persist: %w", err)
	}
	return nil
}

func summarize(messageID string, s *Session) Summary {
	sum := Summary{
		MessageID:  messageID,
		ChannelID:  s.ChannelID,
		Month:      s.Month,
		Status:     s.Status,
		CreatedAt:  s.CreatedAt,
		Deadline:   s.Deadline,
		Total:      len(s.Applications),
		DateCounts: make(map[string]int),
	}

	users := make(map[int64]struct{}, len(s.Applications))
	var order []string
	for _, app := range s.Applications {
		users[app.UserID] = struct{}{}
		for _, d := range app.RequestedDates {
			if sum.DateCounts[d] == 0 {
				order = append(order, d)
			}
			sum.DateCounts[d]++
		}
	}
	sum.UniqueUsers = len(users)

	// Contested dates in first-seen order, not sorted by count.
	for _, d := range order {
		if sum.DateCounts[d] > 1 {
			sum.PopularDates = append(sum.PopularDates, d)
		}
	}
	return sum
}

func formatID(id int64) string { return fmt.Sprintf("%d", id) }
