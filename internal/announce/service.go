// Package announce posts the monthly sign-up announcements on schedule,
// registers the resulting sessions, and keeps the send history.
package announce

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"rosterbot/internal/eventbus"
	"rosterbot/internal/sendlog"
	"rosterbot/internal/session"
	"rosterbot/internal/transport"
	"rosterbot/pkg/logx"
)

// Announcements go out on day 20 at 09:00; admins get a heads-up on day 19.
const (
	announceCronSpec  = "0 9 20 * *"
	preNoticeCronSpec = "0 9 19 * *"

	sendAttempts = 3
)

type Sender interface {
	SendText(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) (transport.MessageRef, error)
}

// SessionCreator opens a collection session for a posted announcement.
type SessionCreator interface {
	CreateSession(messageID string, channelID int64, month string) (session.Session, error)
}

// AdminNotifier delivers admin-facing notices (pre-send heads-up, failures).
type AdminNotifier interface {
	Broadcast(ctx context.Context, text string)
}

type Channel struct {
	ID      int64
	Message string
}

type Config struct {
	Enabled  bool
	Location *time.Location
	// Channels receive the scheduled announcement; Message falls back to
	// DefaultMessage when empty.
	Channels       []Channel
	DefaultMessage string
}

// NextRun pairs a channel with its next scheduled announcement time.
type NextRun struct {
	ChannelID int64
	At        time.Time
}

type Service struct {
	log      logx.Logger
	sender   Sender
	sessions SessionCreator
	admins   AdminNotifier
	sends    sendlog.Store
	bus      eventbus.Bus

	mu   sync.Mutex
	cfg  Config
	cron *cron.Cron
	// entryByChannel maps channel id to its cron entry for NextRuns.
	entryByChannel map[int64]cron.EntryID

	now func() time.Time
}

func New(sender Sender, sessions SessionCreator, admins AdminNotifier, sends sendlog.Store, bus eventbus.Bus, log logx.Logger) *Service {
	return &Service{
		log:      log.With(logx.String("component", "announce")),
		sender:   sender,
		sessions: sessions,
		admins:   admins,
		sends:    sends,
		bus:      bus,
		now:      time.Now,
	}
}

// Start registers the cron jobs for cfg. No-op when disabled or when no
// channels are configured.
func (s *Service) Start(ctx context.Context, cfg Config) error {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return fmt.Errorf("announce: already started")
	}
	s.cfg = cfg
	if !cfg.Enabled || len(cfg.Channels) == 0 {
		s.log.Debug("announcer disabled")
		return nil
	}

	c := cron.New(
		cron.WithLocation(cfg.Location),
		cron.WithParser(cron.NewParser(
			cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow,
		)),
	)
	s.entryByChannel = make(map[int64]cron.EntryID, len(cfg.Channels))
	for _, ch := range cfg.Channels {
		ch := ch
		id, err := c.AddFunc(announceCronSpec, func() {
			s.announce(ctx, ch)
		})
		if err != nil {
			return fmt.Errorf("announce: schedule channel %d: %w", ch.ID, err)
		}
		s.entryByChannel[ch.ID] = id
	}
	if _, err := c.AddFunc(preNoticeCronSpec, func() {
		s.preNotice(ctx)
	}); err != nil {
		return fmt.Errorf("announce: schedule pre-notice: %w", err)
	}

	c.Start()
	s.cron = c
	s.log.Info("announcer started",
		logx.Int("channels", len(cfg.Channels)),
		logx.String("timezone", cfg.Location.String()))
	return nil
}

// Stop halts the cron scheduler and waits for a running job to finish.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.entryByChannel = nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	stopCtx := c.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
		s.log.Warn("announcer stop timed out")
	}
}

// Restart re-registers jobs for a new configuration.
func (s *Service) Restart(ctx context.Context, cfg Config) error {
	s.Stop(ctx)
	return s.Start(ctx, cfg)
}

// NextRuns reports each channel's next scheduled announcement, for /status.
func (s *Service) NextRuns() []NextRun {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron == nil {
		return nil
	}
	out := make([]NextRun, 0, len(s.entryByChannel))
	for chID, entryID := range s.entryByChannel {
		e := s.cron.Entry(entryID)
		out = append(out, NextRun{ChannelID: chID, At: e.Next})
	}
	return out
}

// announce renders and posts one channel's announcement, then opens the
// session keyed by the posted message id.
func (s *Service) announce(ctx context.Context, ch Channel) {
	s.mu.Lock()
	cfg := s.cfg
	s.mu.Unlock()

	tmpl := ch.Message
	if tmpl == "" {
		tmpl = cfg.DefaultMessage
	}
	now := s.now().In(cfg.Location)
	text := renderTemplate(tmpl, now)

	ref, err := s.sendWithRetry(ctx, ch.ID, text)
	if err != nil {
		s.log.Error("announcement failed", logx.Int64("channel_id", ch.ID), logx.Err(err))
		if s.admins != nil {
			s.admins.Broadcast(ctx, fmt.Sprintf(
				"❌ Announcement to channel %d failed after %d attempts: %v", ch.ID, sendAttempts, err))
		}
		s.publish(eventbus.EventAnnounceFailed, map[string]any{"channel_id": ch.ID, "error": err.Error()})
		return
	}

	messageID := strconv.Itoa(ref.MessageID)
	month := monthKey(targetMonth(now))
	if _, err := s.sessions.CreateSession(messageID, ch.ID, month); err != nil {
		s.log.Error("session create failed after announcement",
			logx.String("message_id", messageID), logx.Err(err))
	}
	s.publish(eventbus.EventAnnounceSent, map[string]any{"channel_id": ch.ID, "message_id": messageID, "month": month})
	s.log.Info("announcement posted",
		logx.Int64("channel_id", ch.ID),
		logx.String("message_id", messageID),
		logx.String("month", month))
}

// AnnounceNow posts a custom announcement immediately (the /announce
// command) and opens its session.
func (s *Service) AnnounceNow(ctx context.Context, channelID int64, text string) (string, error) {
	s.mu.Lock()
	cfg := s.cfg
	s.mu.Unlock()
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}

	ref, err := s.sendWithRetry(ctx, channelID, text)
	if err != nil {
		s.publish(eventbus.EventAnnounceFailed, map[string]any{"channel_id": channelID, "error": err.Error()})
		return "", err
	}
	messageID := strconv.Itoa(ref.MessageID)
	month := monthKey(targetMonth(s.now().In(loc)))
	if _, err := s.sessions.CreateSession(messageID, channelID, month); err != nil {
		s.log.Error("session create failed after announcement",
			logx.String("message_id", messageID), logx.Err(err))
	}
	s.publish(eventbus.EventAnnounceSent, map[string]any{"channel_id": channelID, "message_id": messageID, "month": month})
	return messageID, nil
}

// SendTest posts a rendered announcement marked as a test; no session is
// created and a single attempt is made.
func (s *Service) SendTest(ctx context.Context, channelID int64) error {
	s.mu.Lock()
	cfg := s.cfg
	s.mu.Unlock()

	tmpl := cfg.DefaultMessage
	for _, ch := range cfg.Channels {
		if ch.ID == channelID && ch.Message != "" {
			tmpl = ch.Message
		}
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	text := "🧪 " + renderTemplate(tmpl, s.now().In(loc))

	_, err := s.sender.SendText(ctx, transport.ChatTarget{ChatID: channelID}, text, nil)
	s.appendLog(ctx, sendlog.Entry{
		ChannelID: channelID,
		Message:   text,
		Status:    sendlog.StatusTest,
		Attempt:   1,
		Error:     errString(err),
	})
	return err
}

func (s *Service) preNotice(ctx context.Context) {
	if s.admins == nil {
		return
	}
	s.mu.Lock()
	cfg := s.cfg
	s.mu.Unlock()

	s.admins.Broadcast(ctx, fmt.Sprintf(
		"📅 Monthly announcement goes out tomorrow at 09:00 (%s) to %d channel(s). Use /setmessage to change the text.",
		cfg.Location.String(), len(cfg.Channels)))
	s.log.Info("pre-send notice delivered", logx.Int("channels", len(cfg.Channels)))
}

// sendWithRetry makes up to sendAttempts deliveries, logging every outcome.
// Attempts are immediate; the platform either takes the message or the
// channel is misconfigured, so backing off buys nothing.
func (s *Service) sendWithRetry(ctx context.Context, channelID int64, text string) (transport.MessageRef, error) {
	var lastErr error
	for attempt := 1; attempt <= sendAttempts; attempt++ {
		ref, err := s.sender.SendText(ctx, transport.ChatTarget{ChatID: channelID}, text, nil)
		status := sendlog.StatusSuccess
		if err != nil {
			status = sendlog.StatusFail
		}
		s.appendLog(ctx, sendlog.Entry{
			ChannelID: channelID,
			Message:   text,
			Status:    status,
			Attempt:   attempt,
			Error:     errString(err),
		})
		if err == nil {
			return ref, nil
		}
		lastErr = err
		s.log.Warn("announcement attempt failed",
			logx.Int64("channel_id", channelID),
			logx.Int("attempt", attempt),
			logx.Err(err))
		if ctx.Err() != nil {
			return transport.MessageRef{}, ctx.Err()
		}
	}
	return transport.MessageRef{}, fmt.Errorf("announce: all %d attempts failed: %w", sendAttempts, lastErr)
}

func (s *Service) appendLog(ctx context.Context, e sendlog.Entry) {
	if s.sends == nil {
		return
	}
	if e.At.IsZero() {
		e.At = s.now()
	}
	if err := s.sends.Append(ctx, e); err != nil {
		s.log.Warn("send log append failed", logx.Err(err))
	}
}

func (s *Service) publish(typ string, data any) {
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: typ, Data: data})
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
