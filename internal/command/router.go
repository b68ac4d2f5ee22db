// Package command turns incoming transport updates into registry and
// aggregator operations: reply-based applications, admin commands, and the
// DM prompt flows.
package command

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"rosterbot/internal/analytics"
	"rosterbot/internal/announce"
	"rosterbot/internal/eventbus"
	"rosterbot/internal/notify"
	"rosterbot/internal/sendlog"
	"rosterbot/internal/session"
	"rosterbot/internal/transport"
	"rosterbot/pkg/logx"
)

// Registry is the session surface the router drives.
type Registry interface {
	AddApplication(messageID string, userID int64, userName string, dates []string, info string) (session.Application, int, error)
	CloseSession(messageID string) (session.Summary, error)
	Summary(messageID string) (session.Summary, error)
	ActiveSessions() []session.Summary
}

// Stats records submissions and produces the /stats report.
type Stats interface {
	Record(ev analytics.Event) error
	ComprehensiveReport() analytics.Report
}

// Alerter fans threshold alerts out to admins.
type Alerter interface {
	RaiseAlerts(ctx context.Context, alerts []notify.Alert)
}

// Announcer is the announce-service surface used by commands.
type Announcer interface {
	NextRuns() []announce.NextRun
	SendTest(ctx context.Context, channelID int64) error
	AnnounceNow(ctx context.Context, channelID int64, text string) (string, error)
}

// ChannelAdmin manages the runtime set of scheduled channels
// (/addchannel, /removechannel, /setmessage).
type ChannelAdmin interface {
	Channels() []announce.Channel
	AddChannel(id int64) error
	RemoveChannel(id int64) error
	SetMessage(id int64, message string) error
}

// Messenger is the outbound transport surface.
type Messenger interface {
	SendText(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) (transport.MessageRef, error)
	SendPhoto(ctx context.Context, to transport.ChatTarget, photoID string, caption string, opt *transport.SendOptions) (transport.MessageRef, error)
	Chat(ctx context.Context, chatID int64) (transport.ChatInfo, error)
}

// Settings is the router's per-dispatch configuration snapshot.
type Settings struct {
	AdminIDs         []int64
	Location         *time.Location
	LowParticipation int
	HighConflict     int
	AnnounceChannel  int64
	ScheduleChannel  int64
	Timezone         string
}

func (s Settings) IsAdmin(id int64) bool {
	for _, a := range s.AdminIDs {
		if a == id {
			return true
		}
	}
	return false
}

type Router struct {
	log       logx.Logger
	msgr      Messenger
	registry  Registry
	stats     Stats
	alerter   Alerter
	announcer Announcer
	channels  ChannelAdmin
	sends     sendlog.Store
	bus       eventbus.Bus

	// settings returns the current config snapshot; swapped on hot reload.
	settings func() Settings

	await *prompts
}

type Deps struct {
	Messenger Messenger
	Registry  Registry
	Stats     Stats
	Alerter   Alerter
	Announcer Announcer
	Channels  ChannelAdmin
	Sends     sendlog.Store
	Bus       eventbus.Bus
	Settings  func() Settings
}

func NewRouter(d Deps, log logx.Logger) *Router {
	return &Router{
		log:       log.With(logx.String("component", "command")),
		msgr:      d.Messenger,
		registry:  d.Registry,
		stats:     d.Stats,
		alerter:   d.Alerter,
		announcer: d.Announcer,
		channels:  d.Channels,
		sends:     d.Sends,
		bus:       d.Bus,
		settings:  d.Settings,
		await:     newPrompts(),
	}
}

// DispatchLoop consumes updates until ctx is cancelled.
func (r *Router) DispatchLoop(ctx context.Context, updates <-chan transport.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case up, ok := <-updates:
			if !ok {
				return
			}
			r.Handle(ctx, up)
		}
	}
}

// Handle routes one update.
func (r *Router) Handle(ctx context.Context, up transport.Update) {
	if up.Kind != transport.UpdateMessage || up.Message == nil {
		return
	}
	msg := up.Message

	switch {
	case strings.HasPrefix(msg.Text, "/"):
		r.handleCommand(ctx, msg)
	case msg.ReplyToID != 0:
		r.handleReply(ctx, msg)
	case msg.IsDM && r.await.Waiting(msg.FromID):
		r.handleAwaited(ctx, msg)
	}
}

// ---- reply-based applications ----

func (r *Router) handleReply(ctx context.Context, msg *transport.Message) {
	messageID := strconv.Itoa(msg.ReplyToID)

	sum, err := r.registry.Summary(messageID)
	if err != nil {
		// Replies to untracked messages are ordinary conversation.
		r.log.Debug("reply to untracked message", logx.String("message_id", messageID))
		return
	}

	dates, info, err := parseApplication(msg.Text, sum.Month)
	if err != nil {
		r.reply(ctx, msg, "I couldn't find any dates in your reply. List the days you want to work, e.g.: 10, 12, 15")
		return
	}

	app, total, err := r.registry.AddApplication(messageID, msg.FromID, msg.FromUsername, dates, info)
	switch {
	case errors.Is(err, session.ErrDuplicateSubmission):
		r.reply(ctx, msg, "You already applied to this sign-up. Contact an admin to change your application.")
		return
	case errors.Is(err, session.ErrDeadlinePassed):
		r.reply(ctx, msg, "The application deadline for this sign-up has passed.")
		return
	case errors.Is(err, session.ErrSessionClosed):
		r.reply(ctx, msg, "This sign-up is closed.")
		return
	case err != nil:
		r.log.Error("application not recorded", logx.String("message_id", messageID), logx.Err(err))
		r.reply(ctx, msg, "Something went wrong recording your application. Please try again.")
		return
	}

	if err := r.stats.Record(analytics.Event{
		UserID:         msg.FromID,
		UserName:       msg.FromUsername,
		ChannelID:      msg.ChatID,
		RequestedDates: app.RequestedDates,
		Timestamp:      app.AppliedAt,
	}); err != nil {
		r.log.Warn("analytics record failed", logx.Err(err))
	}

	r.publish(eventbus.EventApplicationAdded, map[string]any{
		"message_id": messageID,
		"user_id":    msg.FromID,
		"total":      total,
	})

	r.reply(ctx, msg, confirmApplication(app))

	// High-conflict check against the fresh summary.
	st := r.settings()
	if r.alerter != nil && st.HighConflict > 0 {
		if sum, err := r.registry.Summary(messageID); err == nil {
			if alerts := notify.EvaluateSession(sum, 0, st.HighConflict); len(alerts) > 0 {
				r.alerter.RaiseAlerts(ctx, alerts)
			}
		}
	}
}

// ---- awaited DM follow-ups ----

func (r *Router) handleAwaited(ctx context.Context, msg *transport.Message) {
	pr, ok := r.await.Take(msg.FromID)
	if !ok {
		return
	}
	st := r.settings()

	switch pr.Field {
	case "announce_text":
		text := strings.TrimSpace(msg.Text)
		if text == "" {
			r.reply(ctx, msg, "Announcement cancelled: empty text.")
			return
		}
		id, err := r.announcer.AnnounceNow(ctx, st.AnnounceChannel, text)
		if err != nil {
			r.reply(ctx, msg, "Posting failed: "+err.Error())
			return
		}
		r.reply(ctx, msg, "Posted. Session "+id+" is now collecting applications.")

	case "schedule_photo":
		if msg.PhotoID == "" {
			r.reply(ctx, msg, "That wasn't a photo. Send /upload to start over.")
			return
		}
		r.await.Ask(msg.FromID, "schedule_month", map[string]string{"photo_id": msg.PhotoID})
		r.reply(ctx, msg, "Got it. Which month is this schedule for?")

	case "schedule_month":
		label := strings.TrimSpace(msg.Text)
		if label == "" {
			r.reply(ctx, msg, "Upload cancelled: empty month.")
			return
		}
		target := st.ScheduleChannel
		if target == 0 {
			target = st.AnnounceChannel
		}
		if target == 0 {
			r.reply(ctx, msg, "No schedule channel configured.")
			return
		}
		caption := "📋 Schedule for " + label
		if _, err := r.msgr.SendPhoto(ctx, transport.ChatTarget{ChatID: target}, pr.Data["photo_id"], caption, nil); err != nil {
			r.log.Error("schedule upload failed", logx.Int64("channel_id", target), logx.Err(err))
			r.reply(ctx, msg, "Posting the schedule failed: "+err.Error())
			return
		}
		r.reply(ctx, msg, "Schedule posted.")
	}
}

// ---- helpers ----

func (r *Router) reply(ctx context.Context, msg *transport.Message, text string) {
	to := transport.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID}
	if _, err := r.msgr.SendText(ctx, to, text, nil); err != nil {
		r.log.Warn("reply failed", logx.Int64("chat_id", msg.ChatID), logx.Err(err))
	}
}

// dm sends to the user's private chat; on failure it tells the user
// in the originating chat to enable DMs.
func (r *Router) dm(ctx context.Context, msg *transport.Message, text string) {
	if _, err := r.msgr.SendText(ctx, transport.ChatTarget{ChatID: msg.FromID}, text, nil); err != nil {
		r.log.Warn("dm failed", logx.Int64("user_id", msg.FromID), logx.Err(err))
		if !msg.IsDM {
			r.reply(ctx, msg, "I couldn't send you a direct message. Open a chat with me first.")
		}
	}
}

func (r *Router) publish(typ string, data any) {
	if r.bus != nil {
		r.bus.Publish(eventbus.Event{Type: typ, Data: data})
	}
}
