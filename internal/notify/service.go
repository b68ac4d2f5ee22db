// Package notify drives deadline reminders, scheduled admin reports and
// threshold alerts. All delivery is best-effort: per-recipient failures are
// logged and skipped.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"rosterbot/internal/analytics"
	"rosterbot/internal/eventbus"
	rtsup "rosterbot/internal/runtime/supervisor"
	"rosterbot/internal/session"
	"rosterbot/internal/transport"
	"rosterbot/pkg/logx"
)

type Service struct {
	log      logx.Logger
	sender   Sender
	sessions SessionSource
	stats    StatsSource
	bus      eventbus.Bus

	// limiter paces outbound broadcasts so a long admin list doesn't trip
	// platform flood limits.
	limiter *rate.Limiter

	mu      sync.Mutex
	cfg     Config
	sup     *rtsup.Supervisor
	running bool

	now func() time.Time
}

func New(sender Sender, sessions SessionSource, stats StatsSource, bus eventbus.Bus, log logx.Logger) *Service {
	return &Service{
		log:      log.With(logx.String("component", "notify")),
		sender:   sender,
		sessions: sessions,
		stats:    stats,
		bus:      bus,
		limiter:  rate.NewLimiter(rate.Limit(1), 5),
		now:      time.Now,
	}
}

// Start launches the reminder watches and report sleepers for cfg.
// A disabled config makes Start a no-op.
func (s *Service) Start(ctx context.Context, cfg Config) {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = time.Hour
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.cfg = cfg
	if !cfg.Enabled {
		s.log.Debug("notifications disabled")
		return
	}
	s.running = true
	s.sup = rtsup.NewSupervisor(ctx,
		rtsup.WithLogger(s.log),
		rtsup.WithCancelOnError(false),
	)

	for _, lead := range cfg.ReminderHours {
		lead := lead
		name := fmt.Sprintf("notify.reminder.%dh", lead)
		s.sup.GoRestart0(name, func(c context.Context) {
			s.reminderLoop(c, lead)
		}, rtsup.WithStopOnCleanExit(true))
	}
	s.sup.GoRestart0("notify.report.daily", s.dailyLoop, rtsup.WithStopOnCleanExit(true))
	s.sup.GoRestart0("notify.report.weekly", s.weeklyLoop, rtsup.WithStopOnCleanExit(true))

	s.log.Info("notifier started",
		logx.Any("reminder_hours", cfg.ReminderHours),
		logx.Duration("check_interval", cfg.CheckInterval))
}

// Stop cancels all watches. Cancellation is clean termination, not an error.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	sup := s.sup
	s.sup = nil
	s.running = false
	s.mu.Unlock()

	if sup == nil {
		return
	}
	sup.Cancel()
	if err := sup.Wait(ctx); err != nil {
		s.log.Warn("notifier stop", logx.Err(err))
	}
}

// Restart applies a new configuration by tearing the watches down and
// starting them again; the watch set depends on the reminder hours.
func (s *Service) Restart(ctx context.Context, cfg Config) {
	s.Stop(ctx)
	s.Start(ctx, cfg)
}

func (s *Service) snapshot() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// ---- loops ----

func (s *Service) reminderLoop(ctx context.Context, leadHours int) {
	cfg := s.snapshot()
	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		cfg = s.snapshot()
		now := s.now()
		due := dueSessions(s.sessions.ActiveSessions(), now, time.Duration(leadHours)*time.Hour)
		for _, sum := range due {
			text := formatReminder(sum, leadHours)
			if _, err := s.sender.SendText(ctx, transport.ChatTarget{ChatID: sum.ChannelID}, text, nil); err != nil {
				s.log.Warn("channel reminder failed",
					logx.String("message_id", sum.MessageID),
					logx.Int64("channel_id", sum.ChannelID),
					logx.Err(err))
			}
			admin := formatAdminReminder(sum, leadHours)
			if sum.Total < cfg.LowParticipation {
				admin += "\n" + formatAlertLine(Alert{
					Kind:      AlertLowParticipation,
					MessageID: sum.MessageID,
					Detail:    fmt.Sprintf("%d application(s) so far", sum.Total),
				})
			}
			s.Broadcast(ctx, admin)
			s.log.Info("deadline reminder sent",
				logx.String("message_id", sum.MessageID),
				logx.Int("lead_hours", leadHours))
		}
	}
}

func (s *Service) dailyLoop(ctx context.Context) {
	for {
		cfg := s.snapshot()
		next := nextDailyRun(s.now().In(cfg.Location), cfg.DailyHour, cfg.DailyMinute)
		if !sleepUntil(ctx, next) {
			return
		}
		month := analytics.CurrentMonthKey(s.now().In(cfg.Location))
		// A month without data still produces a (zeroed) report.
		stats, _ := s.stats.MonthlyStatistics(month)
		text := formatDailyReport(stats, s.sessions.ActiveSessions())
		s.Broadcast(ctx, text)
		s.publish(eventbus.EventReportSent, map[string]string{"kind": "daily"})
		s.log.Info("daily report sent", logx.String("month", month))
	}
}

func (s *Service) weeklyLoop(ctx context.Context) {
	for {
		cfg := s.snapshot()
		next := nextWeeklyRun(s.now().In(cfg.Location), cfg.WeeklyDay, cfg.WeeklyHour, cfg.WeeklyMinute)
		if !sleepUntil(ctx, next) {
			return
		}
		text := formatWeeklyReport(s.stats.ComprehensiveReport())
		s.Broadcast(ctx, text)
		s.publish(eventbus.EventReportSent, map[string]string{"kind": "weekly"})
		s.log.Info("weekly report sent")
	}
}

// ---- delivery ----

// Broadcast sends one text to every admin, rate limited, skipping failures.
func (s *Service) Broadcast(ctx context.Context, text string) {
	cfg := s.snapshot()
	for _, id := range cfg.AdminIDs {
		if err := s.limiter.Wait(ctx); err != nil {
			return
		}
		if _, err := s.sender.SendText(ctx, transport.ChatTarget{ChatID: id}, text, nil); err != nil {
			s.log.Warn("admin notification failed", logx.Int64("user_id", id), logx.Err(err))
		}
	}
}

// RaiseAlerts delivers threshold alerts to admins.
func (s *Service) RaiseAlerts(ctx context.Context, alerts []Alert) {
	for _, a := range alerts {
		s.Broadcast(ctx, formatAlertLine(a))
		s.log.Info("alert raised",
			logx.String("kind", string(a.Kind)),
			logx.String("message_id", a.MessageID))
	}
}

func (s *Service) publish(typ string, data any) {
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: typ, Data: data})
	}
}

// ---- pure scheduling helpers ----

// dueSessions returns sessions whose deadline is within the lead window and
// not yet passed. A session inside the window is due on every wake cycle, so
// a watch may remind repeatedly for the same session as the deadline nears.
func dueSessions(sums []session.Summary, now time.Time, lead time.Duration) []session.Summary {
	var out []session.Summary
	for _, sum := range sums {
		left := sum.Deadline.Sub(now)
		if left > 0 && left <= lead {
			out = append(out, sum)
		}
	}
	return out
}

func nextDailyRun(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func nextWeeklyRun(now time.Time, day time.Weekday, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	for next.Weekday() != day || !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func sleepUntil(ctx context.Context, t time.Time) bool {
	d := time.Until(t)
	if d <= 0 {
		d = time.Second
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
