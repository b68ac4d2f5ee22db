package command

import (
	"context"
	"strconv"
	"strings"

	"rosterbot/internal/eventbus"
	"rosterbot/internal/transport"
	"rosterbot/pkg/logx"
)

// handleCommand dispatches a "/command args" message. Everything except
// /help is admin-only.
func (r *Router) handleCommand(ctx context.Context, msg *transport.Message) {
	name, args := splitCommand(msg.Text)
	if name == "" {
		return
	}

	if name == "help" {
		r.reply(ctx, msg, helpText(r.settings().IsAdmin(msg.FromID)))
		return
	}

	st := r.settings()
	if !st.IsAdmin(msg.FromID) {
		r.log.Debug("command from non-admin",
			logx.String("command", name),
			logx.Int64("user_id", msg.FromID))
		return
	}

	switch name {
	case "status":
		r.cmdStatus(ctx, msg)
	case "channels":
		r.cmdChannels(ctx, msg)
	case "test":
		r.cmdTest(ctx, msg, args)
	case "addchannel":
		r.cmdAddChannel(ctx, msg, args)
	case "removechannel":
		r.cmdRemoveChannel(ctx, msg, args)
	case "setmessage":
		r.cmdSetMessage(ctx, msg, args)
	case "sendlog":
		r.cmdSendLog(ctx, msg, args)
	case "applications":
		r.cmdApplications(ctx, msg)
	case "stats":
		r.cmdStats(ctx, msg)
	case "close":
		r.cmdClose(ctx, msg, args)
	case "announce":
		r.cmdAnnounce(ctx, msg, args)
	case "upload":
		r.cmdUpload(ctx, msg)
	default:
		r.reply(ctx, msg, "Unknown command. Send /help for the list.")
	}
}

func (r *Router) cmdStatus(ctx context.Context, msg *transport.Message) {
	st := r.settings()
	r.reply(ctx, msg, formatStatus(
		r.announcer.NextRuns(),
		r.registry.ActiveSessions(),
		len(r.channels.Channels()),
		st.Timezone,
	))
}

func (r *Router) cmdChannels(ctx context.Context, msg *transport.Message) {
	chans := r.channels.Channels()
	if len(chans) == 0 {
		r.reply(ctx, msg, "No channels configured. Add one with /addchannel <id>.")
		return
	}
	var b strings.Builder
	b.WriteString("Configured channels:\n")
	for _, ch := range chans {
		title := ""
		if info, err := r.msgr.Chat(ctx, ch.ID); err == nil {
			title = " — " + info.Title
		} else {
			title = " — unreachable"
		}
		custom := ""
		if ch.Message != "" {
			custom = " (custom message)"
		}
		b.WriteString("• " + strconv.FormatInt(ch.ID, 10) + title + custom + "\n")
	}
	r.reply(ctx, msg, strings.TrimRight(b.String(), "\n"))
}

func (r *Router) cmdTest(ctx context.Context, msg *transport.Message, args []string) {
	target, err := r.targetChannel(args)
	if err != nil {
		r.reply(ctx, msg, err.Error())
		return
	}
	if err := r.announcer.SendTest(ctx, target); err != nil {
		r.reply(ctx, msg, "Test send to "+strconv.FormatInt(target, 10)+" failed: "+err.Error())
		return
	}
	r.reply(ctx, msg, "Test announcement delivered to "+strconv.FormatInt(target, 10)+".")
}

func (r *Router) cmdAddChannel(ctx context.Context, msg *transport.Message, args []string) {
	id, ok := parseChannelID(args)
	if !ok {
		r.reply(ctx, msg, "Usage: /addchannel <channel_id>")
		return
	}
	if _, err := r.msgr.Chat(ctx, id); err != nil {
		r.reply(ctx, msg, "I can't reach that channel. Add me to it first.")
		return
	}
	if err := r.channels.AddChannel(id); err != nil {
		r.reply(ctx, msg, "Not added: "+err.Error())
		return
	}
	r.log.Info("channel added", logx.Int64("channel_id", id), logx.Int64("admin_id", msg.FromID))
	r.reply(ctx, msg, "Channel "+strconv.FormatInt(id, 10)+" added to the announcement schedule.")
}

func (r *Router) cmdRemoveChannel(ctx context.Context, msg *transport.Message, args []string) {
	id, ok := parseChannelID(args)
	if !ok {
		r.reply(ctx, msg, "Usage: /removechannel <channel_id>")
		return
	}
	if err := r.channels.RemoveChannel(id); err != nil {
		r.reply(ctx, msg, "Not removed: "+err.Error())
		return
	}
	r.log.Info("channel removed", logx.Int64("channel_id", id), logx.Int64("admin_id", msg.FromID))
	r.reply(ctx, msg, "Channel "+strconv.FormatInt(id, 10)+" removed from the schedule.")
}

func (r *Router) cmdSetMessage(ctx context.Context, msg *transport.Message, args []string) {
	if len(args) < 2 {
		r.reply(ctx, msg, "Usage: /setmessage <channel_id> <template>\nPlaceholders: {month} {year} {date} {day}")
		return
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		r.reply(ctx, msg, "Usage: /setmessage <channel_id> <template>")
		return
	}
	tmpl := strings.Join(args[1:], " ")
	if err := r.channels.SetMessage(id, tmpl); err != nil {
		r.reply(ctx, msg, "Not updated: "+err.Error())
		return
	}
	r.reply(ctx, msg, "Message template for "+strconv.FormatInt(id, 10)+" updated.")
}

func (r *Router) cmdSendLog(ctx context.Context, msg *transport.Message, args []string) {
	if r.sends == nil {
		r.reply(ctx, msg, "Send logging is disabled.")
		return
	}
	limit := 10
	if len(args) > 0 {
		if n, err := strconv.Atoi(args[0]); err == nil && n > 0 {
			limit = n
		}
	}
	entries, err := r.sends.Recent(ctx, limit)
	if err != nil {
		r.log.Error("send log read failed", logx.Err(err))
		r.reply(ctx, msg, "Couldn't read the send log.")
		return
	}
	r.reply(ctx, msg, formatSendLog(entries))
}

func (r *Router) cmdApplications(ctx context.Context, msg *transport.Message) {
	sums := r.registry.ActiveSessions()
	r.dm(ctx, msg, formatApplications(sums))
}

func (r *Router) cmdStats(ctx context.Context, msg *transport.Message) {
	r.dm(ctx, msg, formatReport(r.stats.ComprehensiveReport()))
}

func (r *Router) cmdClose(ctx context.Context, msg *transport.Message, args []string) {
	messageID := ""
	switch {
	case len(args) > 0:
		messageID = args[0]
	case msg.ReplyToID != 0:
		messageID = strconv.Itoa(msg.ReplyToID)
	default:
		r.reply(ctx, msg, "Usage: /close <message_id>, or reply /close to the announcement.")
		return
	}
	sum, err := r.registry.CloseSession(messageID)
	if err != nil {
		r.reply(ctx, msg, "No sign-up found for message "+messageID+".")
		return
	}
	r.publish(eventbus.EventSessionClosed, map[string]any{"message_id": messageID})
	r.reply(ctx, msg, formatCloseSummary(sum))
}

func (r *Router) cmdAnnounce(ctx context.Context, msg *transport.Message, args []string) {
	st := r.settings()
	if st.AnnounceChannel == 0 {
		r.reply(ctx, msg, "No announcement channel configured.")
		return
	}
	if len(args) > 0 {
		id, err := r.announcer.AnnounceNow(ctx, st.AnnounceChannel, strings.Join(args, " "))
		if err != nil {
			r.reply(ctx, msg, "Posting failed: "+err.Error())
			return
		}
		r.reply(ctx, msg, "Posted. Session "+id+" is now collecting applications.")
		return
	}
	r.await.Ask(msg.FromID, "announce_text", nil)
	r.dm(ctx, msg, "Send me the announcement text.")
}

func (r *Router) cmdUpload(ctx context.Context, msg *transport.Message) {
	r.await.Ask(msg.FromID, "schedule_photo", nil)
	r.dm(ctx, msg, "Send me the schedule image.")
}

// targetChannel resolves an optional channel-id argument, defaulting to the
// announcement channel or the first configured channel.
func (r *Router) targetChannel(args []string) (int64, error) {
	if id, ok := parseChannelID(args); ok {
		return id, nil
	}
	if len(args) > 0 {
		return 0, errInvalidChannel
	}
	st := r.settings()
	if st.AnnounceChannel != 0 {
		return st.AnnounceChannel, nil
	}
	if chans := r.channels.Channels(); len(chans) > 0 {
		return chans[0].ID, nil
	}
	return 0, errNoChannels
}

func parseChannelID(args []string) (int64, bool) {
	if len(args) == 0 {
		return 0, false
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// splitCommand parses "/cmd@botname arg arg" into a lowercase command name
// and its arguments.
func splitCommand(text string) (string, []string) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", nil
	}
	name := strings.TrimPrefix(fields[0], "/")
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	return strings.ToLower(name), fields[1:]
}
