package transport

import "context"

type UpdateKind string

const (
	UpdateMessage UpdateKind = "message"
)

type Update struct {
	Kind    UpdateKind
	Message *Message
}

type Message struct {
	ID           int
	ChatID       int64
	ThreadID     int // telegram forum topic thread id (0 if none)
	FromID       int64
	FromUsername string
	Text         string
	// ReplyToID is the id of the message this one replies to (0 if none).
	// Replies to tracked announcements are how applications come in.
	ReplyToID int
	// PhotoID is the platform file id of an attached photo ("" if none).
	PhotoID string
	IsDM    bool
}

// ChatTarget addresses an outgoing message. A DM is ChatTarget{ChatID: userID}.
type ChatTarget struct {
	ChatID   int64
	ThreadID int
}

type MessageRef struct {
	ChatID    int64
	ThreadID  int
	MessageID int
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
}

// ChatInfo describes a chat the bot can see, for reachability checks.
type ChatInfo struct {
	ID    int64
	Title string
	Kind  string
}

type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
	SendPhoto(ctx context.Context, to ChatTarget, photoID string, caption string, opt *SendOptions) (MessageRef, error)
	// Chat resolves a chat by id; used to verify configured channels.
	Chat(ctx context.Context, chatID int64) (ChatInfo, error)
}
