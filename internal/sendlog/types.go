package sendlog

import (
	"context"
	"errors"
	"time"
)

// Entry is one recorded announcement delivery attempt.
type Entry struct {
	ChannelID int64     `json:"channel_id"`
	Message   string    `json:"message"`
	Status    string    `json:"status"`
	At        time.Time `json:"datetime"`
	Attempt   int       `json:"attempt"`
	Error     string    `json:"error,omitempty"`
}

// Delivery outcome values.
const (
	StatusSuccess = "success"
	StatusFail    = "fail"
	StatusTest    = "test"
)

// Store is the send-history API used by the announcer and /sendlog.
type Store interface {
	Append(ctx context.Context, e Entry) error
	// Recent returns up to limit entries, newest first.
	Recent(ctx context.Context, limit int) ([]Entry, error)
	Close() error
}

// Config selects and parameterizes the driver.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration
}

// ErrDisabled is returned by a nil-safe call on a disabled store.
var ErrDisabled = errors.New("send log disabled")
