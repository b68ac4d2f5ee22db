package session

import "time"

// Status values for a sign-up session.
const (
	StatusActive = "active"
	StatusClosed = "closed"
)

// Application is one user's submission inside a session.
type Application struct {
	UserID         int64     `json:"user_id"`
	UserName       string    `json:"user_name"`
	RequestedDates []string  `json:"requested_dates"`
	AdditionalInfo string    `json:"additional_info"`
	AppliedAt      time.Time `json:"applied_at"`
}

// Session is one announcement's collection window. It is keyed in the
// document by the announcement message id.
type Session struct {
	ChannelID    int64         `json:"channel_id"`
	Month        string        `json:"month"`
	Status       string        `json:"status"`
	CreatedAt    time.Time     `json:"created_at"`
	Deadline     time.Time     `json:"deadline"`
	Applications []Application `json:"applications"`
}

// UserRef is the per-user index entry pointing at the session the user
// last applied to. Derived data; rebuilt opportunistically from sessions.
type UserRef struct {
	MessageID   string    `json:"message_id"`
	AppliedDate time.Time `json:"applied_date"`
}

// document is the whole persisted state.
type document struct {
	Applications     map[string]*Session `json:"applications"`
	UserApplications map[string]UserRef  `json:"user_applications"`
}

func newDocument() document {
	return document{
		Applications:     make(map[string]*Session),
		UserApplications: make(map[string]UserRef),
	}
}

// Summary is the computed digest of one session.
type Summary struct {
	MessageID    string
	ChannelID    int64
	Month        string
	Status       string
	CreatedAt    time.Time
	Deadline     time.Time
	Total        int
	UniqueUsers  int
	DateCounts   map[string]int
	PopularDates []string
}
