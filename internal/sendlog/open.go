// Package sendlog keeps the append-only history of announcement sends,
// behind interchangeable file and sqlite drivers.
package sendlog

import (
	"errors"
	"strings"

	"rosterbot/pkg/logx"
)

// Open initializes the configured store.
// It returns (nil, nil) if the send log is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown send_log driver: " + driver)
	}
}
