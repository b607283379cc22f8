package storage

import (
	"errors"
	"strings"

	logx "polytask/pkg/logx"
)

// Open initializes the SQLite store and applies the schema.
func Open(cfg Config, log logx.Logger) (*SQLiteStore, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("storage.path is required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return openSQLite(cfg, log)
}
