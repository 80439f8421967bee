package ledger

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// AuditLog appends one line per classified upload:
//
//	2025-07-08T14:03:11Z | summer/beach | https://pub.example.r2.dev/summer/beach.jpg | DUPLICATE
type AuditLog struct {
	mu   sync.Mutex
	path string
}

func NewAuditLog(path string) *AuditLog {
	return &AuditLog{path: path}
}

func (a *AuditLog) Record(createdAt time.Time, id, url string, duplicate bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	f, err := os.OpenFile(a.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	line := fmt.Sprintf("%s | %s | %s", createdAt.UTC().Format(time.RFC3339), id, url)
	if duplicate {
		line += " | DUPLICATE"
	}
	if _, err := fmt.Fprintln(f, line); err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}
