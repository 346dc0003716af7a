package database

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	DefaultAuditLimit = 20
	MaxAuditLimit     = 200
)

// AuditLogEntry is one append-only action record. Seq gives a total insertion order.
type AuditLogEntry struct {
	Seq       uint           `json:"-" gorm:"primaryKey;autoIncrement"`
	UUID      string         `json:"id" gorm:"size:36;uniqueIndex;not null"`
	Provider  Provider       `json:"provider" gorm:"size:32;index;not null"`
	Action    string         `json:"action" gorm:"size:100;not null"`
	Actor     string         `json:"actor" gorm:"size:255"`
	Details   datatypes.JSON `json:"details"`
	CreatedAt time.Time      `json:"timestamp"`
}

type AuditEvent struct {
	Provider Provider
	Action   string
	Actor    string
	Details  interface{}
}

type AuditLog struct {
	db  *gorm.DB
	now func() time.Time
}

func NewAuditLog(db *gorm.DB, now func() time.Time) *AuditLog {
	if now == nil {
		now = time.Now
	}
	return &AuditLog{db: db, now: now}
}

func encodeDetails(details interface{}) datatypes.JSON {
	if details == nil {
		return datatypes.JSON("{}")
	}
	if raw, ok := details.(json.RawMessage); ok && json.Valid(raw) {
		return datatypes.JSON(raw)
	}
	data, err := json.Marshal(details)
	if err != nil {
		log.Printf("Warning: audit details not serializable: %v", err)
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(data)
}

// Append stores the event and returns the entry with its id and timestamp.
// Storage failures are logged, the caller always gets the entry back.
func (l *AuditLog) Append(ctx context.Context, event AuditEvent) AuditLogEntry {
	entry := AuditLogEntry{
		UUID:      uuid.New().String(),
		Provider:  event.Provider,
		Action:    event.Action,
		Actor:     event.Actor,
		Details:   encodeDetails(event.Details),
		CreatedAt: l.now().UTC(),
	}

	if err := l.db.WithContext(ctx).Create(&entry).Error; err != nil {
		log.Printf("Error writing audit entry %s/%s: %v", event.Provider, event.Action, err)
	}
	return entry
}

// Query returns at most limit entries for p, newest first.
// A non-positive limit falls back to DefaultAuditLimit.
func (l *AuditLog) Query(ctx context.Context, p Provider, limit int) ([]AuditLogEntry, error) {
	entries := []AuditLogEntry{}
	if !p.Valid() {
		return entries, nil
	}
	if limit <= 0 {
		limit = DefaultAuditLimit
	}
	if limit > MaxAuditLimit {
		limit = MaxAuditLimit
	}

	q := l.db.WithContext(ctx).
		Where("provider = ?", p).
		Order("seq DESC").
		Limit(limit).
		Find(&entries)
	if q.Error != nil {
		return nil, q.Error
	}
	return entries, nil
}
