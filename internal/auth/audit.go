package auth

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	AuditSignup          = "signup"
	AuditEmailVerified   = "email_verified"
	AuditLogin           = "login"
	AuditLoginFailed     = "login_failed"
	AuditGoogleLogin     = "google_login"
	AuditPasswordReset   = "password_reset"
	AuditPasswordChanged = "password_changed"
	AuditPhotoUpdated    = "photo_updated"
)

type AuditEvent struct {
	EventType string                 `json:"eventType"`
	UserID    string                 `json:"userId,omitempty"`
	IP        string                 `json:"ip"`
	UserAgent string                 `json:"userAgent"`
	Timestamp time.Time              `json:"timestamp"`
	Meta      map[string]interface{} `json:"meta,omitempty"`
}

// AuditLogger appends events to capped Redis lists, one per user plus a global one.
type AuditLogger struct {
	Redis  *redis.Client
	MaxLen int64
	now    func() time.Time
}

func NewAuditLogger(client *redis.Client, maxLen int64) *AuditLogger {
	return &AuditLogger{Redis: client, MaxLen: maxLen, now: time.Now}
}

func (a *AuditLogger) Log(ctx context.Context, e AuditEvent) error {
	now := a.now
	if now == nil {
		now = time.Now
	}
	e.Timestamp = now().UTC()
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}

	keys := []string{"audit"}
	if e.UserID != "" {
		keys = append(keys, "audit:"+e.UserID)
	}

	pipe := a.Redis.Pipeline()
	for _, key := range keys {
		pipe.RPush(ctx, key, data)
		if a.MaxLen > 0 {
			pipe.LTrim(ctx, key, -a.MaxLen, -1)
		}
	}
	_, err = pipe.Exec(ctx)
	return err
}

// Recent returns up to limit events for userID, oldest first.
func (a *AuditLogger) Recent(ctx context.Context, userID string, limit int64) ([]AuditEvent, error) {
	key := "audit"
	if userID != "" {
		key = "audit:" + userID
	}
	if limit <= 0 {
		limit = 50
	}
	raw, err := a.Redis.LRange(ctx, key, -limit, -1).Result()
	if err != nil {
		return nil, err
	}
	events := make([]AuditEvent, 0, len(raw))
	for _, item := range raw {
		var e AuditEvent
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			continue
		}
		events = append(events, e)
	}
	return events, nil
}
