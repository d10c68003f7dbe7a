package authz

import (
	"context"
	"log/slog"
	"sync"
)

// Notices are the user-facing texts shown on denial. Each denial kind has
// its own text.
type Notices struct {
	Login      string
	Role       string
	Permission string
}

var noticesByLocale = map[string]Notices{
	"zh": {
		Login:      "请先登录",
		Role:       "您没有访问此页面的权限",
		Permission: "您没有执行此操作的权限",
	},
	"en": {
		Login:      "Please log in first",
		Role:       "You do not have permission to access this page",
		Permission: "You do not have permission to perform this action",
	},
}

// NoticesFor returns the notices for locale, falling back to zh.
func NoticesFor(locale string) Notices {
	if n, ok := noticesByLocale[locale]; ok {
		return n
	}
	return noticesByLocale["zh"]
}

// Notice is one denial message.
type Notice struct {
	Outcome Outcome
	Message string
	Target  string
}

// Notifier delivers denial notices to the user.
type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

// LogNotifier writes notices to the default logger. The UI reads the notice
// from the decision body itself.
type LogNotifier struct{}

// Notify logs n at info level.
func (LogNotifier) Notify(_ context.Context, n Notice) {
	slog.Info("authz: notice", "outcome", n.Outcome, "target", n.Target, "message", n.Message)
}

// RecordingNotifier keeps every notice in memory.
type RecordingNotifier struct {
	mu      sync.Mutex
	notices []Notice
}

// Notify appends n.
func (r *RecordingNotifier) Notify(_ context.Context, n Notice) {
	r.mu.Lock()
	r.notices = append(r.notices, n)
	r.mu.Unlock()
}

// Notices returns a copy of the recorded notices.
func (r *RecordingNotifier) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notice(nil), r.notices...)
}
