// Package notify delivers user-facing notifications: to the log, and to a NATS
// subject a UI can subscribe to.
package notify

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/book-expert/logger"
	"github.com/book-expert/tts-editor/internal/core"
	"github.com/nats-io/nats.go"
)

// ErrSubjectEmpty is returned when a NATS notifier has no subject.
var ErrSubjectEmpty = errors.New("notification subject cannot be empty")

const (
	logFmtNotification      = "[%s] block=%s %s"
	logFmtPublishFailed     = "Failed to publish notification on %s: %v"
	logFmtNotificationNoBlk = "[%s] %s"
)

// LogNotifier writes notifications to the logger. Failures are logged at
// error level, successes at info.
type LogNotifier struct {
	log *logger.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

// Notify implements core.Notifier.
func (l *LogNotifier) Notify(n core.Notification) {
	switch n.Kind {
	case core.KindExportSucceeded:
		l.log.Info(logFmtNotificationNoBlk, n.Kind, n.Message)
	case core.KindPreviewFailed:
		l.log.Error(logFmtNotification, n.Kind, n.BlockID, n.Message)
	default:
		l.log.Error(logFmtNotificationNoBlk, n.Kind, n.Message)
	}
}

// NatsNotifier publishes notifications as JSON on a NATS subject.
type NatsNotifier struct {
	conn    *nats.Conn
	subject string
	log     *logger.Logger
}

// NewNatsNotifier creates a NatsNotifier.
func NewNatsNotifier(conn *nats.Conn, subject string, log *logger.Logger) (*NatsNotifier, error) {
	if subject == "" {
		return nil, ErrSubjectEmpty
	}

	return &NatsNotifier{
		conn:    conn,
		subject: subject,
		log:     log,
	}, nil
}

// Notify implements core.Notifier. Publish errors are logged, never returned.
func (p *NatsNotifier) Notify(n core.Notification) {
	err := p.publish(n)
	if err != nil {
		p.log.Warn(logFmtPublishFailed, p.subject, err)
	}
}

func (p *NatsNotifier) publish(n core.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	err = p.conn.Publish(p.subject, data)
	if err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}

	return nil
}

// Multi fans a notification out to several notifiers in order.
type Multi []core.Notifier

// Notify implements core.Notifier.
func (m Multi) Notify(n core.Notification) {
	for _, notifier := range m {
		notifier.Notify(n)
	}
}

// Recorder keeps notifications in memory; the CLI uses it to report the
// outcome of a run.
type Recorder struct {
	mu    sync.Mutex
	items []core.Notification
}

// Notify implements core.Notifier.
func (r *Recorder) Notify(n core.Notification) {
	r.mu.Lock()
	r.items = append(r.items, n)
	r.mu.Unlock()
}

// All returns the recorded notifications in arrival order.
func (r *Recorder) All() []core.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]core.Notification(nil), r.items...)
}

// Last returns the latest notification of kind, if any.
func (r *Recorder) Last(kind core.NotificationKind) (core.Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := len(r.items) - 1; i >= 0; i-- {
		if r.items[i].Kind == kind {
			return r.items[i], true
		}
	}

	return core.Notification{}, false
}
