package link

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/srg/textwatch/internal/dispatch"
	"github.com/srg/textwatch/internal/protocol"
)

// Loopback is an in-process watch stand-in. Every push is recorded and
// acknowledged unless a failure was queued with FailNext.
type Loopback struct {
	handlers Handlers
	logger   *logrus.Logger
	schedule func(func())

	mu       sync.Mutex
	sent     []protocol.Message
	failures []error
	nextTx   uint8
}

var _ dispatch.Transport = (*Loopback)(nil)

// NewLoopback creates a loopback link. schedule schedules completion callbacks;
// nil runs them synchronously.
func NewLoopback(handlers Handlers, schedule func(func()), logger *logrus.Logger) *Loopback {
	if logger == nil {
		logger = logrus.New()
	}
	if schedule == nil {
		schedule = func(fn func()) { fn() }
	}
	return &Loopback{handlers: handlers, schedule: schedule, logger: logger}
}

// Connect reports the link as ready.
func (l *Loopback) Connect(_ context.Context) error {
	l.logger.Info("Loopback link established")
	if l.handlers.OnReady != nil {
		l.handlers.OnReady()
	}
	return nil
}

// SendMessage records msg and completes it through the deferral function.
func (l *Loopback) SendMessage(msg protocol.Message, onAck func(uint8), onNack func(dispatch.Failure)) {
	l.mu.Lock()
	l.nextTx++
	txID := l.nextTx
	l.sent = append(l.sent, msg)
	var err error
	if len(l.failures) > 0 {
		err = l.failures[0]
		l.failures = l.failures[1:]
	}
	l.mu.Unlock()

	l.logger.WithFields(logrus.Fields{
		"transaction_id": txID,
		"message":        msg.String(),
	}).Debug("Loopback received message")

	l.schedule(func() {
		if err != nil {
			if onNack != nil {
				onNack(dispatch.Failure{TransactionID: txID, Err: err})
			}
			return
		}
		if onAck != nil {
			onAck(txID)
		}
	})
}

// FailNext makes the next send fail with err.
func (l *Loopback) FailNext(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures = append(l.failures, err)
}

// Inject delivers msg as if the watch had sent it.
func (l *Loopback) Inject(msg protocol.Message) {
	if l.handlers.OnMessage != nil {
		l.handlers.OnMessage(msg)
	}
}

// Sent returns a copy of every message pushed so far.
func (l *Loopback) Sent() []protocol.Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]protocol.Message, len(l.sent))
	copy(out, l.sent)
	return out
}
