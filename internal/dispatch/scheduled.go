package dispatch

import "github.com/srg/textwatch/internal/protocol"

type scheduledTransport struct {
	inner    Transport
	schedule func(func())
}

// Scheduled wraps t so that its completion callbacks are handed to schedule
// instead of running on the transport's goroutine.
func Scheduled(t Transport, schedule func(func())) Transport {
	if schedule == nil {
		return t
	}
	return &scheduledTransport{inner: t, schedule: schedule}
}

func (s *scheduledTransport) SendMessage(msg protocol.Message, onAck func(uint8), onNack func(Failure)) {
	s.inner.SendMessage(msg,
		func(txID uint8) {
			if onAck != nil {
				s.schedule(func() { onAck(txID) })
			}
		},
		func(f Failure) {
			if onNack != nil {
				s.schedule(func() { onNack(f) })
			}
		},
	)
}
