// Package dispatch sends protocol messages to the watch with best-effort,
// at-most-once delivery.
package dispatch

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/srg/textwatch/internal/protocol"
)

// Failure describes a message the watch did not acknowledge.
type Failure struct {
	TransactionID uint8
	Err           error
}

func (f Failure) Error() string {
	return fmt.Sprintf("transaction %d: %v", f.TransactionID, f.Err)
}

func (f Failure) Unwrap() error {
	return f.Err
}

// Transport delivers messages to the watch. SendMessage must not block on
// delivery; exactly one of onAck or onNack is called later, possibly from
// another goroutine.
type Transport interface {
	SendMessage(msg protocol.Message, onAck func(txID uint8), onNack func(Failure))
}

// Dispatcher sends messages over a Transport and logs the outcome.
// Failed deliveries are never retried and never reported to the caller.
type Dispatcher struct {
	transport Transport
	logger    *logrus.Logger
}

// New creates a dispatcher for transport.
func New(transport Transport, logger *logrus.Logger) *Dispatcher {
	if logger == nil {
		logger = logrus.New()
	}
	return &Dispatcher{transport: transport, logger: logger}
}

// Send hands msg to the transport. onDelivered, if not nil, runs when the watch
// acknowledges the message.
func (d *Dispatcher) Send(msg protocol.Message, onDelivered func()) {
	d.transport.SendMessage(msg,
		func(txID uint8) {
			d.logger.WithField("transaction_id", txID).Debug("Message acknowledged")
			if onDelivered != nil {
				onDelivered()
			}
		},
		d.logFailure,
	)
}

func (d *Dispatcher) logFailure(f Failure) {
	d.logger.WithFields(logrus.Fields{
		"transaction_id": f.TransactionID,
		"error":          f.Err,
	}).Warnf("Unable to deliver message with transactionId=%d", f.TransactionID)
}
