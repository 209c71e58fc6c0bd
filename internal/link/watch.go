// Package link carries AppMessage frames between the companion and the watch.
//
// WatchLink talks to the watch over the BLE serial (Nordic UART) service: pushes
// are written to the RX characteristic and every frame from the watch arrives as
// TX notifications, possibly split across several chunks.
package link

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/textwatch/internal/dispatch"
	"github.com/srg/textwatch/internal/groutine"
	"github.com/srg/textwatch/internal/protocol"
)

// SerialServiceUUID is the Nordic UART Service UUID.
var SerialServiceUUID = ble.MustParse("6E400001-B5A3-F393-E0A9-E50E24DCCA9E")

// SerialTxCharUUID is the TX characteristic (watch -> phone).
var SerialTxCharUUID = ble.MustParse("6E400003-B5A3-F393-E0A9-E50E24DCCA9E")

// SerialRxCharUUID is the RX characteristic (phone -> watch).
var SerialRxCharUUID = ble.MustParse("6E400002-B5A3-F393-E0A9-E50E24DCCA9E")

const (
	// DefaultWriteChunkSize fits the 20-byte ATT payload of BLE 4.0.
	DefaultWriteChunkSize = 20

	// DefaultWriteDelay spaces consecutive chunks so the watch can keep up.
	DefaultWriteDelay = 10 * time.Millisecond

	// MinInboxSize and MinOutboxSize are the smallest buffers the glucose schema fits in.
	MinInboxSize  = 256
	MinOutboxSize = 128
)

var (
	ErrNotConnected     = errors.New("not connected")
	ErrAlreadyConnected = errors.New("already connected")
)

// Options configures a WatchLink.
type Options struct {
	DeviceAddress  string
	ConnectTimeout time.Duration
	AckTimeout     time.Duration
	InboxSize      int // bytes buffered for inbound frames
	OutboxSize     int // largest outbound dictionary
	WriteChunkSize int
	WriteDelay     time.Duration
}

// DefaultOptions returns the defaults for the watch at address.
func DefaultOptions(address string) *Options {
	return &Options{
		DeviceAddress:  address,
		ConnectTimeout: 30 * time.Second,
		AckTimeout:     10 * time.Second,
		InboxSize:      MinInboxSize,
		OutboxSize:     MinOutboxSize,
		WriteChunkSize: DefaultWriteChunkSize,
		WriteDelay:     DefaultWriteDelay,
	}
}

// normalize raises buffer sizes to their minimums and fills zero values.
func (o *Options) normalize() {
	if o.InboxSize < MinInboxSize {
		o.InboxSize = MinInboxSize
	}
	if o.OutboxSize < MinOutboxSize {
		o.OutboxSize = MinOutboxSize
	}
	if o.WriteChunkSize <= 0 {
		o.WriteChunkSize = DefaultWriteChunkSize
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = 30 * time.Second
	}
}

// Handlers receive link events. They are called from BLE goroutines; callers
// that need ordering should post them to their event loop.
type Handlers struct {
	OnReady        func()
	OnMessage      func(protocol.Message)
	OnDisconnected func()
}

// WatchLink is a dispatch.Transport over BLE.
type WatchLink struct {
	opts     Options
	handlers Handlers
	logger   *logrus.Logger

	connMu    sync.RWMutex
	writeMu   sync.Mutex
	client    ble.Client
	rxChar    *ble.Characteristic
	connected bool

	// write sends one chunk; replaced in tests.
	write func(chunk []byte) error

	assembler *Assembler
	pending   *pendingTable
}

var _ dispatch.Transport = (*WatchLink)(nil)

// NewWatchLink creates an unconnected link.
func NewWatchLink(opts *Options, handlers Handlers, logger *logrus.Logger) *WatchLink {
	if logger == nil {
		logger = logrus.New()
	}
	if opts == nil {
		opts = DefaultOptions("")
	}
	o := *opts
	o.normalize()

	return &WatchLink{
		opts:      o,
		handlers:  handlers,
		logger:    logger,
		assembler: NewAssembler(o.InboxSize),
		pending:   newPendingTable(o.AckTimeout),
	}
}

// Connect dials the watch, subscribes to the UART TX characteristic and then
// reports the link as ready.
func (l *WatchLink) Connect(ctx context.Context) error {
	l.connMu.Lock()
	if l.connected {
		l.connMu.Unlock()
		return ErrAlreadyConnected
	}
	l.connMu.Unlock()

	dev, err := DeviceFactory()
	if err != nil {
		return fmt.Errorf("failed to create BLE device: %w", err)
	}

	l.logger.WithField("address", l.opts.DeviceAddress).Info("Connecting to watch...")

	connectCtx, cancel := context.WithTimeout(ctx, l.opts.ConnectTimeout)
	defer cancel()

	client, err := dev.Dial(connectCtx, ble.NewAddr(l.opts.DeviceAddress))
	if err != nil {
		return fmt.Errorf("failed to connect to watch: %w", err)
	}

	txChar, rxChar, err := discoverSerial(client)
	if err != nil {
		_ = client.CancelConnection()
		return err
	}

	if err := client.Subscribe(txChar, false, l.handleNotification); err != nil {
		_ = client.CancelConnection()
		return fmt.Errorf("failed to subscribe to TX characteristic: %w", err)
	}

	l.connMu.Lock()
	l.client = client
	l.rxChar = rxChar
	l.write = func(chunk []byte) error {
		return client.WriteCharacteristic(rxChar, chunk, true)
	}
	l.connected = true
	l.connMu.Unlock()

	groutine.Go(context.Background(), "watch-disconnect-monitor", func(context.Context) {
		l.watchDisconnect(client)
	})

	l.logger.Info("Watch link established")
	if l.handlers.OnReady != nil {
		l.handlers.OnReady()
	}
	return nil
}

// discoverSerial finds the UART characteristics on a connected client.
func discoverSerial(client ble.Client) (tx, rx *ble.Characteristic, err error) {
	profile, err := client.DiscoverProfile(true)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to discover profile: %w", err)
	}

	for _, service := range profile.Services {
		if !service.UUID.Equal(SerialServiceUUID) {
			continue
		}
		for _, char := range service.Characteristics {
			switch {
			case char.UUID.Equal(SerialTxCharUUID):
				tx = char
			case char.UUID.Equal(SerialRxCharUUID):
				rx = char
			}
		}
	}

	if tx == nil {
		return nil, nil, fmt.Errorf("TX characteristic %s not found", SerialTxCharUUID)
	}
	if rx == nil {
		return nil, nil, fmt.Errorf("RX characteristic %s not found", SerialRxCharUUID)
	}
	return tx, rx, nil
}

func (l *WatchLink) watchDisconnect(client ble.Client) {
	<-client.Disconnected()

	l.connMu.Lock()
	current := l.client == client
	if current {
		l.connected = false
		l.client = nil
		l.rxChar = nil
		l.write = nil
	}
	l.connMu.Unlock()
	if !current {
		return
	}

	l.logger.Warn("Watch disconnected")
	l.pending.failAll(ResultNotConnected)
	if l.handlers.OnDisconnected != nil {
		l.handlers.OnDisconnected()
	}
}

// IsConnected reports whether the link is up.
func (l *WatchLink) IsConnected() bool {
	l.connMu.RLock()
	defer l.connMu.RUnlock()
	return l.connected
}

// Disconnect closes the link and fails every in-flight send.
func (l *WatchLink) Disconnect() error {
	l.connMu.Lock()
	if !l.connected {
		l.connMu.Unlock()
		return ErrNotConnected
	}
	client := l.client
	l.connected = false
	l.client = nil
	l.rxChar = nil
	l.write = nil
	l.connMu.Unlock()

	if client != nil {
		if err := client.CancelConnection(); err != nil {
			l.logger.WithError(err).Warn("Error disconnecting from watch")
		}
	}
	l.pending.failAll(ResultClosed)
	l.logger.Info("Disconnected from watch")
	return nil
}

// SendMessage pushes msg to the watch. The outcome is reported through onAck or
// onNack once the watch answers, or on timeout.
func (l *WatchLink) SendMessage(msg protocol.Message, onAck func(uint8), onNack func(dispatch.Failure)) {
	dict, err := protocol.MarshalDict(msg)
	if err == nil && len(dict) > l.opts.OutboxSize {
		err = ResultBufferOverflow
	}
	if err != nil {
		if onNack != nil {
			onNack(dispatch.Failure{Err: err})
		}
		return
	}

	txID := l.pending.add(onAck, onNack)
	frame, err := Frame{Command: CommandPush, TransactionID: txID, Payload: dict}.MarshalBinary()
	if err == nil {
		err = l.writeFrame(frame)
	}
	if err != nil {
		l.pending.resolve(txID, err)
		return
	}

	l.logger.WithFields(logrus.Fields{
		"transaction_id": txID,
		"bytes":          len(frame),
	}).Debug("Pushed message to watch")
}

// writeFrame writes data in chunks to the RX characteristic.
func (l *WatchLink) writeFrame(data []byte) error {
	l.connMu.RLock()
	write := l.write
	connected := l.connected
	l.connMu.RUnlock()

	if !connected || write == nil {
		return ErrNotConnected
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	for len(data) > 0 {
		n := min(len(data), l.opts.WriteChunkSize)
		if err := write(data[:n]); err != nil {
			return fmt.Errorf("failed to write to RX characteristic: %w", err)
		}
		data = data[n:]

		if len(data) > 0 && l.opts.WriteDelay > 0 {
			time.Sleep(l.opts.WriteDelay)
		}
	}
	return nil
}

// handleNotification processes a chunk received on the TX characteristic.
func (l *WatchLink) handleNotification(data []byte) {
	l.logger.WithField("bytes", len(data)).Debug("Received data from watch")

	frames, err := l.assembler.Feed(data)
	if err != nil {
		l.logger.WithError(err).Warn("Dropping malformed inbound data")
	}
	for _, f := range frames {
		l.handleFrame(f)
	}
}

func (l *WatchLink) handleFrame(f Frame) {
	log := l.logger.WithFields(logrus.Fields{
		"command":        f.Command.String(),
		"transaction_id": f.TransactionID,
	})

	switch f.Command {
	case CommandAck:
		if !l.pending.resolve(f.TransactionID, nil) {
			log.Debug("ACK for unknown transaction")
		}
	case CommandNack:
		result := ResultSendRejected
		if len(f.Payload) > 0 {
			result = Result(f.Payload[0])
		}
		if !l.pending.resolve(f.TransactionID, result) {
			log.Debug("NACK for unknown transaction")
		}
	case CommandPush:
		msg, err := protocol.UnmarshalDict(f.Payload)
		if err != nil {
			log.WithError(err).Warn("Message dropped: invalid dictionary")
			l.reply(CommandNack, f.TransactionID, ResultInvalidArgs)
			return
		}
		l.reply(CommandAck, f.TransactionID, ResultOK)
		if l.handlers.OnMessage != nil {
			l.handlers.OnMessage(msg)
		}
	default:
		log.Warn("Unknown frame command")
	}
}

func (l *WatchLink) reply(cmd Command, txID uint8, result Result) {
	f := Frame{Command: cmd, TransactionID: txID}
	if cmd == CommandNack {
		f.Payload = []byte{byte(result)}
	}
	data, err := f.MarshalBinary()
	if err == nil {
		err = l.writeFrame(data)
	}
	if err != nil {
		l.logger.WithError(err).WithField("transaction_id", txID).Warn("Failed to reply to watch")
	}
}

// InFlight returns the number of pushes waiting for an answer.
func (l *WatchLink) InFlight() int {
	return l.pending.len()
}
