package link

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-ble/ble"
	"github.com/srg/textwatch/internal/dispatch"
	"github.com/srg/textwatch/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type WatchLinkTestSuite struct {
	suite.Suite

	link     *WatchLink
	mu       sync.Mutex
	written  []byte
	inbound  []protocol.Message
	acked    []uint8
	failures []dispatch.Failure
}

func (suite *WatchLinkTestSuite) SetupTest() {
	suite.written = nil
	suite.inbound = nil
	suite.acked = nil
	suite.failures = nil

	opts := DefaultOptions("AA:BB:CC:DD:EE:FF")
	opts.WriteDelay = 0
	opts.AckTimeout = 200 * time.Millisecond
	suite.link = NewWatchLink(opts, Handlers{
		OnMessage: func(m protocol.Message) { suite.inbound = append(suite.inbound, m) },
	}, nil)

	// simulate an established UART connection
	suite.link.connected = true
	suite.link.write = func(chunk []byte) error {
		suite.mu.Lock()
		defer suite.mu.Unlock()
		suite.Require().LessOrEqual(len(chunk), DefaultWriteChunkSize, "chunks MUST respect the ATT payload size")
		suite.written = append(suite.written, chunk...)
		return nil
	}
}

func (suite *WatchLinkTestSuite) onAck(txID uint8) {
	suite.mu.Lock()
	defer suite.mu.Unlock()
	suite.acked = append(suite.acked, txID)
}

func (suite *WatchLinkTestSuite) onNack(f dispatch.Failure) {
	suite.mu.Lock()
	defer suite.mu.Unlock()
	suite.failures = append(suite.failures, f)
}

// writtenFrames parses everything written so far and clears the capture.
func (suite *WatchLinkTestSuite) writtenFrames() []Frame {
	suite.mu.Lock()
	data := suite.written
	suite.written = nil
	suite.mu.Unlock()

	frames, err := NewAssembler(1024).Feed(data)
	suite.Require().NoError(err)
	return frames
}

func (suite *WatchLinkTestSuite) feed(f Frame) {
	data, err := f.MarshalBinary()
	suite.Require().NoError(err)
	suite.link.handleNotification(data)
}

func (suite *WatchLinkTestSuite) TestPushAcknowledged() {
	// GOAL: Verify a push is written as a dictionary frame and completes on ACK
	//
	// TEST SCENARIO: Send config message → PUSH frame written → ACK fed back → onAck called once

	msg := protocol.Message{0: 1, 1: 2, 2: 5}
	suite.link.SendMessage(msg, suite.onAck, suite.onNack)

	frames := suite.writtenFrames()
	suite.Require().Len(frames, 1)
	suite.Assert().Equal(CommandPush, frames[0].Command)
	decoded, err := protocol.UnmarshalDict(frames[0].Payload)
	suite.Require().NoError(err)
	suite.Assert().Equal(msg, decoded)
	suite.Assert().Equal(1, suite.link.InFlight())

	txID := frames[0].TransactionID
	suite.feed(Frame{Command: CommandAck, TransactionID: txID})
	suite.feed(Frame{Command: CommandAck, TransactionID: txID})

	suite.Assert().Equal([]uint8{txID}, suite.acked, "ACK MUST complete the send exactly once")
	suite.Assert().Empty(suite.failures)
	suite.Assert().Equal(0, suite.link.InFlight())
}

func (suite *WatchLinkTestSuite) TestPushRejected() {
	suite.link.SendMessage(protocol.Message{10: 120}, suite.onAck, suite.onNack)
	txID := suite.writtenFrames()[0].TransactionID

	suite.feed(Frame{Command: CommandNack, TransactionID: txID, Payload: []byte{byte(ResultBusy)}})

	suite.Require().Len(suite.failures, 1)
	suite.Assert().Equal(txID, suite.failures[0].TransactionID)
	suite.Assert().ErrorIs(suite.failures[0].Err, ResultBusy)
	suite.Assert().Empty(suite.acked)
}

func (suite *WatchLinkTestSuite) TestPushTimeout() {
	// GOAL: Verify an unanswered push fails with a send timeout and is not retried
	//
	// TEST SCENARIO: Send → no answer → after ack timeout onNack(ResultSendTimeout) → one frame written

	suite.link.SendMessage(protocol.Message{10: 120}, suite.onAck, suite.onNack)
	suite.Require().Len(suite.writtenFrames(), 1)

	suite.Eventually(func() bool {
		suite.mu.Lock()
		defer suite.mu.Unlock()
		return len(suite.failures) == 1
	}, 2*time.Second, 10*time.Millisecond)

	suite.Assert().ErrorIs(suite.failures[0].Err, ResultSendTimeout)
	suite.Assert().Empty(suite.writtenFrames(), "failed sends MUST NOT be retried")
}

func (suite *WatchLinkTestSuite) TestPushNotConnected() {
	suite.link.connected = false

	suite.link.SendMessage(protocol.Message{10: 120}, suite.onAck, suite.onNack)

	suite.Require().Len(suite.failures, 1)
	suite.Assert().ErrorIs(suite.failures[0].Err, ErrNotConnected)
	suite.Assert().Equal(0, suite.link.InFlight())
}

func (suite *WatchLinkTestSuite) TestPushTooLarge() {
	msg := protocol.Message{}
	for k := protocol.Key(0); k < 20; k++ {
		msg[k] = int32(k)
	}

	suite.link.SendMessage(msg, suite.onAck, suite.onNack)

	suite.Require().Len(suite.failures, 1)
	suite.Assert().ErrorIs(suite.failures[0].Err, ResultBufferOverflow)
	suite.Assert().Empty(suite.writtenFrames())
}

func (suite *WatchLinkTestSuite) TestInboundPush() {
	// GOAL: Verify a push from the watch is acknowledged and handed to OnMessage
	//
	// TEST SCENARIO: Watch sends {12: 1} split in chunks → ACK written with same txid → message delivered

	dict := []byte{0x01, 0x0c, 0x00, 0x00, 0x00, 0x02, 0x01, 0x00, 0x01}
	data, err := Frame{Command: CommandPush, TransactionID: 42, Payload: dict}.MarshalBinary()
	suite.Require().NoError(err)

	suite.link.handleNotification(data[:5])
	suite.Assert().Empty(suite.inbound)
	suite.link.handleNotification(data[5:])

	suite.Assert().Equal([]protocol.Message{{protocol.KeyRequestData: 1}}, suite.inbound)
	frames := suite.writtenFrames()
	suite.Require().Len(frames, 1)
	suite.Assert().Equal(CommandAck, frames[0].Command)
	suite.Assert().Equal(uint8(42), frames[0].TransactionID)
}

func (suite *WatchLinkTestSuite) TestInboundMalformedPush() {
	suite.feed(Frame{Command: CommandPush, TransactionID: 5, Payload: []byte{0x01, 0x0c}})

	suite.Assert().Empty(suite.inbound)
	frames := suite.writtenFrames()
	suite.Require().Len(frames, 1)
	suite.Assert().Equal(CommandNack, frames[0].Command)
	suite.Assert().Equal([]byte{byte(ResultInvalidArgs)}, frames[0].Payload)
}

func (suite *WatchLinkTestSuite) TestDisconnectFailsInFlight() {
	suite.link.SendMessage(protocol.Message{10: 120}, suite.onAck, suite.onNack)

	suite.Require().NoError(suite.link.Disconnect())

	suite.Require().Len(suite.failures, 1)
	suite.Assert().ErrorIs(suite.failures[0].Err, ResultClosed)
	suite.Assert().False(suite.link.IsConnected())
	suite.Assert().ErrorIs(suite.link.Disconnect(), ErrNotConnected)
}

func (suite *WatchLinkTestSuite) TestConnectDeviceFactoryError() {
	original := DeviceFactory
	defer func() { DeviceFactory = original }()
	DeviceFactory = func() (ble.Device, error) {
		return nil, errors.New("no adapter")
	}

	suite.link.connected = false
	err := suite.link.Connect(context.Background())

	suite.Assert().ErrorContains(err, "failed to create BLE device")
	suite.Assert().ErrorContains(err, "no adapter")
}

func (suite *WatchLinkTestSuite) TestConnectWhenConnected() {
	suite.Assert().ErrorIs(suite.link.Connect(context.Background()), ErrAlreadyConnected)
}

func TestWatchLinkTestSuite(t *testing.T) {
	suite.Run(t, new(WatchLinkTestSuite))
}

func TestOptions_Normalize(t *testing.T) {
	l := NewWatchLink(&Options{InboxSize: 10, OutboxSize: 10}, Handlers{}, nil)

	assert.Equal(t, MinInboxSize, l.opts.InboxSize)
	assert.Equal(t, MinOutboxSize, l.opts.OutboxSize)
	assert.Equal(t, DefaultWriteChunkSize, l.opts.WriteChunkSize)
	assert.Equal(t, 30*time.Second, l.opts.ConnectTimeout)
}
