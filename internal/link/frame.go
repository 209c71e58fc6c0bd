package link

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/smallnest/ringbuffer"
)

// Command is the AppMessage command byte of a frame.
type Command uint8

const (
	CommandPush Command = 0x01
	CommandNack Command = 0x7F
	CommandAck  Command = 0xFF
)

func (c Command) String() string {
	switch c {
	case CommandPush:
		return "push"
	case CommandAck:
		return "ack"
	case CommandNack:
		return "nack"
	default:
		return fmt.Sprintf("command(0x%02x)", uint8(c))
	}
}

// frameHeaderSize covers length u16 + command u8 + transaction id u8.
// The length counts everything after the length field.
const frameHeaderSize = 4

var (
	// ErrBufferOverflow means more unframed bytes arrived than the inbox holds.
	ErrBufferOverflow = errors.New("inbox buffer overflow")
	// ErrShortFrame means a frame is too short to carry a command and transaction id.
	ErrShortFrame = errors.New("short frame")
)

// Frame is one AppMessage exchange unit on the UART.
type Frame struct {
	Command       Command
	TransactionID uint8
	Payload       []byte // dictionary for push, result code for nack, empty for ack
}

// MarshalBinary encodes the frame with its length prefix.
func (f Frame) MarshalBinary() ([]byte, error) {
	body := 2 + len(f.Payload)
	if body > 0xFFFF {
		return nil, fmt.Errorf("frame payload too large: %d bytes", len(f.Payload))
	}
	buf := make([]byte, 2, frameHeaderSize+len(f.Payload))
	binary.LittleEndian.PutUint16(buf, uint16(body))
	buf = append(buf, byte(f.Command), f.TransactionID)
	buf = append(buf, f.Payload...)
	return buf, nil
}

// Assembler rebuilds frames from the chunks delivered by UART notifications.
// It is not safe for concurrent use.
type Assembler struct {
	buf  *ringbuffer.RingBuffer
	want int // body length of the frame in progress, 0 while reading a header
}

// NewAssembler creates an assembler holding at most capacity unframed bytes.
func NewAssembler(capacity int) *Assembler {
	return &Assembler{buf: ringbuffer.New(capacity)}
}

// Feed adds a chunk and returns every frame it completes. On overflow the
// buffered bytes are dropped and ErrBufferOverflow is returned along with the
// frames completed before the overflow.
func (a *Assembler) Feed(chunk []byte) ([]Frame, error) {
	var frames []Frame
	for len(chunk) > 0 {
		n, err := a.buf.Write(chunk)
		chunk = chunk[n:]
		if err == nil {
			continue
		}
		if !a.buf.IsFull() {
			a.Reset()
			return frames, fmt.Errorf("%w: %v", ErrBufferOverflow, err)
		}

		complete, ferr := a.drain()
		frames = append(frames, complete...)
		if ferr != nil {
			return frames, ferr
		}
		// no room was freed: the frame in progress can never fit
		if a.buf.IsFull() {
			a.Reset()
			return frames, ErrBufferOverflow
		}
	}

	complete, err := a.drain()
	frames = append(frames, complete...)
	return frames, err
}

// drain extracts complete frames from the buffer.
func (a *Assembler) drain() ([]Frame, error) {
	var frames []Frame
	for {
		if a.want == 0 {
			if a.buf.Length() < 2 {
				return frames, nil
			}
			var hdr [2]byte
			if _, err := a.buf.Read(hdr[:]); err != nil {
				return frames, err
			}
			a.want = int(binary.LittleEndian.Uint16(hdr[:]))
			if a.want < 2 {
				a.Reset()
				return frames, ErrShortFrame
			}
		}
		if a.buf.Length() < a.want {
			return frames, nil
		}

		body := make([]byte, a.want)
		if _, err := a.buf.Read(body); err != nil {
			return frames, err
		}
		a.want = 0
		frames = append(frames, Frame{
			Command:       Command(body[0]),
			TransactionID: body[1],
			Payload:       body[2:],
		})
	}
}

// Buffered returns the number of bytes waiting for the rest of their frame.
func (a *Assembler) Buffered() int {
	return a.buf.Length()
}

// Reset drops any partial frame.
func (a *Assembler) Reset() {
	a.buf.Reset()
	a.want = 0
}
