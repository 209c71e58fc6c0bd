package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/srg/textwatch/internal/link"
	"github.com/srg/textwatch/internal/protocol"
)

// Command-level errors
var (
	// ErrNoDeviceAddress means run was started without a watch address and without --loopback.
	ErrNoDeviceAddress = errors.New("device address required")

	// ErrUnknownCommand is returned for console input that is not a known command.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrConnectionLost indicates the watch link dropped while running.
	ErrConnectionLost = errors.New("connection lost")
)

// FormatUserError turns known errors into a message with a hint; anything else
// is printed as is.
func FormatUserError(err error) string {
	var decodeErr *protocol.DecodeError
	var pathErr *os.PathError

	switch {
	case errors.Is(err, ErrNoDeviceAddress):
		return fmt.Sprintf("%v: pass the watch address (%s) or use --loopback", err, exampleDeviceAddress)
	case errors.Is(err, link.ErrUnsupportedPlatform):
		return fmt.Sprintf("%v: use --loopback to run without a watch", err)
	case errors.Is(err, ErrConnectionLost):
		return fmt.Sprintf("%v: check that the watch is in range and the watchface is running", err)
	case errors.As(err, &decodeErr):
		return fmt.Sprintf("invalid AppMessage dictionary: %v", err)
	case errors.As(err, &pathErr):
		return fmt.Sprintf("%s: %v", pathErr.Path, pathErr.Err)
	default:
		return err.Error()
	}
}
