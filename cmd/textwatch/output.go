package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
	"github.com/srg/textwatch/internal/protocol"
)

// consoleOpener shows the configuration page address instead of opening a
// browser; the result comes back through the closed console command.
type consoleOpener struct {
	mu  sync.Mutex
	out io.Writer
}

func (o *consoleOpener) OpenURL(url string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, err := fmt.Fprintf(o.out, "%s %s\n", color.New(color.Bold).Sprint("Configuration page:"), color.CyanString(url))
	return err
}

// printMessage writes msg as JSON, with the schema key names when named is set.
func printMessage(w io.Writer, msg protocol.Message, named bool) error {
	var data []byte
	var err error
	if named {
		data, err = msg.Named().MarshalJSON()
	} else {
		data, err = msg.MarshalJSON()
	}
	if err != nil {
		return fmt.Errorf("failed to render message: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
