package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/srg/textwatch/internal/companion"
	"github.com/srg/textwatch/internal/glucose"
	"github.com/srg/textwatch/internal/groutine"
	"github.com/srg/textwatch/internal/host"
	"github.com/srg/textwatch/internal/protocol"
)

// errQuit ends the console on an explicit quit.
var errQuit = errors.New("quit")

type commandKind int

const (
	commandNone commandKind = iota
	commandGlucose
	commandConfigure
	commandClosed
	commandRequest
	commandStatus
	commandHelp
	commandQuit
)

// consoleCommand is one parsed line of console input.
type consoleCommand struct {
	kind      commandKind
	value     int
	trend     *int
	timestamp int64
	payload   string // raw configuration page response for closed
}

const consoleHelp = `Commands:
  glucose <mg/dL> [trend] [unix-time]  store a reading and push it to the watch
  configure                            open the configuration page
  closed [response]                    deliver a configuration page result
  request                              simulate a data request from the watch
  status                               show link and glucose state
  help                                 show this help
  quit                                 exit`

// parseCommand parses a console line. Blank lines and # comments parse to commandNone.
func parseCommand(line string) (consoleCommand, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return consoleCommand{kind: commandNone}, nil
	}

	name, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	fields := strings.Fields(rest)

	switch strings.ToLower(name) {
	case "glucose", "g":
		return parseGlucose(fields)
	case "configure", "config":
		return consoleCommand{kind: commandConfigure}, nil
	case "closed":
		// the response is JSON and may contain spaces
		return consoleCommand{kind: commandClosed, payload: rest}, nil
	case "request":
		return consoleCommand{kind: commandRequest}, nil
	case "status":
		return consoleCommand{kind: commandStatus}, nil
	case "help", "?":
		return consoleCommand{kind: commandHelp}, nil
	case "quit", "exit":
		return consoleCommand{kind: commandQuit}, nil
	default:
		return consoleCommand{}, fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
}

func parseGlucose(fields []string) (consoleCommand, error) {
	if len(fields) < 1 || len(fields) > 3 {
		return consoleCommand{}, fmt.Errorf("usage: glucose <mg/dL> [trend] [unix-time]")
	}

	cmd := consoleCommand{kind: commandGlucose}
	value, err := strconv.Atoi(fields[0])
	if err != nil {
		return consoleCommand{}, fmt.Errorf("invalid glucose value %q: %w", fields[0], err)
	}
	cmd.value = value

	if len(fields) > 1 {
		trend, err := strconv.Atoi(fields[1])
		if err != nil {
			return consoleCommand{}, fmt.Errorf("invalid trend %q: %w", fields[1], err)
		}
		cmd.trend = &trend
	}
	if len(fields) > 2 {
		ts, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil {
			return consoleCommand{}, fmt.Errorf("invalid timestamp %q: %w", fields[2], err)
		}
		cmd.timestamp = ts
	}
	return cmd, nil
}

// updateOptions converts the optional glucose arguments.
func (c consoleCommand) updateOptions() []glucose.UpdateOption {
	var opts []glucose.UpdateOption
	if c.trend != nil {
		opts = append(opts, glucose.WithTrend(*c.trend))
	}
	if c.timestamp != 0 {
		opts = append(opts, glucose.WithTimestamp(c.timestamp))
	}
	return opts
}

// console feeds stdin commands into the app on the event loop.
type console struct {
	in     io.Reader
	out    io.Writer
	loop   *host.Loop
	app    *companion.App
	prompt bool
}

// run reads commands until quit, end of input or ctx is done. Every command
// is executed on the loop and finished before the next line is read.
func (c *console) run(ctx context.Context) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	groutine.Go(ctx, "console-reader", func(ctx context.Context) {
		defer close(lines)
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	})

	for {
		c.showPrompt()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					if err != nil {
						return fmt.Errorf("failed to read console input: %w", err)
					}
				default:
				}
				return c.flush()
			}

			cmd, err := parseCommand(line)
			if err != nil {
				fmt.Fprintf(c.out, "%s %v\n", color.RedString("error:"), err)
				continue
			}
			if cmd.kind == commandQuit {
				if err := c.flush(); err != nil {
					return err
				}
				return errQuit
			}
			if err := c.execute(cmd); err != nil {
				return err
			}
		}
	}
}

func (c *console) showPrompt() {
	if c.prompt {
		fmt.Fprint(c.out, color.CyanString("textwatch> "))
	}
}

// flush waits for events already queued, such as delivery callbacks.
func (c *console) flush() error {
	return c.loop.Call(func() {})
}

func (c *console) execute(cmd consoleCommand) error {
	switch cmd.kind {
	case commandNone:
		return nil
	case commandHelp:
		fmt.Fprintln(c.out, consoleHelp)
		return nil
	case commandGlucose:
		return c.loop.Call(func() {
			c.app.UpdateGlucose(cmd.value, cmd.updateOptions()...)
		})
	case commandConfigure:
		return c.loop.Call(c.app.HandleShowConfiguration)
	case commandClosed:
		return c.loop.Call(func() {
			c.app.HandleWebviewClosed(cmd.payload)
		})
	case commandRequest:
		return c.loop.Call(func() {
			c.app.HandleAppMessage(protocol.Message{protocol.KeyRequestData: 1})
		})
	case commandStatus:
		var ready bool
		var pending int
		var reading glucose.Reading
		if err := c.loop.Call(func() {
			ready = c.app.Ready()
			pending = c.app.Pending()
			reading = c.app.Reading()
		}); err != nil {
			return err
		}
		printStatus(c.out, ready, pending, reading)
		return nil
	default:
		return fmt.Errorf("%w: %d", ErrUnknownCommand, cmd.kind)
	}
}

func printStatus(w io.Writer, ready bool, pending int, r glucose.Reading) {
	label := color.New(color.Bold).SprintFunc()

	state := color.YellowString("waiting")
	if ready {
		state = color.GreenString("ready")
	}
	fmt.Fprintf(w, "%s %s (%d pending)\n", label("link:"), state, pending)

	if !r.HasData() {
		fmt.Fprintf(w, "%s no data\n", label("glucose:"))
		return
	}
	fmt.Fprintf(w, "%s %d mg/dL, trend %d, at %s\n", label("glucose:"),
		r.Value, r.Trend, time.Unix(r.Timestamp, 0).UTC().Format(time.RFC3339))
}
