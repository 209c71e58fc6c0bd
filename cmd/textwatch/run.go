package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/textwatch/internal/companion"
	"github.com/srg/textwatch/internal/dispatch"
	"github.com/srg/textwatch/internal/host"
	"github.com/srg/textwatch/internal/link"
	"github.com/srg/textwatch/internal/protocol"
	"github.com/srg/textwatch/internal/store"
	"github.com/srg/textwatch/pkg/config"
	"golang.org/x/term"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run [device-address]",
	Short: "Run the companion against a watch",
	Long: fmt.Sprintf(`Connects to the watch, sends the stored settings once the link is ready and
then reads commands from stdin (type 'help' for the list).

Examples:
  # Connect to a watch
  textwatch run %s

  # Without a watch: every push is acknowledged in-process
  textwatch run --loopback

  # Scripted session
  printf 'glucose 120 2\nstatus\n' | textwatch run --loopback

%s`, exampleDeviceAddress, deviceAddressNote),
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

var (
	runLoopback bool
	runVerbose  bool
)

func init() {
	runCmd.Flags().BoolVar(&runLoopback, "loopback", false, "Use an in-process watch stand-in instead of BLE")
	runCmd.Flags().BoolVarP(&runVerbose, "verbose", "V", false, "Verbose output (same as --log-level debug)")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if len(args) == 1 {
		cfg.DeviceAddress = args[0]
	}
	if !runLoopback && cfg.DeviceAddress == "" {
		return ErrNoDeviceAddress
	}

	logger, err := configureLogger(cmd, "verbose", cfg)
	if err != nil {
		return err
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	st, err := store.OpenFile(cfg.StorePath)
	if err != nil {
		return err
	}
	logger.WithField("path", st.Path()).Debug("Settings store opened")

	out := cmd.OutOrStdout()
	s := newSession(cfg, st, &consoleOpener{out: out}, runLoopback, logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return s.run(ctx, cmd.InOrStdin(), out, isTerminal(cmd.InOrStdin()))
}

// watchLink is the transport side the session drives.
type watchLink interface {
	dispatch.Transport
	Connect(ctx context.Context) error
}

// session owns the event loop and everything that runs on it.
type session struct {
	cfg      *config.Config
	loop     *host.Loop
	app      *companion.App
	link     watchLink
	loopback bool
	logger   *logrus.Logger

	lostOnce sync.Once
	lost     chan struct{}
}

func newSession(cfg *config.Config, st store.Store, opener companion.Opener, loopback bool, logger *logrus.Logger) *session {
	s := &session{
		cfg:      cfg,
		loop:     host.NewLoop("companion", host.DefaultCapacity, logger),
		loopback: loopback,
		logger:   logger,
		lost:     make(chan struct{}),
	}

	handlers := link.Handlers{
		OnReady: func() {
			s.post(s.app.HandleReady)
		},
		OnMessage: func(msg protocol.Message) {
			s.post(func() { s.app.HandleAppMessage(msg) })
		},
		OnDisconnected: func() {
			s.lostOnce.Do(func() { close(s.lost) })
		},
	}

	if loopback {
		s.link = link.NewLoopback(handlers, nil, logger)
	} else {
		opts := link.DefaultOptions(cfg.DeviceAddress)
		opts.ConnectTimeout = cfg.ConnectTimeout
		opts.AckTimeout = cfg.AckTimeout
		opts.InboxSize = cfg.InboxSize
		opts.OutboxSize = cfg.OutboxSize
		s.link = link.NewWatchLink(opts, handlers, logger)
	}

	// delivery callbacks arrive on link goroutines; run them as loop events
	transport := dispatch.Scheduled(s.link, s.post)

	s.app = companion.New(companion.Deps{
		Sender: dispatch.New(transport, logger),
		Store:  st,
		Opener: opener,
		Logger: logger,
	}, companion.Options{
		ConfigureURL: cfg.ConfigureURL,
		Version:      cfg.Version,
	})
	return s
}

func (s *session) post(fn func()) {
	if err := s.loop.Post(fn); err != nil {
		s.logger.WithError(err).Debug("Event dropped")
	}
}

// run starts the loop, connects the link and serves console input until quit,
// end of input, a lost connection or ctx is done.
func (s *session) run(ctx context.Context, in io.Reader, out io.Writer, interactive bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.loop.Start(ctx)
	defer func() {
		s.loop.Stop()
		<-s.loop.Done()
	}()

	// the loopback is ready at once; a BLE link connects while the console
	// already accepts commands, which queue until the link is ready
	var connected chan error
	if s.loopback {
		if err := s.link.Connect(ctx); err != nil {
			return err
		}
	} else {
		connected = make(chan error, 1)
		go func() {
			connected <- s.connect(ctx, out, interactive)
		}()
	}

	if interactive {
		fmt.Fprintf(out, "Type %s for the list of commands.\n", color.CyanString("help"))
	}

	c := &console{in: in, out: out, loop: s.loop, app: s.app, prompt: interactive}
	finished := make(chan error, 1)
	go func() {
		finished <- c.run(ctx)
	}()

	for {
		select {
		case err := <-connected:
			if err != nil {
				return err
			}
			connected = nil
		case err := <-finished:
			if errors.Is(err, errQuit) {
				return nil
			}
			if err != nil {
				return err
			}
			return s.drain(ctx, connected)
		case <-s.lost:
			return ErrConnectionLost
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// drain lets a pending connection attempt finish so queued actions still reach
// the watch, then waits for the events it produced.
func (s *session) drain(ctx context.Context, connected <-chan error) error {
	if connected != nil {
		select {
		case err := <-connected:
			if err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	err := s.loop.Call(func() {})
	if errors.Is(err, host.ErrStopped) {
		return nil
	}
	return err
}

func (s *session) connect(ctx context.Context, out io.Writer, showProgress bool) error {
	if showProgress {
		progress := NewProgressPrinter(out, fmt.Sprintf("Connecting to %s", s.cfg.DeviceAddress), "connecting", s.cfg.ConnectTimeout)
		progress.Start()
		defer progress.Stop()
	}
	return s.link.Connect(ctx)
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
