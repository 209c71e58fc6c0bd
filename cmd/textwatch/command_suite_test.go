package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/suite"
)

// syncBuffer is a bytes.Buffer safe for the loop, console and logger writers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// CommandTestSuite provides command execution helpers with flag isolation.
type CommandTestSuite struct {
	suite.Suite
	storePath string
	noColor   bool
}

func (s *CommandTestSuite) SetupSuite() {
	s.noColor = color.NoColor
	color.NoColor = true
}

func (s *CommandTestSuite) TearDownSuite() {
	color.NoColor = s.noColor
	s.resetFlags()
}

func (s *CommandTestSuite) SetupTest() {
	s.resetFlags()
	s.storePath = filepath.Join(s.T().TempDir(), "storage.yaml")
}

func (s *CommandTestSuite) resetFlags() {
	encodeHex = false
	encodeNamed = false
	runLoopback = false
	runVerbose = false
	for _, name := range []string{"log-level", "config", "store"} {
		s.Require().NoError(rootCmd.PersistentFlags().Set(name, ""))
	}
	rootCmd.SetIn(strings.NewReader(""))
}

// ExecuteCommand runs the root command with args and returns everything
// written to stdout and stderr.
func (s *CommandTestSuite) ExecuteCommand(cmd *cobra.Command, args ...string) (string, error) {
	buf := &syncBuffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// ExecuteWithInput is ExecuteCommand with stdin set to input.
func (s *CommandTestSuite) ExecuteWithInput(input string, args ...string) (string, error) {
	rootCmd.SetIn(strings.NewReader(input))
	return s.ExecuteCommand(rootCmd, args...)
}
