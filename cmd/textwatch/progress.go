package main

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"
)

const (
	progressUpdateInterval = 100 * time.Millisecond
	clearLineSequence      = "\r\033[K"
)

// ProgressPrinter shows a countdown while the watch link is being set up.
//
// A ProgressPrinter is single-use: Start at most once, then Stop. Stop is safe
// to call more than once and from any goroutine.
type ProgressPrinter struct {
	out      io.Writer
	prefix   string
	phase    atomic.Value // string
	duration time.Duration
	started  time.Time
	ticker   atomic.Pointer[time.Ticker]
	stopChan chan struct{}
	done     chan struct{}
}

// NewProgressPrinter creates a printer counting down from duration.
func NewProgressPrinter(out io.Writer, prefix, phase string, duration time.Duration) *ProgressPrinter {
	p := &ProgressPrinter{out: out, prefix: prefix, duration: duration}
	p.phase.Store(phase)
	return p
}

// Start begins displaying progress updates in a background goroutine.
func (p *ProgressPrinter) Start() {
	if p.stopChan != nil {
		panic("ProgressPrinter.Start called more than once")
	}
	p.stopChan = make(chan struct{})
	p.done = make(chan struct{})
	p.started = time.Now()
	ticker := time.NewTicker(progressUpdateInterval)
	p.ticker.Store(ticker)

	p.print(p.phase.Load().(string), 0)
	go func() {
		defer close(p.done)
		for {
			select {
			case <-p.stopChan:
				return
			case <-ticker.C:
				remaining := p.duration - time.Since(p.started)
				seconds := 0
				if remaining > 0 {
					seconds = int(remaining.Seconds() + 0.5)
				}
				p.print(p.phase.Load().(string), seconds)
			}
		}
	}()
}

func (p *ProgressPrinter) print(phase string, seconds int) {
	if seconds > 0 {
		fmt.Fprintf(p.out, "\r%s (%s %ds)   ", p.prefix, phase, seconds)
	} else {
		fmt.Fprintf(p.out, "\r%s (%s...)   ", p.prefix, phase)
	}
}

// Stop stops the display and clears the line.
func (p *ProgressPrinter) Stop() {
	ticker := p.ticker.Swap(nil)
	if ticker == nil {
		return
	}
	ticker.Stop()
	close(p.stopChan)
	<-p.done
	fmt.Fprint(p.out, clearLineSequence)
}
