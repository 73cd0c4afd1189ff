package util

import (
	"fmt"
	"strings"
	"sync"
)

type SafePrinter struct {
	mu        sync.Mutex
	suspended bool
}

// Default is the shared SafePrinter used across the application to
// ensure all packages serialize their output to the terminal and avoid
// interleaving between goroutines.
var Default = &SafePrinter{}

// PrintChan, when non-nil, receives a copy of everything printed through
// the SafePrinter. The TUI registers a channel here so console output from
// background work shows up inside its log area instead of corrupting the
// alternate screen.
var PrintChan chan string

var printChanMu sync.Mutex

// SetPrintChannel registers ch as the print mirror. Pass nil to unregister.
func SetPrintChannel(ch chan string) {
	printChanMu.Lock()
	PrintChan = ch
	printChanMu.Unlock()
}

// forward mirrors s into PrintChan without blocking the printer. Messages
// are dropped when the channel is full rather than stalling a worker.
func forward(s string) {
	printChanMu.Lock()
	ch := PrintChan
	printChanMu.Unlock()
	if ch == nil {
		return
	}
	select {
	case ch <- s:
	default:
	}
}

func (s *SafePrinter) Print(a ...interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	forward(fmt.Sprint(a...))
	if s.suspended {
		return
	}
	fmt.Print(a...)
}

func (s *SafePrinter) Printf(format string, a ...interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	forward(fmt.Sprintf(format, a...))
	if s.suspended {
		return
	}
	fmt.Printf(format, a...)
}

func (s *SafePrinter) Println(a ...interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	forward(fmt.Sprintln(a...))
	if s.suspended {
		return
	}
	fmt.Println(a...)
}

// Add clear screen
func (s *SafePrinter) ClearScreen() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.suspended {
		return
	}
	fmt.Print("\x1b[2J\x1b[H")
}

// PrintBlock prints a potentially multi-line block atomically. If clearLine is true
// it will first clear the current line (useful to overwrite a status line) and then
// print the block exactly as provided.
func (s *SafePrinter) PrintBlock(block string, clearLine bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	forward(block)
	if s.suspended {
		return
	}
	if clearLine {
		fmt.Print("\r\x1b[K")
	}
	fmt.Print(block)
	// Ensure the block ends with a newline
	if !strings.HasSuffix(block, "\n") {
		fmt.Print("\n")
	}
}

// ClearLine clears the current line and returns the cursor to the beginning.
func (s *SafePrinter) ClearLine() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.suspended {
		return
	}
	fmt.Print("\r\x1b[K")
}

// Suspend silences all subsequent prints until Resume is called.
// Useful to temporarily hide status messages while interactive prompts
// take over the terminal. Forwarding to PrintChan keeps working so the
// TUI still receives suspended output.
func (s *SafePrinter) Suspend() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suspended = true
}

// Resume re-enables printing after Suspend.
func (s *SafePrinter) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suspended = false
}

func (s *SafePrinter) IsSuspended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.suspended
}
