package ui

import (
	"io"
	"os"
	"time"

	"github.com/briandowns/spinner"
)

// Spinner displays an animated progress indicator. It is a no-op when the
// writer is not a terminal, so piped output stays clean.
type Spinner struct {
	s *spinner.Spinner
}

// NewSpinner creates a spinner writing to w (not yet running). A nil w
// means stderr.
func NewSpinner(w io.Writer) *Spinner {
	if w == nil {
		w = os.Stderr
	}
	return &Spinner{
		s: spinner.New(spinner.CharSets[14], 80*time.Millisecond, spinner.WithWriter(w)),
	}
}

// Start begins the spinner animation with the given message.
func (s *Spinner) Start(msg string) {
	s.Update(msg)
	s.s.Start()
}

// Update changes the spinner message while it's running.
func (s *Spinner) Update(msg string) {
	s.s.Lock()
	s.s.Suffix = " " + msg
	s.s.Unlock()
}

// Message returns the current message.
func (s *Spinner) Message() string {
	s.s.Lock()
	defer s.s.Unlock()
	if len(s.s.Suffix) > 0 {
		return s.s.Suffix[1:]
	}
	return ""
}

// Stop halts the spinner and clears the line.
func (s *Spinner) Stop() {
	s.s.Stop()
}
