// Package analysis owns per-instance tool state and runs the single outstanding
// inference request for each instance.
package analysis

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"rash-identifier/internal/intake"
)

var (
	ErrBusy            = errors.New("an analysis is already in progress")
	ErrNoImage         = errors.New("no image to analyze")
	ErrNotFound        = errors.New("session not found")
	ErrTooManySessions = errors.New("too many active sessions")

	errFault = errors.New("analysis fault")
)

const (
	msgAnalyzeFailed = "Failed to analyze image. Please try again."
	msgCancelled     = "Analysis cancelled."
	msgTimedOut      = "Analysis timed out. Please try again."
)

// State is the record a renderer needs. It is always handed out by value.
type State struct {
	Image     intake.EncodedImage
	Analysis  string
	Loading   bool
	Error     string
	UpdatedAt time.Time
}

// Session is one independent instance of the tool.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu         sync.Mutex
	state      State
	token      uint64
	cancel     context.CancelFunc
	lastActive time.Time
}

// request is the single admitted inference call of a session.
type request struct {
	token uint64
	image intake.EncodedImage
	ctx   context.Context
	stop  context.CancelFunc
}

func newSession(id string, seed Seed, now time.Time) *Session {
	s := &Session{
		ID:         id,
		CreatedAt:  now,
		lastActive: now,
		state:      State{UpdatedAt: now},
	}
	if seed.Err != nil {
		s.state.Error = intake.UserMessage(seed.Err)
		return s
	}
	s.state.Image = seed.Image
	s.state.Analysis = seed.Analysis
	return s
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = time.Now()
	return s.state
}

// SetImage replaces the image after a successful intake and clears the error slot.
// An analysis still running for the previous image is cancelled and its result dropped.
func (s *Session) SetImage(img intake.EncodedImage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.abandonLocked()
	s.state.Image = img
	s.state.Error = ""
	s.touchLocked()
}

// Fail records a user-visible error without touching the image or analysis.
func (s *Session) Fail(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Error = message
	s.touchLocked()
}

// Cancel stops the in-flight analysis, if any. The running call then completes
// with a cancellation error.
func (s *Session) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return false
	}
	s.cancel()
	return true
}

func (s *Session) begin(parent context.Context, timeout time.Duration) (*request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Loading {
		return nil, ErrBusy
	}
	if s.state.Image.IsZero() {
		return nil, ErrNoImage
	}

	var (
		ctx  context.Context
		stop context.CancelFunc
	)
	if timeout > 0 {
		ctx, stop = context.WithTimeout(parent, timeout)
	} else {
		ctx, stop = context.WithCancel(parent)
	}

	s.token++
	s.cancel = stop
	s.state.Loading = true
	s.state.Error = ""
	s.touchLocked()

	return &request{token: s.token, image: s.state.Image, ctx: ctx, stop: stop}, nil
}

// finish applies the outcome of req unless a newer image superseded it.
// Loading is always cleared for the current request, whatever the outcome.
func (s *Session) finish(req *request, text string, err error) bool {
	req.stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	if req.token != s.token {
		return false
	}
	s.cancel = nil
	s.state.Loading = false
	if err != nil {
		s.state.Error = userMessage(err)
	} else {
		s.state.Analysis = text
		s.state.Error = ""
	}
	s.touchLocked()
	return true
}

func (s *Session) abandonLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.token++
	s.state.Loading = false
}

func (s *Session) touchLocked() {
	now := time.Now()
	s.state.UpdatedAt = now
	s.lastActive = now
}

func (s *Session) idle(now time.Time, maxIdle time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.state.Loading && now.Sub(s.lastActive) > maxIdle
}

func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.abandonLocked()
}

func userMessage(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return msgTimedOut
	case errors.Is(err, context.Canceled):
		return msgCancelled
	case errors.Is(err, errFault):
		return msgAnalyzeFailed
	}
	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return msgAnalyzeFailed
}
