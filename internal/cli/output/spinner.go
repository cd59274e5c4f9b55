package output

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner shows progress for a long-running step on a TTY. Start is a
// no-op on non-TTY output; Success and Fail always print their final
// line, so piped output still records what happened.
type Spinner struct {
	r       *Renderer
	msg     string
	enabled bool

	mu      sync.Mutex
	done    chan struct{}
	stopped sync.Once
	running bool
}

func newSpinner(r *Renderer, msg string) *Spinner {
	return &Spinner{
		r:       r,
		msg:     msg,
		enabled: r.IsTTY(),
		done:    make(chan struct{}),
	}
}

// Start begins the animation.
func (s *Spinner) Start() {
	if !s.enabled {
		return
	}
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		i := 0
		for {
			select {
			case <-s.done:
				return
			case <-ticker.C:
				s.mu.Lock()
				frame := s.r.styles.Info.Render(spinnerFrames[i%len(spinnerFrames)])
				fmt.Fprintf(s.r.out, "\r%s %s", frame, s.msg)
				s.mu.Unlock()
				i++
			}
		}
	}()
}

// Success stops the spinner and prints msg with a check mark.
func (s *Spinner) Success(msg string) {
	s.stop()
	s.r.Success(msg)
}

// Fail stops the spinner and prints msg with a cross.
func (s *Spinner) Fail(msg string) {
	s.stop()
	fmt.Fprintln(s.r.out, s.r.styles.StatusFailed.String()+" "+msg)
}

func (s *Spinner) stop() {
	s.stopped.Do(func() { close(s.done) })
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	// Erase the animation line before the final message lands.
	fmt.Fprintf(s.r.out, "\r%s\r", strings.Repeat(" ", len(s.msg)+4))
}
