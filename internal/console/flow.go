package console

import (
	"sync"
	"time"

	"github.com/glasskit/glassbox/internal/track"
)

// Phase is one stage of the request lifecycle shown by the flow inspector.
type Phase struct {
	Name       string  `json:"name"`
	DurationMs float64 `json:"durationMs"`
}

// DerivePhases splits a request's total wall time across the lifecycle
// stages. Controller and model time come from the call buckets, query time
// from the query log, and whatever remains is attributed to rendering.
func DerivePhases(env *track.Envelope) []Phase {
	var controller, model float64
	for _, call := range env.MethodCalls {
		switch ClassifyCall(call.Name) {
		case BucketController:
			controller += call.DurationMs
		case BucketModel:
			model += call.DurationMs
		}
	}
	var query float64
	for _, q := range env.DBQueries {
		query += q.DurationMs
	}
	render := env.Timing.DurationMs() - controller - model - query
	if render < 0 {
		render = 0
	}
	return []Phase{
		{Name: "controller", DurationMs: controller},
		{Name: "model", DurationMs: model},
		{Name: "database", DurationMs: query},
		{Name: "render", DurationMs: render},
	}
}

// Frame is one animation step emitted to the flow inspector.
type Frame struct {
	Step     int     `json:"step"`
	Phase    Phase   `json:"phase"`
	Progress float64 `json:"progress"` // 0..1 across all steps
	Done     bool    `json:"done"`
}

const (
	minFrameDelay  = 50 * time.Millisecond
	baseFrameDelay = 400 * time.Millisecond
)

// Animator walks the phases of an envelope on a server-side clock and
// emits Frames. It is safe for concurrent control calls; a single
// goroutine drives the timer so pausing or stopping never leaks one.
type Animator struct {
	mu      sync.Mutex
	phases  []Phase
	speed   float64
	loop    bool
	playing bool
	step    int

	frames chan Frame
	wake   chan struct{}
	stop   chan struct{}
	once   sync.Once
}

// NewAnimator prepares an animator over the envelope's phases. Frames are
// delivered on Frames() once Play is called.
func NewAnimator(env *track.Envelope) *Animator {
	a := &Animator{
		phases: DerivePhases(env),
		speed:  1,
		frames: make(chan Frame, 8),
		wake:   make(chan struct{}, 1),
		stop:   make(chan struct{}),
	}
	go a.run()
	return a
}

// Frames delivers animation steps. The channel closes when Stop is called.
func (a *Animator) Frames() <-chan Frame { return a.frames }

// Play starts or resumes the animation.
func (a *Animator) Play() {
	a.mu.Lock()
	a.playing = true
	a.mu.Unlock()
	a.nudge()
}

// Pause halts the animation at the current step.
func (a *Animator) Pause() {
	a.mu.Lock()
	a.playing = false
	a.mu.Unlock()
	a.nudge()
}

// Reset rewinds to the first step without changing play state.
func (a *Animator) Reset() {
	a.mu.Lock()
	a.step = 0
	a.mu.Unlock()
	a.nudge()
}

// SetSpeed scales playback; 2 means twice as fast. Values at or below
// zero are ignored.
func (a *Animator) SetSpeed(speed float64) {
	if speed <= 0 {
		return
	}
	a.mu.Lock()
	a.speed = speed
	a.mu.Unlock()
	a.nudge()
}

// SetLoop makes the animation restart after the last step.
func (a *Animator) SetLoop(loop bool) {
	a.mu.Lock()
	a.loop = loop
	a.mu.Unlock()
}

// Stop terminates the animator and closes Frames. Safe to call more
// than once.
func (a *Animator) Stop() {
	a.once.Do(func() { close(a.stop) })
}

func (a *Animator) nudge() {
	select {
	case a.wake <- struct{}{}:
	default:
	}
}

func (a *Animator) run() {
	defer close(a.frames)
	timer := time.NewTimer(baseFrameDelay)
	if !timer.Stop() {
		<-timer.C
	}
	for {
		a.mu.Lock()
		playing := a.playing && len(a.phases) > 0
		delay := a.delayLocked()
		a.mu.Unlock()

		if !playing {
			select {
			case <-a.stop:
				return
			case <-a.wake:
				continue
			}
		}

		timer.Reset(delay)
		select {
		case <-a.stop:
			if !timer.Stop() {
				<-timer.C
			}
			return
		case <-a.wake:
			if !timer.Stop() {
				<-timer.C
			}
			continue
		case <-timer.C:
		}

		frame, ok := a.advance()
		if !ok {
			continue
		}
		select {
		case a.frames <- frame:
		case <-a.stop:
			return
		}
	}
}

func (a *Animator) delayLocked() time.Duration {
	delay := time.Duration(float64(baseFrameDelay) / a.speed)
	if delay < minFrameDelay {
		delay = minFrameDelay
	}
	return delay
}

// advance emits the current step and moves to the next one, honoring loop
// mode and pausing at the end otherwise.
func (a *Animator) advance() (Frame, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.playing || a.step >= len(a.phases) {
		return Frame{}, false
	}
	frame := Frame{
		Step:     a.step,
		Phase:    a.phases[a.step],
		Progress: float64(a.step+1) / float64(len(a.phases)),
		Done:     a.step == len(a.phases)-1,
	}
	a.step++
	if a.step >= len(a.phases) {
		if a.loop {
			a.step = 0
		} else {
			a.playing = false
		}
	}
	return frame, true
}
