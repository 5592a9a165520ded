// Package voice is the recording session state machine behind the
// composer's voice-note button: Idle -> Recording -> Stopped, or back to
// Idle on cancel, with a hard cap that auto-finalizes long recordings.
package voice

import (
	"context"
	"errors"
	"sync"
	"time"
)

type State int

const (
	StateIdle State = iota
	StateRecording
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

var (
	ErrAlreadyRecording = errors.New("a recording session is already active")
	ErrNotRecording     = errors.New("no active recording session")
)

// Clip is one finalized voice note.
type Clip struct {
	Encoding string
	Data     []byte
	Duration time.Duration
}

const (
	// DefaultMaxDuration auto-stops a session; recordings never exceed it
	// by more than one tick.
	DefaultMaxDuration = 60 * time.Second

	defaultTick = time.Second
)

type Config struct {
	Device Device

	// MaxDuration caps the session; zero means DefaultMaxDuration.
	MaxDuration time.Duration

	// Tick is the elapsed-counter cadence; zero means one second.
	Tick time.Duration

	// OnElapsed is called on every tick with the running duration.
	OnElapsed func(time.Duration)

	// OnComplete receives the finalized clip on stop or auto-stop. It is
	// never called for a cancelled session.
	OnComplete func(Clip)
}

// Recorder runs at most one capture session at a time.
type Recorder struct {
	cfg Config

	mu        sync.Mutex
	state     State
	starting  bool // device open in flight; blocks a second Start
	capture   Capture
	encoding  string
	startedAt time.Time
	stopWatch chan struct{}
}

func NewRecorder(cfg Config) *Recorder {
	if cfg.MaxDuration <= 0 {
		cfg.MaxDuration = DefaultMaxDuration
	}
	if cfg.Tick <= 0 {
		cfg.Tick = defaultTick
	}
	return &Recorder{cfg: cfg, state: StateIdle}
}

func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Recorder) Elapsed() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateRecording {
		return 0
	}
	return time.Since(r.startedAt)
}

// Start opens the device and begins capturing. Permission refusal and
// missing capture support surface as distinct errors.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.state == StateRecording || r.starting {
		r.mu.Unlock()
		return ErrAlreadyRecording
	}
	r.starting = true
	r.mu.Unlock()

	if r.cfg.Device == nil {
		r.clearStarting()
		return ErrRecordingUnavailable
	}
	encoding, ok := pickEncoding(r.cfg.Device)
	if !ok {
		r.clearStarting()
		return ErrRecordingUnavailable
	}

	// Open can block on a permission prompt; the starting flag keeps a
	// second Start out while the mutex is released.
	capture, err := r.cfg.Device.Open(ctx, encoding)
	if err != nil {
		r.clearStarting()
		return err
	}

	r.mu.Lock()
	r.starting = false
	r.state = StateRecording
	r.capture = capture
	r.encoding = encoding
	r.startedAt = time.Now()
	r.stopWatch = make(chan struct{})
	stop := r.stopWatch
	r.mu.Unlock()

	go r.watch(stop)
	return nil
}

func (r *Recorder) clearStarting() {
	r.mu.Lock()
	r.starting = false
	r.mu.Unlock()
}

// watch drives the elapsed callback and the auto-stop cap.
func (r *Recorder) watch(stop chan struct{}) {
	ticker := time.NewTicker(r.cfg.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			r.mu.Lock()
			if r.state != StateRecording {
				r.mu.Unlock()
				return
			}
			elapsed := time.Since(r.startedAt)
			r.mu.Unlock()

			if r.cfg.OnElapsed != nil {
				r.cfg.OnElapsed(elapsed)
			}

			if elapsed >= r.cfg.MaxDuration {
				_, _ = r.Stop()
				return
			}
		}
	}
}

// Stop finalizes the capture into a clip, fires OnComplete and releases
// the device.
func (r *Recorder) Stop() (Clip, error) {
	r.mu.Lock()
	if r.state != StateRecording {
		r.mu.Unlock()
		return Clip{}, ErrNotRecording
	}

	clip := Clip{
		Encoding: r.encoding,
		Data:     r.capture.Bytes(),
		Duration: time.Since(r.startedAt),
	}

	_ = r.capture.Close()
	r.capture = nil
	r.state = StateStopped
	close(r.stopWatch)
	r.mu.Unlock()

	if r.cfg.OnComplete != nil {
		r.cfg.OnComplete(clip)
	}
	return clip, nil
}

// Cancel discards the session from any state and releases the device. No
// completion callback fires.
func (r *Recorder) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateRecording {
		_ = r.capture.Close()
		r.capture = nil
		close(r.stopWatch)
	}
	r.state = StateIdle
}

// Close releases the device if the caller tears the composer down without
// an explicit cancel.
func (r *Recorder) Close() {
	r.Cancel()
}
