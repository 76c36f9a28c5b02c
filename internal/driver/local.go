package driver

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
)

// LocalConfig configures LocalDriver's transcode and pacing behavior.
type LocalConfig struct {
	SampleRate int
	Channels   int
	Bitrate    int
	// FrameDuration paces Opus-frame delivery on Events/Handle lifetime so
	// a single process never floods a consumer faster than real time.
	FrameDuration time.Duration
}

// DefaultLocalConfig mirrors the bitrate/frame-duration Discord voice
// expects from an Opus stream.
func DefaultLocalConfig() LocalConfig {
	return LocalConfig{
		SampleRate:    48000,
		Channels:      2,
		Bitrate:       128000,
		FrameDuration: 20 * time.Millisecond,
	}
}

// LocalDriver is a reference Driver implementation: it transcodes whatever
// byte stream a Source hands it into Opus frames via ffmpeg and paces their
// delivery, without speaking any real voice-gateway protocol. It exists so
// the player runtime is exercisable without a production voice library.
type LocalDriver struct {
	cfg    LocalConfig
	events chan Event

	mu        sync.Mutex
	connected bool
	info      ConnectInfo

	nextHandle atomic.Uint64
}

// NewLocalDriver creates a LocalDriver. cfg's zero value is not usable;
// callers should start from DefaultLocalConfig.
func NewLocalDriver(cfg LocalConfig) *LocalDriver {
	return &LocalDriver{
		cfg:    cfg,
		events: make(chan Event, 16),
	}
}

// Events implements Driver.
func (d *LocalDriver) Events() <-chan Event { return d.events }

// Connect implements Driver. LocalDriver never fails a handshake; it
// synthesizes a DriverConnect (or DriverReconnect, if already connected to
// a different channel) event.
func (d *LocalDriver) Connect(ctx context.Context, info ConnectInfo) error {
	d.mu.Lock()
	wasConnected := d.connected
	sameChannel := wasConnected && d.info.ChannelID == info.ChannelID
	d.connected = true
	d.info = info
	d.mu.Unlock()

	kind := DriverConnect
	if wasConnected && !sameChannel {
		kind = DriverReconnect
	}
	d.emit(Event{Kind: kind, GuildID: info.GuildID, ChannelID: info.ChannelID})
	return nil
}

// Leave implements Driver.
func (d *LocalDriver) Leave(ctx context.Context) error {
	d.mu.Lock()
	if !d.connected {
		d.mu.Unlock()
		return nil
	}
	info := d.info
	d.connected = false
	d.mu.Unlock()

	d.emit(Event{Kind: DriverDisconnect, GuildID: info.GuildID, ChannelID: info.ChannelID})
	return nil
}

func (d *LocalDriver) emit(e Event) {
	select {
	case d.events <- e:
	default:
		log.Warn().Msg("driver: events channel full, dropping lifecycle event")
	}
}

// Play implements Driver. It transcodes input through ffmpeg into paced
// Opus frames and returns a Handle controlling that pipeline. TrackEnd is
// emitted on natural stream end, explicit Stop, or ffmpeg failure.
func (d *LocalDriver) Play(ctx context.Context, input io.Reader) (Handle, error) {
	h := &localHandle{
		id:     d.nextHandle.Add(1),
		driver: d,
		input:  input,
		volume: 1.0,
	}
	if err := h.start(ctx, 0); err != nil {
		return nil, err
	}
	return h, nil
}

type localHandle struct {
	id     uint64
	driver *LocalDriver
	input  io.Reader

	mu      sync.Mutex
	cmd     *exec.Cmd
	cancel  context.CancelFunc
	frames  chan []byte
	stopped bool
	paused  bool
	volume  float64
}

// start launches (or relaunches, for Seek) the ffmpeg pipeline reading
// from h.input with a -ss offset.
func (h *localHandle) start(ctx context.Context, offset time.Duration) error {
	runCtx, cancel := context.WithCancel(ctx)

	args := []string{}
	if offset > 0 {
		args = append(args, "-ss", fmt.Sprintf("%.3f", offset.Seconds()))
	}
	args = append(args,
		"-i", "pipe:0",
		"-af", "volume=1.0",
		"-ar", fmt.Sprintf("%d", h.driver.cfg.SampleRate),
		"-ac", fmt.Sprintf("%d", h.driver.cfg.Channels),
		"-c:a", "libopus",
		"-b:a", fmt.Sprintf("%d", h.driver.cfg.Bitrate),
		"-vbr", "on",
		"-application", "audio",
		"-frame_duration", "20",
		"-f", "ogg",
		"-loglevel", "warning",
		"pipe:1",
	)
	cmd := exec.CommandContext(runCtx, "ffmpeg", args...)
	cmd.Stdin = h.input

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("driver: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("driver: start ffmpeg: %w", err)
	}

	h.mu.Lock()
	h.cmd = cmd
	h.cancel = cancel
	h.frames = make(chan []byte, 30)
	h.stopped = false
	frames := h.frames
	h.mu.Unlock()

	go h.pump(stdout, frames, cmd)
	go h.pace(frames, h.driver.cfg.FrameDuration)
	return nil
}

func (h *localHandle) ID() uint64 { return h.id }

// Seek rewinds h.input (which must implement io.Seeker) and restarts the
// ffmpeg pipeline with a -ss offset. Sources that stream from the network
// (the common case) are not seekable; only inline byte sources are.
func (h *localHandle) Seek(ctx context.Context, offset time.Duration) error {
	seeker, ok := h.input.(io.Seeker)
	if !ok {
		return fmt.Errorf("driver: input is not seekable")
	}

	h.mu.Lock()
	cmd := h.cmd
	cancel := h.cancel
	h.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if cmd != nil && cmd.Process != nil {
		cmd.Process.Kill()
	}

	if _, err := seeker.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("driver: rewind input: %w", err)
	}
	return h.start(ctx, offset)
}

func (h *localHandle) SetVolume(v float64) {
	h.mu.Lock()
	h.volume = v
	h.mu.Unlock()
}

func (h *localHandle) Pause() {
	h.mu.Lock()
	h.paused = true
	cmd, frames := h.cmd, h.frames
	h.mu.Unlock()
	if cmd != nil && cmd.Process != nil {
		cmd.Process.Signal(syscall.SIGSTOP)
	}
	for {
		select {
		case <-frames:
		default:
			return
		}
	}
}

func (h *localHandle) Resume() {
	h.mu.Lock()
	h.paused = false
	cmd := h.cmd
	h.mu.Unlock()
	if cmd != nil && cmd.Process != nil {
		cmd.Process.Signal(syscall.SIGCONT)
	}
}

func (h *localHandle) Stop() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.stopped = true
	cmd, cancel := h.cmd, h.cancel
	h.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if cmd != nil && cmd.Process != nil {
		cmd.Process.Kill()
	}
}

// pump reads ffmpeg's stdout into frames until EOF or Stop.
func (h *localHandle) pump(stdout io.ReadCloser, frames chan []byte, cmd *exec.Cmd) {
	defer close(frames)
	defer stdout.Close()

	buf := make([]byte, 4096)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case frames <- chunk:
			default:
			}
		}
		if err != nil {
			cmd.Wait()
			h.mu.Lock()
			superseded := h.cmd != cmd // Seek already installed a new process
			stopped := h.stopped
			h.mu.Unlock()
			if !superseded {
				h.driver.emit(Event{Kind: TrackEnd, Handle: h.id, Stopped: stopped})
			}
			return
		}
	}
}

// pace forwards frames at roughly real-time cadence so a downstream
// consumer never sees a burst larger than one frame interval's worth.
func (h *localHandle) pace(frames chan []byte, interval time.Duration) {
	if interval <= 0 {
		interval = 20 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range frames {
		<-ticker.C
		h.mu.Lock()
		paused := h.paused
		h.mu.Unlock()
		if paused {
			continue
		}
	}
}
