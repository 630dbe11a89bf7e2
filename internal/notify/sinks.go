package notify

import (
	"log/slog"
	"os/exec"
	"runtime"
	"runtime/debug"
	"sync"
	"time"
)

// ToastLevel selects the toast's visual treatment.
type ToastLevel string

const (
	ToastInfo    ToastLevel = "info"
	ToastSuccess ToastLevel = "success"
)

// Toast is one dashboard notification card.
type Toast struct {
	Level ToastLevel
	Title string
	Body  string
	At    time.Time
}

const toastHistoryLimit = 50

// ToastSink records toasts and emits each one as a structured log line.
// The retained history backs the dashboard's notification list.
type ToastSink struct {
	logger *slog.Logger

	mu     sync.Mutex
	recent []Toast
}

func NewToastSink() *ToastSink {
	return &ToastSink{logger: slog.Default().With("module", "toast")}
}

func (s *ToastSink) Push(t Toast) {
	if t.At.IsZero() {
		t.At = time.Now()
	}
	s.mu.Lock()
	s.recent = append(s.recent, t)
	if len(s.recent) > toastHistoryLimit {
		s.recent = s.recent[len(s.recent)-toastHistoryLimit:]
	}
	s.mu.Unlock()

	s.logger.Info("toast",
		slog.String("level", string(t.Level)),
		slog.String("title", t.Title),
		slog.String("body", t.Body))
}

// Recent returns the retained toasts, newest last.
func (s *ToastSink) Recent() []Toast {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Toast, len(s.recent))
	copy(out, s.recent)
	return out
}

// safeCall runs a sink action with panic recovery. A broken sink must never
// take the event pipeline down with it.
func safeCall(logger *slog.Logger, context string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("notification sink panicked",
				slog.String("context", context),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
		}
	}()
	fn()
}

// runner executes an external command; swapped out in tests.
type runner func(name string, args ...string) error

func execRunner(name string, args ...string) error {
	return exec.Command(name, args...).Run()
}

// SoundPlayer plays the payment chime through whichever command-line player
// the host has. Capability is probed once, lazily; a host with no player
// degrades to silence.
type SoundPlayer struct {
	logger *slog.Logger
	run    runner

	once   sync.Once
	player string
	args   []string
}

func NewSoundPlayer() *SoundPlayer {
	return &SoundPlayer{
		logger: slog.Default().With("module", "sound"),
		run:    execRunner,
	}
}

func (p *SoundPlayer) init() {
	type candidate struct {
		bin  string
		args []string
	}
	var candidates []candidate
	switch runtime.GOOS {
	case "darwin":
		candidates = []candidate{{"afplay", []string{"/System/Library/Sounds/Glass.aiff"}}}
	case "windows":
		candidates = []candidate{{"powershell", []string{"-c", "[console]::beep(880,300)"}}}
	default:
		candidates = []candidate{
			{"paplay", []string{"/usr/share/sounds/freedesktop/stereo/complete.oga"}},
			{"aplay", []string{"/usr/share/sounds/alsa/Front_Center.wav"}},
		}
	}
	for _, c := range candidates {
		if _, err := exec.LookPath(c.bin); err == nil {
			p.player = c.bin
			p.args = c.args
			return
		}
	}
	p.logger.Debug("no sound player available, chime disabled")
}

func (p *SoundPlayer) Play() {
	p.once.Do(p.init)
	if p.player == "" {
		return
	}
	safeCall(p.logger, "sound", func() {
		if err := p.run(p.player, p.args...); err != nil {
			p.logger.Debug("sound playback failed", slog.Any("error", err))
		}
	})
}

// DesktopNotifier raises OS-level notifications via the platform's command
// line tool. Same lazy capability probe as SoundPlayer; failures are logged
// and swallowed.
type DesktopNotifier struct {
	logger *slog.Logger
	run    runner

	once sync.Once
	bin  string
}

func NewDesktopNotifier() *DesktopNotifier {
	return &DesktopNotifier{
		logger: slog.Default().With("module", "desktop_notify"),
		run:    execRunner,
	}
}

func (n *DesktopNotifier) init() {
	var bins []string
	switch runtime.GOOS {
	case "darwin":
		bins = []string{"osascript"}
	case "windows":
		bins = []string{"powershell"}
	default:
		bins = []string{"notify-send"}
	}
	for _, b := range bins {
		if _, err := exec.LookPath(b); err == nil {
			n.bin = b
			return
		}
	}
	n.logger.Debug("no desktop notifier available, disabled")
}

func (n *DesktopNotifier) Notify(title, body string) {
	n.once.Do(n.init)
	if n.bin == "" {
		return
	}
	safeCall(n.logger, "desktop", func() {
		var args []string
		switch n.bin {
		case "osascript":
			args = []string{"-e", `display notification "` + body + `" with title "` + title + `"`}
		case "powershell":
			args = []string{"-c", "New-BurntToastNotification -Text '" + title + "','" + body + "'"}
		default:
			args = []string{title, body}
		}
		if err := n.run(n.bin, args...); err != nil {
			n.logger.Debug("desktop notification failed", slog.Any("error", err))
		}
	})
}
