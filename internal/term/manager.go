package term

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"
	"golang.org/x/time/rate"

	"github.com/splitdeck/splitdeck/internal/layout"
)

// PTY write rate limit per instance. Injection endpoints can push whole
// scripts; the token bucket keeps one pane from starving the event loop.
const (
	writeRate  = 256 * 1024 // bytes per second
	writeBurst = 32 * 1024
)

// exitGrace is how long a signaled process group gets before SIGKILL.
const exitGrace = 5 * time.Second

// subscriberBuffer is the per-subscriber channel depth; a subscriber that
// falls this far behind loses output rather than blocking the PTY reader.
const subscriberBuffer = 64

// ExitEvent reports a pane command that finished, voluntarily or not.
type ExitEvent struct {
	PaneID          string
	Provider        string
	ResumeSessionID string
	Err             error
}

// Instance is one running (or recently exited) pane command.
type Instance struct {
	PaneID          string
	Provider        string
	WorkDir         string
	ResumeSessionID string
	StartedAt       time.Time

	mu          sync.Mutex
	pty         *os.File
	cmd         *exec.Cmd
	scrollback  *RingBuffer
	limiter     *rate.Limiter
	subscribers map[chan []byte]struct{}
	done        chan struct{}
	readDone    chan struct{}
	cancel      context.CancelFunc
	ctx         context.Context
	exited      bool
	exitErr     error
	closing     bool
}

// InstanceInfo is the JSON-facing snapshot of an instance.
type InstanceInfo struct {
	PaneID          string    `json:"paneId"`
	Provider        string    `json:"provider"`
	WorkDir         string    `json:"workDir,omitempty"`
	ResumeSessionID string    `json:"resumeSessionId,omitempty"`
	StartedAt       time.Time `json:"startedAt"`
	Running         bool      `json:"running"`
}

// Options configures a Manager.
type Options struct {
	Shell           string // login shell used to launch pane commands
	ScrollbackBytes int    // capture ring size per instance
	ArchiveDir      string // scrollback archive directory, empty disables archiving
	Providers       map[string]Provider
}

// Manager owns the PTY instances backing terminal panes.
type Manager struct {
	mu        sync.Mutex
	instances map[string]*Instance

	shell           string
	scrollbackBytes int
	archiveDir      string
	providers       map[string]Provider

	// OnExit, when set, is called from the wait goroutine after an
	// instance's process finishes and its scrollback is archived.
	OnExit func(ExitEvent)
}

// NewManager creates a Manager. Zero options get working defaults.
func NewManager(opts Options) *Manager {
	if opts.Shell == "" {
		opts.Shell = "/bin/bash"
	}
	if opts.ScrollbackBytes <= 0 {
		opts.ScrollbackBytes = 256 * 1024
	}
	if opts.Providers == nil {
		opts.Providers = BuiltinProviders()
	}
	return &Manager{
		instances:       make(map[string]*Instance),
		shell:           opts.Shell,
		scrollbackBytes: opts.ScrollbackBytes,
		archiveDir:      opts.ArchiveDir,
		providers:       opts.Providers,
	}
}

// Providers returns the provider registry the manager launches from.
func (m *Manager) Providers() map[string]Provider {
	return m.providers
}

// Start launches the command for a terminal pane. A pane that already has a
// running instance is an error; an exited instance is replaced.
func (m *Manager) Start(paneID string, content *layout.PaneContent) error {
	if content == nil || content.Kind != layout.ContentTerminal {
		return fmt.Errorf("pane %s is not a terminal pane", paneID)
	}
	provider, ok := m.providers[string(content.Mode)]
	if !ok {
		return fmt.Errorf("unknown provider %q", content.Mode)
	}

	m.mu.Lock()
	if existing, ok := m.instances[paneID]; ok && !existing.Exited() {
		m.mu.Unlock()
		return fmt.Errorf("pane %s already running", paneID)
	}
	m.mu.Unlock()

	cmd := m.buildCommand(provider, content.ResumeSessionID)
	if content.WorkDir != "" {
		if info, err := os.Stat(content.WorkDir); err != nil || !info.IsDir() {
			return fmt.Errorf("working directory does not exist: %s", content.WorkDir)
		}
		cmd.Dir = content.WorkDir
	}
	cmd.Env = append(os.Environ(), "TERM=xterm-256color")
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}

	ptmx, err := pty.Start(cmd)
	if err != nil {
		return fmt.Errorf("start pty for pane %s: %w", paneID, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	inst := &Instance{
		PaneID:          paneID,
		Provider:        provider.Name,
		WorkDir:         content.WorkDir,
		ResumeSessionID: content.ResumeSessionID,
		StartedAt:       time.Now(),
		pty:             ptmx,
		cmd:             cmd,
		scrollback:      NewRingBuffer(m.scrollbackBytes),
		limiter:         rate.NewLimiter(rate.Limit(writeRate), writeBurst),
		subscribers:     make(map[chan []byte]struct{}),
		done:            make(chan struct{}),
		readDone:        make(chan struct{}),
		ctx:             ctx,
		cancel:          cancel,
	}

	m.mu.Lock()
	m.instances[paneID] = inst
	m.mu.Unlock()

	go m.readLoop(inst)
	go m.waitLoop(inst)

	log.Printf("[TERM] Started %s for pane %s (pid %d)", provider.Name, paneID, cmd.Process.Pid)
	return nil
}

// buildCommand produces the exec.Cmd for a provider: bare login shell for
// the shell provider, otherwise the escaped launch line run through it.
func (m *Manager) buildCommand(provider Provider, resumeID string) *exec.Cmd {
	line := provider.LaunchLine(resumeID)
	if line == "" {
		return exec.Command(m.shell, "-l")
	}
	return exec.Command(m.shell, "-l", "-c", line)
}

// Write sends input bytes to a pane's PTY through its rate limiter,
// chunked at the burst size so arbitrarily large injections still pass.
func (m *Manager) Write(paneID string, data []byte) error {
	inst, err := m.running(paneID)
	if err != nil {
		return err
	}

	for len(data) > 0 {
		chunk := data
		if len(chunk) > writeBurst {
			chunk = chunk[:writeBurst]
		}
		if err := inst.limiter.WaitN(inst.ctx, len(chunk)); err != nil {
			return fmt.Errorf("pane %s closed during write", paneID)
		}
		if _, err := inst.writePTY(chunk); err != nil {
			return fmt.Errorf("write to pane %s: %w", paneID, err)
		}
		data = data[len(chunk):]
	}
	return nil
}

// Resize updates a pane's PTY window size.
func (m *Manager) Resize(paneID string, cols, rows uint16) error {
	inst, err := m.running(paneID)
	if err != nil {
		return err
	}
	if cols == 0 || rows == 0 {
		return fmt.Errorf("invalid size %dx%d", cols, rows)
	}
	inst.mu.Lock()
	defer inst.mu.Unlock()
	if inst.pty == nil {
		return fmt.Errorf("pane %s has no pty", paneID)
	}
	if err := pty.Setsize(inst.pty, &pty.Winsize{Rows: rows, Cols: cols}); err != nil {
		return fmt.Errorf("resize pane %s: %w", paneID, err)
	}
	return nil
}

// Capture returns a copy of a pane's scrollback buffer. Works for exited
// instances until maintenance prunes them.
func (m *Manager) Capture(paneID string) ([]byte, error) {
	m.mu.Lock()
	inst, ok := m.instances[paneID]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("no instance for pane %s", paneID)
	}
	return inst.scrollback.Bytes(), nil
}

// Subscribe attaches a reader to a pane's output stream. The returned cancel
// must be called when the reader goes away. New subscribers first receive
// the current scrollback so their view starts populated.
func (m *Manager) Subscribe(paneID string) (<-chan []byte, func(), error) {
	m.mu.Lock()
	inst, ok := m.instances[paneID]
	m.mu.Unlock()
	if !ok {
		return nil, nil, fmt.Errorf("no instance for pane %s", paneID)
	}

	ch := make(chan []byte, subscriberBuffer)
	if backlog := inst.scrollback.Bytes(); len(backlog) > 0 {
		ch <- backlog
	}

	inst.mu.Lock()
	inst.subscribers[ch] = struct{}{}
	inst.mu.Unlock()

	cancel := func() {
		inst.mu.Lock()
		if _, ok := inst.subscribers[ch]; ok {
			delete(inst.subscribers, ch)
			close(ch)
		}
		inst.mu.Unlock()
	}
	return ch, cancel, nil
}

// Close signals a pane's process group with SIGHUP, escalating to SIGKILL
// after the grace period. The exit path archives scrollback and fires
// OnExit.
func (m *Manager) Close(paneID string) error {
	inst, err := m.running(paneID)
	if err != nil {
		return err
	}

	inst.mu.Lock()
	if inst.closing {
		inst.mu.Unlock()
		return nil
	}
	inst.closing = true
	cmd := inst.cmd
	inst.mu.Unlock()

	if cmd.Process != nil {
		signalGroup(cmd, unix.SIGHUP)
		go func() {
			select {
			case <-inst.done:
			case <-time.After(exitGrace):
				signalGroup(cmd, unix.SIGKILL)
			}
		}()
	}
	return nil
}

// CloseAll signals every running instance and waits for them to finish,
// bounded by twice the grace period. Used on server shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	instances := make([]*Instance, 0, len(m.instances))
	for _, inst := range m.instances {
		instances = append(instances, inst)
	}
	m.mu.Unlock()

	for _, inst := range instances {
		if !inst.Exited() {
			_ = m.Close(inst.PaneID)
		}
	}
	deadline := time.After(2 * exitGrace)
	for _, inst := range instances {
		select {
		case <-inst.done:
		case <-deadline:
			return
		}
	}
}

// PruneExited drops exited instances from the registry and returns how many
// were removed. Their scrollback is already archived by the exit path.
func (m *Manager) PruneExited() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	pruned := 0
	for id, inst := range m.instances {
		if inst.Exited() {
			delete(m.instances, id)
			pruned++
		}
	}
	return pruned
}

// List returns snapshots of all instances.
func (m *Manager) List() []InstanceInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]InstanceInfo, 0, len(m.instances))
	for _, inst := range m.instances {
		out = append(out, InstanceInfo{
			PaneID:          inst.PaneID,
			Provider:        inst.Provider,
			WorkDir:         inst.WorkDir,
			ResumeSessionID: inst.ResumeSessionID,
			StartedAt:       inst.StartedAt,
			Running:         !inst.Exited(),
		})
	}
	return out
}

// Running reports whether a pane has a live instance.
func (m *Manager) IsRunning(paneID string) bool {
	m.mu.Lock()
	inst, ok := m.instances[paneID]
	m.mu.Unlock()
	return ok && !inst.Exited()
}

func (m *Manager) running(paneID string) (*Instance, error) {
	m.mu.Lock()
	inst, ok := m.instances[paneID]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("no instance for pane %s", paneID)
	}
	if inst.Exited() {
		return nil, fmt.Errorf("pane %s already exited", paneID)
	}
	return inst, nil
}

func (m *Manager) readLoop(inst *Instance) {
	defer close(inst.readDone)
	buf := make([]byte, 32*1024)
	for {
		n, err := inst.pty.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			inst.scrollback.Write(data)
			inst.broadcast(data)
		}
		if err != nil {
			if err != io.EOF {
				log.Printf("[TERM] PTY read ended for pane %s: %v", inst.PaneID, err)
			}
			return
		}
	}
}

func (m *Manager) waitLoop(inst *Instance) {
	err := inst.cmd.Wait()

	// Let the read loop drain buffered output before the master closes.
	// The timeout covers orphaned grandchildren holding the slave side open.
	select {
	case <-inst.readDone:
	case <-time.After(2 * time.Second):
	}

	inst.mu.Lock()
	inst.exited = true
	inst.exitErr = err
	if inst.pty != nil {
		inst.pty.Close()
	}
	for ch := range inst.subscribers {
		delete(inst.subscribers, ch)
		close(ch)
	}
	inst.mu.Unlock()

	inst.cancel()
	close(inst.done)

	if m.archiveDir != "" {
		if data := inst.scrollback.Bytes(); len(data) > 0 {
			if _, aerr := archiveScrollback(m.archiveDir, inst.PaneID, data, time.Now()); aerr != nil {
				log.Printf("[TERM] Scrollback archive failed for pane %s: %v", inst.PaneID, aerr)
			}
		}
	}

	log.Printf("[TERM] Pane %s (%s) exited: %v", inst.PaneID, inst.Provider, err)
	if m.OnExit != nil {
		m.OnExit(ExitEvent{
			PaneID:          inst.PaneID,
			Provider:        inst.Provider,
			ResumeSessionID: inst.ResumeSessionID,
			Err:             err,
		})
	}
}

// Exited reports whether the instance's process has finished.
func (inst *Instance) Exited() bool {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return inst.exited
}

func (inst *Instance) writePTY(p []byte) (int, error) {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	if inst.pty == nil || inst.exited {
		return 0, fmt.Errorf("pty closed")
	}
	return inst.pty.Write(p)
}

// broadcast fans output to subscribers, dropping chunks for any subscriber
// whose buffer is full so the PTY reader never blocks.
func (inst *Instance) broadcast(data []byte) {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	for ch := range inst.subscribers {
		select {
		case ch <- data:
		default:
		}
	}
}

// signalGroup delivers sig to the command's process group, falling back to
// the process itself when the group cannot be resolved.
func signalGroup(cmd *exec.Cmd, sig unix.Signal) {
	if cmd.Process == nil {
		return
	}
	pgid, err := unix.Getpgid(cmd.Process.Pid)
	if err != nil || pgid <= 0 {
		_ = cmd.Process.Signal(sig)
		return
	}
	_ = unix.Kill(-pgid, sig)
}
