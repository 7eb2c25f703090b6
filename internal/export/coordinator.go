// Package export drives the two-phase export flow: a debounced existence check
// of the destination name, then a single-flight batch submission of every block.
package export

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/tts-editor/internal/backend"
	"github.com/book-expert/tts-editor/internal/block"
	"github.com/book-expert/tts-editor/internal/core"
)

// Defaults.
const (
	DefaultDebounce     = 500 * time.Millisecond
	DefaultExtension    = ".mp3"
	defaultCheckTimeout = 15 * time.Second
)

const (
	logFmtStaleCheck    = "Dropping stale existence check for %q (request %d, active %d)"
	logFmtCheckFailed   = "Existence check for %q failed, treating as unknown: %v"
	logFmtCheckResult   = "Existence check for %q: exists=%t"
	logFmtExportStarted = "Exporting %d blocks to %s"
	logFmtExportFailed  = "Export of %s failed: %v"
	logFmtExportDone    = "Export of %s succeeded"
)

// Coordinator errors.
var (
	ErrBackendNil     = errors.New("export backend cannot be nil")
	ErrNameRequired   = errors.New("export file name is required")
	ErrCheckPending   = errors.New("existence check is still pending")
	ErrExportInFlight = errors.New("an export is already in progress")
)

// Backend is the part of the remote backend the coordinator needs.
type Backend interface {
	FileExists(ctx context.Context, fileName string) (bool, error)
	Export(ctx context.Context, req backend.ExportRequest) (backend.ExportResponse, error)
}

// NameState is the observable naming-phase state.
type NameState struct {
	// FileName is the normalized destination, extension included. Empty when unset.
	FileName string
	// Checking is true from the first keystroke until the settled name's check resolves.
	Checking bool
	// Exists is true only when the latest check found the name. A failed check
	// leaves it false.
	Exists    bool
	Exporting bool
}

// CanConfirm reports whether an export may be submitted now.
func (s NameState) CanConfirm() bool {
	return s.FileName != "" && !s.Checking && !s.Exporting
}

// Result describes a completed export.
type Result struct {
	FileName     string
	SupabasePath string
	Message      string
}

// Options configures a Coordinator.
type Options struct {
	Backend      Backend
	Notifier     core.Notifier
	Log          *logger.Logger
	Debounce     time.Duration
	Extension    string
	CheckTimeout time.Duration
}

// Coordinator owns the naming and commit phases of an export.
type Coordinator struct {
	backend      Backend
	notifier     core.Notifier
	log          *logger.Logger
	debounce     time.Duration
	extension    string
	checkTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	requestID uint64
	fileName  string
	checking  bool
	exists    bool
	exporting bool
	timer     *time.Timer
}

// New creates a Coordinator.
func New(opts Options) (*Coordinator, error) {
	if opts.Backend == nil {
		return nil, ErrBackendNil
	}

	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}

	if opts.Extension == "" {
		opts.Extension = DefaultExtension
	}

	if opts.CheckTimeout <= 0 {
		opts.CheckTimeout = defaultCheckTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Coordinator{
		backend:      opts.Backend,
		notifier:     opts.Notifier,
		log:          opts.Log,
		debounce:     opts.Debounce,
		extension:    opts.Extension,
		checkTimeout: opts.CheckTimeout,
		ctx:          ctx,
		cancel:       cancel,
	}, nil
}

// NormalizeName trims name and appends extension when it is missing.
func NormalizeName(name, extension string) string {
	name = strings.TrimSpace(name)
	if name == "" || strings.HasSuffix(name, extension) {
		return name
	}

	return name + extension
}

// SetName records a new destination name and restarts the debounce timer.
// Only the check for the most recent name can change the state.
func (c *Coordinator) SetName(name string) NameState {
	fileName := NormalizeName(name, c.extension)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.requestID++
	c.stopTimerLocked()
	c.fileName = fileName
	c.exists = false
	c.checking = fileName != ""

	if c.checking {
		id := c.requestID
		c.timer = time.AfterFunc(c.debounce, func() { c.check(id, fileName) })
	}

	return c.stateLocked()
}

// Cancel abandons the naming phase, invalidating any outstanding check.
func (c *Coordinator) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.resetNamingLocked()
}

// State returns the current naming state.
func (c *Coordinator) State() NameState {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.stateLocked()
}

// BuildJob assembles the export request from every block in order. Blocks with
// empty text are included as they are.
func BuildJob(fileName string, blocks []block.Block) backend.ExportRequest {
	configs := make([]block.SynthesisParams, 0, len(blocks))
	for _, b := range blocks {
		configs = append(configs, b.Config.Params())
	}

	return backend.ExportRequest{
		FileName: fileName,
		Configs:  configs,
	}
}

// Confirm submits blocks as one export job under the current name. The naming
// state is discarded afterwards whether the export succeeded or failed.
func (c *Coordinator) Confirm(ctx context.Context, blocks []block.Block) (Result, error) {
	c.mu.Lock()

	switch {
	case c.exporting:
		c.mu.Unlock()

		return Result{}, ErrExportInFlight
	case c.fileName == "":
		c.mu.Unlock()

		return Result{}, ErrNameRequired
	case c.checking:
		c.mu.Unlock()

		return Result{}, ErrCheckPending
	}

	c.exporting = true
	job := BuildJob(c.fileName, blocks)
	c.mu.Unlock()

	c.infof(logFmtExportStarted, len(job.Configs), job.FileName)

	resp, err := c.backend.Export(ctx, job)

	c.mu.Lock()
	c.exporting = false
	c.resetNamingLocked()
	c.mu.Unlock()

	if err != nil {
		message := backend.ServerMessage(err)

		if c.log != nil {
			c.log.Error(logFmtExportFailed, job.FileName, err)
		}

		c.notify(core.Notification{Kind: core.KindExportFailed, Message: message})

		return Result{}, fmt.Errorf("export of %s failed: %w", job.FileName, err)
	}

	result := Result{
		FileName:     resp.FileName,
		SupabasePath: resp.SupabasePath,
		Message:      resp.Message,
	}
	if result.FileName == "" {
		result.FileName = job.FileName
	}

	c.infof(logFmtExportDone, result.FileName)
	c.notify(core.Notification{Kind: core.KindExportSucceeded, Message: result.FileName})

	return result, nil
}

// Close stops the debounce timer and abandons any in-flight check.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.resetNamingLocked()
	c.mu.Unlock()

	c.cancel()
}

func (c *Coordinator) check(id uint64, fileName string) {
	ctx, cancel := context.WithTimeout(c.ctx, c.checkTimeout)
	defer cancel()

	exists, err := c.backend.FileExists(ctx, fileName)

	c.mu.Lock()
	defer c.mu.Unlock()

	if id != c.requestID || fileName != c.fileName {
		c.infof(logFmtStaleCheck, fileName, id, c.requestID)

		return
	}

	c.checking = false
	c.timer = nil

	if err != nil {
		c.exists = false

		if c.log != nil {
			c.log.Warn(logFmtCheckFailed, fileName, err)
		}

		return
	}

	c.exists = exists
	c.infof(logFmtCheckResult, fileName, exists)
}

func (c *Coordinator) resetNamingLocked() {
	c.requestID++
	c.stopTimerLocked()
	c.fileName = ""
	c.exists = false
	c.checking = false
}

func (c *Coordinator) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Coordinator) stateLocked() NameState {
	return NameState{
		FileName:  c.fileName,
		Checking:  c.checking,
		Exists:    c.exists,
		Exporting: c.exporting,
	}
}

func (c *Coordinator) notify(n core.Notification) {
	if c.notifier != nil {
		c.notifier.Notify(n)
	}
}

func (c *Coordinator) infof(format string, args ...any) {
	if c.log != nil {
		c.log.Info(format, args...)
	}
}
