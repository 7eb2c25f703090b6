// Package playback implements the single-slot preview controller.
//
// One preview is active across the whole block list. Every request is stamped
// with a monotonically increasing token; a fetch result or an end-of-playback
// callback applies only while its token still owns the slot. Superseded
// results are dropped and any resource they acquired is released.
package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/tts-editor/internal/block"
	"github.com/book-expert/tts-editor/internal/core"
	"github.com/google/uuid"
)

// Status is the state of the active preview slot.
type Status int

// Slot states.
const (
	Idle Status = iota
	Loading
	Playing
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Playing:
		return "playing"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

const (
	defaultFetchTimeout = 60 * time.Second
	releaseTimeout      = 5 * time.Second
	resourceKeyPrefix   = "preview-"

	logFmtStaleResult     = "Dropping stale preview result for block %s (token %d, active %d)"
	logFmtPreviewFailed   = "Preview for block %s failed: %v"
	logFmtReleaseFailed   = "Failed to release preview resource %s: %v"
	logFmtPreviewPlaying  = "Previewing block %s (%d bytes)"
	logFmtPreviewFinished = "Preview for block %s finished"
)

// Controller errors.
var (
	ErrFetcherNil = errors.New("preview fetcher cannot be nil")
	ErrStoreNil   = errors.New("preview object store cannot be nil")
	ErrPlayerNil  = errors.New("player cannot be nil")
)

// Fetcher renders a block's parameters into audio.
type Fetcher interface {
	Preview(ctx context.Context, params block.SynthesisParams) ([]byte, error)
}

// Resource is a materialized, playable preview held in the object store.
type Resource struct {
	Key        string
	BlockID    string
	Format     block.Format
	Size       int
	SampleRate int
	Duration   time.Duration
}

// Player plays a materialized resource. Play must return promptly and call
// ended exactly once when playback finishes on its own. After Stop, ended may
// still fire; the controller ignores it.
type Player interface {
	Play(ctx context.Context, res Resource, ended func()) error
	Stop(res Resource)
}

// Ticket identifies one request.
type Ticket struct {
	Token uint64
	// Stopped is true when the request stopped the block's own playing preview.
	Stopped bool
}

// Snapshot is the observable state of the slot.
type Snapshot struct {
	Status  Status
	BlockID string
	Token   uint64
}

type slot struct {
	token    uint64
	blockID  string
	status   Status
	resource *Resource
}

// Options configures a Controller.
type Options struct {
	Fetcher      Fetcher
	Store        core.ObjectStore
	Player       Player
	Notifier     core.Notifier
	Log          *logger.Logger
	FetchTimeout time.Duration
}

// Controller owns the single active preview slot.
type Controller struct {
	fetcher  Fetcher
	store    core.ObjectStore
	player   Player
	notifier core.Notifier
	log      *logger.Logger
	timeout  time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	nextToken uint64
	active    slot
}

// New creates a Controller.
func New(opts Options) (*Controller, error) {
	if opts.Fetcher == nil {
		return nil, ErrFetcherNil
	}

	if opts.Store == nil {
		return nil, ErrStoreNil
	}

	if opts.Player == nil {
		return nil, ErrPlayerNil
	}

	timeout := opts.FetchTimeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Controller{
		fetcher:  opts.Fetcher,
		store:    opts.Store,
		player:   opts.Player,
		notifier: opts.Notifier,
		log:      opts.Log,
		timeout:  timeout,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Request toggles the preview of a block. A second request for the block that
// is currently playing stops it. Any other request supersedes whatever is
// active and starts loading cfg.
func (c *Controller) Request(blockID string, cfg block.Config) Ticket {
	c.mu.Lock()

	if c.active.status == Playing && c.active.blockID == blockID {
		stopped := c.active
		c.nextToken++
		c.active = slot{token: c.nextToken}
		c.mu.Unlock()

		c.release(stopped.resource)

		return Ticket{Token: stopped.token, Stopped: true}
	}

	previous := c.active
	c.nextToken++
	token := c.nextToken
	c.active = slot{token: token, blockID: blockID, status: Loading}
	c.wg.Add(1)
	c.mu.Unlock()

	c.release(previous.resource)

	go c.fetch(token, blockID, cfg.Format, cfg.Params())

	return Ticket{Token: token, Stopped: false}
}

// Invalidate drops the active preview when it belongs to blockID, e.g. after
// the block was deleted. It reports whether anything was dropped.
func (c *Controller) Invalidate(blockID string) bool {
	c.mu.Lock()

	if c.active.status == Idle || c.active.blockID != blockID {
		c.mu.Unlock()

		return false
	}

	dropped := c.active
	c.nextToken++
	c.active = slot{token: c.nextToken}
	c.mu.Unlock()

	c.release(dropped.resource)

	return true
}

// Stop ends whatever preview is active.
func (c *Controller) Stop() {
	c.mu.Lock()
	dropped := c.active
	c.nextToken++
	c.active = slot{token: c.nextToken}
	c.mu.Unlock()

	c.release(dropped.resource)
}

// State returns the current slot.
func (c *Controller) State() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		Status:  c.active.status,
		BlockID: c.active.blockID,
		Token:   c.active.token,
	}
}

// StatusOf returns the preview status for blockID.
func (c *Controller) StatusOf(blockID string) Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active.blockID != blockID {
		return Idle
	}

	return c.active.status
}

// Wait blocks until every outstanding fetch has settled.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Close stops the active preview, abandons in-flight fetches and waits for them.
func (c *Controller) Close() {
	c.Stop()
	c.cancel()
	c.wg.Wait()
}

func (c *Controller) fetch(token uint64, blockID string, format block.Format, params block.SynthesisParams) {
	defer c.wg.Done()

	ctx, cancel := context.WithTimeout(c.ctx, c.timeout)
	defer cancel()

	audio, err := c.fetcher.Preview(ctx, params)
	if err != nil {
		c.fail(token, blockID, err)

		return
	}

	if !c.owns(token) {
		c.logStale(token, blockID)

		return
	}

	res, err := c.materialize(ctx, blockID, format, audio)
	if err != nil {
		c.fail(token, blockID, err)

		return
	}

	c.mu.Lock()

	if c.active.token != token {
		c.mu.Unlock()
		c.logStale(token, blockID)
		c.release(&res)

		return
	}

	c.active.status = Playing
	c.active.resource = &res
	c.mu.Unlock()

	c.infof(logFmtPreviewPlaying, blockID, res.Size)

	playErr := c.player.Play(c.ctx, res, func() { c.ended(token) })
	if playErr != nil {
		c.fail(token, blockID, fmt.Errorf("failed to start playback: %w", playErr))
	}
}

func (c *Controller) materialize(
	ctx context.Context,
	blockID string,
	format block.Format,
	audio []byte,
) (Resource, error) {
	res := Resource{
		Key:     resourceKeyPrefix + uuid.NewString(),
		BlockID: blockID,
		Format:  format,
		Size:    len(audio),
	}

	res.SampleRate, res.Duration = probe(format, audio)

	err := c.store.Upload(ctx, res.Key, audio)
	if err != nil {
		return Resource{}, fmt.Errorf("failed to materialize preview: %w", err)
	}

	return res, nil
}

// ended handles natural completion of playback.
func (c *Controller) ended(token uint64) {
	c.mu.Lock()

	if c.active.token != token || c.active.status != Playing {
		c.mu.Unlock()

		return
	}

	finished := c.active
	c.active = slot{token: token}
	c.mu.Unlock()

	c.infof(logFmtPreviewFinished, finished.blockID)
	c.release(finished.resource)
}

// fail returns the slot to idle and notifies the user, unless token was superseded.
func (c *Controller) fail(token uint64, blockID string, err error) {
	c.mu.Lock()

	if c.active.token != token || c.active.status == Idle {
		c.mu.Unlock()
		c.logStale(token, blockID)

		return
	}

	failed := c.active
	c.active = slot{token: token}
	c.mu.Unlock()

	c.release(failed.resource)

	if c.log != nil {
		c.log.Error(logFmtPreviewFailed, blockID, err)
	}

	if c.notifier != nil {
		c.notifier.Notify(core.Notification{
			Kind:    core.KindPreviewFailed,
			BlockID: blockID,
			Message: err.Error(),
		})
	}
}

func (c *Controller) owns(token uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.active.token == token
}

// release stops and frees a resource. Safe to call with nil.
func (c *Controller) release(res *Resource) {
	if res == nil {
		return
	}

	c.player.Stop(*res)

	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()

	err := c.store.Delete(ctx, res.Key)
	if err != nil && c.log != nil {
		c.log.Warn(logFmtReleaseFailed, res.Key, err)
	}
}

func (c *Controller) logStale(token uint64, blockID string) {
	c.mu.Lock()
	current := c.active.token
	c.mu.Unlock()

	c.infof(logFmtStaleResult, blockID, token, current)
}

func (c *Controller) infof(format string, args ...any) {
	if c.log != nil {
		c.log.Info(format, args...)
	}
}
