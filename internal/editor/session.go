// Package editor ties the block list, the voice catalog, the preview
// controller and the export coordinator into one editing session.
//
// Every voice, locale or style edit goes through the selection cascade and
// writes the full resolved tuple back in a single update, so an invalid
// combination is never stored.
package editor

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/book-expert/logger"
	"github.com/book-expert/tts-editor/internal/block"
	"github.com/book-expert/tts-editor/internal/catalog"
	"github.com/book-expert/tts-editor/internal/core"
	"github.com/book-expert/tts-editor/internal/export"
	"github.com/book-expert/tts-editor/internal/playback"
)

const (
	logFmtCatalogLoaded   = "Voice catalog loaded with %d voices"
	logFmtCatalogFailed   = "Failed to load voice catalog: %v"
	logFmtRepaired        = "Block %d: replaced invalid selection %s/%s/%s with %s/%s/%s"
	logFmtUnknownVoice    = "Block %d: voice %q is not in the catalog, leaving selection as is"
	logFmtIntakeLoaded    = "Loaded %d blocks from recommendations"
	logFmtDeletedBlock    = "Deleted block %d (%s)"
	logFmtPreviewDropped  = "Dropped active preview of deleted block %s"
	logFmtPreviewsStopped = "Stopped active preview after replacing the block list"
)

// Session errors.
var (
	ErrCatalogUnavailable = errors.New("voice catalog is unavailable")
	ErrSelectionPatch     = errors.New("voice, locale and style must be changed through the selection cascade")
	ErrInvalidLocale      = errors.New("locale is not supported by the voice")
	ErrInvalidStyle       = errors.New("style is not supported by the voice and locale")
	ErrPlaybackNil        = errors.New("playback controller cannot be nil")
	ErrExportNil          = errors.New("export coordinator cannot be nil")
	ErrCatalogSourceNil   = errors.New("catalog source cannot be nil")
	ErrRecommenderUnset   = errors.New("no recommender configured")
)

// CatalogSource fetches the voice list.
type CatalogSource interface {
	FetchVoices(ctx context.Context) ([]catalog.Voice, error)
}

// Recommender produces recommendation intake for a document text.
type Recommender interface {
	Recommend(ctx context.Context, text string) ([]byte, error)
}

// Options configures a Session.
type Options struct {
	Catalog         CatalogSource
	Recommender     Recommender
	Playback        *playback.Controller
	Export          *export.Coordinator
	Notifier        core.Notifier
	Log             *logger.Logger
	CanonicalLocale string
	CanonicalStyle  string
}

// Session is one editing session.
type Session struct {
	store       *block.Store
	source      CatalogSource
	recommender Recommender
	playback    *playback.Controller
	export      *export.Coordinator
	notifier    core.Notifier
	log         *logger.Logger
	canonical   catalog.Option

	// editMu serializes read-modify-write edits of the block list.
	editMu sync.Mutex

	catalogMu    sync.RWMutex
	catalog      *catalog.Catalog
	catalogReady bool
}

// New creates a Session with an empty block list and an empty catalog.
func New(opts Options) (*Session, error) {
	if opts.Catalog == nil {
		return nil, ErrCatalogSourceNil
	}

	if opts.Playback == nil {
		return nil, ErrPlaybackNil
	}

	if opts.Export == nil {
		return nil, ErrExportNil
	}

	canonical := catalog.WithCanonical(opts.CanonicalLocale, opts.CanonicalStyle)

	return &Session{
		store:       block.NewStore(),
		source:      opts.Catalog,
		recommender: opts.Recommender,
		playback:    opts.Playback,
		export:      opts.Export,
		notifier:    opts.Notifier,
		log:         opts.Log,
		canonical:   canonical,
		catalog:     catalog.New(nil, canonical),
	}, nil
}

// LoadCatalog fetches the voice catalog. On failure the session keeps an empty
// catalog, the user is notified and selection edits stay disabled until a
// later call succeeds. On success existing blocks are repaired against it.
func (s *Session) LoadCatalog(ctx context.Context) error {
	voices, err := s.source.FetchVoices(ctx)
	if err != nil {
		s.catalogMu.Lock()
		s.catalog = catalog.New(nil, s.canonical)
		s.catalogReady = false
		s.catalogMu.Unlock()

		s.errorf(logFmtCatalogFailed, err)
		s.notify(core.Notification{Kind: core.KindCatalogUnavailable, Message: err.Error()})

		return fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
	}

	loaded := catalog.New(voices, s.canonical)

	s.catalogMu.Lock()
	s.catalog = loaded
	s.catalogReady = true
	s.catalogMu.Unlock()

	s.infof(logFmtCatalogLoaded, loaded.Len())

	s.editMu.Lock()
	defer s.editMu.Unlock()

	for i, b := range s.store.Snapshot() {
		patch, changed := s.repair(loaded, i, b.Config)
		if changed {
			_, _ = s.store.Update(i, patch)
		}
	}

	return nil
}

// Catalog returns the current catalog snapshot and whether it loaded.
func (s *Session) Catalog() (*catalog.Catalog, bool) {
	s.catalogMu.RLock()
	defer s.catalogMu.RUnlock()

	return s.catalog, s.catalogReady
}

// Blocks returns a copy of the block list in order.
func (s *Session) Blocks() []block.Block {
	return s.store.Snapshot()
}

// Len returns the number of blocks.
func (s *Session) Len() int {
	return s.store.Len()
}

// AddBlock appends a baseline block.
func (s *Session) AddBlock() block.Block {
	return s.store.Append()
}

// DeleteBlock removes the block at index and drops its preview if active.
func (s *Session) DeleteBlock(index int) error {
	s.editMu.Lock()
	removed, err := s.store.Remove(index)
	s.editMu.Unlock()

	if err != nil {
		return err
	}

	s.infof(logFmtDeletedBlock, index, removed.ID)

	if s.playback.Invalidate(removed.ID) {
		s.infof(logFmtPreviewDropped, removed.ID)
	}

	return nil
}

// UpdateBlock merges a partial update of the non-selection fields.
func (s *Session) UpdateBlock(index int, patch block.Patch) (block.Config, error) {
	if patch.TouchesSelection() {
		return block.Config{}, ErrSelectionPatch
	}

	s.editMu.Lock()
	defer s.editMu.Unlock()

	return s.store.Update(index, patch)
}

// ChangeVoice selects a voice and resets locale and style to the defaults the
// voice supports.
func (s *Session) ChangeVoice(index int, voiceID string) (block.Config, error) {
	voices, err := s.readyCatalog()
	if err != nil {
		return block.Config{}, err
	}

	selection, err := catalog.ResolveVoiceChange(voices, voiceID)
	if err != nil {
		return block.Config{}, fmt.Errorf("block %d: %w", index, err)
	}

	s.editMu.Lock()
	defer s.editMu.Unlock()

	return s.store.Update(index, block.Patch{
		VoiceID:           block.Ptr(voiceID),
		MultiNativeLocale: block.Ptr(selection.Locale),
		Style:             block.Ptr(selection.Style),
	})
}

// ChangeLocale selects a locale of the block's voice and resets the style.
func (s *Session) ChangeLocale(index int, locale string) (block.Config, error) {
	voices, err := s.readyCatalog()
	if err != nil {
		return block.Config{}, err
	}

	s.editMu.Lock()
	defer s.editMu.Unlock()

	current, err := s.store.Get(index)
	if err != nil {
		return block.Config{}, err
	}

	voiceID := current.Config.VoiceID
	if !catalog.HasLocale(voices, voiceID, locale) {
		return current.Config, fmt.Errorf("block %d: %w: %s for %s", index, ErrInvalidLocale, locale, voiceID)
	}

	selection, err := catalog.ResolveLocaleChange(voices, voiceID, locale)
	if err != nil {
		return current.Config, fmt.Errorf("block %d: %w", index, err)
	}

	return s.store.Update(index, block.Patch{
		MultiNativeLocale: block.Ptr(selection.Locale),
		Style:             block.Ptr(selection.Style),
	})
}

// ChangeStyle selects a style valid for the block's voice and locale.
func (s *Session) ChangeStyle(index int, style string) (block.Config, error) {
	voices, err := s.readyCatalog()
	if err != nil {
		return block.Config{}, err
	}

	s.editMu.Lock()
	defer s.editMu.Unlock()

	current, err := s.store.Get(index)
	if err != nil {
		return block.Config{}, err
	}

	cfg := current.Config
	if _, known := voices.Voice(cfg.VoiceID); known &&
		!slices.Contains(catalog.StylesFor(voices, cfg.VoiceID, cfg.MultiNativeLocale), style) {
		return cfg, fmt.Errorf("block %d: %w: %s", index, ErrInvalidStyle, style)
	}

	return s.store.Update(index, block.Patch{Style: block.Ptr(style)})
}

// TogglePreview starts the preview of the block at index, or stops it when it
// is the one playing.
func (s *Session) TogglePreview(index int) (playback.Ticket, error) {
	current, err := s.store.Get(index)
	if err != nil {
		return playback.Ticket{}, err
	}

	return s.playback.Request(current.ID, current.Config), nil
}

// PreviewStatus returns the preview state of the block at index.
func (s *Session) PreviewStatus(index int) playback.Status {
	current, err := s.store.Get(index)
	if err != nil {
		return playback.Idle
	}

	return s.playback.StatusOf(current.ID)
}

// WaitPreviews blocks until outstanding preview fetches have settled.
func (s *Session) WaitPreviews() {
	s.playback.Wait()
}

// SetExportName records the export destination and schedules its existence check.
func (s *Session) SetExportName(name string) export.NameState {
	return s.export.SetName(name)
}

// ExportState returns the naming state of the export dialog.
func (s *Session) ExportState() export.NameState {
	return s.export.State()
}

// CancelExport discards the export dialog state.
func (s *Session) CancelExport() {
	s.export.Cancel()
}

// ConfirmExport exports every block, in order, under the current name.
func (s *Session) ConfirmExport(ctx context.Context) (export.Result, error) {
	return s.export.Confirm(ctx, s.store.Snapshot())
}

// LoadRecommendations replaces the block list with parsed recommendation
// intake. Selections the catalog rejects are reset to its defaults.
func (s *Session) LoadRecommendations(data []byte) (int, error) {
	blocks, err := block.ParseRecommendations(data)
	if err != nil {
		return 0, fmt.Errorf("failed to load recommendations: %w", err)
	}

	voices, ready := s.Catalog()
	if ready {
		for i := range blocks {
			patch, changed := s.repair(voices, i, blocks[i].Config)
			if changed {
				blocks[i].Config = patch.Apply(blocks[i].Config)
			}
		}
	}

	s.editMu.Lock()
	s.store.Replace(blocks)
	s.editMu.Unlock()

	s.playback.Stop()
	s.infof(logFmtPreviewsStopped)
	s.infof(logFmtIntakeLoaded, len(blocks))

	return len(blocks), nil
}

// Recommend asks the recommender for configurations of text and loads them.
func (s *Session) Recommend(ctx context.Context, text string) (int, error) {
	if s.recommender == nil {
		return 0, ErrRecommenderUnset
	}

	data, err := s.recommender.Recommend(ctx, text)
	if err != nil {
		return 0, fmt.Errorf("failed to get recommendations: %w", err)
	}

	return s.LoadRecommendations(data)
}

// Close stops previews and abandons pending export checks.
func (s *Session) Close() {
	s.playback.Close()
	s.export.Close()
}

func (s *Session) readyCatalog() (*catalog.Catalog, error) {
	voices, ready := s.Catalog()
	if !ready {
		return nil, ErrCatalogUnavailable
	}

	return voices, nil
}

// repair returns the patch that makes cfg's selection valid for voices.
// Unknown voices are left alone.
func (s *Session) repair(voices *catalog.Catalog, index int, cfg block.Config) (block.Patch, bool) {
	if _, known := voices.Voice(cfg.VoiceID); !known {
		s.warnf(logFmtUnknownVoice, index, cfg.VoiceID)

		return block.Patch{}, false
	}

	if catalog.IsValid(voices, cfg.VoiceID, cfg.MultiNativeLocale, cfg.Style) {
		return block.Patch{}, false
	}

	var selection catalog.Selection
	if catalog.HasLocale(voices, cfg.VoiceID, cfg.MultiNativeLocale) {
		selection, _ = catalog.ResolveLocaleChange(voices, cfg.VoiceID, cfg.MultiNativeLocale)
	} else {
		selection, _ = catalog.ResolveVoiceChange(voices, cfg.VoiceID)
	}

	s.infof(logFmtRepaired, index,
		cfg.VoiceID, cfg.MultiNativeLocale, cfg.Style,
		cfg.VoiceID, selection.Locale, selection.Style)

	return block.Patch{
		MultiNativeLocale: block.Ptr(selection.Locale),
		Style:             block.Ptr(selection.Style),
	}, true
}

func (s *Session) notify(n core.Notification) {
	if s.notifier != nil {
		s.notifier.Notify(n)
	}
}

func (s *Session) infof(format string, args ...any) {
	if s.log != nil {
		s.log.Info(format, args...)
	}
}

func (s *Session) warnf(format string, args ...any) {
	if s.log != nil {
		s.log.Warn(format, args...)
	}
}

func (s *Session) errorf(format string, args ...any) {
	if s.log != nil {
		s.log.Error(format, args...)
	}
}
