package playback

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/book-expert/logger"
	"github.com/book-expert/tts-editor/internal/core"
)

const (
	dirPermissions  = 0o750
	filePermissions = 0o600

	logFmtPreviewWritten = "Preview for block %s written to %s (%d bytes, %s)"
)

// ErrPreviewDirEmpty is returned when a FilePlayer has no output directory.
var ErrPreviewDirEmpty = errors.New("preview directory cannot be empty")

// FilePlayer is a headless player: it copies the resource out of the object
// store into a file and reports playback as finished right away.
type FilePlayer struct {
	dir   string
	store core.ObjectStore
	log   *logger.Logger

	mu      sync.Mutex
	written []string
}

// NewFilePlayer creates a FilePlayer that writes into dir.
func NewFilePlayer(dir string, store core.ObjectStore, log *logger.Logger) (*FilePlayer, error) {
	if dir == "" {
		return nil, ErrPreviewDirEmpty
	}

	if store == nil {
		return nil, ErrStoreNil
	}

	err := os.MkdirAll(dir, dirPermissions)
	if err != nil {
		return nil, fmt.Errorf("failed to create preview directory %s: %w", dir, err)
	}

	return &FilePlayer{dir: dir, store: store, log: log}, nil
}

// Play implements Player.
func (p *FilePlayer) Play(ctx context.Context, res Resource, ended func()) error {
	data, err := p.store.Download(ctx, res.Key)
	if err != nil {
		return fmt.Errorf("failed to read preview %s: %w", res.Key, err)
	}

	path := filepath.Join(p.dir, res.BlockID+"."+strings.ToLower(string(res.Format)))

	err = os.WriteFile(path, data, filePermissions)
	if err != nil {
		return fmt.Errorf("failed to write preview file %s: %w", path, err)
	}

	p.mu.Lock()
	p.written = append(p.written, path)
	p.mu.Unlock()

	if p.log != nil {
		p.log.Info(logFmtPreviewWritten, res.BlockID, path, len(data), res.Duration)
	}

	go ended()

	return nil
}

// Stop implements Player. Written files are kept.
func (p *FilePlayer) Stop(Resource) {}

// Written returns the files produced so far.
func (p *FilePlayer) Written() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]string(nil), p.written...)
}
