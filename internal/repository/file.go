package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"legend-tracker/internal/constants"
	"legend-tracker/internal/domain"

	"github.com/rs/zerolog"
)

var fileNames = map[document]string{
	docPlayers:  constants.PlayersFile,
	docSeasonal: constants.SeasonalFile,
	docPrevious: constants.PreviousFile,
}

// FileStore keeps each document as an indented JSON file in one directory. Files are
// replaced by writing a temp file in the same directory and renaming it over the old one.
type FileStore struct {
	dir    string
	mu     sync.Mutex
	logger zerolog.Logger
}

func NewFileStore(dir string, logger zerolog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	logger.Info().Str("dir", dir).Msg("using file store")
	return &FileStore{dir: dir, logger: logger}, nil
}

func (s *FileStore) Load(ctx context.Context) (*domain.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return load(ctx, s)
}

func (s *FileStore) Update(ctx context.Context, fn func(st *domain.State) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return update(ctx, s, s.logger, fn)
}

func (s *FileStore) path(doc document) string {
	return filepath.Join(s.dir, fileNames[doc])
}

func (s *FileStore) read(ctx context.Context) (map[document][]byte, error) {
	out := make(map[document][]byte, len(documents))
	for _, doc := range documents {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b, err := os.ReadFile(s.path(doc))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: reading %s: %w", domain.ErrPersistence, doc, err)
		}
		out[doc] = b
	}
	return out, nil
}

// write stages every document in a synced temp file before renaming any of them. If a
// rename fails, the documents already replaced are restored from before.
func (s *FileStore) write(ctx context.Context, before, after map[document][]byte, which []document) error {
	staged := make(map[document]string, len(which))
	defer func() {
		for _, tmp := range staged {
			_ = os.Remove(tmp)
		}
	}()

	for _, doc := range which {
		if err := ctx.Err(); err != nil {
			return err
		}
		tmp, err := s.stage(doc, after[doc])
		if err != nil {
			return err
		}
		staged[doc] = tmp
	}

	replaced := make([]document, 0, len(which))
	for _, doc := range which {
		if err := os.Rename(staged[doc], s.path(doc)); err != nil {
			s.restore(before, replaced)
			return fmt.Errorf("failed to replace %s: %w", doc, err)
		}
		delete(staged, doc)
		replaced = append(replaced, doc)
		s.logger.Debug().Str("document", string(doc)).Int("bytes", len(after[doc])).Msg("document written")
	}
	return nil
}

func (s *FileStore) restore(before map[document][]byte, docs []document) {
	for _, doc := range docs {
		tmp, err := s.stage(doc, before[doc])
		if err == nil {
			if err = os.Rename(tmp, s.path(doc)); err != nil {
				_ = os.Remove(tmp)
			}
		}
		if err != nil {
			s.logger.Error().Err(err).Str("document", string(doc)).Msg("failed to restore document")
			continue
		}
		s.logger.Warn().Str("document", string(doc)).Msg("document restored after failed write")
	}
}

// stage writes data to a synced temp file next to the document and returns its path.
func (s *FileStore) stage(doc document, data []byte) (string, error) {
	tmp, err := os.CreateTemp(s.dir, "."+string(doc)+"-*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file for %s: %w", doc, err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return "", fmt.Errorf("failed to write %s: %w", doc, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return "", fmt.Errorf("failed to sync %s: %w", doc, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", fmt.Errorf("failed to close %s: %w", doc, err)
	}
	return tmpName, nil
}
