// Package session owns the temporary files of one run. Names are salted with
// a short random id so concurrent runs never collide.
package session

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

type Session struct {
	ID  string
	Dir string

	mu    sync.Mutex
	files map[string]int // path -> highlight index, -1 for session-wide
}

// New creates a session directory under workDir.
func New(workDir string) (*Session, error) {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return Open(workDir, id)
}

// Open creates or reuses the directory for a known id.
func Open(workDir, id string) (*Session, error) {
	dir := filepath.Join(workDir, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	return &Session{ID: id, Dir: abs, files: map[string]int{}}, nil
}

// Path returns and tracks "<kind>_<id>_<idx>.<ext>".
func (s *Session) Path(kind string, idx int, ext string) string {
	p := filepath.Join(s.Dir, fmt.Sprintf("%s_%s_%d.%s", kind, s.ID, idx, ext))
	s.track(p, idx)
	return p
}

// Audio returns the session-wide audio file.
func (s *Session) Audio() string {
	p := filepath.Join(s.Dir, fmt.Sprintf("audio_%s.wav", s.ID))
	s.track(p, -1)
	return p
}

// HighlightFiles are the intermediate files of one highlight.
type HighlightFiles struct {
	Clip      string
	Reframed  string
	Subtitled string
	ASS       string
}

func (s *Session) Files(idx int) HighlightFiles {
	return HighlightFiles{
		Clip:      s.Path("clip", idx, "mp4"),
		Reframed:  s.Path("reframed", idx, "mp4"),
		Subtitled: s.Path("subtitled", idx, "mp4"),
		ASS:       s.Path("subs", idx, "ass"),
	}
}

func (s *Session) track(p string, idx int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[p] = idx
}

// Tracked lists tracked paths. Order is unspecified.
func (s *Session) Tracked() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.files))
	for p := range s.files {
		out = append(out, p)
	}
	return out
}

// Release removes the files of highlight idx.
func (s *Session) Release(idx int) error {
	s.mu.Lock()
	var paths []string
	for p, i := range s.files {
		if i == idx {
			paths = append(paths, p)
			delete(s.files, p)
		}
	}
	s.mu.Unlock()
	return removeAll(paths)
}

// Close removes every tracked file and the session directory.
func (s *Session) Close() error {
	s.mu.Lock()
	paths := make([]string, 0, len(s.files))
	for p := range s.files {
		paths = append(paths, p)
	}
	s.files = map[string]int{}
	s.mu.Unlock()

	err := removeAll(paths)
	if rmErr := os.RemoveAll(s.Dir); rmErr != nil {
		err = errors.Join(err, rmErr)
	}
	return err
}

func removeAll(paths []string) error {
	var errs []error
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
