// Package transcript reads and writes the plain-text transcript cache.
//
// Each line holds one segment: "<start> - <end>: <text>". The same text is
// what the highlight selector sends to the language model.
package transcript

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/forPelevin/hlshorts/internal/types"
)

// ErrCacheMiss is returned by Load when no cache file exists yet.
var ErrCacheMiss = errors.New("transcript cache miss")

// Format renders segments in cache line format.
func Format(segs []types.TranscriptSegment) string {
	var b strings.Builder
	for _, s := range segs {
		b.WriteString(formatSeconds(s.Start))
		b.WriteString(" - ")
		b.WriteString(formatSeconds(s.End))
		b.WriteString(": ")
		b.WriteString(oneLine(s.Text))
		b.WriteByte('\n')
	}
	return b.String()
}

// Parse reads segments back from cache line format. Blank lines are skipped.
func Parse(r io.Reader) ([]types.TranscriptSegment, error) {
	var out []types.TranscriptSegment
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		seg, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("transcript line %d: %w", n, err)
		}
		out = append(out, seg)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}
	return out, nil
}

func parseLine(line string) (types.TranscriptSegment, error) {
	startStr, rest, ok := strings.Cut(line, " - ")
	if !ok {
		return types.TranscriptSegment{}, fmt.Errorf("missing %q separator", " - ")
	}
	endStr, text, ok := strings.Cut(rest, ": ")
	if !ok {
		// A segment with empty text is written as "<end>: " and may lose the
		// trailing space to editors.
		endStr, ok = strings.CutSuffix(rest, ":")
		if !ok {
			return types.TranscriptSegment{}, fmt.Errorf("missing %q separator", ": ")
		}
	}
	start, err := strconv.ParseFloat(strings.TrimSpace(startStr), 64)
	if err != nil {
		return types.TranscriptSegment{}, fmt.Errorf("parse start %q: %w", startStr, err)
	}
	end, err := strconv.ParseFloat(strings.TrimSpace(endStr), 64)
	if err != nil {
		return types.TranscriptSegment{}, fmt.Errorf("parse end %q: %w", endStr, err)
	}
	return types.TranscriptSegment{Text: text, Start: start, End: end}, nil
}

// Write stores segments at path, creating parent directories.
func Write(path string, segs []types.TranscriptSegment) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(Format(segs)), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Load reads a cache file. A missing file yields ErrCacheMiss.
func Load(path string) ([]types.TranscriptSegment, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// CachePath returns the cache file for a source video. The key changes when
// the file is replaced or modified.
func CachePath(cacheDir, videoPath string) (string, error) {
	abs, err := filepath.Abs(videoPath)
	if err != nil {
		return "", err
	}
	st, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	seed := fmt.Sprintf("%s|%d|%d", abs, st.Size(), st.ModTime().UnixNano())
	sum := sha256.Sum256([]byte(seed))
	return filepath.Join(cacheDir, "transcripts", hex.EncodeToString(sum[:])[:16]+".txt"), nil
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func oneLine(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "\r", " ")
}
