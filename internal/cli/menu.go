package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/forPelevin/hlshorts/internal/usecase"
)

const enterSource = "\x00enter"

var videoExts = map[string]bool{
	".mp4":  true,
	".webm": true,
	".avi":  true,
	".mov":  true,
	".mkv":  true,
}

func isVideoFile(path string) bool {
	return videoExts[strings.ToLower(filepath.Ext(path))]
}

// listVideos returns the videos in dir sorted by name. Files named video_*
// are downloads of earlier runs and are skipped. A missing dir is empty.
func listVideos(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, "video_") || !isVideoFile(name) {
			continue
		}
		out = append(out, filepath.Join(dir, name))
	}
	sort.Strings(out)
	return out, nil
}

type menuChoice struct {
	Source string
	Count  int
}

// runMenu asks for a source and a short count. ok is false when the user
// backed out.
func runMenu(ctx context.Context, videosDir string, defaultCount int) (choice menuChoice, ok bool, err error) {
	videos, err := listVideos(videosDir)
	if err != nil {
		return menuChoice{}, false, fmt.Errorf("list %s: %w", videosDir, err)
	}

	source := enterSource
	if len(videos) > 0 {
		opts := make([]huh.Option[string], 0, len(videos)+1)
		for _, v := range videos {
			opts = append(opts, huh.NewOption(filepath.Base(v), v))
		}
		opts = append(opts, huh.NewOption("Enter a URL or path…", enterSource))
		form := huh.NewForm(huh.NewGroup(
			huh.NewSelect[string]().
				Title("Which video?").
				Description(fmt.Sprintf("Found in %s", videosDir)).
				Options(opts...).
				Value(&source),
		)).WithTheme(Theme())
		if err := form.RunWithContext(ctx); err != nil {
			return abortOr(err)
		}
	}

	if source == enterSource {
		source = ""
		form := huh.NewForm(huh.NewGroup(
			huh.NewInput().
				Title("Video URL or file").
				Placeholder("https://… or ./talk.mp4").
				Value(&source).
				Validate(validateSource),
		)).WithTheme(Theme())
		if err := form.RunWithContext(ctx); err != nil {
			return abortOr(err)
		}
		source = strings.TrimSpace(source)
	}

	proceed := true
	count := strconv.Itoa(defaultCount)
	form := huh.NewForm(huh.NewGroup(
		huh.NewNote().Title("Source").Description(source),
		huh.NewInput().
			Title("How many shorts?").
			Value(&count).
			Validate(func(s string) error {
				_, err := parseCount(s)
				return err
			}),
		huh.NewConfirm().
			Title("Start processing?").
			Affirmative("Yes").
			Negative("No").
			Value(&proceed),
	)).WithTheme(Theme())
	if err := form.RunWithContext(ctx); err != nil {
		return abortOr(err)
	}
	if !proceed {
		return menuChoice{}, false, nil
	}
	n, err := parseCount(count)
	if err != nil {
		return menuChoice{}, false, err
	}
	return menuChoice{Source: source, Count: n}, true, nil
}

func abortOr(err error) (menuChoice, bool, error) {
	if errors.Is(err, huh.ErrUserAborted) {
		return menuChoice{}, false, nil
	}
	return menuChoice{}, false, err
}

func validateSource(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return errors.New("enter a URL or a file path")
	}
	if usecase.IsURL(s) {
		return nil
	}
	st, err := os.Stat(s)
	if err != nil {
		return fmt.Errorf("file not found: %s", s)
	}
	if st.IsDir() {
		return fmt.Errorf("%s is a directory", s)
	}
	return nil
}

func parseCount(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, errors.New("count must be a number")
	}
	if n < 1 {
		return 0, errors.New("count must be at least 1")
	}
	return n, nil
}

// askConfirm is the interactive yes/no used by the pipeline. Aborting the
// prompt counts as no.
func askConfirm(ctx context.Context, question string) (bool, error) {
	yes := true
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(question).
			Affirmative("Yes").
			Negative("No").
			Value(&yes),
	)).WithTheme(Theme())
	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, err
	}
	return yes, nil
}
