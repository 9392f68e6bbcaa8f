package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/forPelevin/hlshorts/internal/console"
	"github.com/forPelevin/hlshorts/internal/logger"
	"github.com/forPelevin/hlshorts/internal/pipeline"
)

const watchQueueSize = 64

func newWatchCmd(g *globalFlags) *cobra.Command {
	f := &renderFlags{}
	cmd := &cobra.Command{
		Use:   "watch [DIR]",
		Short: "Produce shorts for every video dropped into a folder",
		Long: `watch monitors DIR (default: the videos folder) and runs each new video
through the pipeline with --auto-approve, one at a time.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p := console.New(cmd.OutOrStdout())

			cfg, log, err := loadConfig(cmd, g, true, f.overlay(cmd))
			if err != nil {
				return err
			}
			defer log.Sync()

			dir := cfg.Paths.Videos
			if len(args) == 1 {
				dir = args[0]
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("watch dir: %w", err)
			}

			w, err := newFolderWatcher(dir, log, func(ctx context.Context, path string) error {
				p.Banner("hlshorts", path)
				out, err := pipeline.Run(ctx, cfg, pipeline.Options{
					Source:          path,
					Count:           cfg.Render.Shorts,
					AutoApprove:     true,
					FreshTranscript: f.freshTranscript,
					Progress:        progressPrinter(p),
				}, log)
				return report(p, out, err)
			})
			if err != nil {
				return err
			}
			p.Dim("Watching %s (Ctrl+C to stop)", dir)
			err = w.Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	addRenderFlags(cmd, f)
	return cmd
}

// folderWatcher feeds newly created videos in one directory to handle,
// sequentially and in arrival order.
type folderWatcher struct {
	dir    string
	log    *logger.Logger
	fw     *fsnotify.Watcher
	handle func(ctx context.Context, path string) error
	// settle is the poll interval used to wait until a new file stops growing.
	settle time.Duration
}

// newFolderWatcher starts watching dir. Events are only consumed by Run.
func newFolderWatcher(dir string, log *logger.Logger, handle func(ctx context.Context, path string) error) (*folderWatcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &folderWatcher{dir: dir, log: log, fw: fw, handle: handle, settle: 500 * time.Millisecond}, nil
}

// Run blocks until ctx is done. The video being processed when ctx is
// cancelled sees the cancelled context.
func (w *folderWatcher) Run(ctx context.Context) error {
	defer w.fw.Close()

	queue := make(chan string, watchQueueSize)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for path := range queue {
			if ctx.Err() != nil {
				continue
			}
			if err := w.waitStable(ctx, path); err != nil {
				w.log.Warn("skipping video", "path", path, "error", err)
				continue
			}
			if err := w.handle(ctx, path); err != nil {
				w.log.Error("failed to process video", "path", path, "error", err)
			}
		}
	}()
	defer func() {
		close(queue)
		<-done
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fw.Events:
			if !ok {
				return errors.New("watcher events channel closed")
			}
			if !event.Has(fsnotify.Create) {
				continue
			}
			if !watchable(event.Name) {
				w.log.Debug("ignoring file", "path", event.Name)
				continue
			}
			w.log.Info("new video detected", "path", event.Name)
			select {
			case queue <- event.Name:
			default:
				w.log.Warn("watch queue full, dropping video", "path", event.Name)
			}

		case err, ok := <-w.fw.Errors:
			if !ok {
				return errors.New("watcher errors channel closed")
			}
			w.log.Error("watcher error", "error", err)
		}
	}
}

// waitStable returns once the file size is unchanged across one settle
// interval.
func (w *folderWatcher) waitStable(ctx context.Context, path string) error {
	last := int64(-1)
	for {
		st, err := os.Stat(path)
		if err != nil {
			return err
		}
		if st.IsDir() {
			return fmt.Errorf("%s is a directory", path)
		}
		if st.Size() == last && last > 0 {
			return nil
		}
		last = st.Size()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.settle):
		}
	}
}

// watchable accepts video files that are not our own downloads.
func watchable(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, "video_") || strings.HasPrefix(base, ".") {
		return false
	}
	return isVideoFile(base)
}
