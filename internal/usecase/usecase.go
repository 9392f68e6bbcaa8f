package usecase

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/forPelevin/hlshorts/internal/domain/highlights"
	"github.com/forPelevin/hlshorts/internal/domain/reframe"
	"github.com/forPelevin/hlshorts/internal/domain/subtitles"
	"github.com/forPelevin/hlshorts/internal/domain/timeline"
	"github.com/forPelevin/hlshorts/internal/domain/transcript"
	"github.com/forPelevin/hlshorts/internal/logger"
	"github.com/forPelevin/hlshorts/internal/ports"
	"github.com/forPelevin/hlshorts/internal/session"
	"github.com/forPelevin/hlshorts/internal/store"
	"github.com/forPelevin/hlshorts/internal/types"
)

// ErrCancelled is returned when the user declines to continue.
var ErrCancelled = errors.New("cancelled by user")

// HighlightSelector picks highlight ranges from a transcript.
type HighlightSelector interface {
	Select(ctx context.Context, segs []types.TranscriptSegment, n int) (highlights.Selection, error)
}

// Ledger records run progress. *store.Store implements it.
type Ledger interface {
	BeginSession(ctx context.Context, r store.SessionRecord) error
	UpdateSession(ctx context.Context, id, state, title string) error
	FinishSession(ctx context.Context, id, state, errMsg string) error
	AddShort(ctx context.Context, sessionID string, idx, startSec, endSec int) error
	MarkShortStep(ctx context.Context, sessionID string, idx int, step string) error
	MarkShortComplete(ctx context.Context, sessionID string, idx int, file string) error
	MarkShortError(ctx context.Context, sessionID string, idx int, step, logMsg string) error
}

type Deps struct {
	Video      ports.VideoTool
	ASR        ports.ASR
	Downloader ports.Downloader
	Selector   HighlightSelector
	// Ledger is optional.
	Ledger Ledger
	Log    *logger.Logger
	// Confirm asks a yes/no question. Nil answers yes.
	Confirm func(ctx context.Context, question string) (bool, error)
	// Progress receives state transitions. Optional.
	Progress func(Event)
}

type Usecase struct{ d Deps }

func New(d Deps) Usecase {
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	return Usecase{d: d}
}

type Input struct {
	// Source is a local path or an http(s) URL.
	Source string
	Count  int
	// Timeframes bypass model selection when non-empty.
	Timeframes []types.Highlight

	WorkDir     string
	CacheDir    string
	DownloadDir string
	OutDir      string

	Zoom  types.ZoomMode
	Style subtitles.Style

	FreshTranscript bool
	KeepTemp        bool
	AutoApprove     bool
	Provider        string

	// OutputName names the final file of highlight idx out of total.
	OutputName func(title, sessionID string, idx, total int) string
}

type Result struct {
	SessionID string
	Title     string
	Manifest  types.Manifest
	// Outputs are the produced short paths, in highlight order.
	Outputs []string
	Failed  []*StepError
	// Empty is set when the run ended early without an error, for example
	// when nothing was transcribed or the user declined to continue.
	Empty  bool
	Reason string
}

func (u Usecase) Run(ctx context.Context, in Input) (Result, error) {
	if in.Count <= 0 && len(in.Timeframes) == 0 {
		return Result{}, fmt.Errorf("shorts count must be > 0")
	}
	sess, err := session.New(in.WorkDir)
	if err != nil {
		return Result{}, err
	}
	r := &run{u: u, in: in, sess: sess, log: u.d.Log.With("session", sess.ID), state: StateIdle}
	r.ledger(func(l Ledger) error {
		return l.BeginSession(ctx, store.SessionRecord{
			ID:        sess.ID,
			Source:    in.Source,
			WorkDir:   sess.Dir,
			Provider:  in.Provider,
			Requested: in.Count,
			State:     string(StateIdle),
		})
	})

	res, err := r.execute(ctx)
	res.SessionID = sess.ID

	if ctx.Err() != nil {
		// Interrupted: leave files and an open ledger row for sweep.
		r.log.Warn("run interrupted; temp files left for sweep", "dir", sess.Dir)
		return res, errors.Join(err, ctx.Err())
	}

	finalState, errMsg := StateDone, ""
	if err != nil {
		finalState, errMsg = StateError, err.Error()
		r.enter(ctx, StateError)
	} else {
		r.enter(ctx, StateDone)
	}
	r.ledger(func(l Ledger) error { return l.FinishSession(ctx, sess.ID, string(finalState), errMsg) })

	if in.KeepTemp {
		r.log.Info("keeping temp files", "dir", sess.Dir)
	} else if cerr := sess.Close(); cerr != nil {
		r.log.Warn("cleanup session", "error", cerr)
	}
	return res, err
}

type run struct {
	u     Usecase
	in    Input
	sess  *session.Session
	log   *logger.Logger
	state State
	title string
}

func (r *run) execute(ctx context.Context) (Result, error) {
	src, err := r.resolveSource(ctx)
	if err != nil {
		return Result{}, err
	}
	r.title = src.Title
	res := Result{
		Title:    src.Title,
		Manifest: types.Manifest{Input: r.in.Source, SessionID: r.sess.ID, Provider: r.in.Provider},
	}
	r.enter(ctx, StateSourceResolved)

	info, err := r.u.d.Video.Probe(ctx, src.Path)
	if err != nil {
		return res, fmt.Errorf("probe source: %w", err)
	}
	if !info.HasAudio {
		return empty(res, "source has no audio track"), nil
	}

	segs, err := r.transcribe(ctx, src)
	if err != nil {
		return res, err
	}
	if len(segs) == 0 {
		return empty(res, "no speech transcribed"), nil
	}
	r.enter(ctx, StateTranscribed)

	hls, err := r.selectHighlights(ctx, segs)
	if errors.Is(err, ErrCancelled) {
		return empty(res, err.Error()), nil
	}
	if err != nil {
		return res, err
	}
	r.enter(ctx, StateHighlightsSelected)
	r.log.Info("highlights selected", "count", len(hls))

	for i, h := range hls {
		r.ledger(func(l Ledger) error { return l.AddShort(ctx, r.sess.ID, i+1, h.Start, h.End) })
	}
	for i, h := range hls {
		idx := i + 1
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		out, subtitled, err := r.renderOne(ctx, src, segs, h, idx, len(hls))
		if err != nil {
			var se *StepError
			if !errors.As(err, &se) {
				se = &StepError{Index: idx, Err: err}
			}
			if ctx.Err() != nil {
				return res, err
			}
			r.log.Error("highlight failed", "index", idx, "step", se.Step, "error", se.Err)
			r.ledger(func(l Ledger) error { return l.MarkShortError(ctx, r.sess.ID, idx, string(se.Step), se.Err.Error()) })
			res.Failed = append(res.Failed, se)
			res.Manifest.Failed = append(res.Manifest.Failed, types.FailedClip{Index: idx, Step: string(se.Step), Error: se.Err.Error()})
		} else {
			info, hook := highlights.Score(h.Content)
			res.Outputs = append(res.Outputs, out)
			res.Manifest.Shorts = append(res.Manifest.Shorts, types.ManifestClip{
				Index:     idx,
				StartSec:  h.Start,
				EndSec:    h.End,
				InfoScore: info,
				HookScore: hook,
				Content:   h.Content,
				File:      filepath.ToSlash(filepath.Base(out)),
				Subtitled: subtitled,
			})
			r.ledger(func(l Ledger) error { return l.MarkShortComplete(ctx, r.sess.ID, idx, out) })
			r.log.Info("short complete", "index", idx, "file", out)
		}
		if !r.in.KeepTemp {
			if err := r.sess.Release(idx); err != nil {
				r.log.Warn("cleanup highlight", "index", idx, "error", err)
			}
		}
	}
	return res, nil
}

func empty(res Result, reason string) Result {
	res.Empty = true
	res.Reason = reason
	return res
}

func (r *run) resolveSource(ctx context.Context) (types.Source, error) {
	in := strings.TrimSpace(r.in.Source)
	if in == "" {
		return types.Source{}, errors.New("no input video")
	}
	if IsURL(in) {
		if r.u.d.Downloader == nil {
			return types.Source{}, errors.New("URL input needs a downloader")
		}
		r.log.Info("downloading", "url", in)
		src, err := r.u.d.Downloader.Download(ctx, in, r.in.DownloadDir)
		if err != nil {
			return types.Source{}, err
		}
		if src.Title == "" {
			src.Title = titleFromPath(src.Path)
		}
		return src, nil
	}
	st, err := os.Stat(in)
	if err != nil {
		return types.Source{}, fmt.Errorf("input video: %w", err)
	}
	if st.IsDir() {
		return types.Source{}, fmt.Errorf("input video %s is a directory", in)
	}
	return types.Source{Path: in, Title: titleFromPath(in)}, nil
}

func (r *run) transcribe(ctx context.Context, src types.Source) ([]types.TranscriptSegment, error) {
	cachePath := ""
	if r.in.CacheDir != "" {
		p, err := transcript.CachePath(r.in.CacheDir, src.Path)
		if err != nil {
			r.log.Warn("transcript cache disabled", "error", err)
		} else {
			cachePath = p
		}
	}
	if cachePath != "" && !r.in.FreshTranscript {
		segs, err := transcript.Load(cachePath)
		switch {
		case err == nil:
			r.log.Info("transcript loaded from cache", "path", cachePath, "segments", len(segs))
			return segs, nil
		case errors.Is(err, transcript.ErrCacheMiss):
		default:
			r.log.Warn("ignoring unreadable transcript cache", "path", cachePath, "error", err)
		}
	}

	wav := r.sess.Audio()
	if err := r.u.d.Video.ExtractAudio(ctx, src.Path, wav); err != nil {
		return nil, err
	}
	r.enter(ctx, StateAudioExtracted)

	raw, err := r.u.d.ASR.Transcribe(ctx, wav, r.sess.Dir)
	if err != nil {
		return nil, err
	}
	segs := make([]types.TranscriptSegment, 0, len(raw))
	for _, s := range raw {
		if err := types.Validate(s); err != nil {
			r.log.Debug("dropping invalid segment", "start", s.Start, "end", s.End, "error", err)
			continue
		}
		segs = append(segs, s)
	}
	r.log.Info("transcribed", "segments", len(segs))
	if cachePath != "" && len(segs) > 0 {
		if err := transcript.Write(cachePath, segs); err != nil {
			r.log.Warn("write transcript cache", "error", err)
		}
	}
	return segs, nil
}

func (r *run) selectHighlights(ctx context.Context, segs []types.TranscriptSegment) ([]types.Highlight, error) {
	if len(r.in.Timeframes) > 0 {
		r.log.Info("using manual timeframes", "count", len(r.in.Timeframes))
		return append([]types.Highlight(nil), r.in.Timeframes...), nil
	}
	if r.u.d.Selector == nil {
		return nil, fmt.Errorf("%w: no language model configured", highlights.ErrNoHighlights)
	}
	retried := false
	for {
		sel, err := r.u.d.Selector.Select(ctx, segs, r.in.Count)
		if err != nil {
			return nil, err
		}
		for _, rj := range sel.Rejected {
			r.log.Warn("dropped highlight", "position", rj.Position, "start", rj.Start, "end", rj.End, "reason", rj.Reason)
		}
		if sel.RequiresConfirmation {
			if retried {
				return nil, fmt.Errorf("%w: model returned an empty range twice", highlights.ErrNoHighlights)
			}
			ok, err := r.confirm(ctx, "Get highlights again?")
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, ErrCancelled
			}
			retried = true
			continue
		}
		if len(sel.Highlights) < r.in.Count {
			r.log.Warn("fewer highlights than requested", "got", len(sel.Highlights), "want", r.in.Count)
		}
		return sel.Highlights, nil
	}
}

func (r *run) confirm(ctx context.Context, q string) (bool, error) {
	if r.in.AutoApprove || r.u.d.Confirm == nil {
		r.log.Info("auto-approved", "question", q)
		return true, nil
	}
	return r.u.d.Confirm(ctx, q)
}

// renderOne runs crop, reframe, subtitle and remux for one highlight.
func (r *run) renderOne(ctx context.Context, src types.Source, segs []types.TranscriptSegment, h types.Highlight, idx, total int) (string, bool, error) {
	v := r.u.d.Video
	f := r.sess.Files(idx)
	log := r.log.With("index", idx, "start", h.Start, "end", h.End)

	step := func(s Step) {
		r.ledger(func(l Ledger) error { return l.MarkShortStep(ctx, r.sess.ID, idx, string(s)) })
	}

	step(StepCrop)
	if err := v.Cut(ctx, src.Path, float64(h.Start), float64(h.End), f.Clip); err != nil {
		return "", false, &StepError{Step: StepCrop, Index: idx, Err: err}
	}
	clip, err := v.Probe(ctx, f.Clip)
	if err != nil {
		return "", false, &StepError{Step: StepCrop, Index: idx, Err: err}
	}
	clipDur := clip.Duration
	if clipDur <= 0 {
		clipDur = float64(h.Duration())
	}
	r.progress(Event{State: StateCropped, Index: idx, Total: total, Message: fmt.Sprintf("%ds - %ds", h.Start, h.End)})

	step(StepReframe)
	plan, err := reframe.Build(clip.Width, clip.Height, r.in.Zoom)
	if err != nil {
		return "", false, &StepError{Step: StepReframe, Index: idx, Err: err}
	}
	log.Debug("reframe plan", "mode", plan.Mode, "crop", plan.Crop, "scale_w", plan.ScaleW, "scale_h", plan.ScaleH, "pad", plan.Pad)
	if err := v.Reframe(ctx, f.Clip, plan, f.Reframed); err != nil {
		return "", false, &StepError{Step: StepReframe, Index: idx, Err: err}
	}
	r.progress(Event{State: StateReframed, Index: idx, Total: total})

	step(StepSubtitle)
	canvas := subtitles.Canvas{Width: reframe.TargetWidth, Height: reframe.TargetHeight}
	if plan.Passthrough() {
		canvas = subtitles.Canvas{Width: clip.Width, Height: clip.Height}
	}
	local := timeline.Adjust(segs, float64(h.Start), clipDur)
	videoFrom := f.Reframed
	doc, ok := subtitles.RenderASS(local, r.in.Style, canvas)
	if ok {
		if err := os.WriteFile(f.ASS, []byte(doc), 0o644); err != nil {
			return "", false, &StepError{Step: StepSubtitle, Index: idx, Err: err}
		}
		if err := v.BurnSubtitles(ctx, f.Reframed, f.ASS, f.Subtitled); err != nil {
			return "", false, &StepError{Step: StepSubtitle, Index: idx, Err: err}
		}
		videoFrom = f.Subtitled
	} else {
		log.Warn("no transcript segments in range; writing short without subtitles")
	}
	r.progress(Event{State: StateSubtitled, Index: idx, Total: total})

	step(StepRemux)
	if err := os.MkdirAll(r.in.OutDir, 0o755); err != nil {
		return "", false, &StepError{Step: StepRemux, Index: idx, Err: err}
	}
	out := filepath.Join(r.in.OutDir, r.outputName(idx, total))
	audioFrom := ""
	if clip.HasAudio {
		audioFrom = f.Clip
	}
	if err := v.Remux(ctx, videoFrom, audioFrom, out); err != nil {
		if rerr := os.Remove(out); rerr != nil && !errors.Is(rerr, fs.ErrNotExist) {
			log.Warn("remove partial short", "file", out, "error", rerr)
		}
		return "", false, &StepError{Step: StepRemux, Index: idx, Err: err}
	}
	r.progress(Event{State: StateRemuxed, Index: idx, Total: total, Message: out})
	return out, ok, nil
}

func (r *run) outputName(idx, total int) string {
	if r.in.OutputName != nil {
		return r.in.OutputName(r.title, r.sess.ID, idx, total)
	}
	return fmt.Sprintf("short_%s_%d.mp4", r.sess.ID, idx)
}

// enter moves the driver to s. Non-terminal states are written to the
// ledger; Done and Error go through FinishSession.
func (r *run) enter(ctx context.Context, s State) {
	r.log.Debug("state", "from", r.state, "to", s)
	r.state = s
	if s != StateDone && s != StateError {
		r.ledger(func(l Ledger) error { return l.UpdateSession(ctx, r.sess.ID, string(s), r.title) })
	}
	r.progress(Event{State: s})
}

func (r *run) progress(e Event) {
	if r.u.d.Progress != nil {
		r.u.d.Progress(e)
	}
}

// ledger runs fn against the ledger if one is configured. Ledger failures
// never fail a run.
func (r *run) ledger(fn func(Ledger) error) {
	if r.u.d.Ledger == nil {
		return
	}
	if err := fn(r.u.d.Ledger); err != nil {
		r.log.Warn("ledger write failed", "error", err)
	}
}

// IsURL reports whether s should be downloaded rather than read from disk.
func IsURL(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func titleFromPath(p string) string {
	base := filepath.Base(p)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
