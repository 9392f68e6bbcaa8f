package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/forPelevin/hlshorts/internal/domain/highlights"
	"github.com/forPelevin/hlshorts/internal/domain/reframe"
	"github.com/forPelevin/hlshorts/internal/domain/subtitles"
	"github.com/forPelevin/hlshorts/internal/store"
	"github.com/forPelevin/hlshorts/internal/types"
)

type fakeVideo struct {
	mu         sync.Mutex
	cuts       map[string][2]float64
	calls      []string
	burned     []string
	remuxAudio []string
	failStep   map[string]int // method -> call number (1-based) that fails
	counts     map[string]int
	// silent drops audio from the source, silentClips from cut clips only.
	silent      bool
	silentClips bool
	// partial leaves a truncated output behind when a step fails.
	partial bool
}

func newFakeVideo() *fakeVideo {
	return &fakeVideo{cuts: map[string][2]float64{}, failStep: map[string]int{}, counts: map[string]int{}}
}

func (f *fakeVideo) hit(method, out string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[method]++
	f.calls = append(f.calls, method)
	if n, ok := f.failStep[method]; ok && n == f.counts[method] {
		if f.partial && out != "" {
			_ = os.WriteFile(out, []byte(method[:1]), 0o644)
		}
		return fmt.Errorf("%s exploded", method)
	}
	if out != "" {
		if err := os.WriteFile(out, []byte(method), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeVideo) ExtractAudio(ctx context.Context, in, out string) error {
	return f.hit("extract", out)
}

func (f *fakeVideo) Probe(ctx context.Context, in string) (types.MediaInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.cuts[in]; ok {
		return types.MediaInfo{Width: 1920, Height: 1080, Duration: r[1] - r[0], HasAudio: !f.silent && !f.silentClips}, nil
	}
	return types.MediaInfo{Width: 1920, Height: 1080, Duration: 600, HasAudio: !f.silent}, nil
}

func (f *fakeVideo) Cut(ctx context.Context, in string, start, end float64, out string) error {
	if err := f.hit("cut", out); err != nil {
		return err
	}
	f.mu.Lock()
	f.cuts[out] = [2]float64{start, end}
	f.mu.Unlock()
	return nil
}

func (f *fakeVideo) Reframe(ctx context.Context, in string, plan reframe.Plan, out string) error {
	return f.hit("reframe", out)
}

func (f *fakeVideo) BurnSubtitles(ctx context.Context, in, ass, out string) error {
	b, err := os.ReadFile(ass)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.burned = append(f.burned, string(b))
	f.mu.Unlock()
	return f.hit("burn", out)
}

func (f *fakeVideo) Remux(ctx context.Context, videoFrom, audioFrom, out string) error {
	f.mu.Lock()
	f.remuxAudio = append(f.remuxAudio, audioFrom)
	f.mu.Unlock()
	return f.hit("remux", out)
}

type fakeASR struct {
	segs  []types.TranscriptSegment
	calls int
}

func (a *fakeASR) Transcribe(ctx context.Context, wav, dir string) ([]types.TranscriptSegment, error) {
	a.calls++
	return a.segs, nil
}

type fakeSelector struct {
	answers []highlights.Selection
	err     error
	calls   int
}

func (s *fakeSelector) Select(ctx context.Context, segs []types.TranscriptSegment, n int) (highlights.Selection, error) {
	s.calls++
	if s.err != nil {
		return highlights.Selection{}, s.err
	}
	i := s.calls - 1
	if i >= len(s.answers) {
		i = len(s.answers) - 1
	}
	return s.answers[i], nil
}

// testTranscript covers 0-600s with 10s segments.
func testTranscript() []types.TranscriptSegment {
	var segs []types.TranscriptSegment
	for i := 0; i < 60; i++ {
		segs = append(segs, types.TranscriptSegment{
			Text:  fmt.Sprintf("line %d", i),
			Start: float64(i * 10),
			End:   float64(i*10 + 10),
		})
	}
	return segs
}

type env struct {
	tmp   string
	input Input
}

func newEnv(t *testing.T) env {
	t.Helper()
	tmp := t.TempDir()
	src := filepath.Join(tmp, "My Talk.mp4")
	if err := os.WriteFile(src, []byte("video"), 0o644); err != nil {
		t.Fatal(err)
	}
	style, err := subtitles.LookupStyle(subtitles.DefaultStyle)
	if err != nil {
		t.Fatal(err)
	}
	return env{tmp: tmp, input: Input{
		Source:   src,
		Count:    2,
		WorkDir:  filepath.Join(tmp, "work"),
		CacheDir: filepath.Join(tmp, "cache"),
		OutDir:   filepath.Join(tmp, "out"),
		Zoom:     types.ZoomAuto,
		Style:    style,
		OutputName: func(title, sid string, idx, total int) string {
			return fmt.Sprintf("%s_%s_short_%d.mp4", strings.ToLower(strings.ReplaceAll(title, " ", "-")), sid, idx)
		},
	}}
}

func twoHighlights() highlights.Selection {
	return highlights.Selection{Highlights: []types.Highlight{
		{Start: 100, End: 220, Content: "first"},
		{Start: 300, End: 400, Content: "second"},
	}}
}

func TestRun_ProducesShortsAndCleansUp(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	video := newFakeVideo()
	asr := &fakeASR{segs: testTranscript()}
	var states []State
	uc := New(Deps{
		Video:    video,
		ASR:      asr,
		Selector: &fakeSelector{answers: []highlights.Selection{twoHighlights()}},
		Progress: func(ev Event) {
			if ev.Index == 0 {
				states = append(states, ev.State)
			}
		},
	})

	res, err := uc.Run(context.Background(), e.input)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Outputs) != 2 || len(res.Failed) != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	for i, out := range res.Outputs {
		want := fmt.Sprintf("my-talk_%s_short_%d.mp4", res.SessionID, i+1)
		if filepath.Base(out) != want {
			t.Fatalf("unexpected output name %s, want %s", out, want)
		}
		if _, err := os.Stat(out); err != nil {
			t.Fatalf("expected output file: %v", err)
		}
	}
	if len(res.Manifest.Shorts) != 2 || res.Manifest.Shorts[0].StartSec != 100 || !res.Manifest.Shorts[0].Subtitled {
		t.Fatalf("unexpected manifest: %+v", res.Manifest)
	}
	if len(video.burned) != 2 {
		t.Fatalf("expected subtitles burned twice, got %d", len(video.burned))
	}
	// Only the rebased segments of [100,220) reach the subtitles.
	if !strings.Contains(video.burned[0], "line 10") || strings.Contains(video.burned[0], "line 9") ||
		strings.Contains(video.burned[0], "line 22") {
		t.Fatalf("unexpected subtitle contents:\n%s", video.burned[0])
	}
	if !strings.Contains(video.burned[0], "Dialogue: 0,0:00:00.00,0:00:10.00") {
		t.Fatalf("expected first dialogue rebased to zero:\n%s", video.burned[0])
	}
	if _, err := os.Stat(filepath.Join(e.input.WorkDir, res.SessionID)); !os.IsNotExist(err) {
		t.Fatalf("expected session dir removed, got %v", err)
	}
	wantStates := []State{StateSourceResolved, StateAudioExtracted, StateTranscribed, StateHighlightsSelected, StateDone}
	if fmt.Sprint(states) != fmt.Sprint(wantStates) {
		t.Fatalf("unexpected states %v, want %v", states, wantStates)
	}
}

func TestRun_HighlightFailureIsIsolated(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	video := newFakeVideo()
	video.failStep["reframe"] = 1
	uc := New(Deps{
		Video:    video,
		ASR:      &fakeASR{segs: testTranscript()},
		Selector: &fakeSelector{answers: []highlights.Selection{twoHighlights()}},
	})

	res, err := uc.Run(context.Background(), e.input)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Outputs) != 1 || len(res.Failed) != 1 {
		t.Fatalf("expected one short and one failure, got %+v", res)
	}
	f := res.Failed[0]
	if f.Index != 1 || f.Step != StepReframe {
		t.Fatalf("unexpected failure: %+v", f)
	}
	if res.Manifest.Shorts[0].Index != 2 || res.Manifest.Failed[0].Step != "reframe" {
		t.Fatalf("unexpected manifest: %+v", res.Manifest)
	}
}

func TestRun_NoTranscriptIsGracefullyEmpty(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	video := newFakeVideo()
	sel := &fakeSelector{answers: []highlights.Selection{twoHighlights()}}
	uc := New(Deps{Video: video, ASR: &fakeASR{}, Selector: sel})

	res, err := uc.Run(context.Background(), e.input)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.Empty || sel.calls != 0 {
		t.Fatalf("expected empty result without selection, got %+v (calls=%d)", res, sel.calls)
	}
}

func TestRun_SelectionFailureStopsBeforeRendering(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	video := newFakeVideo()
	uc := New(Deps{
		Video:    video,
		ASR:      &fakeASR{segs: testTranscript()},
		Selector: &fakeSelector{err: fmt.Errorf("%w: provider down", highlights.ErrNoHighlights)},
	})

	_, err := uc.Run(context.Background(), e.input)
	if !errors.Is(err, highlights.ErrNoHighlights) {
		t.Fatalf("expected ErrNoHighlights, got %v", err)
	}
	if video.counts["cut"] != 0 {
		t.Fatalf("expected no rendering, got calls %v", video.calls)
	}
}

func TestRun_DegenerateSingleHighlightRetriesOnce(t *testing.T) {
	t.Parallel()

	degenerate := highlights.Selection{RequiresConfirmation: true}
	good := highlights.Selection{Highlights: []types.Highlight{{Start: 0, End: 120, Content: "ok"}}}

	tests := []struct {
		name      string
		answers   []highlights.Selection
		confirm   bool
		wantCalls int
		wantEmpty bool
		wantErr   error
		wantOut   int
	}{
		{name: "confirmed retry succeeds", answers: []highlights.Selection{degenerate, good}, confirm: true, wantCalls: 2, wantOut: 1},
		{name: "declined", answers: []highlights.Selection{degenerate}, confirm: false, wantCalls: 1, wantEmpty: true},
		{name: "degenerate twice", answers: []highlights.Selection{degenerate, degenerate}, confirm: true, wantCalls: 2, wantErr: highlights.ErrNoHighlights},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e := newEnv(t)
			e.input.Count = 1
			sel := &fakeSelector{answers: tt.answers}
			asked := 0
			uc := New(Deps{
				Video:    newFakeVideo(),
				ASR:      &fakeASR{segs: testTranscript()},
				Selector: sel,
				Confirm: func(ctx context.Context, q string) (bool, error) {
					asked++
					return tt.confirm, nil
				},
			})
			res, err := uc.Run(context.Background(), e.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
			} else if err != nil {
				t.Fatalf("run: %v", err)
			}
			if sel.calls != tt.wantCalls || asked != 1 {
				t.Fatalf("calls=%d asked=%d", sel.calls, asked)
			}
			if res.Empty != tt.wantEmpty || len(res.Outputs) != tt.wantOut {
				t.Fatalf("unexpected result: %+v", res)
			}
		})
	}
}

func TestRun_AutoApproveSkipsConfirm(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	e.input.Count = 1
	e.input.AutoApprove = true
	sel := &fakeSelector{answers: []highlights.Selection{
		{RequiresConfirmation: true},
		{Highlights: []types.Highlight{{Start: 0, End: 120}}},
	}}
	uc := New(Deps{
		Video:    newFakeVideo(),
		ASR:      &fakeASR{segs: testTranscript()},
		Selector: sel,
		Confirm: func(ctx context.Context, q string) (bool, error) {
			t.Errorf("confirm should not be called")
			return false, nil
		},
	})
	res, err := uc.Run(context.Background(), e.input)
	if err != nil || len(res.Outputs) != 1 {
		t.Fatalf("unexpected result %+v err=%v", res, err)
	}
}

func TestRun_ManualTimeframesBypassSelector(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	e.input.Timeframes = []types.Highlight{{Start: 10, End: 130}, {Start: 200, End: 320}}
	sel := &fakeSelector{err: errors.New("should not be called")}
	video := newFakeVideo()
	uc := New(Deps{Video: video, ASR: &fakeASR{segs: testTranscript()}, Selector: sel})

	res, err := uc.Run(context.Background(), e.input)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sel.calls != 0 || len(res.Outputs) != 2 {
		t.Fatalf("unexpected calls=%d result=%+v", sel.calls, res)
	}
}

func TestRun_TranscriptCacheReused(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	asr := &fakeASR{segs: testTranscript()}
	uc := New(Deps{
		Video:    newFakeVideo(),
		ASR:      asr,
		Selector: &fakeSelector{answers: []highlights.Selection{twoHighlights()}},
	})
	for i := 0; i < 2; i++ {
		if _, err := uc.Run(context.Background(), e.input); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
	if asr.calls != 1 {
		t.Fatalf("expected one transcription, got %d", asr.calls)
	}

	e.input.FreshTranscript = true
	if _, err := uc.Run(context.Background(), e.input); err != nil {
		t.Fatal(err)
	}
	if asr.calls != 2 {
		t.Fatalf("expected fresh transcription, got %d calls", asr.calls)
	}
}

func TestRun_NoSegmentsInRangeSkipsSubtitles(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	e.input.Timeframes = []types.Highlight{{Start: 700, End: 760}}
	video := newFakeVideo()
	uc := New(Deps{Video: video, ASR: &fakeASR{segs: testTranscript()}})

	res, err := uc.Run(context.Background(), e.input)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if video.counts["burn"] != 0 || len(res.Outputs) != 1 || res.Manifest.Shorts[0].Subtitled {
		t.Fatalf("expected unsubtitled short, got %+v calls=%v", res, video.calls)
	}
}

func TestRun_SourceWithoutAudioEndsEarly(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	e.input.Timeframes = []types.Highlight{{Start: 10, End: 70}}
	video := newFakeVideo()
	video.silent = true
	uc := New(Deps{Video: video, ASR: &fakeASR{segs: testTranscript()}})

	res, err := uc.Run(context.Background(), e.input)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.Empty || video.counts["extract"] != 0 {
		t.Fatalf("expected a source without audio to end early, got %+v", res)
	}
}

func TestRun_SilentClipRemuxedWithoutAudio(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	e.input.Timeframes = []types.Highlight{{Start: 10, End: 70}}
	video := newFakeVideo()
	video.silentClips = true
	uc := New(Deps{Video: video, ASR: &fakeASR{segs: testTranscript()}})

	res, err := uc.Run(context.Background(), e.input)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Outputs) != 1 || len(video.remuxAudio) != 1 || video.remuxAudio[0] != "" {
		t.Fatalf("expected remux without audio source, got %+v audio=%q", res, video.remuxAudio)
	}
}

func TestRun_RecordsLedger(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	db, err := store.Open(filepath.Join(e.tmp, "ledger.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	video := newFakeVideo()
	video.failStep["remux"] = 2
	led := &recordingLedger{Store: db}
	uc := New(Deps{
		Video:    video,
		ASR:      &fakeASR{segs: testTranscript()},
		Selector: &fakeSelector{answers: []highlights.Selection{twoHighlights()}},
		Ledger:   led,
	})
	res, err := uc.Run(context.Background(), e.input)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	ctx := context.Background()
	rec, err := db.Session(ctx, res.SessionID)
	if err != nil {
		t.Fatal(err)
	}
	if rec.State != string(StateDone) || !rec.Finished || rec.Title != "My Talk" {
		t.Fatalf("unexpected session record: %+v", rec)
	}
	hist, err := db.History(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hist) != 1 || hist[0].Index != 1 {
		t.Fatalf("expected only the first short in history, got %+v", hist)
	}
	want := []string{
		string(StateSourceResolved),
		string(StateAudioExtracted),
		string(StateTranscribed),
		string(StateHighlightsSelected),
	}
	if strings.Join(led.states, ",") != strings.Join(want, ",") {
		t.Fatalf("ledger states = %v, want %v", led.states, want)
	}
}

// recordingLedger keeps the session states written through UpdateSession.
type recordingLedger struct {
	*store.Store
	states []string
}

func (l *recordingLedger) UpdateSession(ctx context.Context, id, state, title string) error {
	l.states = append(l.states, state)
	return l.Store.UpdateSession(ctx, id, state, title)
}

func TestRun_RemuxFailureRemovesPartialShort(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	video := newFakeVideo()
	video.failStep["remux"] = 2
	video.partial = true
	uc := New(Deps{
		Video:    video,
		ASR:      &fakeASR{segs: testTranscript()},
		Selector: &fakeSelector{answers: []highlights.Selection{twoHighlights()}},
	})
	res, err := uc.Run(context.Background(), e.input)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Outputs) != 1 || len(res.Failed) != 1 {
		t.Fatalf("expected one output and one failure, got %+v", res)
	}
	entries, err := os.ReadDir(e.input.OutDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || filepath.Join(e.input.OutDir, entries[0].Name()) != res.Outputs[0] {
		t.Fatalf("out dir should hold only the finished short, got %v", entries)
	}
}

func TestRun_CancelledContextLeavesFiles(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	sel := &fakeSelector{answers: []highlights.Selection{twoHighlights()}}
	uc := New(Deps{
		Video:    newFakeVideo(),
		ASR:      &fakeASR{segs: testTranscript()},
		Selector: sel,
		Progress: func(ev Event) {
			if ev.State == StateHighlightsSelected {
				cancel()
			}
		},
	})
	res, err := uc.Run(ctx, e.input)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(e.input.WorkDir, res.SessionID)); err != nil {
		t.Fatalf("expected session dir kept for sweep: %v", err)
	}
}

func TestIsURL(t *testing.T) {
	t.Parallel()

	if !IsURL("https://www.youtube.com/watch?v=x") || !IsURL(" HTTP://a.b ") {
		t.Fatalf("expected URLs to be detected")
	}
	if IsURL("videos/talk.mp4") || IsURL("") {
		t.Fatalf("expected paths not to be URLs")
	}
}
