package detector

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/betbot/celebsentry/internal/domain"
	"github.com/betbot/celebsentry/internal/journal"
	"github.com/betbot/celebsentry/internal/matcher"
	"github.com/betbot/celebsentry/internal/notify"
	"github.com/betbot/celebsentry/internal/state"
	"github.com/betbot/celebsentry/pkg/config"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	coins []domain.CandidateCoin
	calls int
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) Fetch(context.Context) []domain.CandidateCoin {
	f.calls++
	out := make([]domain.CandidateCoin, len(f.coins))
	copy(out, f.coins)
	return out
}

type countingDescriber struct {
	descs map[string]string
	calls map[string]int
}

func newDescriber(descs map[string]string) *countingDescriber {
	return &countingDescriber{descs: descs, calls: map[string]int{}}
}

func (c *countingDescriber) Describe(_ context.Context, id string) string {
	c.calls[id]++
	return c.descs[id]
}

func (c *countingDescriber) total() int {
	n := 0
	for _, v := range c.calls {
		n += v
	}
	return n
}

// sweepingDescriber 记录轮次之间的缓存清理次数
type sweepingDescriber struct {
	*countingDescriber
	sweeps atomic.Int32
}

func (s *sweepingDescriber) Sweep() int {
	s.sweeps.Add(1)
	return 0
}

type fakeNotifier struct {
	fail bool
	sent []string
}

func (f *fakeNotifier) Notify(_ context.Context, coin domain.CandidateCoin) notify.Result {
	f.sent = append(f.sent, coin.ID)
	if f.fail {
		return notify.Result{Outcomes: []notify.Outcome{{Channel: "webhook", Err: errors.New("down")}}}
	}
	return notify.Result{Outcomes: []notify.Outcome{{Channel: "webhook"}}}
}

type memJournal struct{ entries []journal.Entry }

func (m *memJournal) Record(_ context.Context, e journal.Entry) error {
	m.entries = append(m.entries, e)
	return nil
}

// rejectAll 初筛放行但最终确认全部拒绝
type rejectAll struct{ *matcher.Matcher }

func (rejectAll) Confirm(domain.CandidateCoin, string) (string, bool) { return "", false }

type fixture struct {
	src      *fakeSource
	desc     *countingDescriber
	notifier *fakeNotifier
	alerted  *state.AlertedSet
	journal  *memJournal
	det      *Detector
	path     string
}

func newFixture(t *testing.T, coins []domain.CandidateCoin, opts ...func(*Options)) *fixture {
	t.Helper()
	path := filepath.Join(t.TempDir(), "alerted_coins.txt")
	alerted, err := state.LoadAlertedSet(path)
	require.NoError(t, err)

	f := &fixture{
		src:      &fakeSource{coins: coins},
		desc:     newDescriber(map[string]string{"x2": "Dedicated to Elon Musk's vision"}),
		notifier: &fakeNotifier{},
		alerted:  alerted,
		journal:  &memJournal{},
		path:     path,
	}
	o := Options{
		Source:    f.src,
		Describer: f.desc,
		Matcher:   matcher.New([]string{"Elon Musk"}),
		Notifier:  f.notifier,
		Alerted:   alerted,
		Journal:   f.journal,
		Interval:  time.Millisecond,
	}
	for _, fn := range opts {
		fn(&o)
	}
	f.det, err = New(o)
	require.NoError(t, err)
	return f
}

var (
	coinX1 = domain.CandidateCoin{ID: "x1", Name: "Elon Musk Coin", Symbol: "EMC"}
	coinX2 = domain.CandidateCoin{ID: "x2", Name: "Random Token", Symbol: "RND", Description: "Dedicated to Elon Musk's vision"}
)

func TestNameMatchIsAlertedAndPersisted(t *testing.T) {
	f := newFixture(t, []domain.CandidateCoin{coinX1})

	rep := f.det.RunCycle(context.Background())
	require.Equal(t, []string{"x1"}, rep.NewlyAlerted)
	require.Equal(t, []string{"x1"}, f.notifier.sent)
	require.True(t, f.alerted.Contains("x1"))
	require.LessOrEqual(t, f.desc.calls["x1"], 1)

	reloaded, err := state.LoadAlertedSet(f.path)
	require.NoError(t, err)
	require.True(t, reloaded.Contains("x1"))

	require.Len(t, f.journal.entries, 1)
	e := f.journal.entries[0]
	require.Equal(t, "Elon Musk", e.Reference)
	require.Equal(t, "unknown", e.Price)
	require.True(t, e.Marked)
	require.Equal(t, rep.CycleID, e.CycleID)
}

func TestDescriptionOnlyMatchIsNeverEnriched(t *testing.T) {
	f := newFixture(t, []domain.CandidateCoin{coinX2})

	rep := f.det.RunCycle(context.Background())
	require.Equal(t, 0, f.desc.total())
	require.Empty(t, f.notifier.sent)
	require.Empty(t, rep.NewlyAlerted)
	require.False(t, f.alerted.Contains("x2"))
}

func TestAlreadyAlertedIsSkippedBeforeAnyCall(t *testing.T) {
	f := newFixture(t, []domain.CandidateCoin{coinX1, {ID: "", Name: "Elon Musk Nameless"}})
	require.NoError(t, f.alerted.Add("x1"))

	rep := f.det.RunCycle(context.Background())
	require.Equal(t, 2, rep.Skipped)
	require.Equal(t, 0, rep.PrefilterHits)
	require.Equal(t, 0, f.desc.total())
	require.Empty(t, f.notifier.sent)
}

func TestEmptySourceIsIdle(t *testing.T) {
	f := newFixture(t, nil)

	rep := f.det.RunCycle(context.Background())
	require.Equal(t, 1, f.src.calls)
	require.Equal(t, 0, rep.Candidates)
	require.Empty(t, rep.NewlyAlerted)
	require.Equal(t, rep.CycleID, f.det.LastReport().CycleID)
}

func TestSecondCycleIsIdempotent(t *testing.T) {
	f := newFixture(t, []domain.CandidateCoin{coinX1, coinX2, {ID: "x3", Name: "Musk Elon", Symbol: "ELON MUSK"}})

	first := f.det.RunCycle(context.Background())
	require.Equal(t, []string{"x1", "x3"}, first.NewlyAlerted)

	second := f.det.RunCycle(context.Background())
	require.Empty(t, second.NewlyAlerted)
	require.Equal(t, []string{"x1", "x3"}, f.notifier.sent)
	require.NotEqual(t, first.CycleID, second.CycleID)
}

func TestPrefilterMissNeverEnriches(t *testing.T) {
	coins := []domain.CandidateCoin{
		{ID: "a", Name: "Alpha", Symbol: "A"},
		{ID: "b", Name: "Beta", Symbol: "B"},
		coinX1,
		{ID: "c", Name: "Gamma", Symbol: "G"},
	}
	f := newFixture(t, coins)

	rep := f.det.RunCycle(context.Background())
	require.Equal(t, 1, rep.PrefilterHits)
	require.Equal(t, map[string]int{"x1": 1}, f.desc.calls)
}

func TestConfirmationFailureDoesNotAlert(t *testing.T) {
	f := newFixture(t, []domain.CandidateCoin{coinX1}, func(o *Options) {
		o.Matcher = rejectAll{matcher.New([]string{"Elon Musk"})}
	})

	rep := f.det.RunCycle(context.Background())
	require.Equal(t, 1, rep.PrefilterHits)
	require.Equal(t, 1, f.desc.calls["x1"])
	require.Equal(t, 0, rep.Confirmed)
	require.Empty(t, f.notifier.sent)
	require.False(t, f.alerted.Contains("x1"))
	require.Empty(t, f.journal.entries)
}

func TestAttemptedPolicyMarksEvenWhenChannelsFail(t *testing.T) {
	f := newFixture(t, []domain.CandidateCoin{coinX1})
	f.notifier.fail = true

	rep := f.det.RunCycle(context.Background())
	require.Equal(t, []string{"x1"}, rep.NewlyAlerted)
	require.True(t, f.alerted.Contains("x1"))
	require.Equal(t, []string{"webhook"}, f.journal.entries[0].Failed)
}

func TestDeliveredPolicyRetriesUntilDelivered(t *testing.T) {
	f := newFixture(t, []domain.CandidateCoin{coinX1}, func(o *Options) { o.Policy = config.PolicyDelivered })
	f.notifier.fail = true

	rep := f.det.RunCycle(context.Background())
	require.Empty(t, rep.NewlyAlerted)
	require.False(t, f.alerted.Contains("x1"))
	require.False(t, f.journal.entries[0].Marked)

	f.notifier.fail = false
	rep = f.det.RunCycle(context.Background())
	require.Equal(t, []string{"x1"}, rep.NewlyAlerted)
	require.Equal(t, []string{"x1", "x1"}, f.notifier.sent)
}

func TestPersistFailureLeavesCoinUnmarked(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
	alerted, err := state.LoadAlertedSet(filepath.Join(blocker, "alerted.txt"))
	require.NoError(t, err)

	f := newFixture(t, []domain.CandidateCoin{coinX1}, func(o *Options) { o.Alerted = alerted })

	rep := f.det.RunCycle(context.Background())
	require.Equal(t, 1, rep.PersistFailures)
	require.Empty(t, rep.NewlyAlerted)
	require.False(t, alerted.Contains("x1"))
	require.NotEmpty(t, f.journal.entries[0].PersistError)
	require.False(t, f.journal.entries[0].Marked)
}

func TestCancelledCycleStopsProcessing(t *testing.T) {
	f := newFixture(t, []domain.CandidateCoin{coinX1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rep := f.det.RunCycle(ctx)
	require.True(t, rep.Interrupted)
	require.Empty(t, f.notifier.sent)
}

func TestRunStopsOnCancel(t *testing.T) {
	f := newFixture(t, []domain.CandidateCoin{coinX1}, func(o *Options) { o.Interval = time.Hour })
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- f.det.Run(ctx) }()

	require.Eventually(t, func() bool { return f.alerted.Contains("x1") }, 2*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestNewValidatesOptions(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)

	f := newFixture(t, nil)
	o := f.det.opts
	o.Policy = "sometimes"
	_, err = New(o)
	require.Error(t, err)

	status := f.det.Status().(map[string]any)
	require.Equal(t, config.PolicyAttempted, status["policy"])
	require.Equal(t, 1, status["references"])
}

func TestIDsAreNormalizedBeforeDedup(t *testing.T) {
	coins := []domain.CandidateCoin{
		{ID: " x1 ", Name: "Elon Musk Coin", Symbol: "EMC"},
		{ID: "x\n3", Name: "Elon Musk Inu", Symbol: "EMI"},
		{ID: "\r\n", Name: "Elon Musk Moon", Symbol: "EMM"},
	}
	f := newFixture(t, coins)

	rep := f.det.RunCycle(context.Background())
	require.Equal(t, []string{"x1"}, rep.NewlyAlerted)
	require.Equal(t, []string{"x1"}, f.notifier.sent, "含换行的标识不进入匹配和分发")
	require.Equal(t, 2, rep.Skipped)
	require.Equal(t, 1, f.desc.total())

	// 重启后同一来源再次返回带空白的标识，不应重复告警
	reloaded, err := state.LoadAlertedSet(f.path)
	require.NoError(t, err)
	g := newFixture(t, coins, func(o *Options) { o.Alerted = reloaded })
	rep = g.det.RunCycle(context.Background())
	require.Empty(t, rep.NewlyAlerted)
	require.Empty(t, g.notifier.sent)
	require.Equal(t, 3, rep.Skipped)
}

func TestRunSweepsDescriberCacheBetweenCycles(t *testing.T) {
	desc := &sweepingDescriber{countingDescriber: newDescriber(nil)}
	f := newFixture(t, nil, func(o *Options) { o.Describer = desc })
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- f.det.Run(ctx) }()
	require.Eventually(t, func() bool { return desc.sweeps.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}
