package tracker

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/entity"
	"main/rules"
)

type fakeForeground struct {
	mutex sync.Mutex
	ctx   ForegroundContext
	err   error
}

func (f *fakeForeground) set(ctx ForegroundContext) {
	f.mutex.Lock()
	f.ctx = ctx
	f.mutex.Unlock()
}

func (f *fakeForeground) Foreground() (ForegroundContext, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.ctx, f.err
}

type fakeIdle struct {
	mutex sync.Mutex
	d     time.Duration
	err   error
}

func (f *fakeIdle) set(d time.Duration) {
	f.mutex.Lock()
	f.d = d
	f.mutex.Unlock()
}

func (f *fakeIdle) IdleTime() (time.Duration, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.d, f.err
}

type fakePermission struct {
	granted  bool
	prompted bool
}

func (f *fakePermission) Granted() bool { return f.granted }
func (f *fakePermission) Prompt()       { f.prompted = true }

// keywordCategorizer classifies by substring of the app name or URL,
// distracting beats productive, so tests control categories directly.
type keywordCategorizer struct{}

func (keywordCategorizer) Classify(appName, windowTitle, url string) entity.Category {
	s := strings.ToLower(appName + " " + url)
	if strings.Contains(s, "twitter") || strings.Contains(s, "reddit") {
		return entity.CategoryDistracting
	}
	if strings.Contains(s, "xcode") || strings.Contains(s, "github") {
		return entity.CategoryProductive
	}
	return entity.CategoryNeutral
}

type memStore struct {
	mutex     sync.Mutex
	records   map[string]entity.ActivityRecord
	order     []string
	insertErr error
}

func newMemStore() *memStore {
	return &memStore{records: map[string]entity.ActivityRecord{}}
}

func (m *memStore) InsertActivity(rec *entity.ActivityRecord) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	m.records[rec.ID] = *rec
	m.order = append(m.order, rec.ID)
	return nil
}

func (m *memStore) UpdateActivityContext(id, windowTitle, url string, seen time.Time) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	rec := m.records[id]
	rec.WindowTitle = windowTitle
	rec.URL = url
	rec.LastSeen = seen
	m.records[id] = rec
	return nil
}

func (m *memStore) TouchActivity(id string, seen time.Time) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	rec := m.records[id]
	rec.LastSeen = seen
	m.records[id] = rec
	return nil
}

func (m *memStore) CloseActivity(id string, end time.Time) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	rec := m.records[id]
	rec.EndTime = &end
	m.records[id] = rec
	return nil
}

func (m *memStore) byOrder() []entity.ActivityRecord {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	out := make([]entity.ActivityRecord, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.records[id])
	}
	return out
}

func (m *memStore) openCount() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	n := 0
	for _, rec := range m.records {
		if rec.EndTime == nil {
			n++
		}
	}
	return n
}

type testRig struct {
	sampler *Sampler
	fg      *fakeForeground
	idle    *fakeIdle
	store   *memStore
	now     time.Time
}

func newRig(t *testing.T) *testRig {
	t.Helper()
	rig := &testRig{
		fg:    &fakeForeground{},
		idle:  &fakeIdle{},
		store: newMemStore(),
		now:   time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC),
	}
	rig.sampler = NewSampler(Config{}, Deps{
		Foreground:  rig.fg,
		Idle:        rig.idle,
		Permission:  &fakePermission{granted: true},
		Categorizer: keywordCategorizer{},
		Store:       rig.store,
	})
	rig.sampler.now = func() time.Time { return rig.now }
	rig.sampler.st = stateTracking
	return rig
}

// flush runs queued store writes synchronously.
func (rig *testRig) flush() {
	for {
		select {
		case write := <-rig.sampler.writes:
			write()
		default:
			return
		}
	}
}

func (rig *testRig) advance(d time.Duration) {
	rig.now = rig.now.Add(d)
}

func TestStartPermissionDenied(t *testing.T) {
	perm := &fakePermission{granted: false}
	sampler := NewSampler(Config{}, Deps{
		Foreground:  &fakeForeground{},
		Idle:        &fakeIdle{},
		Permission:  perm,
		Categorizer: keywordCategorizer{},
		Store:       newMemStore(),
	})

	err := sampler.Start(context.Background())
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.True(t, perm.prompted)
}

func TestSampleOpensFirstRecord(t *testing.T) {
	rig := newRig(t)
	rig.fg.set(ForegroundContext{AppName: "Xcode", WindowTitle: "main.go", Kind: entity.KindApp})

	rig.sampler.sampleTick()
	rig.flush()

	records := rig.store.byOrder()
	require.Len(t, records, 1)
	assert.Equal(t, "Xcode", records[0].AppName)
	assert.Equal(t, entity.CategoryProductive, records[0].Category)
	assert.Equal(t, rig.now, records[0].StartTime)
	assert.Nil(t, records[0].EndTime)
}

func TestAppSwitchSplitsRecord(t *testing.T) {
	rig := newRig(t)
	rig.fg.set(ForegroundContext{AppName: "Xcode", Kind: entity.KindApp})
	rig.sampler.sampleTick()

	rig.advance(10 * time.Minute)
	switchTime := rig.now
	rig.fg.set(ForegroundContext{AppName: "Twitter", Kind: entity.KindApp})
	rig.sampler.sampleTick()
	rig.flush()

	records := rig.store.byOrder()
	require.Len(t, records, 2)
	require.NotNil(t, records[0].EndTime)
	assert.Equal(t, switchTime, *records[0].EndTime)
	assert.Equal(t, "Twitter", records[1].AppName)
	assert.Equal(t, entity.CategoryDistracting, records[1].Category)
	assert.Equal(t, switchTime, records[1].StartTime)
	assert.Nil(t, records[1].EndTime)
	assert.Equal(t, 1, rig.store.openCount())
}

func TestTitleChangeUpdatesInPlace(t *testing.T) {
	rig := newRig(t)
	rig.fg.set(ForegroundContext{AppName: "Xcode", WindowTitle: "main.go", Kind: entity.KindApp})
	rig.sampler.sampleTick()
	start := rig.now

	rig.advance(10 * time.Minute)
	rig.fg.set(ForegroundContext{AppName: "Xcode", WindowTitle: "other.go", Kind: entity.KindApp})
	rig.sampler.sampleTick()
	rig.flush()

	records := rig.store.byOrder()
	require.Len(t, records, 1)
	assert.Equal(t, "other.go", records[0].WindowTitle)
	assert.Equal(t, start, records[0].StartTime)
	assert.Nil(t, records[0].EndTime)
}

func TestURLPathChangeSameHostUpdatesInPlace(t *testing.T) {
	rig := newRig(t)
	rig.fg.set(ForegroundContext{AppName: "Chrome", URL: "https://github.com/a", Kind: entity.KindBrowser})
	rig.sampler.sampleTick()

	rig.advance(time.Minute)
	rig.fg.set(ForegroundContext{AppName: "Chrome", URL: "https://github.com/b", Kind: entity.KindBrowser})
	rig.sampler.sampleTick()
	rig.flush()

	records := rig.store.byOrder()
	require.Len(t, records, 1)
	assert.Equal(t, "https://github.com/b", records[0].URL)
	assert.Nil(t, records[0].EndTime)
}

func TestURLHostChangeSplitsRecord(t *testing.T) {
	rig := newRig(t)
	rig.fg.set(ForegroundContext{AppName: "Chrome", URL: "https://github.com/a", Kind: entity.KindBrowser})
	rig.sampler.sampleTick()

	rig.advance(time.Minute)
	rig.fg.set(ForegroundContext{AppName: "Chrome", URL: "https://reddit.com", Kind: entity.KindBrowser})
	rig.sampler.sampleTick()
	rig.flush()

	records := rig.store.byOrder()
	require.Len(t, records, 2)
	assert.Equal(t, entity.CategoryDistracting, records[1].Category)
}

func TestIdleClosesAtLastInputTime(t *testing.T) {
	rig := newRig(t)
	rig.fg.set(ForegroundContext{AppName: "Xcode", Kind: entity.KindApp})
	rig.sampler.sampleTick()

	// Last input at 09:20:00, detected at 09:25:02.
	rig.now = time.Date(2025, 6, 2, 9, 25, 2, 0, time.UTC)
	rig.idle.set(302 * time.Second)
	rig.sampler.idleCheck()
	rig.flush()

	records := rig.store.byOrder()
	require.Len(t, records, 1)
	require.NotNil(t, records[0].EndTime)
	assert.Equal(t, time.Date(2025, 6, 2, 9, 20, 0, 0, time.UTC), *records[0].EndTime)
	assert.Equal(t, stateIdle, rig.sampler.st)
}

func TestIdleEmitsEvent(t *testing.T) {
	rig := newRig(t)
	rig.fg.set(ForegroundContext{AppName: "Xcode", Kind: entity.KindApp})
	rig.sampler.sampleTick()

	rig.idle.set(10 * time.Minute)
	rig.sampler.idleCheck()

	// Two events queued: the record open, then the idle onset.
	ev := <-rig.sampler.Events()
	assert.Equal(t, EventNewRecord, ev.Type)
	ev = <-rig.sampler.Events()
	assert.Equal(t, EventIdleStart, ev.Type)
}

func TestWakeResamplesImmediately(t *testing.T) {
	rig := newRig(t)
	rig.sampler.st = stateIdle
	rig.fg.set(ForegroundContext{AppName: "Xcode", Kind: entity.KindApp})
	rig.idle.set(time.Second)

	rig.sampler.idleCheck()
	rig.flush()

	assert.Equal(t, stateTracking, rig.sampler.st)
	require.Len(t, rig.store.byOrder(), 1)
}

func TestForegroundErrorSkipsTick(t *testing.T) {
	rig := newRig(t)
	rig.fg.err = assert.AnError

	rig.sampler.sampleTick()
	rig.flush()

	assert.Empty(t, rig.store.byOrder())
	_, tracking := rig.sampler.Current()
	assert.False(t, tracking)
}

func TestTabChangeSplitsBrowserRecord(t *testing.T) {
	rig := newRig(t)
	rig.fg.set(ForegroundContext{AppName: "Chrome", URL: "https://github.com/a", Kind: entity.KindBrowser})
	rig.sampler.sampleTick()

	rig.advance(5 * time.Minute)
	rig.sampler.tabChanged(TabEvent{Title: "reddit", URL: "https://reddit.com"})
	rig.flush()

	records := rig.store.byOrder()
	require.Len(t, records, 2)
	assert.Equal(t, "https://reddit.com", records[1].URL)
	assert.Equal(t, entity.CategoryDistracting, records[1].Category)
	assert.Equal(t, 1, rig.store.openCount())
}

func TestTabChangeIgnoredForDesktopApp(t *testing.T) {
	rig := newRig(t)
	rig.fg.set(ForegroundContext{AppName: "Xcode", Kind: entity.KindApp})
	rig.sampler.sampleTick()

	rig.sampler.tabChanged(TabEvent{URL: "https://reddit.com"})
	rig.flush()

	require.Len(t, rig.store.byOrder(), 1)
	assert.Equal(t, "Xcode", rig.store.byOrder()[0].AppName)
}

func TestFailedInsertReconciledOnClose(t *testing.T) {
	rig := newRig(t)
	rig.store.insertErr = assert.AnError
	rig.fg.set(ForegroundContext{AppName: "Xcode", Kind: entity.KindApp})
	rig.sampler.sampleTick()
	rig.flush()
	assert.Empty(t, rig.store.byOrder())

	// In-memory state survived the failed write.
	_, tracking := rig.sampler.Current()
	assert.True(t, tracking)

	rig.store.insertErr = nil
	rig.advance(10 * time.Minute)
	rig.fg.set(ForegroundContext{AppName: "Twitter", Kind: entity.KindApp})
	rig.sampler.sampleTick()
	rig.flush()

	records := rig.store.byOrder()
	require.Len(t, records, 2)
	require.NotNil(t, records[0].EndTime)
	assert.Equal(t, "Xcode", records[0].AppName)
}

func TestStartStopClosesOpenRecord(t *testing.T) {
	rig := newRig(t)
	rig.sampler.st = stateIdle
	rig.sampler.cfg.PollInterval = time.Hour
	rig.sampler.cfg.IdleInterval = time.Hour
	rig.fg.set(ForegroundContext{AppName: "Xcode", Kind: entity.KindApp})

	require.NoError(t, rig.sampler.Start(context.Background()))

	// The startup idle check opens the first record.
	require.Eventually(t, func() bool {
		return len(rig.store.byOrder()) == 1
	}, time.Second, 10*time.Millisecond)

	rig.advance(42 * time.Minute)
	stopTime := rig.now
	rig.sampler.Stop()

	records := rig.store.byOrder()
	require.Len(t, records, 1)
	require.NotNil(t, records[0].EndTime)
	assert.Equal(t, stopTime, *records[0].EndTime)
	assert.Equal(t, 0, rig.store.openCount())
}

// gatedRuleStore wedges rule listing until released, standing in for a
// rule store busy with another query.
type gatedRuleStore struct {
	gate chan struct{}
}

func (g *gatedRuleStore) ListRules() ([]entity.CategoryRule, error) {
	<-g.gate
	return nil, nil
}

func (g *gatedRuleStore) ListCategories() ([]entity.CategoryInfo, error) {
	return nil, nil
}

func TestTickNotStalledByRuleReload(t *testing.T) {
	store := &gatedRuleStore{gate: make(chan struct{})}
	defer close(store.gate)

	rig := newRig(t)
	rig.sampler.categorizer = rules.NewEngine(rules.NewCache(store, time.Minute))
	rig.fg.set(ForegroundContext{AppName: "Xcode", Kind: entity.KindApp})

	done := make(chan struct{})
	go func() {
		rig.sampler.sampleTick()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("tick stalled on the rule reload")
	}
	rig.flush()

	// No snapshot has loaded yet, so the builtins decide the category.
	records := rig.store.byOrder()
	require.Len(t, records, 1)
	assert.Equal(t, entity.CategoryNeutral, records[0].Category)
}

func TestStopClosesEventStream(t *testing.T) {
	rig := newRig(t)
	rig.sampler.cfg.PollInterval = time.Hour
	rig.sampler.cfg.IdleInterval = time.Hour
	rig.fg.set(ForegroundContext{AppName: "Xcode", Kind: entity.KindApp})

	require.NoError(t, rig.sampler.Start(context.Background()))
	events := rig.sampler.Events()
	rig.sampler.Stop()

	for {
		select {
		case _, ok := <-events:
			if !ok {
				return
			}
		case <-time.After(time.Second):
			t.Fatal("event stream still open after Stop")
		}
	}
}

func TestStartTwiceFails(t *testing.T) {
	rig := newRig(t)
	rig.sampler.st = stateIdle
	rig.sampler.cfg.PollInterval = time.Hour
	rig.sampler.cfg.IdleInterval = time.Hour
	rig.fg.set(ForegroundContext{AppName: "Xcode", Kind: entity.KindApp})

	require.NoError(t, rig.sampler.Start(context.Background()))
	defer rig.sampler.Stop()

	assert.Error(t, rig.sampler.Start(context.Background()))
}
