package tracker

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"main/entity"
)

// Config holds the sampler timings. Zero values fall back to the defaults.
type Config struct {
	PollInterval  time.Duration
	IdleInterval  time.Duration
	IdleThreshold time.Duration
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.IdleInterval <= 0 {
		c.IdleInterval = 5 * time.Second
	}
	if c.IdleThreshold <= 0 {
		c.IdleThreshold = 5 * time.Minute
	}
	return c
}

// Deps are the external collaborators the sampler is constructed with.
type Deps struct {
	Foreground  ForegroundSource
	Idle        IdleSource
	Permission  PermissionSource
	Categorizer Categorizer
	Store       RecordStore
	Tabs        TabSource // optional
}

type EventType string

const (
	EventNewRecord EventType = "new_record"
	EventIdleStart EventType = "idle_start"
)

// Event is emitted on record splits and idle onsets for downstream
// consumers (notifications, habit mining).
type Event struct {
	Type   EventType
	Record entity.ActivityRecord
	At     time.Time
}

type state int

const (
	stateIdle state = iota
	stateTracking
)

// openRecord pairs the in-memory open record with whether its row made it
// to the store yet. A failed insert leaves persisted false; the closing
// write then inserts the full record instead of updating a missing row.
type openRecord struct {
	rec       entity.ActivityRecord
	persisted bool
}

// Sampler drives the tracking state machine: it polls the foreground
// context at a fixed interval, checks input idleness on a second interval,
// and maintains the single open activity record. Store writes run on a
// background goroutine so a slow disk never stalls a tick.
type Sampler struct {
	cfg         Config
	foreground  ForegroundSource
	idle        IdleSource
	permission  PermissionSource
	categorizer Categorizer
	store       RecordStore
	tabSource   TabSource
	now         func() time.Time

	mutex   sync.Mutex
	st      state
	current *openRecord
	lastTab TabEvent
	started bool

	tabs       <-chan TabEvent
	writes     chan func()
	events     chan Event
	cancel     context.CancelFunc
	loopDone   chan struct{}
	writerDone chan struct{}
}

func NewSampler(cfg Config, deps Deps) *Sampler {
	return &Sampler{
		cfg:         cfg.withDefaults(),
		foreground:  deps.Foreground,
		idle:        deps.Idle,
		permission:  deps.Permission,
		categorizer: deps.Categorizer,
		store:       deps.Store,
		tabSource:   deps.Tabs,
		now:         time.Now,
		events:      make(chan Event, 16),
		writes:      make(chan func(), 64),
	}
}

// Events exposes the sampler's record/idle event stream. Events are dropped
// when nobody drains the channel; Stop closes it so consumers can range
// over it and terminate.
func (s *Sampler) Events() <-chan Event {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.events
}

// Start checks the observation permission and launches the polling loop.
// It fails with ErrPermissionDenied if the permission is missing even
// after prompting. Only one instance may run at a time.
func (s *Sampler) Start(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.started {
		return errors.New("tracker: sampler already started")
	}

	if !s.permission.Granted() {
		s.permission.Prompt()
		if !s.permission.Granted() {
			return ErrPermissionDenied
		}
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.st = stateIdle
	if s.writes == nil {
		s.writes = make(chan func(), 64)
	}
	if s.events == nil {
		s.events = make(chan Event, 16)
	}
	s.loopDone = make(chan struct{})
	s.writerDone = make(chan struct{})
	if s.tabSource != nil {
		s.tabs = s.tabSource.Subscribe()
	}
	s.started = true

	go s.writer()
	go s.run(ctx)
	return nil
}

// Stop halts the loop and closes any open record at the current time,
// waiting for queued store writes to finish.
func (s *Sampler) Stop() {
	s.mutex.Lock()
	if !s.started {
		s.mutex.Unlock()
		return
	}
	s.cancel()
	s.mutex.Unlock()
	<-s.loopDone

	s.mutex.Lock()
	s.closeCurrentLocked(s.now())
	s.st = stateIdle
	s.started = false
	writes := s.writes
	s.writes = nil
	events := s.events
	s.events = nil
	s.mutex.Unlock()

	close(writes)
	<-s.writerDone
	close(events)
}

func (s *Sampler) run(ctx context.Context) {
	defer close(s.loopDone)

	sampleTicker := time.NewTicker(s.cfg.PollInterval)
	defer sampleTicker.Stop()
	idleTicker := time.NewTicker(s.cfg.IdleInterval)
	defer idleTicker.Stop()

	// Leave the initial idle state right away instead of waiting for the
	// first idle tick.
	s.idleCheck()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sampleTicker.C:
			s.sampleTick()
		case <-idleTicker.C:
			s.idleCheck()
		case ev := <-s.tabs:
			s.tabChanged(ev)
		}
	}
}

// writer applies store writes in the order the state machine produced
// them, so a record's insert always runs before its close.
func (s *Sampler) writer() {
	defer close(s.writerDone)
	for write := range s.writes {
		write()
	}
}

func (s *Sampler) enqueue(write func()) {
	select {
	case s.writes <- write:
	default:
		log.Printf("sampler: write queue full, dropping store write")
	}
}

func (s *Sampler) sampleTick() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.st != stateTracking {
		return
	}
	s.sampleLocked(s.now())
}

// idleCheck evaluates the idle transition rules: going idle closes the open
// record at the last-input timestamp, waking re-samples immediately.
func (s *Sampler) idleCheck() {
	idleFor, err := s.idle.IdleTime()
	if err != nil {
		log.Printf("sampler: idle check failed, skipping: %v", err)
		return
	}
	now := s.now()

	s.mutex.Lock()
	defer s.mutex.Unlock()
	switch s.st {
	case stateTracking:
		if idleFor >= s.cfg.IdleThreshold {
			// Close at the moment input stopped, not at detection time.
			s.closeCurrentLocked(now.Add(-idleFor))
			s.st = stateIdle
			s.emit(Event{Type: EventIdleStart, At: now})
		}
	case stateIdle:
		if idleFor < s.cfg.IdleThreshold {
			s.st = stateTracking
			s.sampleLocked(now)
		}
	}
}

func (s *Sampler) sampleLocked(now time.Time) {
	fg, err := s.foreground.Foreground()
	if err != nil {
		log.Printf("sampler: foreground read failed, skipping tick: %v", err)
		return
	}
	if fg.Kind == entity.KindBrowser && fg.URL == "" {
		// The poller only sees the window; the tab URL comes from the last
		// out-of-band tab event.
		fg.URL = s.lastTab.URL
	}
	s.applyLocked(now, fg)
}

// tabChanged runs the same split-or-update logic as a sample tick, using
// the new tab context against the open browser record.
func (s *Sampler) tabChanged(ev TabEvent) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.lastTab = ev
	if s.st != stateTracking || s.current == nil || s.current.rec.Kind != entity.KindBrowser {
		return
	}
	s.applyLocked(s.now(), ForegroundContext{
		AppName:     s.current.rec.AppName,
		WindowTitle: ev.Title,
		URL:         ev.URL,
		Kind:        entity.KindBrowser,
	})
}

// applyLocked compares the observation against the open record: a changed
// identity splits, a changed title or URL within the same identity updates
// in place, anything else just refreshes last_seen.
func (s *Sampler) applyLocked(now time.Time, fg ForegroundContext) {
	category := s.categorizer.Classify(fg.AppName, fg.WindowTitle, fg.URL)
	identity := entity.Identity{
		AppName:  fg.AppName,
		Category: category,
		URLHost:  entity.URLHost(fg.URL),
	}

	cur := s.current
	if cur == nil {
		s.openLocked(now, fg, category)
		return
	}
	if cur.rec.Identity() != identity {
		s.closeCurrentLocked(now)
		s.openLocked(now, fg, category)
		return
	}
	if cur.rec.WindowTitle != fg.WindowTitle || cur.rec.URL != fg.URL {
		next := cur.rec
		next.WindowTitle = fg.WindowTitle
		next.URL = fg.URL
		next.LastSeen = now
		s.current = &openRecord{rec: next, persisted: cur.persisted}
		id := next.ID
		s.enqueue(func() {
			if err := s.store.UpdateActivityContext(id, next.WindowTitle, next.URL, now); err != nil {
				log.Printf("sampler: context update failed: %v", err)
			}
		})
		return
	}

	next := cur.rec
	next.LastSeen = now
	s.current = &openRecord{rec: next, persisted: cur.persisted}
	id := next.ID
	s.enqueue(func() {
		if err := s.store.TouchActivity(id, now); err != nil {
			log.Printf("sampler: touch failed: %v", err)
		}
	})
}

func (s *Sampler) openLocked(now time.Time, fg ForegroundContext, category entity.Category) {
	rec := entity.ActivityRecord{
		ID:          uuid.NewString(),
		AppName:     fg.AppName,
		WindowTitle: fg.WindowTitle,
		URL:         fg.URL,
		Kind:        fg.Kind,
		Category:    category,
		StartTime:   now,
		LastSeen:    now,
	}
	cur := &openRecord{rec: rec}
	s.current = cur
	s.enqueue(func() {
		if err := s.store.InsertActivity(&rec); err != nil {
			log.Printf("sampler: insert failed, will reconcile on close: %v", err)
			return
		}
		s.mutex.Lock()
		cur.persisted = true
		if s.current != nil && s.current.rec.ID == rec.ID {
			s.current.persisted = true
		}
		s.mutex.Unlock()
	})
	s.emit(Event{Type: EventNewRecord, Record: rec, At: now})
}

func (s *Sampler) closeCurrentLocked(end time.Time) {
	cur := s.current
	if cur == nil {
		return
	}
	if end.Before(cur.rec.StartTime) {
		end = cur.rec.StartTime
	}
	rec := cur.rec
	s.current = nil
	s.enqueue(func() {
		s.mutex.Lock()
		persisted := cur.persisted
		s.mutex.Unlock()
		if persisted {
			if err := s.store.CloseActivity(rec.ID, end); err != nil {
				log.Printf("sampler: close failed: %v", err)
			}
			return
		}
		// The open insert never made it; write the whole closed record.
		closed := rec
		closed.EndTime = &end
		if err := s.store.InsertActivity(&closed); err != nil {
			log.Printf("sampler: close insert failed: %v", err)
		}
	})
}

func (s *Sampler) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
	}
}

// Current returns a copy of the open record, if any.
func (s *Sampler) Current() (entity.ActivityRecord, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.current == nil {
		return entity.ActivityRecord{}, false
	}
	return s.current.rec, true
}
