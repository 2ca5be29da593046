package tracker

import (
	"errors"
	"sync"
	"time"

	"main/entity"
)

// ErrPermissionDenied is returned by Start when the OS permission needed to
// observe the foreground application is missing. There is no automatic
// retry; the user has to grant it.
var ErrPermissionDenied = errors.New("tracker: screen observation permission denied")

// ForegroundContext is one raw observation of what the user is doing.
type ForegroundContext struct {
	AppName     string
	WindowTitle string
	URL         string
	Kind        entity.AppKind
}

// ForegroundSource reports the current foreground application and, for a
// recognized browser, the active tab.
type ForegroundSource interface {
	Foreground() (ForegroundContext, error)
}

// IdleSource reports how long ago the last input event happened.
type IdleSource interface {
	IdleTime() (time.Duration, error)
}

// PermissionSource gates sampler startup.
type PermissionSource interface {
	Granted() bool
	Prompt()
}

// Categorizer assigns a productivity category to an observation.
type Categorizer interface {
	Classify(appName, windowTitle, url string) entity.Category
}

// RecordStore is the slice of the external store the sampler writes to.
type RecordStore interface {
	InsertActivity(rec *entity.ActivityRecord) error
	UpdateActivityContext(id, windowTitle, url string, seen time.Time) error
	TouchActivity(id string, seen time.Time) error
	CloseActivity(id string, end time.Time) error
}

// TabEvent is an out-of-band browser tab change notification.
type TabEvent struct {
	Title string
	URL   string
}

// TabSource hands out tab-change subscriptions. The sampler owns its
// subscription; the source never calls back into the sampler.
type TabSource interface {
	Subscribe() <-chan TabEvent
}

// TabFeed is the in-process TabSource fed by the web API (browser
// extensions POST tab changes to it).
type TabFeed struct {
	mutex sync.Mutex
	subs  []chan TabEvent
}

func NewTabFeed() *TabFeed {
	return &TabFeed{}
}

func (f *TabFeed) Subscribe() <-chan TabEvent {
	ch := make(chan TabEvent, 8)
	f.mutex.Lock()
	f.subs = append(f.subs, ch)
	f.mutex.Unlock()
	return ch
}

// Publish delivers an event to every subscriber, dropping it for slow ones
// rather than blocking the caller.
func (f *TabFeed) Publish(ev TabEvent) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	for _, ch := range f.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
