package tracker

import (
	"fmt"
	"log"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/process"

	"main/entity"
)

// ActiveWindow identifies the focused window and its owning process.
type ActiveWindow struct {
	PID   int32
	Title string
}

// Browsers recognized for tab tracking, by process name.
var defaultBrowsers = map[string]struct{}{
	"chrome":        {},
	"chromium":      {},
	"google-chrome": {},
	"firefox":       {},
	"firefox-bin":   {},
	"brave":         {},
	"msedge":        {},
	"safari":        {},
	"vivaldi-bin":   {},
	"opera":         {},
	"chrome.exe":    {},
	"firefox.exe":   {},
	"msedge.exe":    {},
	"brave.exe":     {},
}

// Processes that count as system shells rather than user applications.
var systemProcesses = map[string]struct{}{
	"explorer.exe": {},
	"gnome-shell":  {},
	"plasmashell":  {},
	"finder":       {},
	"dwm.exe":      {},
}

// SystemSource resolves the foreground context: the active window through a
// pluggable OS hook, the owning process name through gopsutil.
type SystemSource struct {
	// ActiveWindow is the OS-specific hook; defaults to the X11 lookup.
	ActiveWindow func() (ActiveWindow, error)
	browsers     map[string]struct{}
}

func NewSystemSource() *SystemSource {
	return &SystemSource{
		ActiveWindow: x11ActiveWindow,
		browsers:     defaultBrowsers,
	}
}

func (s *SystemSource) Foreground() (ForegroundContext, error) {
	win, err := s.ActiveWindow()
	if err != nil {
		return ForegroundContext{}, fmt.Errorf("reading active window: %w", err)
	}
	proc, err := process.NewProcess(win.PID)
	if err != nil {
		return ForegroundContext{}, fmt.Errorf("resolving pid %d: %w", win.PID, err)
	}
	name, err := proc.Name()
	if err != nil {
		return ForegroundContext{}, fmt.Errorf("reading process name: %w", err)
	}

	kind := entity.KindApp
	lower := strings.ToLower(name)
	if _, ok := s.browsers[lower]; ok {
		kind = entity.KindBrowser
	} else if _, ok := systemProcesses[lower]; ok {
		kind = entity.KindSystem
	}

	return ForegroundContext{
		AppName:     name,
		WindowTitle: win.Title,
		Kind:        kind,
	}, nil
}

// x11ActiveWindow shells out to xprop, the same way small trackers do.
func x11ActiveWindow() (ActiveWindow, error) {
	out, err := exec.Command("xprop", "-root", "_NET_ACTIVE_WINDOW").Output()
	if err != nil {
		return ActiveWindow{}, fmt.Errorf("xprop root: %w", err)
	}
	fields := strings.Fields(strings.TrimSpace(string(out)))
	if len(fields) == 0 {
		return ActiveWindow{}, fmt.Errorf("xprop root: empty output")
	}
	windowID := fields[len(fields)-1]
	if windowID == "0x0" {
		return ActiveWindow{}, fmt.Errorf("no active window")
	}

	out, err = exec.Command("xprop", "-id", windowID, "_NET_WM_PID", "_NET_WM_NAME").Output()
	if err != nil {
		return ActiveWindow{}, fmt.Errorf("xprop window: %w", err)
	}

	var win ActiveWindow
	for _, line := range strings.Split(string(out), "\n") {
		switch {
		case strings.HasPrefix(line, "_NET_WM_PID"):
			if i := strings.LastIndex(line, "= "); i >= 0 {
				pid, err := strconv.ParseInt(strings.TrimSpace(line[i+2:]), 10, 32)
				if err == nil {
					win.PID = int32(pid)
				}
			}
		case strings.HasPrefix(line, "_NET_WM_NAME"):
			if i := strings.Index(line, `"`); i >= 0 {
				title := line[i+1:]
				win.Title = strings.TrimSuffix(title, `"`)
			}
		}
	}
	if win.PID == 0 {
		return ActiveWindow{}, fmt.Errorf("active window has no _NET_WM_PID")
	}
	return win, nil
}

// X11Idle measures input idleness with xprintidle (milliseconds).
type X11Idle struct{}

func (X11Idle) IdleTime() (time.Duration, error) {
	out, err := exec.Command("xprintidle").Output()
	if err != nil {
		return 0, fmt.Errorf("xprintidle: %w", err)
	}
	ms, err := strconv.ParseInt(strings.TrimSpace(string(out)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("xprintidle output: %w", err)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// X11Permission treats a reachable X display with the xprop/xprintidle
// tools installed as the granted state.
type X11Permission struct{}

func (X11Permission) Granted() bool {
	if os.Getenv("DISPLAY") == "" {
		return false
	}
	if _, err := exec.LookPath("xprop"); err != nil {
		return false
	}
	if _, err := exec.LookPath("xprintidle"); err != nil {
		return false
	}
	return true
}

func (X11Permission) Prompt() {
	log.Println("tracker: activity tracking needs an X display plus the xprop and xprintidle tools; install them and restart")
}
