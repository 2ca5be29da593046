package launch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/getlantern/systray"
	"github.com/robfig/cron/v3"

	"main/config"
	"main/query"
	"main/rules"
	"main/stats"
	"main/tracker"
	"main/web"
)

// StartProgramme runs the tracker under a system tray icon.
func StartProgramme(cfg config.Config) {
	systray.Run(func() { onReady(cfg) }, onExit)
}

func onReady(cfg config.Config) {
	if icon, err := os.ReadFile("./icon.ico"); err == nil {
		systray.SetIcon(icon)
	}
	systray.SetTitle("Activity Tracker")
	systray.SetTooltip("Tracking your foreground activity")

	go func() {
		if err := Run(context.Background(), cfg); err != nil {
			log.Println("launch:", err)
			systray.Quit()
		}
	}()

	mOpenWeb := systray.AddMenuItem("Open web UI", "Open the local API in the browser")
	mQuit := systray.AddMenuItem("Quit", "Stop tracking and exit")

	go func() {
		for {
			select {
			case <-mOpenWeb.ClickedCh:
				openBrowser("http://" + cfg.ListenAddr)
			case <-mQuit.ClickedCh:
				systray.Quit()
				return
			}
		}
	}()
}

func onExit() {
	os.Exit(0)
}

func openBrowser(url string) {
	switch {
	case os.Getenv("WINDIR") != "":
		_ = exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		_ = exec.Command("xdg-open", url).Start()
	}
}

// Run wires the engine together and blocks until ctx is done or a signal
// arrives. It is the headless entrypoint and the body behind the tray icon.
func Run(ctx context.Context, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := query.InitDatabase(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	defer db.Close()

	// Close records a previous run left open before sampling again.
	if n, err := db.CloseDanglingActivities(); err != nil {
		log.Println("launch: crash recovery:", err)
	} else if n > 0 {
		log.Printf("launch: closed %d dangling records", n)
	}

	cache := rules.NewCache(db, cfg.RuleCacheTTL)
	cache.Refresh()
	statsSvc := stats.NewService(db, db)
	tabs := tracker.NewTabFeed()

	sampler := tracker.NewSampler(tracker.Config{
		PollInterval:  cfg.PollInterval,
		IdleInterval:  cfg.IdleInterval,
		IdleThreshold: cfg.IdleThreshold,
	}, tracker.Deps{
		Foreground:  tracker.NewSystemSource(),
		Idle:        tracker.X11Idle{},
		Permission:  tracker.X11Permission{},
		Categorizer: rules.NewEngine(cache),
		Store:       db,
		Tabs:        tabs,
	})

	if err := sampler.Start(ctx); err != nil {
		if errors.Is(err, tracker.ErrPermissionDenied) {
			return fmt.Errorf("cannot start tracking: %w", err)
		}
		return err
	}
	defer sampler.Stop()

	srv := web.NewServer(db, cache, statsSvc, tabs, sampler).Start(cfg.ListenAddr)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	// Nightly recap of the day that just ended.
	recap := cron.New()
	_, err = recap.AddFunc("1 0 * * *", func() {
		from, to := stats.PeriodRange("day", time.Now().AddDate(0, 0, -1))
		result, err := statsSvc.Between(from, to)
		if err != nil {
			log.Println("recap:", err)
			return
		}
		log.Printf("recap %s: active %v, productivity %d, distraction %d",
			from.Format("2006-01-02"), result.TotalTime.Round(time.Minute),
			result.ProductivityScore, result.DistractionScore)
	})
	if err != nil {
		return fmt.Errorf("scheduling recap: %w", err)
	}
	recap.Start()
	defer recap.Stop()

	// Log the sampler's lifecycle events; downstream features subscribe the
	// same way.
	go func() {
		for ev := range sampler.Events() {
			switch ev.Type {
			case tracker.EventNewRecord:
				log.Printf("tracking %s (%s)", ev.Record.AppName, ev.Record.Category)
			case tracker.EventIdleStart:
				log.Println("user idle, tracking paused")
			}
		}
	}()

	<-ctx.Done()
	return nil
}
