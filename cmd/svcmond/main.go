package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/pond75jnu/svcmon/config"
	"github.com/pond75jnu/svcmon/internal/adminapi"
	"github.com/pond75jnu/svcmon/internal/app"
	"github.com/pond75jnu/svcmon/internal/monitor"
	"github.com/pond75jnu/svcmon/internal/notify"
	"github.com/pond75jnu/svcmon/internal/store"
	"github.com/pond75jnu/svcmon/internal/webserver"
)

var (
	h       bool
	x       bool
	initdb  bool
	cfile   string
	segment string
)

func init() {
	flag.BoolVar(&h, "h", false, "help usage")
	flag.BoolVar(&x, "x", false, "debug mode")
	flag.BoolVar(&initdb, "initdb", false, "drop and recreate all tables, then exit")
	flag.StringVar(&cfile, "c", "/etc/svcmon.yml", "config file path")
	flag.StringVar(&segment, "segment", "", "network group to poll; overrides config, empty means all")
}

func printHelp() {
	fmt.Fprintf(os.Stderr, "Usage: svcmond [-h] [-x] [-initdb] [-c config] [-segment name]\n")
	flag.PrintDefaults()
}

func main() {
	flag.Parse()
	if h {
		printHelp()
		return
	}

	cfg := config.LoadConfig(cfile)
	if x {
		cfg.System.Debug = true
		cfg.Logger.Mode = "development"
	}
	if segment != "" {
		cfg.Monitor.Segment = segment
	}
	cfg.InitDirs()

	application := app.NewApplication(cfg)
	application.Init(cfg)
	defer application.Release()

	if initdb {
		application.InitDb()
		zap.S().Info("database initialized")
		return
	}

	st := store.NewStore(application.DB())

	// Store reachability is the only fatal startup condition. Everything
	// else degrades and retries.
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 10*time.Second)
	err := st.Ping(pingCtx)
	cancelPing()
	if err != nil {
		zap.S().Errorf("entity store unreachable: %v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	web := webserver.Init(application)
	adminapi.RegisterRoutes()
	go func() {
		if err := web.Start(); err != nil {
			zap.S().Errorf("web server stopped: %v", err)
		}
	}()

	go monitor.NewSilenceDetector(st,
		time.Duration(cfg.Monitor.SilenceScanSec)*time.Second).Run(ctx)

	mailer := notify.NewMailer(cfg.Smtp, application.DB())
	runScheduler(ctx, st, cfg, mailer)

	web.Shutdown()
	zap.S().Info("svcmond stopped")
}

// runScheduler supervises the batch scheduler: when it exits because the
// config revision moved, a fresh scheduler picks up the new topology. Any
// other exit means shutdown.
func runScheduler(ctx context.Context, st *store.Store, cfg *config.AppConfig, notifier monitor.Notifier) {
	prober := monitor.NewProber(time.Duration(cfg.Monitor.ProbeTimeout) * time.Second)
	for {
		sched := monitor.NewScheduler(st, prober, cfg.Monitor, notifier)
		err := sched.Run(ctx)
		if err == monitor.ErrConfigChanged {
			zap.S().Info("restarting scheduler with new topology")
			continue
		}
		if err != nil {
			zap.S().Errorf("scheduler exited: %v", err)
		}
		return
	}
}
