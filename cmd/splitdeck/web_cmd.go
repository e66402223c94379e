package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	xterm "golang.org/x/term"

	"github.com/splitdeck/splitdeck/internal/config"
	"github.com/splitdeck/splitdeck/internal/history"
	"github.com/splitdeck/splitdeck/internal/layout"
	"github.com/splitdeck/splitdeck/internal/logging"
	"github.com/splitdeck/splitdeck/internal/notify"
	"github.com/splitdeck/splitdeck/internal/project"
	"github.com/splitdeck/splitdeck/internal/remote"
	"github.com/splitdeck/splitdeck/internal/term"
	"github.com/splitdeck/splitdeck/internal/web"
)

// devClientDir is where the dev bundler finds client sources when the server
// runs from a source checkout.
const devClientDir = "internal/web/static"

// webOptions carries the parsed web command flags.
type webOptions struct {
	listen      string
	profile     string
	configPath  string
	token       string
	dev         bool
	openBrowser bool
	logPath     string
}

// handleWeb starts the web server and its background workers.
func handleWeb(args []string) {
	fs := flag.NewFlagSet("web", flag.ExitOnError)
	listen := fs.String("listen", "", "Listen address (default from config, 127.0.0.1:8420)")
	profile := fs.String("profile", "", "Profile holding workspace and history (default $SPLITDECK_PROFILE or \"default\")")
	configPath := fs.String("config", "", "Config file path (default <data-dir>/config.toml)")
	token := fs.String("token", "", "Access token for API and websocket clients")
	dev := fs.Bool("dev", false, "Bundle the client from source and rebuild on change")
	open := fs.Bool("open", false, "Open the browser at the target URL")
	logPath := fs.String("log", "", "Log file path (default <data-dir>/logs/splitdeck.log)")

	fs.Usage = func() {
		fmt.Println("Usage: splitdeck web [options]")
		fmt.Println()
		fmt.Println("Start the splitdeck web server.")
		fmt.Println()
		fmt.Println("Options:")
		fs.PrintDefaults()
		fmt.Println()
		fmt.Println("Examples:")
		fmt.Println("  splitdeck web")
		fmt.Println("  splitdeck web -profile work -listen 127.0.0.1:9000")
		fmt.Println("  splitdeck web -dev -open")
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "Error: unexpected arguments: %v\n", fs.Args())
		fs.Usage()
		os.Exit(1)
	}

	opts := webOptions{
		listen:      *listen,
		profile:     *profile,
		configPath:  *configPath,
		token:       *token,
		dev:         *dev,
		openBrowser: *open,
		logPath:     *logPath,
	}
	if err := runWeb(opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runWeb wires the store, PTY manager, history db and optional workers to
// the web server and blocks until SIGINT/SIGTERM or a fatal error.
func runWeb(opts webOptions) error {
	if cwd, err := os.Getwd(); err == nil {
		if applied, err := config.LoadDotenv(cwd); err != nil {
			log.Printf("[WEB] Skipping .env: %v", err)
		} else if applied > 0 {
			log.Printf("[WEB] Applied %d variables from .env", applied)
		}
	}

	dataDir, err := config.DataDir()
	if err != nil {
		return err
	}
	profile := config.EffectiveProfile(opts.profile)
	profileDir, err := config.ProfileDir(profile)
	if err != nil {
		return err
	}

	cfgPath := opts.configPath
	if cfgPath == "" {
		if cfgPath, err = config.DefaultPath(); err != nil {
			return err
		}
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	cfg.ApplyEnvOverrides()
	if opts.listen != "" {
		cfg.Server.Listen = opts.listen
	}

	logPath := opts.logPath
	if logPath == "" {
		logPath = logging.DefaultPath(dataDir)
	}
	logCloser, err := logging.Setup(logPath)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	token, source, err := web.ResolveToken(opts.token, cfg.Server.Token)
	if err != nil {
		return err
	}
	log.Printf("[WEB] Access token from %s (%s)", source, web.TokenFingerprint(token))

	storage, err := layout.NewStorage(profileDir)
	if err != nil {
		return err
	}
	snap, err := storage.Load()
	if err != nil {
		return err
	}
	store := layout.NewStore()
	store.Restore(snap)

	hist, err := history.Open(history.DefaultPath(profileDir))
	if err != nil {
		return err
	}
	defer hist.Close()

	providers, err := term.LoadProviders(dataDir)
	if err != nil {
		log.Printf("[TERM] Provider overrides unavailable: %v", err)
		providers = term.BuiltinProviders()
	}
	archiveDir := filepath.Join(profileDir, "scrollback")
	terminals := term.NewManager(term.Options{
		Shell:           cfg.Terminal.Shell,
		ScrollbackBytes: cfg.Terminal.ScrollbackBytes,
		ArchiveDir:      archiveDir,
		Providers:       providers,
	})

	discovery := project.NewDiscovery(cfg.Discovery, dataDir)
	favorites := project.NewFavoriteStore(dataDir)

	pushStore, err := notify.NewSubscriptionStore(profileDir)
	if err != nil {
		return err
	}
	notifier, err := notify.NewNotifier(pushStore, cfg.Push, dataDir)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var presence *remote.Publisher
	if cfg.Remote.Enabled() {
		presence, err = remote.NewPublisher(ctx, cfg.Remote)
		if err != nil {
			log.Printf("[REMOTE] Presence disabled: %v", err)
			presence = nil
		}
	}

	srv := web.NewServer(web.Config{
		ListenAddr: cfg.Server.Listen,
		Profile:    profile,
		DataDir:    dataDir,
		ProfileDir: profileDir,
		Token:      token,
		DevMode:    opts.dev,

		Layout:    store,
		Storage:   storage,
		Terminals: terminals,
		History:   hist,
		Discovery: discovery,
		Favorites: favorites,
		Notifier:  notifier,
		PushStore: pushStore,
		Presence:  presence,
	})
	terminals.OnExit = srv.HandlePaneExit

	if opts.dev {
		if err := srv.BundleClient(devClientDir); err != nil {
			return err
		}
	}

	if err := srv.Listen(); err != nil {
		return err
	}

	target := srv.TargetURL()
	log.Printf("[WEB] Serving profile %q on %s", profile, srv.URL())
	if xterm.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Printf("splitdeck web running on %s\n", srv.URL())
		fmt.Printf("Open: %s\n", target)
		fmt.Println("Press Ctrl+C to stop.")
	}
	if opts.openBrowser {
		if err := openBrowser(target); err != nil {
			log.Printf("[WEB] Browser launch failed: %v", err)
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(srv.Serve)
	g.Go(func() error {
		<-ctx.Done()
		return srv.Stop()
	})
	if !cfg.Maintenance.Disabled {
		g.Go(func() error {
			return terminals.RunMaintenanceWorker(ctx, term.MaintenanceOptions{
				Interval:      time.Duration(cfg.Maintenance.IntervalMinutes) * time.Minute,
				ArchiveDir:    archiveDir,
				ArchiveBudget: int64(cfg.Terminal.ArchiveBudgetMB) * 1024 * 1024,
			})
		})
	}
	if opts.dev {
		g.Go(func() error { return srv.WatchClient(ctx, devClientDir) })
	}
	if presence != nil {
		g.Go(func() error {
			return presence.Run(ctx, func() any {
				return presenceSnapshot(profile, presence.HostID(), store)
			})
		})
	}

	err = g.Wait()
	terminals.CloseAll()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Printf("[WEB] Shutdown complete")
	return nil
}

// presenceSnapshot is the payload other hosts see for this one.
func presenceSnapshot(profile, hostID string, store *layout.Store) any {
	snap := store.Snapshot()
	return map[string]any{
		"host":     hostID,
		"profile":  profile,
		"tabs":     len(snap.Tabs),
		"sessions": layout.SessionsForHello(snap),
		"sentAt":   time.Now().UTC().Format(time.RFC3339),
	}
}

// browserCommand returns the platform launcher for a URL.
func browserCommand(goos, url string) (string, []string, error) {
	switch goos {
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", url}, nil
	case "darwin":
		return "open", []string{url}, nil
	case "linux":
		return "xdg-open", []string{url}, nil
	}
	return "", nil, fmt.Errorf("unsupported platform: %s", goos)
}

// openBrowser launches the default browser at url without waiting for it.
func openBrowser(url string) error {
	name, args, err := browserCommand(runtime.GOOS, url)
	if err != nil {
		return err
	}
	return exec.Command(name, args...).Start()
}
