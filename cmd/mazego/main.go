package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/cjeanneret/MazeGo/internal/archive"
	"github.com/cjeanneret/MazeGo/internal/config"
	"github.com/cjeanneret/MazeGo/internal/debug"
	"github.com/cjeanneret/MazeGo/internal/hw/display"
	"github.com/cjeanneret/MazeGo/internal/web"
)

func main() {
	// CLI flags
	webPort := &webPortFlag{defaultPort: 8080}
	flag.Var(webPort, "web", "start web server on port; -web= for default 8080, -web 8980 for custom port")
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	mapNumber := flag.Int("map", 0, "override map number (1-99, 0 = config default)")
	cargo := flag.String("cargo", "", "override cargo label: 0-3, or none (empty = config default)")
	replayFile := flag.String("replay", "", "rebuild the map from a move log CSV instead of driving")
	replayRun := flag.String("replay-run", "", "rebuild the map from an archived run ID")
	listRuns := flag.Bool("list-runs", false, "list archived runs and exit")
	deleteRun := flag.String("delete-run", "", "remove an archived run by ID and exit")
	sampleSensor := flag.String("sample", "", "average 20 readings of a sensor (mag, ir, front, right) and exit")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Load configuration
	if err := config.ValidateConfigPath(*cfgPath); err != nil {
		log.Fatalf("invalid config path: %v", err)
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	// Validate and apply CLI overrides
	overrides, err := parseCLIOverrides(*mapNumber, *cargo, cfg.Defaults)
	if err != nil {
		log.Fatalf("invalid CLI override: %v", err)
	}
	applyOverrides(cfg, overrides)

	// Initialize debug system
	debug.Init(cfg.Defaults.DebugLevel)
	debug.Section("Initialization")
	debug.Value("Config path", *cfgPath)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)
	debug.Value("Team", cfg.Mapping.Team)
	debug.Value("Map number", cfg.Defaults.MapNumber)

	var store *archive.Store
	if cfg.Archive.Path != "" {
		debug.Step(1, "Opening run archive")
		store, err = archive.Open(cfg.Archive.Path, debug.Logger())
		if err != nil {
			log.Fatalf("open archive failed: %v", err)
		}
		defer store.Close()
	}

	// Offline modes: no hardware needed
	switch {
	case *listRuns:
		if store == nil {
			log.Fatalf("list runs: archive.path is not configured")
		}
		if err := printRuns(ctx, store, os.Stdout); err != nil {
			log.Fatalf("list runs failed: %v", err)
		}
		return
	case *deleteRun != "":
		if store == nil {
			log.Fatalf("delete run: archive.path is not configured")
		}
		if err := removeRun(ctx, store, *deleteRun, os.Stdout); err != nil {
			log.Fatalf("delete run failed: %v", err)
		}
		return
	case *replayRun != "":
		if store == nil {
			log.Fatalf("replay run: archive.path is not configured")
		}
		l, err := store.LoadLog(ctx, *replayRun)
		if err != nil {
			log.Fatalf("replay run failed: %v", err)
		}
		if err := replay(ctx, cfg, l, os.Stdout); err != nil {
			log.Fatalf("replay run failed: %v", err)
		}
		return
	case *replayFile != "":
		l, err := readMoveLog(*replayFile)
		if err != nil {
			log.Fatalf("replay failed: %v", err)
		}
		if err := replay(ctx, cfg, l, os.Stdout); err != nil {
			log.Fatalf("replay failed: %v", err)
		}
		return
	}

	debug.Value("Mock GPIO", cfg.Defaults.MockGPIO)
	debug.Step(2, "Initializing hardware")
	hw, err := newHardware(cfg)
	if err != nil {
		log.Fatalf("init hardware failed: %v", err)
	}
	defer func() {
		if err := hw.Close(); err != nil {
			log.Printf("closing hardware failed: %v", err)
		}
	}()

	if *sampleSensor != "" {
		if err := runSample(ctx, hw, *sampleSensor, os.Stdout); err != nil {
			log.Fatalf("sample failed: %v", err)
		}
		return
	}

	if port := webPort.port(); port > 0 {
		webAddr := fmt.Sprintf(":%d", port)
		broadcaster := web.NewStatusBroadcaster()
		debug.SetOutput(io.MultiWriter(os.Stdout, web.BroadcastWriter(broadcaster)))

		runFn := func(ctx context.Context, o web.Overrides) (string, error) {
			return executeRun(ctx, applyOverridesToCopy(cfg, o), hw, store, broadcaster, os.Stdout)
		}
		formDefaults := web.FormConfig{
			Team:         cfg.Mapping.Team,
			MapNumber:    cfg.Defaults.MapNumber,
			Cargo:        cfg.Defaults.Cargo,
			CargoOptions: cargoOptions(),
		}
		srv, err := web.NewServer(ctx, webAddr, broadcaster, runFn, formDefaults)
		if err != nil {
			log.Fatalf("web server: %v", err)
		}
		if err := srv.Run(ctx); err != nil {
			log.Fatalf("web server: %v", err)
		}
		return
	}

	{
		// Run once with current config (already has CLI overrides applied).
		// Ctrl-C ends the exploration and builds the map.
		fmt.Print(display.Menu())
		fmt.Println("Exploring, press Ctrl-C to stop and build the map")
		if _, err := executeRun(ctx, cfg, hw, store, nil, os.Stdout); err != nil {
			log.Fatalf("run failed: %v", err)
		}
	}
}

// parseCLIOverrides checks the CLI overrides and resolves them against the
// configured defaults. A zero map number and an empty cargo keep the
// defaults.
func parseCLIOverrides(mapNumber int, cargo string, defaults config.DefaultsConfig) (web.Overrides, error) {
	o := web.Overrides{MapNumber: mapNumber, Cargo: defaults.Cargo}
	switch c := strings.TrimSpace(strings.ToLower(cargo)); c {
	case "":
	case "none", "-1":
		o.Cargo = int(display.NoCargo)
	default:
		parsed, err := display.ParseCargo(c)
		if err != nil {
			return web.Overrides{}, err
		}
		o.Cargo = int(parsed)
	}
	if err := web.ValidateOverrides(o); err != nil {
		return web.Overrides{}, err
	}
	return o, nil
}

// applyOverrides mutates cfg with overrides. A zero map number keeps the
// configured one.
func applyOverrides(cfg *config.Config, overrides web.Overrides) {
	if overrides.MapNumber > 0 {
		cfg.Defaults.MapNumber = overrides.MapNumber
	}
	cfg.Defaults.Cargo = overrides.Cargo
}

// applyOverridesToCopy returns a new config with overrides applied.
func applyOverridesToCopy(baseCfg *config.Config, overrides web.Overrides) *config.Config {
	cfg := *baseCfg
	applyOverrides(&cfg, overrides)
	return &cfg
}

func cargoOptions() []string {
	var names []string
	for _, c := range display.AllCargo() {
		names = append(names, c.String())
	}
	return names
}

// webPortFlag implements flag.Value for -web: 0 = disabled, -web= or -web 8080 → 8080, -web 8980 → 8980.
type webPortFlag struct {
	val         int
	defaultPort int
}

func (w *webPortFlag) String() string {
	if w.val == 0 {
		return "0"
	}
	return strconv.Itoa(w.val)
}

func (w *webPortFlag) Set(s string) error {
	if s == "" {
		w.val = w.defaultPort
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if v <= 0 || v > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", v)
	}
	w.val = v
	return nil
}

func (w *webPortFlag) port() int { return w.val }
