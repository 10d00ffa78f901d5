package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cjeanneret/MazeGo/internal/archive"
	"github.com/cjeanneret/MazeGo/internal/config"
	"github.com/cjeanneret/MazeGo/internal/debug"
	"github.com/cjeanneret/MazeGo/internal/hw/display"
	"github.com/cjeanneret/MazeGo/internal/logic/mapping"
	"github.com/cjeanneret/MazeGo/internal/logic/movelog"
	"github.com/cjeanneret/MazeGo/internal/logic/navigation"
	"github.com/cjeanneret/MazeGo/internal/web"
)

// navParams converts the navigation and PID sections of cfg.
func navParams(cfg *config.Config) navigation.Params {
	n := cfg.Navigation
	return navigation.Params{
		SpeedDPS:          n.SpeedDPS,
		Tick:              cfg.Tick(),
		NearWall:          n.NearWallCM,
		FrontClearance:    n.FrontClearanceCM,
		MagneticThreshold: n.MagneticThreshold,
		IRThreshold:       n.IRThreshold,
		OpenCornerDrive:   cfg.OpenCornerDrive(),
		OpenCornerTurn:    cfg.OpenCornerTurn(),
		Settle:            cfg.Settle(),
		Gains: navigation.Gains{
			KP:       cfg.PID.KP,
			KD:       cfg.PID.KD,
			KI:       cfg.PID.KI,
			Period:   cfg.Tick(),
			Target:   cfg.PID.TargetCM,
			Stable:   cfg.PID.StableCM,
			FarError: cfg.PID.FarError,
		},
	}
}

func estimator(cfg *config.Config) navigation.TimedEstimator {
	return navigation.TimedEstimator{
		TickIncrement:   cfg.Navigation.TickIncrement,
		CornerIncrement: cfg.Navigation.CornerIncrement,
		SettleIncrement: cfg.Navigation.SettleIncrement,
	}
}

func header(cfg *config.Config) mapping.Header {
	return mapping.Header{
		Team:      cfg.Mapping.Team,
		MapNumber: cfg.Defaults.MapNumber,
		Unit:      cfg.Mapping.Unit,
		Notes:     cfg.Mapping.Notes,
	}
}

func cargoLabel(c display.Cargo) string {
	if !c.Valid() {
		return "none"
	}
	return c.String()
}

func movesPath(cfg *config.Config) string {
	return filepath.Join(cfg.Mapping.OutputDir, fmt.Sprintf("team%s_moves.csv", cfg.Mapping.Team))
}

func plotPath(cfg *config.Config) string {
	return filepath.Join(cfg.Mapping.OutputDir, fmt.Sprintf("team%s_map.png", cfg.Mapping.Team))
}

func plotTitle(cfg *config.Config) string {
	return fmt.Sprintf("Team %s, map %d", cfg.Mapping.Team, cfg.Defaults.MapNumber)
}

// executeRun performs one exploration: show the cargo label, follow the
// right wall until ctx is done, then build and export the map. It returns
// the rendered map. b may be nil.
func executeRun(ctx context.Context, cfg *config.Config, hw *hardware, store *archive.Store, b *web.StatusBroadcaster, out io.Writer) (string, error) {
	debug.Section("Run")
	cargo := display.Cargo(cfg.Defaults.Cargo)
	if cargo.Valid() {
		if err := hw.label.Show(ctx, cargo); err != nil {
			return "", fmt.Errorf("show cargo: %w", err)
		}
	}

	params := navParams(cfg)
	debug.PrintStruct("Navigation params", params)
	ctrl := navigation.NewController(hw.drive, hw.sensors, params, navigation.WithEstimator(estimator(cfg)))
	if b != nil {
		ctrl.OnRecord = func(i int, rec movelog.Record) {
			b.BroadcastMove(i, rec.Code.String(), rec.Value)
		}
	}

	started := time.Now()
	l, runErr := ctrl.Run(ctx)
	info := archive.RunInfo{
		Team:       cfg.Mapping.Team,
		MapNumber:  cfg.Defaults.MapNumber,
		Cargo:      cargoLabel(cargo),
		StartedAt:  started,
		FinishedAt: time.Now(),
		UnitLength: cfg.Mapping.UnitLength,
		Err:        runErr,
	}
	debug.Summary(fmt.Sprintf("Exploration finished after %s with %d records",
		info.FinishedAt.Sub(started).Round(time.Millisecond), len(l)))
	if debug.IsEnabled(debug.LevelVerbose) {
		for i, rec := range l {
			debug.Verbose("  %3d  %s", i, rec)
		}
	}

	m, buildErr := mapping.Build(l, cfg.Mapping.UnitLength)
	rendered := ""
	if buildErr == nil {
		rendered = m.Render()
		fmt.Fprint(out, rendered)
		debug.MapSummary(m.Width(), m.Height(), len(m.Hazards()))
	} else {
		debug.Error(buildErr)
	}

	// Exports outlive a cancelled run: Ctrl-C is how an exploration ends.
	id, exportErr := exportRun(context.WithoutCancel(ctx), cfg, l, m, info, store)
	if id != "" {
		debug.Info("Run archived as %s", id)
	}
	return rendered, errors.Join(runErr, buildErr, exportErr)
}

// exportRun writes the move log, the map files and the archive entry
// concurrently. m may be nil when the log could not be mapped; store may
// be nil when archiving is disabled. It returns the archive run ID.
func exportRun(ctx context.Context, cfg *config.Config, l movelog.Log, m *mapping.Map, info archive.RunInfo, store *archive.Store) (string, error) {
	if err := os.MkdirAll(cfg.Mapping.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return saveMoveLog(movesPath(cfg), l)
	})
	if m != nil {
		exportMap(g, cfg, m)
	}

	var id string
	if store != nil {
		g.Go(func() error {
			var err error
			id, err = store.SaveRun(ctx, info, l, m)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}
	return id, nil
}

// exportMap schedules the grid, hazard and plot exports on g.
func exportMap(g *errgroup.Group, cfg *config.Config, m *mapping.Map) {
	h := header(cfg)
	g.Go(func() error {
		path := filepath.Join(cfg.Mapping.OutputDir, mapping.GridFileName(cfg.Mapping.Team))
		if err := mapping.SaveGrid(path, m, h); err != nil {
			return err
		}
		debug.Info("Grid written to %s", path)
		return nil
	})
	g.Go(func() error {
		path := filepath.Join(cfg.Mapping.OutputDir, mapping.HazardFileName(cfg.Mapping.Team))
		if err := mapping.SaveHazards(path, m, h); err != nil {
			return err
		}
		debug.Info("Hazards written to %s", path)
		return nil
	})
	if cfg.Mapping.Plot {
		g.Go(func() error {
			return m.SavePlot(plotPath(cfg), plotTitle(cfg))
		})
	}
}

// replay rebuilds the map of a recorded log and writes its exports.
func replay(ctx context.Context, cfg *config.Config, l movelog.Log, out io.Writer) error {
	debug.Section("Replay")
	m, err := mapping.Build(l, cfg.Mapping.UnitLength)
	if err != nil {
		return err
	}
	fmt.Fprint(out, m.Render())
	debug.MapSummary(m.Width(), m.Height(), len(m.Hazards()))

	if err := os.MkdirAll(cfg.Mapping.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	g, _ := errgroup.WithContext(ctx)
	exportMap(g, cfg, m)
	return g.Wait()
}

func saveMoveLog(path string, l movelog.Log) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := movelog.WriteCSV(f, l); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func readMoveLog(path string) (movelog.Log, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return movelog.ReadCSV(f)
}

// printRuns lists the archived runs, newest first.
func printRuns(ctx context.Context, store *archive.Store, w io.Writer) error {
	runs, err := store.ListRuns(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tTEAM\tMAP\tRECORDS\tSIZE\tERROR")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%dx%d\t%s\n",
			r.ID, r.StartedAt.Format(time.DateTime), r.Team, r.MapNumber, r.Records, r.Width, r.Height, r.Error)
	}
	return tw.Flush()
}

// removeRun deletes an archived run and its records.
func removeRun(ctx context.Context, store *archive.Store, id string, w io.Writer) error {
	if err := store.DeleteRun(ctx, id); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "Deleted run %s\n", id)
	return err
}
