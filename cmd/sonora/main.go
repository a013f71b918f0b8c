// Command sonora is a thin, illustrative command-line front end over the
// engine's public Go API. Argument parsing is intentionally minimal — it
// exists to drive the engine end-to-end and give the ambient config and
// logging stack a real caller, not to be a polished user interface.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/sonora-audio/sonora/internal/config"
	"github.com/sonora-audio/sonora/internal/dsp"
	"github.com/sonora-audio/sonora/internal/engine"
	"github.com/sonora-audio/sonora/internal/playback"
	"github.com/sonora-audio/sonora/internal/store"
)

var Version = "dev"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	debug := os.Getenv("SONORA_DEBUG") == "1"
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("[MAIN] failed to load config: %v", err)
	}
	if debug {
		cfg.Debug = true
	}

	st, err := store.Open(cfg.SonoraDBPath(), cfg.Store.EnableWAL, cfg.Debug)
	if err != nil {
		log.Fatalf("[MAIN] failed to open store: %v", err)
	}
	defer st.Close()

	eng := engine.New(cfg, st)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := eng.Start(ctx); err != nil {
		log.Fatalf("[MAIN] failed to start engine: %v", err)
	}
	setupGracefulShutdown(cancel, eng)

	if err := dispatch(ctx, eng, os.Args[1], os.Args[2:]); err != nil {
		log.Printf("[MAIN] %v", err)
		_ = eng.Shutdown(context.Background())
		os.Exit(1)
	}

	_ = eng.Shutdown(context.Background())
}

func setupGracefulShutdown(cancel context.CancelFunc, eng *engine.Engine) {
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c
		log.Printf("[MAIN] received signal, shutting down")
		cancel()
		_ = eng.Shutdown(context.Background())
		os.Exit(0)
	}()
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: sonora <command> [args]

commands:
  play <file|id>        play a library item by id, or import+play a file
  import <dir>          scan a directory and import recognized audio files
  list                   list non-deleted library items
  search <query>         fuzzy/substring search over the library
  now                    print the current playback state
  pause
  resume
  stop
  next
  prev
  seek <seconds>
  volume <0-100>
  queue <id>...          replace the queue with the given media ids
  shuffle <on|off>
  repeat <off|all|one>
  history [limit]
  stats <id>`)
}

func dispatch(ctx context.Context, eng *engine.Engine, cmd string, args []string) error {
	switch cmd {
	case "play":
		return cmdPlay(ctx, eng, args)
	case "import":
		return cmdImport(ctx, eng, args)
	case "list":
		return cmdList(ctx, eng)
	case "search":
		return cmdSearch(ctx, eng, args)
	case "now":
		return cmdNow(eng)
	case "pause":
		return eng.HandleCommand(ctx, playback.Command{Action: playback.ActionPause})
	case "resume":
		return eng.HandleCommand(ctx, playback.Command{Action: playback.ActionResume})
	case "stop":
		return eng.HandleCommand(ctx, playback.Command{Action: playback.ActionStop})
	case "next":
		return eng.Advance(ctx)
	case "prev":
		return eng.Previous(ctx)
	case "seek":
		return cmdSeek(ctx, eng, args)
	case "volume":
		return cmdVolume(ctx, eng, args)
	case "queue":
		return eng.SetQueue(ctx, args, 0)
	case "shuffle":
		return cmdShuffle(ctx, eng, args)
	case "repeat":
		return cmdRepeat(ctx, eng, args)
	case "history":
		return cmdHistory(ctx, eng, args)
	case "stats":
		return cmdStats(ctx, eng, args)
	case "eq":
		return cmdEQ(ctx, eng, args)
	default:
		usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func cmdPlay(ctx context.Context, eng *engine.Engine, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("play: requires a file path or library id")
	}
	target := args[0]

	id := target
	if info, err := os.Stat(target); err == nil && !info.IsDir() {
		imported, err := eng.ImportFile(ctx, target)
		if err != nil {
			return fmt.Errorf("play: import %s: %w", target, err)
		}
		if !imported {
			// Already in the library (or unsupported extension); fall
			// through to treating it as an id below if it wasn't audio.
		}
		id = libraryIDForPath(ctx, eng, target)
	}

	if err := eng.HandleCommand(ctx, playback.Command{Action: playback.ActionPlay, ID: id}); err != nil {
		return fmt.Errorf("play: %w", err)
	}

	return watchProgress(eng)
}

// libraryIDForPath re-derives the stable library id the importer would
// have assigned, by scanning the library for a matching path. This
// keeps the CLI decoupled from the importer's internal id scheme.
func libraryIDForPath(ctx context.Context, eng *engine.Engine, path string) string {
	items, err := eng.ListLibrary(ctx)
	if err != nil {
		return path
	}
	for _, it := range items {
		if it.Path == path {
			return it.ID
		}
	}
	return path
}

func watchProgress(eng *engine.Engine) error {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		state := eng.PlaybackState()
		if !state.Playing {
			return nil
		}
		fmt.Printf("\r%s - %s  %s / %s   ",
			state.Artist, state.Title,
			formatMs(state.PositionMs), formatMs(state.DurationMs))
	}
	return nil
}

func formatMs(ms int64) string {
	s := ms / 1000
	return fmt.Sprintf("%02d:%02d", s/60, s%60)
}

func cmdImport(ctx context.Context, eng *engine.Engine, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("import: requires a directory")
	}
	imported, skipped, err := eng.ImportDir(ctx, args[0])
	fmt.Printf("imported=%d skipped=%d\n", imported, skipped)
	return err
}

func cmdList(ctx context.Context, eng *engine.Engine) error {
	items, err := eng.ListLibrary(ctx)
	if err != nil {
		return err
	}
	for _, it := range items {
		fmt.Printf("%s\t%s - %s\n", it.ID, it.Artist, it.Title)
	}
	return nil
}

func cmdSearch(ctx context.Context, eng *engine.Engine, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("search: requires a query")
	}
	results, err := eng.Search(ctx, args[0])
	if err != nil {
		return err
	}
	for _, it := range results {
		fmt.Printf("%s\t%s - %s\n", it.ID, it.Artist, it.Title)
	}
	return nil
}

func cmdNow(eng *engine.Engine) error {
	state := eng.PlaybackState()
	fmt.Printf("playing=%v %s - %s  %s / %s  volume=%.2f shuffle=%v repeat=%s\n",
		state.Playing, state.Artist, state.Title,
		formatMs(state.PositionMs), formatMs(state.DurationMs),
		state.Volume, state.Shuffle, state.Repeat)
	return nil
}

func cmdSeek(ctx context.Context, eng *engine.Engine, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("seek: requires seconds")
	}
	secs, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("seek: %w", err)
	}
	return eng.HandleCommand(ctx, playback.Command{Action: playback.ActionSeek, PositionMs: int64(secs * 1000)})
}

func cmdVolume(ctx context.Context, eng *engine.Engine, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("volume: requires 0-100")
	}
	v, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("volume: %w", err)
	}
	return eng.HandleCommand(ctx, playback.Command{Action: playback.ActionSetVolume, Volume: float64(v) / 100})
}

func cmdShuffle(ctx context.Context, eng *engine.Engine, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("shuffle: requires on|off")
	}
	return eng.HandleCommand(ctx, playback.Command{Action: playback.ActionSetShuffle, Enabled: args[0] == "on"})
}

func cmdRepeat(ctx context.Context, eng *engine.Engine, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("repeat: requires off|all|one")
	}
	return eng.HandleCommand(ctx, playback.Command{Action: playback.ActionSetRepeat, Mode: args[0]})
}

func cmdHistory(ctx context.Context, eng *engine.Engine, args []string) error {
	limit := 20
	if len(args) >= 1 {
		if n, err := strconv.Atoi(args[0]); err == nil {
			limit = n
		}
	}
	entries, err := eng.History(ctx, limit)
	if err != nil {
		return err
	}
	for _, h := range entries {
		fmt.Printf("%d\t%s\t%dms\n", h.PlayedAtMs, h.MediaID, h.DurationPlayedMs)
	}
	return nil
}

func cmdStats(ctx context.Context, eng *engine.Engine, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("stats: requires an id")
	}
	stats, ok, err := eng.Stats(ctx, args[0])
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("no stats recorded")
		return nil
	}
	fmt.Printf("play_count=%d total_played_ms=%d last_played_ms=%d\n",
		stats.PlayCount, stats.TotalPlayedMs, stats.LastPlayedMs)
	return nil
}

func cmdEQ(ctx context.Context, eng *engine.Engine, args []string) error {
	if len(args) == 0 {
		return eng.SetEQ(ctx, dsp.ChainSpec{})
	}
	// Minimal form: "peaking <freq> <q> <gain_db>" or "gain <db>".
	switch args[0] {
	case "gain":
		if len(args) < 2 {
			return fmt.Errorf("eq gain: requires gain_db")
		}
		gain, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return err
		}
		return eng.SetEQ(ctx, dsp.ChainSpec{Filters: []dsp.FilterSpec{{Type: "gain", GainDB: gain}}})
	case "peaking":
		if len(args) < 4 {
			return fmt.Errorf("eq peaking: requires freq q gain_db")
		}
		freq, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return err
		}
		q, err := strconv.ParseFloat(args[2], 64)
		if err != nil {
			return err
		}
		gain, err := strconv.ParseFloat(args[3], 64)
		if err != nil {
			return err
		}
		return eng.SetEQ(ctx, dsp.ChainSpec{Filters: []dsp.FilterSpec{{Type: "peaking", Freq: freq, Q: q, GainDB: gain}}})
	default:
		return fmt.Errorf("eq: unknown filter type %q", args[0])
	}
}
