// Package main provides the CLI entrypoint for repertoire.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/repertoire/internal/analysis"
	"github.com/verte-zerg/repertoire/internal/catalog"
	"github.com/verte-zerg/repertoire/internal/config"
	"github.com/verte-zerg/repertoire/internal/drill"
	"github.com/verte-zerg/repertoire/internal/model"
	"github.com/verte-zerg/repertoire/internal/progress"
	"github.com/verte-zerg/repertoire/internal/selection"
	"github.com/verte-zerg/repertoire/internal/stats"
	"github.com/verte-zerg/repertoire/internal/statsui"
	"github.com/verte-zerg/repertoire/internal/store"
	"github.com/verte-zerg/repertoire/internal/trainer"
	"github.com/verte-zerg/repertoire/internal/tui"
)

const (
	defaultMode          = "training"
	defaultCategory      = "book"
	defaultStoreBackend  = store.BackendSQLite
	defaultEvalLines     = 3
	defaultSparringSide  = "black"
	defaultLogLevel      = "warn"
	defaultTrendWindow   = stats.DefaultTrendWindow
	statsPlotHeight      = 10
	defaultRepeatDamping = selection.DefaultRepeatDamping
)

var (
	trainMode          string
	trainCategory      string
	trainCatalog       string
	trainEngine        string
	trainDepth         int
	trainHintPenalty   float64
	trainRepeatDamping float64
	storeBackend       string
	storePath          string
	verbose            bool

	sparSide  string
	sparMoves int

	statsCategory string
	statsSince    string
	statsLast     int
	statsWindow   int
	statsPlain    bool

	catalogCategory string

	resetCategory string
	resetHistory  bool
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "repertoire",
		Short:         "TUI chess opening trainer",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runDrillCmd,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&trainCatalog, "catalog", "", "catalog YAML file (default: built-in)")
	pf.StringVar(&trainEngine, "engine", "", "path to a UCI engine binary")
	pf.IntVar(&trainDepth, "depth", analysis.DefaultDepth, "engine search depth")
	pf.StringVar(&storeBackend, "store", defaultStoreBackend, "store backend (sqlite or badger)")
	pf.StringVar(&storePath, "store-path", "", "store location (default: XDG data dir)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.Flags().StringVar(&trainMode, "mode", defaultMode, "selection mode (training or challenge)")
	rootCmd.Flags().StringVar(&trainCategory, "category", defaultCategory, "deck to drill (book or trap)")
	rootCmd.Flags().Float64Var(&trainHintPenalty, "hint-penalty", drill.DefaultHintPenalty, "mistakes charged per hint")
	rootCmd.Flags().Float64Var(&trainRepeatDamping, "repeat-damping", defaultRepeatDamping, "challenge weight multiplier for the last shown variation (0-1]")

	rootCmd.AddCommand(newSparCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newCatalogCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newResetCmd())

	return rootCmd
}

// app holds the components shared by every subcommand.
type app struct {
	cfg      model.Config
	logger   *slog.Logger
	attempts *progress.Attempts
	deck     *progress.Deck
	catalog  *catalog.Catalog
	trainer  *trainer.Trainer
	session  *analysis.Session

	closers []func() error
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logErrf("failed to shut down: %v\n", err)
		}
	}
}

// loadConfig merges the config file under the flags of cmd and validates the result.
func loadConfig(cmd *cobra.Command) (model.Config, config.FileConfig, error) {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return model.Config{}, fileCfg, fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "mode", &trainMode, fileCfg.Trainer.Mode)
	applyStringConfig(cmd, "category", &trainCategory, fileCfg.Trainer.Category)
	applyStringConfig(cmd, "catalog", &trainCatalog, fileCfg.Trainer.Catalog)
	applyFloatConfig(cmd, "hint-penalty", &trainHintPenalty, fileCfg.Selection.HintPenalty)
	applyFloatConfig(cmd, "repeat-damping", &trainRepeatDamping, fileCfg.Selection.RepeatDamping)
	applyStringConfig(cmd, "engine", &trainEngine, fileCfg.Engine.Path)
	applyIntConfig(cmd, "depth", &trainDepth, fileCfg.Engine.Depth)
	applyStringConfig(cmd, "store", &storeBackend, fileCfg.Store.Backend)
	applyStringConfig(cmd, "store-path", &storePath, fileCfg.Store.Path)
	applyStringConfig(cmd, "side", &sparSide, fileCfg.Sparring.Player)
	applyIntConfig(cmd, "moves", &sparMoves, fileCfg.Sparring.Moves)

	mode, err := model.ParseMode(trainMode)
	if err != nil {
		return model.Config{}, fileCfg, fmt.Errorf("--mode: %w", err)
	}
	category, err := model.ParseCategory(trainCategory)
	if err != nil {
		return model.Config{}, fileCfg, fmt.Errorf("--category: %w", err)
	}
	side, err := model.ParseSide(sparSide)
	if err != nil {
		return model.Config{}, fileCfg, fmt.Errorf("--side: %w", err)
	}

	cfg := model.Config{
		Mode:          mode,
		Category:      category,
		CatalogPath:   trainCatalog,
		RepeatDamping: trainRepeatDamping,
		HintPenalty:   trainHintPenalty,
		Engine: model.EngineConfig{
			Path:             trainEngine,
			Depth:            trainDepth,
			EvalLines:        intOr(fileCfg.Engine.EvalLines, defaultEvalLines),
			StreamLines:      intOr(fileCfg.Engine.StreamLines, analysis.DefaultStreamLines),
			StreamMoveTimeMs: intOr(fileCfg.Engine.StreamMoveTimeMs, int(analysis.DefaultStreamMoveTime/time.Millisecond)),
			ThrottleMs:       intOr(fileCfg.Engine.ThrottleMs, int(analysis.DefaultThrottle/time.Millisecond)),
			EvalTimeoutMs:    intOr(fileCfg.Engine.EvalTimeoutMs, int(analysis.DefaultEvalTimeout/time.Millisecond)),
			InitTimeoutMs:    intOr(fileCfg.Engine.InitTimeoutMs, int(analysis.DefaultInitTimeout/time.Millisecond)),
		},
		Sparring: model.SparringConfig{
			Moves:       sparMoves,
			StabilizeMs: intOr(fileCfg.Sparring.StabilizeMs, int(drill.DefaultStabilize/time.Millisecond)),
			PlayerSide:  side,
		},
		Store: model.StoreConfig{
			Backend: strings.ToLower(strings.TrimSpace(storeBackend)),
			Path:    storePath,
		},
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = config.DefaultStorePath(cfg.Store.Backend)
	}
	if err := validateConfig(cfg); err != nil {
		return model.Config{}, fileCfg, err
	}
	return cfg, fileCfg, nil
}

// openApp wires storage, catalog and selection. The engine is started only when withEngine is set.
func openApp(cmd *cobra.Command, withEngine bool) (*app, error) {
	cfg, fileCfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg}
	logger, closeLog, err := openLogger(fileCfg.Log)
	if err != nil {
		return nil, err
	}
	a.logger = logger
	a.closers = append(a.closers, closeLog)

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	a.catalog = cat

	kv, err := store.Open(store.Config{Backend: cfg.Store.Backend, Path: cfg.Store.Path, Logger: logger})
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	a.closers = append(a.closers, kv.Close)
	a.attempts = progress.NewAttempts(kv, logger)
	a.deck = progress.NewDeck(kv, logger)

	selector := selection.New(cat, a.attempts, a.deck, selection.Options{
		RepeatDamping: cfg.RepeatDamping,
		Logger:        logger,
	})
	a.trainer = trainer.New(a.attempts, a.deck, selector, logger)

	if withEngine {
		a.session = analysis.Open(cmd.Context(), cfg.Engine.Path, sessionOptions(cfg.Engine, logger))
		a.closers = append(a.closers, a.session.Close)
	}
	return a, nil
}

func sessionOptions(ec model.EngineConfig, logger *slog.Logger) analysis.Options {
	return analysis.Options{
		Depth:          ec.Depth,
		StreamLines:    ec.StreamLines,
		StreamMoveTime: time.Duration(ec.StreamMoveTimeMs) * time.Millisecond,
		Throttle:       time.Duration(ec.ThrottleMs) * time.Millisecond,
		EvalTimeout:    time.Duration(ec.EvalTimeoutMs) * time.Millisecond,
		InitTimeout:    time.Duration(ec.InitTimeoutMs) * time.Millisecond,
		Logger:         logger,
	}
}

func (a *app) tuiOptions() tui.Options {
	return tui.Options{
		Config:   a.cfg,
		Trainer:  a.trainer,
		Session:  a.session,
		DeckSize: a.catalog.Count,
		Logger:   a.logger,
	}
}

func runDrillCmd(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.close()
	if !a.session.Ready() {
		logErrln("engine unavailable; drilling without analysis (set --engine or [engine] path)")
	}
	program := tea.NewProgram(tui.NewModel(a.tuiOptions()), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

func newSparCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "spar",
		Short: "Play an open drill against the engine",
		Args:  cobra.NoArgs,
		RunE:  runSparCmd,
	}
	cmd.Flags().StringVar(&sparSide, "side", defaultSparringSide, "side you play (white or black)")
	cmd.Flags().IntVar(&sparMoves, "moves", drill.DefaultSparringMoves, "accepted moves to finish a game")
	return cmd
}

func runSparCmd(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.close()
	if !a.session.Ready() {
		return fmt.Errorf("sparring needs a running engine (set --engine or [engine] path in %s)", config.DefaultConfigPath())
	}
	program := tea.NewProgram(tui.NewSparringModel(a.tuiOptions()), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run sparring TUI: %w", err)
	}
	return nil
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show stats",
		Args:  cobra.NoArgs,
		RunE:  runStatsCmd,
	}
	cmd.Flags().StringVar(&statsCategory, "category", "", "category filter (book or trap)")
	cmd.Flags().StringVar(&statsSince, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&statsLast, "last", 0, "limit to last N attempts")
	cmd.Flags().IntVar(&statsWindow, "window", defaultTrendWindow, "moving average window for the duration trend")
	cmd.Flags().BoolVar(&statsPlain, "plain", false, "print a text report instead of the TUI")
	return cmd
}

func parseStatsConfig() (model.StatsConfig, error) {
	cfg := model.StatsConfig{Last: statsLast, TrendWindow: statsWindow}
	if statsCategory != "" {
		category, err := model.ParseCategory(statsCategory)
		if err != nil {
			return model.StatsConfig{}, fmt.Errorf("--category: %w", err)
		}
		cfg.Category = category
	}
	if statsSince != "" {
		parsed, err := time.ParseInLocation("2006-01-02", statsSince, time.Local)
		if err != nil {
			return model.StatsConfig{}, fmt.Errorf("invalid --since value: %w", err)
		}
		cfg.Since = &parsed
	}
	if cfg.Last < 0 {
		return model.StatsConfig{}, fmt.Errorf("--last must be >= 0")
	}
	if cfg.TrendWindow < 1 {
		return model.StatsConfig{}, fmt.Errorf("--window must be >= 1")
	}
	return cfg, nil
}

func runStatsCmd(cmd *cobra.Command, _ []string) error {
	statsCfg, err := parseStatsConfig()
	if err != nil {
		return err
	}
	a, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.close()

	if statsPlain {
		report, err := stats.BuildReport(cmd.Context(), a.attempts, statsCfg)
		if err != nil {
			return fmt.Errorf("failed to build report: %w", err)
		}
		return writePlainStats(cmd.OutOrStdout(), report, statsCfg.TrendWindow, stats.TerminalWidth())
	}

	program := tea.NewProgram(statsui.NewModel(a.attempts, statsCfg), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run stats TUI: %w", err)
	}
	return nil
}

func writePlainStats(w io.Writer, report stats.Report, window, width int) error {
	if err := stats.RenderSummary(w, report.Summary); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if report.Summary.Attempts == 0 {
		return nil
	}
	steps := []func() error{
		func() error { return stats.RenderOpenings(w, report.Openings) },
		func() error { return stats.RenderWeak(w, report.Weak) },
		func() error { return stats.RenderHistory(w, report.Recent) },
		func() error { return stats.RenderTrend(w, report.Durations, window, width, statsPlotHeight, false) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List catalog variations",
		Args:  cobra.NoArgs,
		RunE:  runCatalogCmd,
	}
	cmd.Flags().StringVar(&catalogCategory, "category", "", "only list one category (book or trap)")
	return cmd
}

func runCatalogCmd(cmd *cobra.Command, _ []string) error {
	categories := model.Categories
	if catalogCategory != "" {
		category, err := model.ParseCategory(catalogCategory)
		if err != nil {
			return fmt.Errorf("--category: %w", err)
		}
		categories = []model.Category{category}
	}
	a, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.close()

	attempts, err := a.attempts.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to load attempts: %w", err)
	}
	out := cmd.OutOrStdout()
	for _, category := range categories {
		variations, err := a.catalog.ByCategory(category)
		if err != nil && !errors.Is(err, catalog.ErrEmptyCategory) {
			return err
		}
		if err := stats.RenderCatalog(out, category, variations, attempts); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func newResetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear deck progress or training history",
		Args:  cobra.NoArgs,
		RunE:  runResetCmd,
	}
	cmd.Flags().StringVar(&resetCategory, "category", "", "restart the deck cycle of a category (book or trap)")
	cmd.Flags().BoolVar(&resetHistory, "history", false, "delete every recorded attempt")
	return cmd
}

func runResetCmd(cmd *cobra.Command, _ []string) error {
	if resetCategory == "" && !resetHistory {
		return fmt.Errorf("nothing to reset: pass --category or --history")
	}
	var category model.Category
	if resetCategory != "" {
		parsed, err := model.ParseCategory(resetCategory)
		if err != nil {
			return fmt.Errorf("--category: %w", err)
		}
		category = parsed
	}
	a, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()
	if category != "" {
		if err := a.trainer.ResetDeck(ctx, category); err != nil {
			return fmt.Errorf("failed to reset deck: %w", err)
		}
		logErrf("Cleared %s deck progress\n", category)
	}
	if resetHistory {
		if err := a.trainer.ClearHistory(ctx); err != nil {
			return fmt.Errorf("failed to clear history: %w", err)
		}
		logErrln("Cleared training history")
	}
	return nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := config.WriteFileAtomic(path, []byte(defaultConfigTemplate())); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

// openLogger sends diagnostics to a file because the TUI owns the terminal.
func openLogger(lc config.LogConfig) (*slog.Logger, func() error, error) {
	levelName := defaultLogLevel
	if lc.Level != nil {
		levelName = *lc.Level
	}
	if verbose {
		levelName = "debug"
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(levelName)); err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", levelName, err)
	}
	path := config.DefaultLogPath()
	if lc.File != nil && *lc.File != "" {
		path = *lc.File
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: level}))
	return logger, f.Close, nil
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if flag := cmd.Flags().Lookup(name); flag == nil || flag.Changed {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if flag := cmd.Flags().Lookup(name); flag == nil || flag.Changed {
		return
	}
	*target = *value
}

func applyFloatConfig(cmd *cobra.Command, name string, target, value *float64) {
	if value == nil {
		return
	}
	if flag := cmd.Flags().Lookup(name); flag == nil || flag.Changed {
		return
	}
	*target = *value
}

func intOr(value *int, fallback int) int {
	if value == nil {
		return fallback
	}
	return *value
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# repertoire configuration
# Uncomment a value to enable it. CLI flags override config values.

[trainer]
# mode = %q            # training or challenge
# category = %q            # book or trap
# catalog = ""               # Custom catalog YAML (default: built-in)

[selection]
# repeat-damping = %.1f       # Challenge weight multiplier for the last shown variation
# hint-penalty = %.1f         # Mistakes charged per hint

[engine]
# path = "stockfish"         # UCI engine binary
# depth = %d                 # Search depth for one-shot evaluations
# eval-lines = %d             # Candidate moves requested for the opponent
# stream-lines = %d           # Candidate moves shown while analyzing
# stream-movetime-ms = %d  # Length of a continuous analysis
# throttle-ms = %d           # Minimum gap between analysis updates
# eval-timeout-ms = %d    # Safety ceiling for one-shot evaluations
# init-timeout-ms = %d     # Engine handshake timeout

[sparring]
# moves = %d                  # Accepted moves to finish a game
# stabilize-ms = %d        # Wait before accepting moves against a streaming candidate set
# player = %q           # Side you play

[store]
# backend = %q         # sqlite or badger
# path = ""                  # Default: XDG data dir

[log]
# level = %q              # debug, info, warn or error
# file = ""                  # Default: XDG state dir
`,
		defaultMode,
		defaultCategory,
		defaultRepeatDamping,
		drill.DefaultHintPenalty,
		analysis.DefaultDepth,
		defaultEvalLines,
		analysis.DefaultStreamLines,
		int(analysis.DefaultStreamMoveTime/time.Millisecond),
		int(analysis.DefaultThrottle/time.Millisecond),
		int(analysis.DefaultEvalTimeout/time.Millisecond),
		int(analysis.DefaultInitTimeout/time.Millisecond),
		drill.DefaultSparringMoves,
		int(drill.DefaultStabilize/time.Millisecond),
		defaultSparringSide,
		defaultStoreBackend,
		defaultLogLevel,
	)
}

func validateConfig(cfg model.Config) error {
	if cfg.HintPenalty < 0 || cfg.HintPenalty > 1 {
		return fmt.Errorf("--hint-penalty must be between 0 and 1")
	}
	if cfg.RepeatDamping <= 0 || cfg.RepeatDamping > 1 {
		return fmt.Errorf("--repeat-damping must be in (0, 1]")
	}
	if cfg.Engine.Depth <= 0 {
		return fmt.Errorf("--depth must be > 0")
	}
	if cfg.Engine.EvalLines <= 0 || cfg.Engine.StreamLines <= 0 {
		return fmt.Errorf("engine eval-lines and stream-lines must be > 0")
	}
	if cfg.Engine.StreamMoveTimeMs <= 0 || cfg.Engine.ThrottleMs <= 0 ||
		cfg.Engine.EvalTimeoutMs <= 0 || cfg.Engine.InitTimeoutMs <= 0 {
		return fmt.Errorf("engine timings must be > 0")
	}
	if cfg.Sparring.Moves <= 0 {
		return fmt.Errorf("--moves must be > 0")
	}
	if cfg.Sparring.StabilizeMs < 0 {
		return fmt.Errorf("sparring stabilize-ms must be >= 0")
	}
	switch cfg.Store.Backend {
	case store.BackendSQLite, store.BackendBadger:
	default:
		return fmt.Errorf("--store must be sqlite or badger")
	}
	return nil
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func logErrln(args ...any) {
	if _, err := fmt.Fprintln(os.Stderr, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
