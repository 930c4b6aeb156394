package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/mattjoyce/trackhook/internal/api"
	"github.com/mattjoyce/trackhook/internal/config"
	"github.com/mattjoyce/trackhook/internal/log"
	"github.com/mattjoyce/trackhook/internal/storage"
	"github.com/mattjoyce/trackhook/internal/tracking"
	"github.com/mattjoyce/trackhook/internal/webhook"
)

var (
	version   = "0.1.0-dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

// storePingTimeout bounds the startup and status reachability checks.
const storePingTimeout = 5 * time.Second

func main() {
	os.Exit(runCLI(os.Args[1:]))
}

func runCLI(cliArgs []string) int {
	if len(cliArgs) < 1 {
		printUsage()
		return 1
	}

	cmd := cliArgs[0]
	args := cliArgs[1:]

	switch cmd {
	// --- NOUNS ---
	case "system":
		return runSystemNoun(args)
	case "config":
		return runConfigNoun(args)
	case "order":
		return runOrderNoun(args)

	// --- ROOT ALIASES ---
	case "start":
		return runStart(args)
	case "version", "--version":
		return runVersion(args)
	case "help", "--help", "-h":
		printUsage()
		return 0

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		return 1
	}
}

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

func runVersion(args []string) int {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "Output version metadata as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(os.Stderr, "Usage: trackhook version [--json]")
		return 1
	}

	info := currentVersionInfo()

	if *jsonOut {
		data, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render version JSON: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
		return 0
	}

	fmt.Printf("trackhook %s\n", info.Version)
	fmt.Printf("commit: %s\n", info.Commit)
	fmt.Printf("built_at: %s\n", info.BuildTime)
	return 0
}

func currentVersionInfo() versionInfo {
	info := versionInfo{
		Version:   strings.TrimSpace(version),
		Commit:    "unknown",
		BuildTime: "unknown",
	}
	if info.Version == "" {
		info.Version = "0.0.0-dev"
	}

	commit := strings.TrimSpace(gitCommit)
	if commit == "" || commit == "unknown" {
		commit = strings.TrimSpace(readBuildSetting("vcs.revision"))
	}
	if commit != "" {
		info.Commit = shortenCommit(commit)
	}

	built := strings.TrimSpace(buildDate)
	if built == "" || built == "unknown" {
		built = strings.TrimSpace(readBuildSetting("vcs.time"))
	}
	if t, err := time.Parse(time.RFC3339Nano, built); err == nil {
		info.BuildTime = t.UTC().Format(time.RFC3339)
	}

	return info
}

func shortenCommit(commit string) string {
	if len(commit) <= 12 {
		return commit
	}
	return commit[:12]
}

func readBuildSetting(key string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == key {
			return setting.Value
		}
	}
	return ""
}

func printUsage() {
	fmt.Print(`trackhook - Fulfillment webhook receiver and order tracking lookup

Usage:
  trackhook <noun> <action> [flags]

Core Resources (Nouns):
  system    Service lifecycle and health
  config    Configuration inspection and validation
  order     Tracking records stored for orders

System Commands:
  system start            Start the HTTP service in foreground
  system status           Check config and store reachability

Config Commands:
  config check            Validate configuration and report warnings
  config show             Print the effective configuration (secrets masked)

Order Commands:
  order lookup <number>   Show the tracking URL stored for an order
  order history <number>  Show every tracking update recorded for an order

General:
  version                 Show version information
  help                    Show this help message

Common flags:
  --config PATH           Config file (default: $TRACKHOOK_CONFIG, then ./config.yaml)
  --env-file PATH         Dotenv file loaded before config (default: .env)
`)
}

// --- NOUN DISPATCHERS ---

func runSystemNoun(args []string) int {
	if len(args) < 1 {
		printSystemNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printSystemNounHelp(os.Stdout)
		return 0
	}

	action, actionArgs := args[0], args[1:]
	switch action {
	case "start":
		if hasHelpFlag(actionArgs) {
			printSystemStartHelp()
			return 0
		}
		return runStart(actionArgs)
	case "status":
		if hasHelpFlag(actionArgs) {
			printSystemStatusHelp()
			return 0
		}
		return runSystemStatus(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown system action: %s\n", action)
		return 1
	}
}

func runConfigNoun(args []string) int {
	if len(args) < 1 {
		printConfigNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printConfigNounHelp(os.Stdout)
		return 0
	}

	action, actionArgs := args[0], args[1:]
	switch action {
	case "check":
		if hasHelpFlag(actionArgs) {
			printConfigCheckHelp()
			return 0
		}
		return runConfigCheck(actionArgs)
	case "show":
		if hasHelpFlag(actionArgs) {
			printConfigShowHelp()
			return 0
		}
		return runConfigShow(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n", action)
		return 1
	}
}

func runOrderNoun(args []string) int {
	if len(args) < 1 {
		printOrderNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printOrderNounHelp(os.Stdout)
		return 0
	}

	action, actionArgs := args[0], args[1:]
	switch action {
	case "lookup":
		if hasHelpFlag(actionArgs) {
			printOrderLookupHelp()
			return 0
		}
		return runOrderLookup(actionArgs)
	case "history":
		if hasHelpFlag(actionArgs) {
			printOrderHistoryHelp()
			return 0
		}
		return runOrderHistory(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown order action: %s\n", action)
		return 1
	}
}

func isHelpToken(token string) bool {
	return token == "help" || token == "--help" || token == "-h"
}

func hasHelpFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			return true
		}
	}
	return false
}

func printSystemNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: trackhook system <action>")
	fmt.Fprintln(w, "Actions: start, status")
}

func printConfigNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: trackhook config <action> [flags]")
	fmt.Fprintln(w, "Actions: check, show")
}

func printOrderNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: trackhook order <action> <number> [flags]")
	fmt.Fprintln(w, "Actions: lookup, history")
}

func printSystemStartHelp() {
	fmt.Println("Usage: trackhook system start [--config PATH] [--env-file PATH]")
	fmt.Println("Start the webhook receiver and lookup API in the foreground.")
}

func printSystemStatusHelp() {
	fmt.Println("Usage: trackhook system status [--config PATH] [--env-file PATH] [--json]")
	fmt.Println("Load the configuration and ping the tracking store.")
	fmt.Println("")
	fmt.Println("Exit codes:")
	fmt.Println("  0  Config valid and store reachable")
	fmt.Println("  1  One or more checks failed")
}

func printConfigCheckHelp() {
	fmt.Println("Usage: trackhook config check [--config PATH] [--env-file PATH] [--json]")
	fmt.Println("Report every configuration error and warning. Exit code 1 when invalid.")
}

func printConfigShowHelp() {
	fmt.Println("Usage: trackhook config show [--config PATH] [--env-file PATH] [--json]")
	fmt.Println("Print the effective configuration after env interpolation and overrides.")
}

func printOrderLookupHelp() {
	fmt.Println("Usage: trackhook order lookup <number> [--config PATH] [--env-file PATH] [--json]")
	fmt.Println("Numbers are normalized like storefront queries: \"#1001\", \"1001\" and \"1001.2\" match.")
}

func printOrderHistoryHelp() {
	fmt.Println("Usage: trackhook order history <number> [--config PATH] [--env-file PATH] [--json]")
}

// commonFlags registers the flags every config-consuming command accepts.
type commonFlags struct {
	configPath string
	envFile    string
	jsonOut    bool
}

func newFlagSet(name string, withJSON bool) (*flag.FlagSet, *commonFlags) {
	cf := &commonFlags{}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.StringVar(&cf.configPath, "config", "", "Path to configuration file")
	fs.StringVar(&cf.envFile, "env-file", ".env", "Dotenv file to load before the config")
	if withJSON {
		fs.BoolVar(&cf.jsonOut, "json", false, "Output in structured JSON format")
	}
	return fs, cf
}

// parseWithPositional accepts a single positional argument before or after the flags.
func parseWithPositional(fs *flag.FlagSet, args []string) (string, error) {
	var positional string
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		positional, args = args[0], args[1:]
	}
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if positional == "" && fs.NArg() > 0 {
		positional = fs.Arg(0)
	}
	return positional, nil
}

// resolveConfig loads the dotenv file and discovers the config path.
func resolveConfig(cf *commonFlags) (string, error) {
	if err := config.LoadDotEnv(cf.envFile); err != nil {
		return "", err
	}
	return config.Discover(cf.configPath)
}

// openStore opens and pings the configured store.
func openStore(ctx context.Context, cfg *config.Config) (tracking.Store, error) {
	store, err := storage.Open(ctx, cfg.Store.DSN)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", storage.Describe(cfg.Store.DSN), err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, storePingTimeout)
	defer cancel()
	if err := store.Ping(pingCtx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("ping store %s: %w", storage.Describe(cfg.Store.DSN), err)
	}
	return store, nil
}

func runStart(args []string) int {
	fs, cf := newFlagSet("start", false)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	configPath, err := resolveConfig(cf)
	if err != nil {
		log.Error("failed to resolve configuration", "error", err)
		return 1
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		// Logged at ERROR so a missing secret or DSN is loud in service logs.
		log.Error("failed to load config", "config", configPath, "error", err)
		return 1
	}

	log.Setup(cfg.Service.LogLevel, cfg.Service.LogFormat)
	logger := log.WithComponent("main")
	logger.Info("trackhook starting",
		"version", version,
		"config", cfg.SourcePath,
		"store", storage.Describe(cfg.Store.DSN),
	)

	webhookConfig, err := webhook.FromGlobalConfig(cfg.Webhook)
	if err != nil {
		logger.Error("failed to configure webhook", "error", err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error("tracking store unavailable", "error", err)
		return 1
	}
	defer store.Close()
	logger.Info("tracking store opened", "store", storage.Describe(cfg.Store.DSN), "history", cfg.Store.History)

	reconciler := tracking.NewReconciler(store, log.WithComponent("reconciler"), tracking.ReconcilerOptions{
		RecordHistory: cfg.Store.History,
	})
	hook := webhook.NewHandler(webhookConfig, reconciler, log.WithComponent("webhook"))
	apiServer := api.New(api.Config{
		Listen:         cfg.Server.Listen,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		AllowedOrigins: cfg.Server.CORS.AllowedOrigins,
	}, tracking.NewLookup(store), store, hook, log.WithComponent("api"))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		if err := apiServer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("api: %w", err)
		}
		close(errCh)
	}()

	logger.Info("trackhook running (press Ctrl+C to stop)")

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
		if err := <-errCh; err != nil {
			logger.Error("shutdown failed", "error", err)
			return 1
		}
	case err := <-errCh:
		if err != nil {
			logger.Error("component failed", "error", err)
			return 1
		}
	}

	logger.Info("trackhook stopped")
	return 0
}
