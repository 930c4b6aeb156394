package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mattjoyce/trackhook/internal/config"
	"github.com/mattjoyce/trackhook/internal/doctor"
	"github.com/mattjoyce/trackhook/internal/storage"
	"github.com/mattjoyce/trackhook/internal/tracking"
	"gopkg.in/yaml.v3"
)

func printJSON(v any) int {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render JSON: %v\n", err)
		return 1
	}
	fmt.Println(string(data))
	return 0
}

// --- config ---

func runConfigCheck(args []string) int {
	fs, cf := newFlagSet("check", true)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	configPath, err := resolveConfig(cf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Load error: %v\n", err)
		return 1
	}
	cfg, err := config.Read(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Load error: %v\n", err)
		return 1
	}

	result := doctor.New(cfg).Validate()
	code := 0
	if !result.Valid {
		code = 1
	}

	if cf.jsonOut {
		out, err := doctor.FormatJSON(result)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render JSON: %v\n", err)
			return 1
		}
		fmt.Println(out)
		return code
	}

	if cfg.SourcePath != "" {
		fmt.Printf("Config: %s\n", cfg.SourcePath)
		if sum, err := config.Fingerprint(cfg.SourcePath); err == nil {
			fmt.Printf("BLAKE3: %s\n", sum)
		}
	} else {
		fmt.Println("Config: defaults and environment only")
	}
	fmt.Print(doctor.FormatHuman(result))
	return code
}

func runConfigShow(args []string) int {
	fs, cf := newFlagSet("show", true)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	configPath, err := resolveConfig(cf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Load error: %v\n", err)
		return 1
	}
	cfg, err := config.Read(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Load error: %v\n", err)
		return 1
	}

	redacted := cfg.Redacted()
	if cf.jsonOut {
		return printJSON(redacted)
	}

	data, err := yaml.Marshal(redacted)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render YAML: %v\n", err)
		return 1
	}
	fmt.Print(string(data))
	return 0
}

// --- system ---

type statusReport struct {
	Config string `json:"config"`
	Store  string `json:"store"`
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
}

func runSystemStatus(args []string) int {
	fs, cf := newFlagSet("status", true)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	report := statusReport{}
	cfg, err := loadForTool(cf)
	if err == nil {
		report.Config = cfg.SourcePath
		report.Store = storage.Describe(cfg.Store.DSN)
		var store tracking.Store
		store, err = openStore(context.Background(), cfg)
		if err == nil {
			_ = store.Close()
		}
	}
	report.OK = err == nil
	if err != nil {
		report.Error = err.Error()
	}

	code := 0
	if !report.OK {
		code = 1
	}
	if cf.jsonOut {
		if printJSON(report) != 0 {
			return 1
		}
		return code
	}

	if report.OK {
		fmt.Printf("OK    config %s\n", displayConfigPath(report.Config))
		fmt.Printf("OK    store  %s\n", report.Store)
		return 0
	}
	fmt.Printf("FAIL  %s\n", report.Error)
	return 1
}

func displayConfigPath(path string) string {
	if path == "" {
		return "(defaults and environment)"
	}
	return path
}

func loadForTool(cf *commonFlags) (*config.Config, error) {
	configPath, err := resolveConfig(cf)
	if err != nil {
		return nil, err
	}
	return config.Load(configPath)
}

// --- order ---

type lookupOutput struct {
	OrderKey           string    `json:"orderKey"`
	DisplayOrderNumber string    `json:"displayOrderNumber"`
	TrackingURL        *string   `json:"trackingUrl"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// withLookup runs fn against a Lookup backed by the configured store and
// maps lookup errors to exit codes.
func withLookup(name string, args []string, fn func(ctx context.Context, l *tracking.Lookup, number string, jsonOut bool) error) int {
	fs, cf := newFlagSet(name, true)
	number, err := parseWithPositional(fs, args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if number == "" {
		fmt.Fprintf(os.Stderr, "Usage: trackhook order %s <number> [--config PATH] [--json]\n", name)
		return 1
	}

	cfg, err := loadForTool(cf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Load error: %v\n", err)
		return 1
	}

	ctx := context.Background()
	store, err := openStore(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Store error: %v\n", err)
		return 1
	}
	defer store.Close()

	err = fn(ctx, tracking.NewLookup(store), number, cf.jsonOut)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, tracking.ErrEmptyQuery):
		fmt.Fprintln(os.Stderr, "Order number is required.")
		return 1
	case errors.Is(err, tracking.ErrNotFound):
		fmt.Fprintf(os.Stderr, "Order not found: %s\n", number)
		return 2
	default:
		fmt.Fprintf(os.Stderr, "Lookup failed: %v\n", err)
		return 1
	}
}

func runOrderLookup(args []string) int {
	return withLookup("lookup", args, func(ctx context.Context, l *tracking.Lookup, number string, jsonOut bool) error {
		rec, err := l.Find(ctx, number)
		if err != nil {
			return err
		}
		if jsonOut {
			printJSON(lookupOutput{
				OrderKey:           rec.OrderKey,
				DisplayOrderNumber: rec.DisplayOrderNumber,
				TrackingURL:        rec.TrackingURL,
				UpdatedAt:          rec.UpdatedAt,
			})
			return nil
		}
		url := "(none yet)"
		if rec.TrackingURL != nil && *rec.TrackingURL != "" {
			url = *rec.TrackingURL
		}
		fmt.Printf("Order:    %s\n", rec.DisplayOrderNumber)
		fmt.Printf("Tracking: %s\n", url)
		fmt.Printf("Updated:  %s\n", rec.UpdatedAt.UTC().Format(time.RFC3339))
		return nil
	})
}

func runOrderHistory(args []string) int {
	return withLookup("history", args, func(ctx context.Context, l *tracking.Lookup, number string, jsonOut bool) error {
		rec, entries, err := l.History(ctx, number)
		if err != nil {
			return err
		}
		if jsonOut {
			if entries == nil {
				entries = []tracking.HistoryEntry{}
			}
			printJSON(map[string]any{
				"orderNumber": rec.DisplayOrderNumber,
				"history":     entries,
			})
			return nil
		}
		fmt.Printf("Order: %s (%d update(s))\n", rec.DisplayOrderNumber, len(entries))
		for _, e := range entries {
			fmt.Printf("  %s  %-20s  %s\n", e.RecordedAt.UTC().Format(time.RFC3339), e.SourceEvent, e.TrackingURL)
		}
		return nil
	})
}
