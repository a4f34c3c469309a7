// Package config loads the three tuned constants the protocol runs on
// (the driver's own settings are flags of cmd/raymond, not loaded here),
// with flags overriding a .env file overriding compiled-in defaults —
// the three-tier precedence
// the teacher's config.go constants and cmd/acquire_lock_client.go's
// flag.Parse() gesture toward without ever actually wiring together,
// and the .env loading mechanism zabroso-SD-tarea-3's main.go uses for
// its own node addresses.
package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Defaults mirror the original Java driver's constants: BOOTSTRAP_DELAY
// was 5000ms there; CriticalSectionTime and CrashTime are this module's
// own choices, with CrashTime held well above MinCrashTime so the
// quiescence assumption in SPEC_FULL.md §4.2 holds for the in-process
// transport's delivery latency.
const (
	DefaultBootstrapDelay      = 5000 * time.Millisecond
	DefaultCriticalSectionTime = 150 * time.Millisecond
	DefaultCrashTime           = 500 * time.Millisecond

	// MinCrashTime stands in for "exceeds worst-case in-flight message
	// delivery latency" — the in-process transport delivers in
	// microseconds, so this is a generous, not a tight, bound.
	MinCrashTime = 50 * time.Millisecond
)

// Config holds the tuned constants every node is constructed with.
type Config struct {
	BootstrapDelay      time.Duration
	CriticalSectionTime time.Duration
	CrashTime           time.Duration
}

// Default returns the compiled-in defaults.
func Default() Config {
	return Config{
		BootstrapDelay:      DefaultBootstrapDelay,
		CriticalSectionTime: DefaultCriticalSectionTime,
		CrashTime:           DefaultCrashTime,
	}
}

// Load registers -bootstrap-delay, -cs-time, -crash-time and -env-file
// on fs, parses args, optionally loads -env-file first (flags still
// win, since flag.Parse runs after the env values seed the defaults),
// and validates CrashTime against MinCrashTime.
func Load(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := Default()

	var envFile string
	fs.StringVar(&envFile, "env-file", "", "optional .env file to load tuned constants from")

	// A first pass just to find -env-file before the real flag values
	// (which must be allowed to override it) are registered against cfg.
	probe := flag.NewFlagSet(fs.Name(), flag.ContinueOnError)
	probe.SetOutput(os.Stderr)
	probe.StringVar(&envFile, "env-file", "", "")
	// Every other flag fs or this function accepts is registered on the
	// probe too, so its Parse does not stop at the first one it lacks.
	fs.VisitAll(func(f *flag.Flag) {
		if f.Name != "env-file" {
			probe.Var(f.Value, f.Name, "")
		}
	})
	var discard time.Duration
	probe.DurationVar(&discard, "bootstrap-delay", 0, "")
	probe.DurationVar(&discard, "cs-time", 0, "")
	probe.DurationVar(&discard, "crash-time", 0, "")
	_ = probe.Parse(args)

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return Config{}, fmt.Errorf("config: loading %s: %w", envFile, err)
		}
		applyEnv(&cfg)
	}

	fs.DurationVar(&cfg.BootstrapDelay, "bootstrap-delay", cfg.BootstrapDelay, "delay before the starter initializes the tree")
	fs.DurationVar(&cfg.CriticalSectionTime, "cs-time", cfg.CriticalSectionTime, "simulated critical-section duration")
	fs.DurationVar(&cfg.CrashTime, "crash-time", cfg.CrashTime, "simulated crash duration")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if cfg.CrashTime < MinCrashTime {
		return Config{}, fmt.Errorf("config: crash-time %s is below the minimum %s required to mask in-flight messages", cfg.CrashTime, MinCrashTime)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v, ok := lookupDuration("RAYMOND_BOOTSTRAP_DELAY"); ok {
		cfg.BootstrapDelay = v
	}
	if v, ok := lookupDuration("RAYMOND_CRITICAL_SECTION_TIME"); ok {
		cfg.CriticalSectionTime = v
	}
	if v, ok := lookupDuration("RAYMOND_CRASH_TIME"); ok {
		cfg.CrashTime = v
	}
}

func lookupDuration(key string) (time.Duration, bool) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return 0, false
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, false
	}
	return d, true
}
