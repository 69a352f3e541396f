package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/alecthomas/kingpin/v2"
)

// LDOSimdApp is the kingpin application object, module-level exactly as
// the teacher's CEEMSExporterApp, so flags can self-register from any
// file in this package's init order.
var LDOSimdApp = kingpin.New(
	"ldo-simd",
	"Host-side simulator for the DPA collective-worker all-to-all state machine.",
)

var (
	flagNumRanks    = LDOSimdApp.Flag("ranks", "Number of simulated ranks (config default: 4).").Int()
	flagMsgSize     = LDOSimdApp.Flag("msg-size", "All-to-all message size in bytes per peer (config default: 64).").Uint32()
	flagConfig      = LDOSimdApp.Flag("config", "YAML config file path.").String()
	flagMetricsAddr = LDOSimdApp.Flag("web.listen-address", "Address to listen on for metrics and debug endpoints (config default: :9401).").String()
	flagDBPath      = LDOSimdApp.Flag("db.path", "Path to the host-audit SQLite database (config default: ldo-simd-audit.db).").String()
)

// LDOSimd is the application entry point, mirroring the teacher's
// CEEMSExporter{appName,App} + Main() shape.
type LDOSimd struct {
	appName string
	App     *kingpin.Application
}

// NewLDOSimd constructs the application.
func NewLDOSimd() *LDOSimd {
	return &LDOSimd{appName: "ldo-simd", App: LDOSimdApp}
}

// Main parses flags, loads config, and runs the simulator until ctx is
// canceled.
func (s *LDOSimd) Main() error {
	if _, err := s.App.Parse(os.Args[1:]); err != nil {
		return fmt.Errorf("%s: parse flags: %w", s.appName, err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil)).With("app", s.appName)

	cfg, err := LoadConfig(*flagConfig)
	if err != nil {
		return err
	}
	if *flagNumRanks != 0 {
		cfg.NumRanks = *flagNumRanks
	}
	if *flagMsgSize != 0 {
		cfg.MsgSize = *flagMsgSize
	}
	if *flagMetricsAddr != "" {
		cfg.MetricsAddr = *flagMetricsAddr
	}
	if *flagDBPath != "" {
		cfg.DBPath = *flagDBPath
	}

	h, err := NewHarness(cfg, logger)
	if err != nil {
		return fmt.Errorf("%s: build harness: %w", s.appName, err)
	}
	defer h.Close()

	return h.Run(context.Background())
}
