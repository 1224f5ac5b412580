package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"

	"github.com/devicelab/haltest/pkg/config"
	"github.com/devicelab/haltest/pkg/hal"
	"github.com/devicelab/haltest/pkg/manifest"
	"github.com/devicelab/haltest/pkg/observability"
	"github.com/devicelab/haltest/pkg/report"
	"github.com/devicelab/haltest/pkg/store"
	"github.com/devicelab/haltest/pkg/testability"
)

// documentPaths holds the three document flags shared by check and batch.
type documentPaths struct {
	matrix            string
	frameworkManifest string
	deviceManifest    string
}

func (p *documentPaths) register(fs *flag.FlagSet) {
	fs.StringVar(&p.matrix, "matrix", "", "framework compatibility matrix file")
	fs.StringVar(&p.frameworkManifest, "framework-manifest", "", "framework HAL manifest file")
	fs.StringVar(&p.deviceManifest, "device-manifest", "", "device HAL manifest file")
}

func (p *documentPaths) load(logger *slog.Logger) (*testability.Checker, error) {
	if p.matrix == "" || p.frameworkManifest == "" || p.deviceManifest == "" {
		return nil, fmt.Errorf("-matrix, -framework-manifest and -device-manifest are required")
	}
	m, err := manifest.LoadMatrix(p.matrix)
	if err != nil {
		return nil, err
	}
	fm, err := manifest.LoadManifest(p.frameworkManifest)
	if err != nil {
		return nil, err
	}
	dm, err := manifest.LoadManifest(p.deviceManifest)
	if err != nil {
		return nil, err
	}
	checker, err := testability.NewChecker(m, fm, dm)
	if err != nil {
		return nil, err
	}
	return checker.WithLogger(logger), nil
}

func runCheckCmd(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var paths documentPaths
	paths.register(fs)
	pkgName := fs.String("package", "", "HAL package name, e.g. vendor.foo")
	versionStr := fs.String("version", "", "HAL version, e.g. 1.2")
	ifaceName := fs.String("interface", "", "HAL interface name, e.g. IFoo")
	archStr := fs.String("arch", "", "caller bitness for passthrough HALs: 32, 64 or 32+64")
	modeStr := fs.String("mode", string(report.ModeCompliance), "query mode: compliance or noncompliance")
	reportDir := fs.String("report", "", "directory to write the decision report into")
	storePath := fs.String("store", "", "SQLite decision store (default: HALTEST_STORE_PATH)")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg := config.Load()
	logger := newLogger(stderr, cfg)

	if *pkgName == "" || *versionStr == "" || *ifaceName == "" {
		fmt.Fprintln(stderr, "check: -package, -version and -interface are required")
		return 1
	}
	mode, err := report.ParseQueryMode(*modeStr)
	if err != nil {
		fmt.Fprintf(stderr, "check: %v\n", err)
		return 1
	}
	version, err := hal.ParseVersion(*versionStr)
	if err != nil {
		fmt.Fprintf(stderr, "check: %v\n", err)
		return 1
	}
	arch, err := hal.ParseArch(*archStr)
	if err != nil {
		fmt.Fprintf(stderr, "check: %v\n", err)
		return 1
	}

	checker, err := paths.load(logger)
	if err != nil {
		logger.Error("loading documents failed", "error", err)
		return 1
	}

	ctx := context.Background()
	obs, err := observability.New(ctx, obsConfig(cfg))
	if err != nil {
		logger.Error("observability init failed", "error", err)
		return 1
	}
	defer func() { _ = obs.Shutdown(ctx) }()

	rep := report.New()
	decision := evaluate(ctx, obs, checker, rep, mode, *pkgName, version, *ifaceName, arch)

	if err := persist(ctx, rep, *reportDir, storeTarget(*storePath, cfg)); err != nil {
		logger.Error("persisting decision failed", "error", err)
		return 1
	}

	out, err := json.MarshalIndent(decision, "", "  ")
	if err != nil {
		logger.Error("encoding decision failed", "error", err)
		return 1
	}
	fmt.Fprintln(stdout, string(out))
	return 0
}

// evaluate runs one checker query under a span and records the decision.
func evaluate(ctx context.Context, obs *observability.Provider, checker *testability.Checker, rep *report.Report, mode report.QueryMode, pkg string, version hal.Version, iface string, arch hal.Arch) *report.Decision {
	_, done := obs.TrackQuery(ctx, string(mode), pkg, iface)
	var shouldRun bool
	var instances hal.InstanceSet
	if mode == report.ModeCompliance {
		shouldRun, instances = checker.CheckHalForComplianceTest(pkg, version, iface, arch)
	} else {
		shouldRun, instances = checker.CheckHalForNonComplianceTest(pkg, version, iface, arch)
	}
	done(shouldRun)
	return rep.Record(mode, pkg, version, iface, arch, shouldRun, instances)
}

// persist writes the report directory and appends to the decision store,
// when either target is configured.
func persist(ctx context.Context, rep *report.Report, reportDir, storePath string) error {
	if reportDir != "" {
		if err := rep.Write(reportDir); err != nil {
			return err
		}
	}
	if storePath != "" {
		s, err := store.Open(storePath)
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()
		for _, d := range rep.Decisions {
			if err := s.Store(ctx, rep.RunID, d); err != nil {
				return err
			}
		}
	}
	return nil
}

func storeTarget(flagValue string, cfg *config.Config) string {
	if flagValue != "" {
		return flagValue
	}
	return cfg.StorePath
}

func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
}

func obsConfig(cfg *config.Config) *observability.Config {
	oc := observability.DefaultConfig()
	oc.Enabled = cfg.Telemetry
	oc.OTLPEndpoint = cfg.OTLPEndpoint
	return oc
}
