package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/devicelab/haltest/pkg/config"
	"github.com/devicelab/haltest/pkg/hal"
	"github.com/devicelab/haltest/pkg/observability"
	"github.com/devicelab/haltest/pkg/report"
)

type queriesDoc struct {
	Queries []queryDoc `yaml:"queries"`
}

type queryDoc struct {
	Mode      string `yaml:"mode"`
	Package   string `yaml:"package"`
	Version   string `yaml:"version"`
	Interface string `yaml:"interface"`
	Arch      string `yaml:"arch"`
}

func runBatchCmd(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("batch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var paths documentPaths
	paths.register(fs)
	queriesPath := fs.String("queries", "", "YAML file listing the queries to evaluate")
	reportDir := fs.String("report", "", "directory to write the decision report into")
	storePath := fs.String("store", "", "SQLite decision store (default: HALTEST_STORE_PATH)")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg := config.Load()
	logger := newLogger(stderr, cfg)

	if *queriesPath == "" {
		fmt.Fprintln(stderr, "batch: -queries is required")
		return 1
	}
	queries, err := loadQueries(*queriesPath)
	if err != nil {
		logger.Error("loading queries failed", "error", err)
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
	for i, q := range queries {
		mode, version, arch, err := parseQuery(q)
		if err != nil {
			logger.Error("invalid query", "index", i, "error", err)
			return 1
		}
		evaluate(ctx, obs, checker, rep, mode, q.Package, version, q.Interface, arch)
	}

	if err := persist(ctx, rep, *reportDir, storeTarget(*storePath, cfg)); err != nil {
		logger.Error("persisting decisions failed", "error", err)
		return 1
	}

	out, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		logger.Error("encoding report failed", "error", err)
		return 1
	}
	fmt.Fprintln(stdout, string(out))
	return 0
}

func loadQueries(path string) ([]queryDoc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load queries: %w", err)
	}
	var doc queriesDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("load queries: %w", err)
	}
	if len(doc.Queries) == 0 {
		return nil, fmt.Errorf("load queries: %s lists no queries", path)
	}
	return doc.Queries, nil
}

func parseQuery(q queryDoc) (report.QueryMode, hal.Version, hal.Arch, error) {
	modeStr := q.Mode
	if modeStr == "" {
		modeStr = string(report.ModeCompliance)
	}
	mode, err := report.ParseQueryMode(modeStr)
	if err != nil {
		return "", hal.Version{}, hal.ArchNone, err
	}
	if q.Package == "" || q.Version == "" || q.Interface == "" {
		return "", hal.Version{}, hal.ArchNone, fmt.Errorf("package, version and interface are required")
	}
	version, err := hal.ParseVersion(q.Version)
	if err != nil {
		return "", hal.Version{}, hal.ArchNone, err
	}
	arch, err := hal.ParseArch(q.Arch)
	if err != nil {
		return "", hal.Version{}, hal.ArchNone, err
	}
	return mode, version, arch, nil
}
