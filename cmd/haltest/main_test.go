package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/devicelab/haltest/pkg/report"
	"github.com/devicelab/haltest/pkg/store"
)

const testMatrix = `
hals:
  - name: vendor.foo
    optional: false
    versions: ["1.0"]
    interfaces:
      - name: IFoo
`

const testFrameworkManifest = `
hals:
  - name: vendor.fwkonly
    version: "1.0"
    transport: binderized
    interfaces:
      - name: IFwk
        instances: [fwk]
`

const testDeviceManifest = `
hals:
  - name: vendor.foo
    version: "1.2"
    transport: binderized
    interfaces:
      - name: IFoo
        instances: [default]
`

func writeTestDocuments(t *testing.T) (matrix, framework, device string) {
	t.Helper()
	dir := t.TempDir()
	matrix = filepath.Join(dir, "matrix.yaml")
	framework = filepath.Join(dir, "framework.yaml")
	device = filepath.Join(dir, "device.yaml")
	require.NoError(t, os.WriteFile(matrix, []byte(testMatrix), 0600))
	require.NoError(t, os.WriteFile(framework, []byte(testFrameworkManifest), 0600))
	require.NoError(t, os.WriteFile(device, []byte(testDeviceManifest), 0600))
	return matrix, framework, device
}

func resetEnv(t *testing.T) {
	t.Helper()
	t.Setenv("HALTEST_LOG_LEVEL", "")
	t.Setenv("HALTEST_STORE_PATH", "")
	t.Setenv("HALTEST_TELEMETRY", "")
}

func TestRunNoArgs(t *testing.T) {
	var stdout, stderr bytes.Buffer
	require.Equal(t, 1, Run([]string{"haltest"}, &stdout, &stderr))
	require.Contains(t, stderr.String(), "Usage:")
}

func TestRunUnknownCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	require.Equal(t, 1, Run([]string{"haltest", "fuzz"}, &stdout, &stderr))
	require.Contains(t, stderr.String(), "unknown command")
}

func TestRunHelp(t *testing.T) {
	var stdout, stderr bytes.Buffer
	require.Equal(t, 0, Run([]string{"haltest", "help"}, &stdout, &stderr))
	require.Contains(t, stdout.String(), "haltest check")
}

func TestCheckCommand(t *testing.T) {
	resetEnv(t)
	matrix, framework, device := writeTestDocuments(t)

	var stdout, stderr bytes.Buffer
	code := Run([]string{"haltest", "check",
		"-matrix", matrix,
		"-framework-manifest", framework,
		"-device-manifest", device,
		"-package", "vendor.foo",
		"-version", "1.0",
		"-interface", "IFoo",
	}, &stdout, &stderr)
	require.Equal(t, 0, code, "stderr: %s", stderr.String())

	var decision report.Decision
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &decision))
	require.True(t, decision.ShouldRun)
	require.Equal(t, []string{"default"}, decision.Instances)
	require.Equal(t, report.ModeCompliance, decision.Mode)
}

func TestCheckCommandNonCompliance(t *testing.T) {
	resetEnv(t)
	matrix, framework, device := writeTestDocuments(t)

	// vendor.fwkonly is absent from the matrix and from the device, but the
	// framework manifest declares it.
	var stdout, stderr bytes.Buffer
	code := Run([]string{"haltest", "check",
		"-matrix", matrix,
		"-framework-manifest", framework,
		"-device-manifest", device,
		"-package", "vendor.fwkonly",
		"-version", "1.0",
		"-interface", "IFwk",
		"-mode", "noncompliance",
	}, &stdout, &stderr)
	require.Equal(t, 0, code, "stderr: %s", stderr.String())

	var decision report.Decision
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &decision))
	require.True(t, decision.ShouldRun)
	require.Equal(t, []string{"fwk"}, decision.Instances)
}

func TestCheckCommandSkipDecision(t *testing.T) {
	resetEnv(t)
	matrix, framework, device := writeTestDocuments(t)

	// Not in the matrix at all: the query evaluates (exit 0) and decides
	// not to run.
	var stdout, stderr bytes.Buffer
	code := Run([]string{"haltest", "check",
		"-matrix", matrix,
		"-framework-manifest", framework,
		"-device-manifest", device,
		"-package", "vendor.unknown",
		"-version", "1.0",
		"-interface", "IUnknown",
	}, &stdout, &stderr)
	require.Equal(t, 0, code, "stderr: %s", stderr.String())

	var decision report.Decision
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &decision))
	require.False(t, decision.ShouldRun)
	require.Empty(t, decision.Instances)
}

func TestCheckCommandMissingFlags(t *testing.T) {
	resetEnv(t)
	var stdout, stderr bytes.Buffer
	code := Run([]string{"haltest", "check", "-package", "vendor.foo"}, &stdout, &stderr)
	require.Equal(t, 1, code)
}

func TestCheckCommandWritesReportAndStore(t *testing.T) {
	resetEnv(t)
	matrix, framework, device := writeTestDocuments(t)
	outDir := t.TempDir()
	reportDir := filepath.Join(outDir, "report")
	storePath := filepath.Join(outDir, "decisions.db")

	var stdout, stderr bytes.Buffer
	code := Run([]string{"haltest", "check",
		"-matrix", matrix,
		"-framework-manifest", framework,
		"-device-manifest", device,
		"-package", "vendor.foo",
		"-version", "1.0",
		"-interface", "IFoo",
		"-report", reportDir,
		"-store", storePath,
	}, &stdout, &stderr)
	require.Equal(t, 0, code, "stderr: %s", stderr.String())

	_, err := os.Stat(filepath.Join(reportDir, "report.json"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(reportDir, "report.digest"))
	require.NoError(t, err)

	s, err := store.Open(storePath)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	decisions, err := s.List(t.Context(), 10)
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	require.Equal(t, "vendor.foo", decisions[0].Package)
}

func TestBatchCommand(t *testing.T) {
	resetEnv(t)
	matrix, framework, device := writeTestDocuments(t)

	queries := `
queries:
  - package: vendor.foo
    version: "1.0"
    interface: IFoo
  - mode: noncompliance
    package: vendor.fwkonly
    version: "1.0"
    interface: IFwk
  - package: vendor.unknown
    version: "1.0"
    interface: IUnknown
`
	queriesPath := filepath.Join(t.TempDir(), "queries.yaml")
	require.NoError(t, os.WriteFile(queriesPath, []byte(queries), 0600))

	var stdout, stderr bytes.Buffer
	code := Run([]string{"haltest", "batch",
		"-matrix", matrix,
		"-framework-manifest", framework,
		"-device-manifest", device,
		"-queries", queriesPath,
	}, &stdout, &stderr)
	require.Equal(t, 0, code, "stderr: %s", stderr.String())

	var rep report.Report
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &rep))
	require.Len(t, rep.Decisions, 3)
	require.True(t, rep.Decisions[0].ShouldRun)
	require.True(t, rep.Decisions[1].ShouldRun)
	require.False(t, rep.Decisions[2].ShouldRun)
}

func TestBatchCommandInvalidQuery(t *testing.T) {
	resetEnv(t)
	matrix, framework, device := writeTestDocuments(t)

	queriesPath := filepath.Join(t.TempDir(), "queries.yaml")
	require.NoError(t, os.WriteFile(queriesPath, []byte("queries:\n  - package: vendor.foo\n"), 0600))

	var stdout, stderr bytes.Buffer
	code := Run([]string{"haltest", "batch",
		"-matrix", matrix,
		"-framework-manifest", framework,
		"-device-manifest", device,
		"-queries", queriesPath,
	}, &stdout, &stderr)
	require.Equal(t, 1, code)
}
