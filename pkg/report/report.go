// Package report records testability decisions as auditable artifacts: a
// run-scoped report with a digest over its RFC 8785 canonical JSON form.
package report

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/gowebpki/jcs"

	"github.com/devicelab/haltest/pkg/hal"
)

// QueryMode distinguishes the two public checker queries.
type QueryMode string

const (
	ModeCompliance    QueryMode = "compliance"
	ModeNonCompliance QueryMode = "noncompliance"
)

// ParseQueryMode parses the mode strings accepted by the CLI.
func ParseQueryMode(s string) (QueryMode, error) {
	switch QueryMode(s) {
	case ModeCompliance, ModeNonCompliance:
		return QueryMode(s), nil
	}
	return "", fmt.Errorf("invalid mode %q: want compliance or noncompliance", s)
}

// Decision is one recorded testability decision.
type Decision struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Mode      QueryMode `json:"mode"`
	Package   string    `json:"package"`
	Version   string    `json:"version"`
	Interface string    `json:"interface"`
	Arch      string    `json:"arch"`
	ShouldRun bool      `json:"should_run"`
	Instances []string  `json:"instances"`
}

// Report aggregates the decisions of one checker run.
type Report struct {
	RunID     string      `json:"run_id"`
	CreatedAt time.Time   `json:"created_at"`
	Decisions []*Decision `json:"decisions"`

	clock func() time.Time
}

// New creates an empty report with a fresh run ID.
func New() *Report {
	r := &Report{
		RunID:     uuid.NewString(),
		Decisions: make([]*Decision, 0),
		clock:     time.Now,
	}
	r.CreatedAt = r.clock().UTC()
	return r
}

// WithClock overrides the clock for deterministic testing.
func (r *Report) WithClock(clock func() time.Time) *Report {
	r.clock = clock
	r.CreatedAt = clock().UTC()
	return r
}

// Record appends a decision for the given query and outcome.
func (r *Report) Record(mode QueryMode, pkg string, version hal.Version, iface string, arch hal.Arch, shouldRun bool, instances hal.InstanceSet) *Decision {
	d := &Decision{
		ID:        uuid.NewString(),
		Timestamp: r.clock().UTC(),
		Mode:      mode,
		Package:   pkg,
		Version:   version.String(),
		Interface: iface,
		Arch:      arch.String(),
		ShouldRun: shouldRun,
		Instances: instances.Names(),
	}
	r.Decisions = append(r.Decisions, d)
	return d
}

// Digest returns the SHA-256 hex digest of the report's RFC 8785 canonical
// JSON form. Two reports with the same content produce the same digest
// regardless of field ordering in the serialized form.
func (r *Report) Digest() (string, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("report digest: marshal: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("report digest: canonicalize: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// Write emits report.json and report.digest under dir, creating it if
// needed.
func (r *Report) Write(dir string) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("write report: marshal: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "report.json"), data, 0600); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	digest, err := r.Digest()
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, "report.digest"), []byte(digest+"\n"), 0600); err != nil {
		return fmt.Errorf("write report digest: %w", err)
	}
	return nil
}
