// Package testability decides whether an automated conformance test should
// run against a HAL on a given device, and which service instances the test
// should target.
//
// Decisions reconcile three static documents: the framework compatibility
// matrix (what the framework requires), the framework HAL manifest (what
// the framework side provides) and the device HAL manifest (what the vendor
// actually ships). The checker reads the documents and never mutates them.
package testability

import (
	"errors"
	"log/slog"

	"github.com/devicelab/haltest/pkg/hal"
)

// Checker answers testability queries over three immutable documents.
//
// It holds read-only references: the caller owns the documents and must
// keep them alive and unmodified for the checker's lifetime. Under that
// discipline a single Checker is safe for concurrent queries; it keeps no
// per-query state and takes no locks.
type Checker struct {
	matrix    *hal.CompatibilityMatrix
	framework *hal.Manifest
	device    *hal.Manifest
	logger    *slog.Logger
}

// NewChecker builds a checker over the framework compatibility matrix, the
// framework manifest and the device manifest. All three are mandatory; a
// nil document is a contract violation and fails construction.
func NewChecker(matrix *hal.CompatibilityMatrix, framework, device *hal.Manifest) (*Checker, error) {
	if matrix == nil {
		return nil, errors.New("testability: framework compatibility matrix is nil")
	}
	if framework == nil {
		return nil, errors.New("testability: framework manifest is nil")
	}
	if device == nil {
		return nil, errors.New("testability: device manifest is nil")
	}
	return &Checker{
		matrix:    matrix,
		framework: framework,
		device:    device,
		logger:    slog.Default(),
	}, nil
}

// WithLogger overrides the logger used for declaration-inconsistency
// warnings.
func (c *Checker) WithLogger(logger *slog.Logger) *Checker {
	c.logger = logger
	return c
}

// CheckHalForComplianceTest reports whether a compliance test should run
// against the HAL identified by package name, version and interface name,
// and the instance names the test should target. arch is consulted only
// when the device implementation is passthrough.
//
// A compliance test validates a HAL the framework requires: HALs absent
// from the compatibility matrix never run, optional HALs run only when the
// device declares them, and required HALs always run — with an empty
// instance set when the device fails to declare them, so the caller can
// surface the gap.
func (c *Checker) CheckHalForComplianceTest(pkg string, version hal.Version, iface string, arch hal.Arch) (bool, hal.InstanceSet) {
	return c.checkFrameworkCompatibleHal(pkg, version, iface, arch)
}

// CheckHalForNonComplianceTest reports whether a non-compliance test should
// run, and against which instances. Non-compliance tests exercise whatever
// is actually present: they run whenever either the device or the framework
// manifest declares the HAL, regardless of what the matrix requires.
func (c *Checker) CheckHalForNonComplianceTest(pkg string, version hal.Version, iface string, arch hal.Arch) (bool, hal.InstanceSet) {
	if ok, instances := c.checkVendorManifestHal(pkg, version, iface, arch); ok {
		return true, instances
	}
	return c.checkFrameworkManifestHal(pkg, version, iface, arch)
}

// checkFrameworkCompatibleHal checks the HAL against the compatibility
// matrix and, where relevant, the device manifest.
func (c *Checker) checkFrameworkCompatibleHal(pkg string, version hal.Version, iface string, arch hal.Arch) (bool, hal.InstanceSet) {
	matrixHal := c.findMatrixHal(pkg, version, iface)
	if matrixHal == nil {
		// Not part of the framework's contract at all.
		return false, hal.InstanceSet{}
	}

	matrixIface, _ := matrixHal.Interface(iface)
	matrixInstances := declaredInstances(matrixIface.Instances)
	deviceInstances, deviceSupports := gatherManifestInstances(c.device, pkg, version, iface, arch)

	if !matrixHal.Optional {
		if !deviceSupports {
			// The framework requires the HAL but the device does not declare
			// it. Still run; the empty instance set is the diagnostic.
			c.logger.Warn("required hal not declared by device manifest",
				"package", pkg,
				"version", version.String(),
				"interface", iface)
			return true, hal.InstanceSet{}
		}
		return true, GetTestInstances(matrixInstances, deviceInstances)
	}

	// Optional HAL: run only when the vendor chose to implement it.
	if !deviceSupports {
		return false, hal.InstanceSet{}
	}
	return true, GetTestInstances(matrixInstances, deviceInstances)
}

// checkVendorManifestHal checks whether the device manifest declares the
// HAL with a compatible version, the interface, and a compatible bitness.
func (c *Checker) checkVendorManifestHal(pkg string, version hal.Version, iface string, arch hal.Arch) (bool, hal.InstanceSet) {
	instances, ok := gatherManifestInstances(c.device, pkg, version, iface, arch)
	if !ok {
		return false, hal.InstanceSet{}
	}
	return true, GetTestInstances(nil, instances)
}

// checkFrameworkManifestHal is the framework-side counterpart of
// checkVendorManifestHal.
func (c *Checker) checkFrameworkManifestHal(pkg string, version hal.Version, iface string, arch hal.Arch) (bool, hal.InstanceSet) {
	instances, ok := gatherManifestInstances(c.framework, pkg, version, iface, arch)
	if !ok {
		return false, hal.InstanceSet{}
	}
	return true, GetTestInstances(nil, instances)
}

// findMatrixHal returns the first requirement entry for the package whose
// version range is satisfied and which declares the interface.
func (c *Checker) findMatrixHal(pkg string, version hal.Version, iface string) *hal.MatrixHal {
	for _, entry := range c.matrix.HalsByName(pkg) {
		if !entry.ContainsVersion(version) {
			continue
		}
		if _, ok := entry.Interface(iface); !ok {
			continue
		}
		return entry
	}
	return nil
}

// gatherManifestInstances scans every capability entry for the package and
// gathers instance names from each entry that is version-compatible,
// exports the interface and passes the bitness check. A package may carry
// several entries (one per version or transport); every matching entry is
// considered, so the outcome does not depend on document order. The second
// result reports whether any entry passed; the first is nil when no
// matching entry declared instances.
func gatherManifestInstances(m *hal.Manifest, pkg string, version hal.Version, iface string, arch hal.Arch) (hal.InstanceSet, bool) {
	var instances hal.InstanceSet
	supported := false
	for _, entry := range m.HalsByName(pkg) {
		if !entry.SupportsVersion(version) {
			continue
		}
		if !CheckManifestHal(entry, iface, arch) {
			continue
		}
		supported = true
		entryIface, _ := entry.Interface(iface)
		for name := range entryIface.Instances {
			if instances == nil {
				instances = hal.InstanceSet{}
			}
			instances.Add(name)
		}
	}
	return instances, supported
}

// CheckManifestHal reports whether a capability entry can serve the named
// interface at the requested bitness. Binderized entries are
// architecture-agnostic and ignore arch.
func CheckManifestHal(entry *hal.ManifestHal, iface string, arch hal.Arch) bool {
	if _, ok := entry.Interface(iface); !ok {
		return false
	}
	return CheckPassthroughManifestHal(entry, arch)
}

// CheckPassthroughManifestHal reports whether a passthrough entry's
// declared bitness covers the requested one. Non-passthrough entries always
// pass. A passthrough entry never satisfies an ArchNone request: callers
// must know their own bitness before targeting a same-process HAL.
func CheckPassthroughManifestHal(entry *hal.ManifestHal, arch hal.Arch) bool {
	if entry.Transport != hal.TransportPassthrough {
		return true
	}
	return entry.Arch.Supports(arch)
}

// GetTestInstances reconciles the requirement-side and capability-side
// instance declarations for one HAL identity. A nil set means that side
// declared nothing. Both sides present: their intersection — a test must
// only target instances both sides agree exist. One side present: that set,
// unmodified. Neither: the empty set, a valid "no safe instance to test"
// outcome. The result is never nil and never aliases an input.
func GetTestInstances(matrixInstances, manifestInstances hal.InstanceSet) hal.InstanceSet {
	switch {
	case matrixInstances != nil && manifestInstances != nil:
		return matrixInstances.Intersect(manifestInstances)
	case matrixInstances != nil:
		return matrixInstances.Clone()
	case manifestInstances != nil:
		return manifestInstances.Clone()
	}
	return hal.InstanceSet{}
}

// declaredInstances normalizes a present-but-empty instance list to nil,
// the "not declared" form GetTestInstances expects.
func declaredInstances(s hal.InstanceSet) hal.InstanceSet {
	if len(s) == 0 {
		return nil
	}
	return s
}
