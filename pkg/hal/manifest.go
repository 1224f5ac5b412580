package hal

// ManifestHal is one capability entry in a HAL manifest: a HAL package one
// side of the system (framework or device) declares it provides, at a
// single concrete version. Arch is meaningful only for passthrough entries.
type ManifestHal struct {
	Name       string
	Version    Version
	Transport  Transport
	Arch       Arch
	Interfaces map[string]HalInterface
}

// SupportsVersion reports whether the entry's declared version satisfies a
// request for v: same major, declared minor at least the requested minor.
func (h *ManifestHal) SupportsVersion(v Version) bool {
	return NewVersionRange(v.Major, v.Minor).Contains(h.Version)
}

// Interface returns the named interface entry, if declared.
func (h *ManifestHal) Interface(name string) (HalInterface, bool) {
	i, ok := h.Interfaces[name]
	return i, ok
}

// Manifest is a HAL capability document, framework- or device-side.
// It is immutable after construction; lookups never mutate it.
type Manifest struct {
	hals map[string][]*ManifestHal
}

// NewManifest builds a manifest view over the given entries, preserving
// document order within each package.
func NewManifest(hals []*ManifestHal) *Manifest {
	m := &Manifest{hals: make(map[string][]*ManifestHal, len(hals))}
	for _, h := range hals {
		m.hals[h.Name] = append(m.hals[h.Name], h)
	}
	return m
}

// HalsByName returns every capability entry for the package, in document
// order. The result is nil when the package is absent.
func (m *Manifest) HalsByName(pkg string) []*ManifestHal {
	return m.hals[pkg]
}
