package hal

// MatrixHal is one requirement entry in the framework compatibility matrix:
// a HAL package the framework requires (or knows about, when Optional),
// with the version ranges and interfaces it expects.
type MatrixHal struct {
	Name       string
	Versions   []VersionRange
	Optional   bool
	Interfaces map[string]HalInterface
}

// ContainsVersion reports whether any declared range is satisfied by v.
func (h *MatrixHal) ContainsVersion(v Version) bool {
	for _, r := range h.Versions {
		if r.Contains(v) {
			return true
		}
	}
	return false
}

// Interface returns the named interface entry, if declared.
func (h *MatrixHal) Interface(name string) (HalInterface, bool) {
	i, ok := h.Interfaces[name]
	return i, ok
}

// CompatibilityMatrix is the framework compatibility requirement document.
// It is immutable after construction; lookups never mutate it.
type CompatibilityMatrix struct {
	hals map[string][]*MatrixHal
}

// NewCompatibilityMatrix builds a matrix view over the given entries,
// preserving document order within each package.
func NewCompatibilityMatrix(hals []*MatrixHal) *CompatibilityMatrix {
	m := &CompatibilityMatrix{hals: make(map[string][]*MatrixHal, len(hals))}
	for _, h := range hals {
		m.hals[h.Name] = append(m.hals[h.Name], h)
	}
	return m
}

// HalsByName returns every requirement entry for the package, in document
// order. The result is nil when the package is absent.
func (m *CompatibilityMatrix) HalsByName(pkg string) []*MatrixHal {
	return m.hals[pkg]
}
