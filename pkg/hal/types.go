// Package hal defines the value types and read-only document views the
// testability checker queries: HAL versions, transport modes, architecture
// bitness, instance-name sets, and the two document shapes (compatibility
// matrix, HAL manifest).
package hal

import (
	"fmt"
	"sort"
)

// Transport is how a HAL implementation is reached. Passthrough
// implementations run in the caller's process; binderized implementations
// sit behind an RPC boundary.
type Transport string

const (
	TransportBinderized  Transport = "binderized"
	TransportPassthrough Transport = "passthrough"
)

// ParseTransport parses the transport strings used in manifest documents.
func ParseTransport(s string) (Transport, error) {
	switch Transport(s) {
	case TransportBinderized, TransportPassthrough:
		return Transport(s), nil
	}
	return "", fmt.Errorf("invalid transport %q: want binderized or passthrough", s)
}

// InstanceSet is a set of service instance names.
type InstanceSet map[string]bool

// NewInstanceSet builds a set from the given names.
func NewInstanceSet(names ...string) InstanceSet {
	s := make(InstanceSet, len(names))
	for _, n := range names {
		s[n] = true
	}
	return s
}

func (s InstanceSet) Add(name string) {
	s[name] = true
}

func (s InstanceSet) Contains(name string) bool {
	return s[name]
}

// Intersect returns a new set holding the names present in both sets.
func (s InstanceSet) Intersect(other InstanceSet) InstanceSet {
	out := InstanceSet{}
	for n := range s {
		if other[n] {
			out[n] = true
		}
	}
	return out
}

// Clone returns an independent copy.
func (s InstanceSet) Clone() InstanceSet {
	out := make(InstanceSet, len(s))
	for n := range s {
		out[n] = true
	}
	return out
}

// Names returns the instance names in sorted order.
func (s InstanceSet) Names() []string {
	names := make([]string, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// HalInterface is one interface exported by a HAL package, with the service
// instance names declared for it.
type HalInterface struct {
	Name      string
	Instances InstanceSet
}
