package hal

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Version is a HAL interface version, an ordered (major, minor) pair.
type Version struct {
	Major uint `json:"major" yaml:"major"`
	Minor uint `json:"minor" yaml:"minor"`
}

// ParseVersion parses a "major.minor" string such as "2.3".
func ParseVersion(s string) (Version, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 2 {
		return Version{}, fmt.Errorf("invalid version %q: want major.minor", s)
	}
	major, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		return Version{}, fmt.Errorf("invalid version %q: bad major: %w", s, err)
	}
	minor, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return Version{}, fmt.Errorf("invalid version %q: bad minor: %w", s, err)
	}
	return Version{Major: uint(major), Minor: uint(minor)}, nil
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

func (v Version) semver() *semver.Version {
	return semver.New(uint64(v.Major), uint64(v.Minor), 0, "", "")
}

// VersionRange is a requirement-side version constraint: a concrete version
// satisfies the range when its major number matches and its minor number is
// at least MinMinor.
type VersionRange struct {
	Major    uint
	MinMinor uint

	constraint *semver.Constraints
}

// NewVersionRange builds a range accepting major.minMinor and any later
// minor of the same major.
func NewVersionRange(major, minMinor uint) VersionRange {
	// The explicit lower/upper bound pair avoids the caret operator, which
	// special-cases major 0.
	c, err := semver.NewConstraint(fmt.Sprintf(">=%d.%d, <%d", major, minMinor, major+1))
	if err != nil {
		// The constraint string is generated from integers; failing to parse
		// it is a programming error.
		panic(fmt.Sprintf("hal: building version constraint: %v", err))
	}
	return VersionRange{Major: major, MinMinor: minMinor, constraint: c}
}

// ParseVersionRange parses a "major.minMinor" string.
func ParseVersionRange(s string) (VersionRange, error) {
	v, err := ParseVersion(s)
	if err != nil {
		return VersionRange{}, err
	}
	return NewVersionRange(v.Major, v.Minor), nil
}

// Contains reports whether v satisfies the range.
func (r VersionRange) Contains(v Version) bool {
	if r.constraint == nil {
		r = NewVersionRange(r.Major, r.MinMinor)
	}
	return r.constraint.Check(v.semver())
}

func (r VersionRange) String() string {
	return fmt.Sprintf("%d.%d+", r.Major, r.MinMinor)
}
