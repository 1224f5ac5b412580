package hal

import "fmt"

// Arch is a bitness mask for passthrough HAL implementations. Binderized
// HALs are reached over an RPC boundary and never consult it.
type Arch uint8

const (
	ArchNone Arch = 0
	Arch32   Arch = 1 << 0
	Arch64   Arch = 1 << 1
	Arch3264      = Arch32 | Arch64
)

// ParseArch parses the bitness strings used in manifest documents.
func ParseArch(s string) (Arch, error) {
	switch s {
	case "32":
		return Arch32, nil
	case "64":
		return Arch64, nil
	case "32+64":
		return Arch3264, nil
	case "":
		return ArchNone, nil
	}
	return ArchNone, fmt.Errorf("invalid arch %q: want 32, 64 or 32+64", s)
}

func (a Arch) String() string {
	switch a {
	case Arch32:
		return "32"
	case Arch64:
		return "64"
	case Arch3264:
		return "32+64"
	}
	return "none"
}

// Supports reports whether an implementation built for bitness a can serve
// a request for bitness req: the two masks must share at least one bit.
// A request of ArchNone is never satisfied.
func (a Arch) Supports(req Arch) bool {
	return a&req != 0
}
