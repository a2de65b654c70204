package capability

import "fmt"

// Capability is the coarse role carried by a token. Values are closed: the
// storage boundary rejects anything outside the three constants below.
type Capability string

const (
	Collector     Capability = "collector"
	Viewer        Capability = "viewer"
	Administrator Capability = "administrator"
)

// DeniedMessage is returned verbatim on every capability mismatch. It never
// names the capability an operation required.
const DeniedMessage = "you are not allowed to access this resource"

// Parse validates a serialized capability value.
func Parse(s string) (Capability, error) {
	switch Capability(s) {
	case Collector, Viewer, Administrator:
		return Capability(s), nil
	}
	return "", fmt.Errorf("unknown capability %q", s)
}

// Check reports whether held satisfies any of the required capabilities.
// Administrator satisfies every requirement. An empty held value never does.
func Check(held Capability, required ...Capability) bool {
	if held == "" {
		return false
	}
	if held == Administrator {
		return true
	}
	for _, r := range required {
		if held == r {
			return true
		}
	}
	return false
}

func (c Capability) String() string { return string(c) }
