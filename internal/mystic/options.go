package mystic

import "fmt"

// LevelPolicy decides what SetBright and SetSpeed do with a level above the zone's
// advertised maximum.
type LevelPolicy int

const (
	// LevelPolicyReject fails locally with *LevelOutOfRangeError. Default.
	LevelPolicyReject LevelPolicy = iota
	// LevelPolicyForward passes the level to the native library unchanged.
	LevelPolicyForward
	// LevelPolicyClamp lowers the level to the maximum.
	LevelPolicyClamp
)

func (p LevelPolicy) String() string {
	switch p {
	case LevelPolicyReject:
		return "reject"
	case LevelPolicyForward:
		return "forward"
	case LevelPolicyClamp:
		return "clamp"
	default:
		return fmt.Sprintf("LevelPolicy(%d)", int(p))
	}
}

// ParseLevelPolicy parses "reject", "forward" or "clamp". The empty string is "reject".
func ParseLevelPolicy(s string) (LevelPolicy, error) {
	switch s {
	case "", "reject":
		return LevelPolicyReject, nil
	case "forward":
		return LevelPolicyForward, nil
	case "clamp":
		return LevelPolicyClamp, nil
	default:
		return 0, fmt.Errorf("unknown level policy %q", s)
	}
}

// check applies the policy to level and returns the level to send.
func (p LevelPolicy) check(attribute string, level, limit uint32) (uint32, error) {
	if level <= limit {
		return level, nil
	}
	switch p {
	case LevelPolicyForward:
		return level, nil
	case LevelPolicyClamp:
		return limit, nil
	default:
		return 0, &LevelOutOfRangeError{Attribute: attribute, Level: level, Max: limit}
	}
}

type options struct {
	levelPolicy LevelPolicy
}

// Option configures an SDK.
type Option func(*options)

// WithLevelPolicy sets how out-of-range brightness and speed levels are handled.
func WithLevelPolicy(p LevelPolicy) Option {
	return func(o *options) {
		o.levelPolicy = p
	}
}
