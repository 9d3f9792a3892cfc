package recovery

import (
	"fmt"
	"time"
)

// HealMethod is one step in the self-healing escalation ladder, ordered
// by ascending risk (spec.md §4.8).
type HealMethod int

const (
	ReloadDriver HealMethod = iota
	ResetDevice
	ResetController
	PowerCycle
)

// EscalationOrder is the fixed ascending-risk sequence the Self-Healer
// walks through for a DeviceGone classification.
var EscalationOrder = []HealMethod{ReloadDriver, ResetDevice, ResetController, PowerCycle}

func (m HealMethod) Description() string {
	switch m {
	case ReloadDriver:
		return "Reload kernel driver"
	case ResetDevice:
		return "Reset device via sysfs"
	case ResetController:
		return "Reset RAID/HBA controller"
	case PowerCycle:
		return "Power cycle via out-of-band management"
	default:
		return "unknown heal method"
	}
}

// EstimatedRecoveryTime is the time the Self-Healer expects this step
// to take to settle before a retry is attempted.
func (m HealMethod) EstimatedRecoveryTime() time.Duration {
	switch m {
	case ReloadDriver:
		return 5 * time.Second
	case ResetDevice:
		return 3 * time.Second
	case ResetController:
		return 10 * time.Second
	case PowerCycle:
		return 60 * time.Second
	default:
		return 0
	}
}

// RiskLevel is 0-10, higher meaning more disruptive/risky to attempt.
func (m HealMethod) RiskLevel() int {
	switch m {
	case ReloadDriver:
		return 2
	case ResetDevice:
		return 3
	case ResetController:
		return 5
	case PowerCycle:
		return 8
	default:
		return 0
	}
}

func (m HealMethod) String() string {
	switch m {
	case ReloadDriver:
		return "reload_driver"
	case ResetDevice:
		return "reset_device"
	case ResetController:
		return "reset_controller"
	case PowerCycle:
		return "power_cycle"
	default:
		return "unknown"
	}
}

// HealAction is the collaborator hook a caller supplies to actually
// perform a healing step (invoking sysfs, a vendor tool, or IPMI). The
// coordinator never shells out itself — that capability belongs to the
// privileged host-tool layer, not this library.
type HealAction func(device string, method HealMethod) error

// SelfHealer walks the escalation ladder up to a configured risk
// ceiling, invoking action for each step until one succeeds.
type SelfHealer struct {
	RiskCeiling int
	Action      HealAction
}

// NewSelfHealer constructs a healer with the given risk ceiling (0-10)
// and collaborator action.
func NewSelfHealer(riskCeiling int, action HealAction) *SelfHealer {
	return &SelfHealer{RiskCeiling: riskCeiling, Action: action}
}

// Heal attempts each escalation step in order, skipping any step whose
// risk exceeds RiskCeiling, stopping at the first success. It returns
// the method that succeeded, or an error if every eligible step failed
// or none were under the risk ceiling.
func (h *SelfHealer) Heal(device string) (HealMethod, error) {
	attempted := false
	for _, method := range EscalationOrder {
		if method.RiskLevel() > h.RiskCeiling {
			continue
		}
		attempted = true
		if err := h.Action(device, method); err == nil {
			time.Sleep(method.EstimatedRecoveryTime())
			return method, nil
		}
	}
	if !attempted {
		return 0, fmt.Errorf("recovery: no self-heal method under risk ceiling %d", h.RiskCeiling)
	}
	return 0, fmt.Errorf("recovery: all self-heal methods exhausted for %s", device)
}
