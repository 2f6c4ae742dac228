package config

import (
	"fmt"

	"github.com/Quidge/chatconform/internal/capability"
)

// ProfileOverrides converts the profiles section into capability overrides
// keyed by family. Unknown capabilities and tiers are errors; unknown
// families are rejected later, when the overrides meet the registered
// families.
func (c Config) ProfileOverrides() (map[string]capability.Override, error) {
	if len(c.Profiles) == 0 {
		return nil, nil
	}
	out := make(map[string]capability.Override, len(c.Profiles))
	for family, pc := range c.Profiles {
		var o capability.Override
		for name, sc := range pc.Capabilities {
			id := capability.Capability(name)
			if !id.IsValid() {
				return nil, fmt.Errorf("profiles.%s: unknown capability %q", family, name)
			}
			tier := capability.Tier(sc.Tier)
			if tier == "" {
				tier = capability.TierHardSkip
			}
			if !tier.IsValid() {
				return nil, fmt.Errorf("profiles.%s.capabilities.%s: invalid tier %q (want %s or %s)",
					family, name, sc.Tier, capability.TierHardSkip, capability.TierSoftReject)
			}
			if o.Capabilities == nil {
				o.Capabilities = make(map[capability.Capability]capability.Support)
			}
			o.Capabilities[id] = capability.Support{Supported: sc.Supported, Tier: tier}
		}
		if pc.Assertions != nil {
			o.Assertions = &capability.Assertions{
				ResponseID:           pc.Assertions.ResponseID,
				FinishReason:         pc.Assertions.FinishReason,
				PartialResponseCount: pc.Assertions.PartialResponseCount,
			}
		}
		out[family] = o
	}
	return out, nil
}

// SetupCommands returns the setup commands in the form the container
// setup runner executes them.
func (c Config) SetupCommands() [][]string {
	var cmds [][]string
	for _, s := range c.Setup {
		cmds = append(cmds, []string{"sh", "-c", s})
	}
	return cmds
}
