//go:build linux
// +build linux

package firewall

import (
	"fmt"
	"sort"
	"sync"

	"github.com/CyanogenMod/android-system-netd-sub000/internal/logging"
)

const family = "inet"

// Controller owns the UID-based firewall chains: the two standing
// base chains (input/output; forward rarely carries UID rules but is
// kept for parity with the original's three-chain model) and the
// named sub-chains (fw_dozable, fw_standby, and any future ones) that
// jump in from both.
//
// All mutating operations rebuild the affected chain(s) from the
// in-memory rule set and submit the result as one script, so a replay
// after a crash mid-apply reproduces the exact same state rather than
// accumulating incremental drift.
type Controller struct {
	mu sync.Mutex

	applier Applier
	logger  *logging.Logger

	mode         Mode
	childEnabled map[string]bool
	childRules   map[string]map[uint32]UIDRule
	genericRules map[uint32]UIDRule
}

func NewController(applier Applier) *Controller {
	return &Controller{
		applier:      applier,
		logger:       logging.WithComponent("firewall"),
		mode:         Blacklist,
		childEnabled: make(map[string]bool),
		childRules:   make(map[string]map[uint32]UIDRule),
		genericRules: make(map[uint32]UIDRule),
	}
}

// EnableFirewall switches the overall posture and reseeds the three
// base chains under the new mode.
func (c *Controller) EnableFirewall(mode Mode) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mode = mode
	if err := c.rebuildBaseChains(); err != nil {
		return err
	}
	c.logger.Audit("firewall_enable", mode.String(), nil)
	return nil
}

// DisableFirewall returns to an open blacklist posture with no
// terminal deny rule, matching the original's disableFirewall flush.
func (c *Controller) DisableFirewall() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mode = Blacklist
	c.genericRules = make(map[uint32]UIDRule)
	if err := c.rebuildBaseChains(); err != nil {
		return err
	}
	c.logger.Audit("firewall_disable", "", nil)
	return nil
}

// SetChildChainEnabled attaches or detaches chainName as a jump target
// from both fw_INPUT and fw_OUTPUT.
func (c *Controller) SetChildChainEnabled(chainName string, enabled bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.childEnabled[chainName] = enabled
	if err := c.rebuildBaseChains(); err != nil {
		return err
	}
	c.logger.Audit("firewall_child_chain", chainName, map[string]any{"enabled": enabled})
	return nil
}

// ReplaceUIDChain atomically replaces chainName's entire rule set: one
// verdict rule per uid (allow for whitelist mode, deny for blacklist),
// the ICMPv6/system-uid whitelist preamble when applicable, and a
// terminal drop for whitelist chains.
func (c *Controller) ReplaceUIDChain(chainName string, mode Mode, uids []uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	rules := make(map[uint32]UIDRule, len(uids))
	verdict := Allow
	if mode == Blacklist {
		verdict = Deny
	}
	for _, uid := range uids {
		rules[uid] = verdict
	}
	c.childRules[chainName] = rules

	script := uidRuleScript(Table, family, chainName, mode, rules)
	if err := ApplyAtomically(c.applier, script); err != nil {
		return fmt.Errorf("firewall: replace chain %s: %w", chainName, err)
	}
	c.logger.Audit("firewall_replace_chain", chainName, map[string]any{"mode": mode.String(), "uids": len(uids)})
	return nil
}

// SetUIDRule sets a single uid's verdict. chainName == "" applies the
// rule directly to both base chains rather than a named sub-chain,
// mirroring the original's NONE-chain dual-install behavior.
func (c *Controller) SetUIDRule(chainName string, uid uint32, rule UIDRule) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if chainName == "" {
		c.genericRules[uid] = rule
		if err := c.rebuildBaseChains(); err != nil {
			return err
		}
	} else {
		rules := c.childRules[chainName]
		if rules == nil {
			rules = make(map[uint32]UIDRule)
			c.childRules[chainName] = rules
		}
		rules[uid] = rule
		mode := Blacklist
		if chainIsWhitelistByConvention(chainName) {
			mode = Whitelist
		}
		script := uidRuleScript(Table, family, chainName, mode, rules)
		if err := ApplyAtomically(c.applier, script); err != nil {
			return fmt.Errorf("firewall: set_uid_rule on %s: %w", chainName, err)
		}
	}

	c.logger.Audit("firewall_set_uid_rule", chainName, map[string]any{"uid": uid, "rule": int(rule)})
	return nil
}

func chainIsWhitelistByConvention(name string) bool {
	return name == chainDozable
}

func (c *Controller) rebuildBaseChains() error {
	var enabled []string
	for name, on := range c.childEnabled {
		if on {
			enabled = append(enabled, name)
		}
	}
	sort.Strings(enabled)

	sb := NewScriptBuilder(Table, family)
	sb.AddTable()
	inputScript := baseChainScript(Table, family, chainInput, "input", c.mode, enabled, c.genericRules)
	outputScript := baseChainScript(Table, family, chainOutput, "output", c.mode, enabled, c.genericRules)
	forwardScript := baseChainScript(Table, family, chainForward, "forward", c.mode, nil, nil)

	script := sb.Build() + inputScript + outputScript + forwardScript
	if err := ApplyAtomically(c.applier, script); err != nil {
		return fmt.Errorf("firewall: rebuild base chains: %w", err)
	}
	return nil
}
