//go:build linux
// +build linux

package firewall

import "fmt"

// uidRuleScript builds the full, from-scratch nft script for one
// named chain given its mode and its explicit per-uid rule set. The
// chain is declared and flushed so reapplying is idempotent, then:
//
//   - whitelist chains get the ICMPv6 pass-through preamble (IPv6
//     connectivity breaks for allowed UIDs without it) and a
//     system-UID pass-through covering every UID below aidApp, since
//     system processes are never subject to app-level whitelisting;
//   - every explicit rule becomes one verdict statement, allow
//     returning out of the chain and deny dropping;
//   - whitelist chains end with a catch-all drop, since anything not
//     explicitly allowed must be blocked; blacklist chains end with
//     nothing, falling back to whatever the caller chain decides.
func uidRuleScript(table, family, name string, mode Mode, rules map[uint32]UIDRule) string {
	sb := NewScriptBuilder(table, family)
	sb.AddChain(name, "", "", 0, "")

	if mode == Whitelist {
		for _, t := range icmpv6PassThroughTypes {
			sb.AddRule(name, fmt.Sprintf("meta l4proto ipv6-icmp icmpv6 type %s return", t))
		}
		sb.AddRule(name, fmt.Sprintf("meta skuid 0-%d return", aidApp-1))
	}

	for uid, rule := range rules {
		switch rule {
		case Allow:
			sb.AddRule(name, fmt.Sprintf("meta skuid %d return", uid))
		case Deny:
			sb.AddRule(name, fmt.Sprintf("meta skuid %d drop", uid))
		}
	}

	if mode == Whitelist {
		sb.AddRule(name, "drop")
	}

	return sb.Build()
}

// baseChainScript declares/flushes one of the three standing base
// chains (fw_INPUT/fw_OUTPUT/fw_FORWARD), reseeds it per mode, then
// attaches whichever child chains are currently enabled and replays
// the generic (chain-less) per-uid rule set directly into it.
//
// Whitelist mode seeds a terminal deny (drop on input, reject on
// output/forward) so nothing not explicitly allowed gets through;
// blacklist mode seeds nothing, relying on the per-uid drop rules
// alone.
func baseChainScript(table, family, name, hook string, mode Mode, enabledChildren []string, generic map[uint32]UIDRule) string {
	sb := NewScriptBuilder(table, family)
	sb.AddChain(name, "filter", hook, 0, "accept")

	for uid, rule := range generic {
		switch rule {
		case Allow:
			sb.AddRule(name, fmt.Sprintf("meta skuid %d return", uid))
		case Deny:
			sb.AddRule(name, fmt.Sprintf("meta skuid %d drop", uid))
		}
	}

	for _, child := range enabledChildren {
		sb.AddRule(name, fmt.Sprintf("jump %s", quote(child)))
	}

	if mode == Whitelist {
		if hook == "input" {
			sb.AddRule(name, "drop")
		} else {
			sb.AddRule(name, "reject")
		}
	}

	return sb.Build()
}
