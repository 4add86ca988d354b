package dispatcher

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/CyanogenMod/android-system-netd-sub000/internal/firewall"
	"github.com/CyanogenMod/android-system-netd-sub000/internal/fwmark"
	"github.com/CyanogenMod/android-system-netd-sub000/internal/routecontrol"
)

// execute routes a parsed command line to its handler. args excludes
// the cookie; args[0] is the top-level verb ("network", "firewall", or
// the read-only "dispatcher" debug command).
func (s *Server) execute(args []string) (int, string) {
	if len(args) == 0 {
		return codeFor(syntaxErrorf("empty command")), "empty command"
	}

	var err error
	switch args[0] {
	case "network":
		err = s.execNetwork(args[1:])
	case "firewall":
		err = s.execFirewall(args[1:])
	case "dispatcher":
		return s.execDebug(args[1:])
	case "stats":
		return CommandOkay, s.metrics.snapshot()
	default:
		err = syntaxErrorf("unknown command %q", args[0])
	}

	if err != nil {
		return codeFor(err), err.Error()
	}
	return CommandOkay, "OK"
}

func (s *Server) execNetwork(args []string) error {
	if len(args) == 0 {
		return syntaxErrorf("network: missing sub-command")
	}
	switch args[0] {
	case "create":
		return s.networkCreate(args[1:])
	case "destroy":
		return s.networkDestroy(args[1:])
	case "interface":
		return s.networkInterface(args[1:])
	case "default":
		return s.networkDefault(args[1:])
	case "permission":
		return s.networkPermission(args[1:])
	case "uidrange":
		return s.networkUIDRange(args[1:])
	case "uidranges":
		return s.networkUIDRanges(args[1:])
	case "route":
		return s.networkRoute(args[1:])
	default:
		return syntaxErrorf("network: unknown sub-command %q", args[0])
	}
}

func (s *Server) networkCreate(args []string) error {
	if len(args) > 0 && args[0] == "vpn" {
		return s.networkCreateVPN(args[1:])
	}
	// network create <netId> [permission]
	if len(args) != 1 && len(args) != 2 {
		return syntaxErrorf("network create: want 1 or 2 arguments, got %d", len(args))
	}
	netID, err := parseNetID(args[0])
	if err != nil {
		return err
	}
	perm := fwmark.PermissionNone
	if len(args) == 2 {
		p, ok := fwmark.ParsePermission(args[1])
		if !ok {
			return paramErrorf("network create: unknown permission %q", args[1])
		}
		perm = p
	}
	return s.networks.CreateNetwork(netID, perm)
}

// networkCreateVPN implements the create-vpn supplement: a virtual
// network claims its owning UID range at creation time instead of
// through a separate "uidrange add" call, mirroring VirtualNetwork's
// constructor in the original.
func (s *Server) networkCreateVPN(args []string) error {
	if len(args) != 2 && len(args) != 3 {
		return syntaxErrorf("network create vpn: want 2 or 3 arguments, got %d", len(args))
	}
	netID, err := parseNetID(args[0])
	if err != nil {
		return err
	}
	start, end, err := parseUIDRange(args[1])
	if err != nil {
		return err
	}
	secure := false
	if len(args) == 3 {
		secure, err = parseBool(args[2])
		if err != nil {
			return err
		}
	}
	return s.networks.CreateVirtualNetwork(netID, start, end, secure)
}

func (s *Server) networkDestroy(args []string) error {
	if len(args) != 1 {
		return syntaxErrorf("network destroy: want 1 argument, got %d", len(args))
	}
	netID, err := parseNetID(args[0])
	if err != nil {
		return err
	}
	return s.networks.DestroyNetwork(netID)
}

func (s *Server) networkInterface(args []string) error {
	// network interface add|remove <netId> <iface>
	if len(args) != 3 {
		return syntaxErrorf("network interface: want 3 arguments, got %d", len(args))
	}
	netID, err := parseNetID(args[1])
	if err != nil {
		return err
	}
	iface := args[2]
	switch args[0] {
	case "add":
		return s.networks.AddInterfaceToNetwork(netID, iface)
	case "remove":
		return s.networks.RemoveInterfaceFromNetwork(netID, iface)
	default:
		return syntaxErrorf("network interface: unknown action %q", args[0])
	}
}

func (s *Server) networkDefault(args []string) error {
	// network default set <netId> | network default clear
	if len(args) == 0 {
		return syntaxErrorf("network default: missing action")
	}
	switch args[0] {
	case "set":
		if len(args) != 2 {
			return syntaxErrorf("network default set: want 1 argument, got %d", len(args)-1)
		}
		netID, err := parseNetID(args[1])
		if err != nil {
			return err
		}
		return s.networks.SetDefaultNetwork(netID)
	case "clear":
		if len(args) != 1 {
			return syntaxErrorf("network default clear: takes no arguments")
		}
		return s.networks.SetDefaultNetwork(fwmark.Unset)
	default:
		return syntaxErrorf("network default: unknown action %q", args[0])
	}
}

func (s *Server) networkPermission(args []string) error {
	// network permission user|network set <perm> <id...>
	if len(args) < 3 || args[1] != "set" {
		return syntaxErrorf("network permission: want \"user|network set <perm> <id...>\"")
	}
	perm, ok := fwmark.ParsePermission(args[2])
	if !ok {
		return paramErrorf("network permission: unknown permission %q", args[2])
	}
	ids := args[3:]
	if len(ids) == 0 {
		return syntaxErrorf("network permission: at least one id required")
	}

	switch args[0] {
	case "user":
		for _, idStr := range ids {
			uid, err := parseUint32(idStr)
			if err != nil {
				return err
			}
			s.permissions.SetPermissionForUser(perm, uid)
		}
		return nil
	case "network":
		netIDs := make([]fwmark.NetID, len(ids))
		for i, idStr := range ids {
			netID, err := parseNetID(idStr)
			if err != nil {
				return err
			}
			netIDs[i] = netID
		}
		return s.networks.SetPermissionForNetworks(perm, netIDs)
	default:
		return syntaxErrorf("network permission: unknown target %q", args[0])
	}
}

func (s *Server) networkUIDRange(args []string) error {
	// network uidrange add|remove <netId> <uidStart>-<uidEnd> <forwardDns?>
	if len(args) != 4 {
		return syntaxErrorf("network uidrange: want 4 arguments, got %d", len(args))
	}
	netID, err := parseNetID(args[1])
	if err != nil {
		return err
	}
	start, end, err := parseUIDRange(args[2])
	if err != nil {
		return err
	}
	forDNS, err := parseBool(args[3])
	if err != nil {
		return err
	}

	switch args[0] {
	case "add":
		return s.networks.AddUIDRange(netID, start, end, forDNS)
	case "remove":
		s.networks.RemoveUIDRange(netID, start, end)
		return nil
	default:
		return syntaxErrorf("network uidrange: unknown action %q", args[0])
	}
}

// networkUIDRanges implements the read-only "network uidranges list"
// supplement: dumps the selection ladder in priority order so an
// operator can see which range wins without cross-referencing kernel
// rule dumps.
func (s *Server) networkUIDRanges(args []string) error {
	if len(args) != 1 || args[0] != "list" {
		return syntaxErrorf("network uidranges: only \"list\" is supported")
	}
	var sb strings.Builder
	for _, e := range s.networks.UIDRanges() {
		fmt.Fprintf(&sb, "%d-%d netId=%d forDns=%t\n", e.Range.Start, e.Range.End, e.NetID, e.ForDNS)
	}
	s.lastListing = sb.String()
	return nil
}

func (s *Server) networkRoute(args []string) error {
	// network route add|remove <netId> <iface> <dst>/<len> [<nexthop>]
	if len(args) != 4 && len(args) != 5 {
		return syntaxErrorf("network route: want 4 or 5 arguments, got %d", len(args))
	}
	netID, err := parseNetID(args[1])
	if err != nil {
		return err
	}
	iface := args[2]
	destination := args[3]
	nexthop := ""
	if len(args) == 5 {
		nexthop = args[4]
	}

	if _, ok := s.networks.Network(netID); !ok {
		// A well-formed but unknown netId is a domain error (400), not
		// a malformed-parameter one (501): the command itself parsed
		// fine, it just names a network that doesn't exist.
		return fmt.Errorf("network route: unknown netId %d", netID)
	}

	switch args[0] {
	case "add":
		return s.routes.AddRoute(iface, destination, nexthop, routecontrol.TableInterface, 0)
	case "remove":
		return s.routes.RemoveRoute(iface, destination, nexthop, routecontrol.TableInterface, 0)
	default:
		return syntaxErrorf("network route: unknown action %q", args[0])
	}
}

// execFirewall handles the firewall command family.
func (s *Server) execFirewall(args []string) error {
	if len(args) == 0 {
		return syntaxErrorf("firewall: missing sub-command")
	}
	switch args[0] {
	case "enable":
		if len(args) != 2 {
			return syntaxErrorf("firewall enable: want 1 argument, got %d", len(args)-1)
		}
		mode, err := parseFirewallMode(args[1])
		if err != nil {
			return err
		}
		return s.firewallCtrl.EnableFirewall(mode)
	case "disable":
		if len(args) != 1 {
			return syntaxErrorf("firewall disable: takes no arguments")
		}
		return s.firewallCtrl.DisableFirewall()
	case "set_uid_rule":
		return s.firewallSetUIDRule(args[1:])
	case "set_chain":
		return s.firewallSetChain(args[1:])
	default:
		return syntaxErrorf("firewall: unknown sub-command %q", args[0])
	}
}

func (s *Server) firewallSetUIDRule(args []string) error {
	// firewall set_uid_rule <chain> <uid> allow|deny
	if len(args) != 3 {
		return syntaxErrorf("firewall set_uid_rule: want 3 arguments, got %d", len(args))
	}
	chain := args[0]
	if chain == "-" {
		chain = ""
	}
	uid, err := parseUint32(args[1])
	if err != nil {
		return err
	}
	rule, err := parseUIDRule(args[2])
	if err != nil {
		return err
	}
	return s.firewallCtrl.SetUIDRule(chain, uid, rule)
}

func (s *Server) firewallSetChain(args []string) error {
	// firewall set_chain <name> <whitelist|blacklist> <uid...>
	if len(args) < 2 {
		return syntaxErrorf("firewall set_chain: want at least 2 arguments, got %d", len(args))
	}
	name := args[0]
	mode, err := parseFirewallMode(args[1])
	if err != nil {
		return err
	}
	uids := make([]uint32, len(args)-2)
	for i, idStr := range args[2:] {
		uid, err := parseUint32(idStr)
		if err != nil {
			return err
		}
		uids[i] = uid
	}
	return s.firewallCtrl.ReplaceUIDChain(name, mode, uids)
}

// execDebug implements the read-only "dispatcher" debug command that
// dumps whatever the last informational command produced, mirroring
// the original's dumpUidRules diagnostics without re-running a mutating
// command.
func (s *Server) execDebug(args []string) (int, string) {
	if len(args) != 1 || args[0] != "dump" {
		return codeFor(syntaxErrorf("dispatcher: only \"dump\" is supported")), "only \"dump\" is supported"
	}
	if s.lastListing == "" {
		return ActionInitiated, "nothing to dump"
	}
	return CommandOkay, s.lastListing
}

func parseNetID(s string) (fwmark.NetID, error) {
	n, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, syntaxErrorf("invalid netId %q: %v", s, err)
	}
	return fwmark.NetID(n), nil
}

func parseUint32(s string) (uint32, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, syntaxErrorf("invalid uid %q: %v", s, err)
	}
	return uint32(n), nil
}

func parseUIDRange(s string) (uint32, uint32, error) {
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 {
		return 0, 0, paramErrorf("invalid uid range %q: want \"<start>-<end>\"", s)
	}
	start, err := parseUint32(parts[0])
	if err != nil {
		return 0, 0, err
	}
	end, err := parseUint32(parts[1])
	if err != nil {
		return 0, 0, err
	}
	if end < start {
		return 0, 0, paramErrorf("invalid uid range %q: end before start", s)
	}
	return start, end, nil
}

func parseBool(s string) (bool, error) {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, paramErrorf("invalid boolean %q", s)
	}
	return b, nil
}

func parseFirewallMode(s string) (firewall.Mode, error) {
	switch s {
	case "whitelist":
		return firewall.Whitelist, nil
	case "blacklist":
		return firewall.Blacklist, nil
	default:
		return 0, paramErrorf("invalid firewall mode %q: want whitelist|blacklist", s)
	}
}

func parseUIDRule(s string) (firewall.UIDRule, error) {
	switch s {
	case "allow":
		return firewall.Allow, nil
	case "deny":
		return firewall.Deny, nil
	default:
		return 0, paramErrorf("invalid uid rule %q: want allow|deny", s)
	}
}
