package routecontrol

// Rule priorities, ascending = looked up first. The ladder order is
// the entire routing contract: privileged legacy first, then the
// per-network explicit and outgoing-interface rules, then legacy, then
// the per-network normal rule, then the default network, then the
// kernel main table, then the catch-all unreachable.
const (
	priorityPrivilegedLegacy  = 11000
	priorityPerNetworkExplicit = 13000
	priorityPerNetworkInterface = 14000
	priorityLegacy             = 16000
	priorityPerNetworkNormal   = 17000
	priorityDefaultNetwork     = 19000
	priorityMain               = 20000
	priorityUnreachable        = 21000
)
