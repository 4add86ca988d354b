//go:build linux
// +build linux

package firewall

// Table is the nftables table every chain in this package lives in.
const Table = "filter"

const (
	chainInput   = "fw_INPUT"
	chainOutput  = "fw_OUTPUT"
	chainForward = "fw_FORWARD"

	chainDozable = "fw_dozable"
	chainStandby = "fw_standby"

	chainIngressMark = "fw_mangle_PREROUTING"
)

// aidApp is the first UID reserved for installed applications; UIDs
// below it belong to system processes and always pass a whitelist
// chain, mirroring the platform's UID numbering convention.
const aidApp = 10000

// icmpv6PassThroughTypes are the ICMPv6 message types a whitelist
// chain always lets through, without which IPv6 connectivity breaks
// even for allowed UIDs (neighbor discovery, path MTU).
var icmpv6PassThroughTypes = []string{
	"packet-too-big",
	"router-solicitation",
	"router-advertisement",
	"neighbour-solicitation",
	"neighbour-advertisement",
	"redirect",
}
