// Package firewall implements the UID-based whitelist/blacklist chain
// model and the ingress network-id marking rule, applied to nftables.
//
// Rules are generated as a textual nft script and submitted in one
// transaction via nft -f -, so a chain replace never leaves the kernel
// in a half-updated state.
//
//	Controller → ScriptBuilder → nft script → Applier → kernel
package firewall
