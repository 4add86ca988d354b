package daemonconfig

import (
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"

	"github.com/CyanogenMod/android-system-netd-sub000/internal/logging"
)

// AIDAppStart is the first UID assigned to an installed application.
// UIDs below this belong to system services and always pass through a
// whitelist firewall chain regardless of per-UID rules. Grounded on the
// Android UID scheme the original daemon hard-codes.
const AIDAppStart = 10000

// Config is the daemon's startup configuration. It has no HCL blocks,
// only scalar attributes, because there is nothing to nest: one daemon
// process owns exactly one admin socket, one fwmark socket, one DNS
// proxy socket, and one route-table offset.
type Config struct {
	AdminSocketPath    string `hcl:"admin_socket_path,optional" json:"admin_socket_path,omitempty"`
	FwmarkSocketPath   string `hcl:"fwmark_socket_path,optional" json:"fwmark_socket_path,omitempty"`
	DNSProxySocketPath string `hcl:"dns_proxy_socket_path,optional" json:"dns_proxy_socket_path,omitempty"`

	// RouteTableOffset is loaded and saved but not applied: per-interface
	// routing table numbers come from routecontrol.RouteTableOffset.
	RouteTableOffset int `hcl:"route_table_offset,optional" json:"route_table_offset,omitempty"`

	// AppUIDStart is loaded and saved but not applied: the whitelist
	// system pass-through uses the firewall package's compiled-in bound.
	AppUIDStart uint32 `hcl:"app_uid_start,optional" json:"app_uid_start,omitempty"`

	// LogLevel is one of "debug", "info", "warn", "error".
	LogLevel string `hcl:"log_level,optional" json:"log_level,omitempty"`

	// LogJSON selects the console format (false) or JSON format (true).
	LogJSON bool `hcl:"log_json,optional" json:"log_json,omitempty"`
}

// DefaultConfig returns the configuration a daemon started with no
// config file at all would use.
func DefaultConfig() Config {
	return Config{
		AdminSocketPath:    "/dev/socket/netd",
		FwmarkSocketPath:   "/dev/socket/fwmarkd",
		DNSProxySocketPath: "/dev/socket/dnsproxyd",
		RouteTableOffset:   10000,
		AppUIDStart:        AIDAppStart,
		LogLevel:           "info",
		LogJSON:            false,
	}
}

// LoadFile reads and decodes an HCL startup-config file, filling in
// DefaultConfig() for any attribute the file omits. A missing path is
// not an error: it returns DefaultConfig() unchanged, since a daemon
// with no config file is a normal deployment, not a misconfiguration.
func LoadFile(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	var overlay Config
	if err := hclsimple.DecodeFile(path, nil, &overlay); err != nil {
		return Config{}, fmt.Errorf("daemonconfig: decode %s: %w", path, err)
	}
	applyOverlay(&cfg, overlay)
	return cfg, nil
}

// applyOverlay copies every non-zero field of overlay onto cfg. HCL's
// "optional" tag leaves an omitted attribute at its Go zero value, so a
// zero value here always means "not set in the file", never an
// explicit override to zero.
func applyOverlay(cfg *Config, overlay Config) {
	if overlay.AdminSocketPath != "" {
		cfg.AdminSocketPath = overlay.AdminSocketPath
	}
	if overlay.FwmarkSocketPath != "" {
		cfg.FwmarkSocketPath = overlay.FwmarkSocketPath
	}
	if overlay.DNSProxySocketPath != "" {
		cfg.DNSProxySocketPath = overlay.DNSProxySocketPath
	}
	if overlay.RouteTableOffset != 0 {
		cfg.RouteTableOffset = overlay.RouteTableOffset
	}
	if overlay.AppUIDStart != 0 {
		cfg.AppUIDStart = overlay.AppUIDStart
	}
	if overlay.LogLevel != "" {
		cfg.LogLevel = overlay.LogLevel
	}
	if overlay.LogJSON {
		cfg.LogJSON = overlay.LogJSON
	}
}

// LoggingLevel parses LogLevel into a logging.Level, defaulting to
// info on an unrecognized string rather than failing startup over a
// typo in a log-level name.
func (c Config) LoggingLevel() logging.Level {
	switch c.LogLevel {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

// WriteDefault renders cfg as an HCL file, the way an operator would
// generate a starting point to edit. Uses hclwrite/cty directly rather
// than a struct-tag-driven encoder since Config is small enough that
// an explicit attribute list is clearer than a generic walker.
func WriteDefault(cfg Config) []byte {
	f := hclwrite.NewEmptyFile()
	body := f.Body()
	body.SetAttributeValue("admin_socket_path", cty.StringVal(cfg.AdminSocketPath))
	body.SetAttributeValue("fwmark_socket_path", cty.StringVal(cfg.FwmarkSocketPath))
	body.SetAttributeValue("dns_proxy_socket_path", cty.StringVal(cfg.DNSProxySocketPath))
	body.SetAttributeValue("route_table_offset", cty.NumberIntVal(int64(cfg.RouteTableOffset)))
	body.SetAttributeValue("app_uid_start", cty.NumberIntVal(int64(cfg.AppUIDStart)))
	body.SetAttributeValue("log_level", cty.StringVal(cfg.LogLevel))
	body.SetAttributeValue("log_json", cty.BoolVal(cfg.LogJSON))
	return f.Bytes()
}
