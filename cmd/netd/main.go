// Command netd runs the network-configuration daemon: the admin
// command socket, the fwmark resolution socket, the DNS proxy socket,
// and the kernel link/quota event listener, all wired against one set
// of in-process controllers.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/CyanogenMod/android-system-netd-sub000/internal/daemon"
	"github.com/CyanogenMod/android-system-netd-sub000/internal/daemonconfig"
	"github.com/CyanogenMod/android-system-netd-sub000/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "Path to an HCL startup-config file (optional)")
	flag.Parse()

	cfg, err := daemonconfig.LoadFile(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "netd: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(logging.Config{Level: cfg.LoggingLevel(), JSON: cfg.LogJSON})
	logger.Info("starting", "admin_socket", cfg.AdminSocketPath, "fwmark_socket", cfg.FwmarkSocketPath, "dns_proxy_socket", cfg.DNSProxySocketPath)

	d := daemon.New(cfg, nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := d.Run(ctx); err != nil {
		logger.Error("fatal", "err", err)
		os.Exit(1)
	}
}
