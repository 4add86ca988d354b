package daemon

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/CyanogenMod/android-system-netd-sub000/internal/clock"
	"github.com/CyanogenMod/android-system-netd-sub000/internal/daemonconfig"
	"github.com/CyanogenMod/android-system-netd-sub000/internal/dispatcher"
	"github.com/CyanogenMod/android-system-netd-sub000/internal/dnsproxy"
	"github.com/CyanogenMod/android-system-netd-sub000/internal/firewall"
	"github.com/CyanogenMod/android-system-netd-sub000/internal/fwmarkserver"
	"github.com/CyanogenMod/android-system-netd-sub000/internal/logging"
	"github.com/CyanogenMod/android-system-netd-sub000/internal/netctrl"
	"github.com/CyanogenMod/android-system-netd-sub000/internal/netlinklistener"
	"github.com/CyanogenMod/android-system-netd-sub000/internal/permission"
	"github.com/CyanogenMod/android-system-netd-sub000/internal/routecontrol"
)

// listener is the subset of every socket server's lifecycle the daemon
// needs to start and stop it; fwmarkserver.Server, dnsproxy.Server, and
// dispatcher.Server all satisfy it already.
type listener interface {
	Start() error
	Close() error
}

// Daemon owns every controller and every listening socket for one
// running instance of the network-configuration daemon. There is
// exactly one Daemon per process; nothing it owns is reachable through
// a package-level variable.
type Daemon struct {
	cfg    daemonconfig.Config
	logger *logging.Logger

	Permissions *permission.Registry
	Routes      *routecontrol.Controller
	Firewall    *firewall.Controller
	Networks    *netctrl.Controller
	Ingress     *firewall.IngressMarker

	FwmarkServer    *fwmarkserver.Server
	DNSProxy        *dnsproxy.Server
	Dispatcher      *dispatcher.Server
	NetlinkListener *netlinklistener.Listener

	listeners []listener
}

// New wires every controller and listening socket from cfg. Network
// and privileged operations (netlink, nftables) are not performed
// here; they only happen once Run starts the listeners.
func New(cfg daemonconfig.Config, reg *prometheus.Registry) *Daemon {
	logging.SetProcessName("netd")

	permissions := permission.NewRegistry()
	routes := routecontrol.NewController(routecontrol.RealNetlinker{})
	fw := firewall.NewController(firewall.NewRealApplier(firewall.DefaultCommandRunner))
	cache := dnsproxy.NewCache(clock.RealClock{})
	networks := netctrl.NewController(routes, permissions, cache)
	// The ingress packet-marking rule needs a real nftables connection;
	// opening that is deferred to Run, along with every other
	// privileged setup step.

	fwmarkSrv := fwmarkserver.New(cfg.FwmarkSocketPath, networks, permissions)
	dnsSrv := dnsproxy.New(cfg.DNSProxySocketPath, networks, cache)
	dispatch := dispatcher.New(cfg.AdminSocketPath, networks, routes, fw, permissions, reg)
	quota := netlinklistener.NewQuotaAlertReader(netlinklistener.QuotaAlertGroup)
	netlinkLsn := netlinklistener.New(dispatch, quota)

	d := &Daemon{
		cfg:             cfg,
		logger:          logging.WithComponent("daemon"),
		Permissions:     permissions,
		Routes:          routes,
		Firewall:        fw,
		Networks:        networks,
		FwmarkServer:    fwmarkSrv,
		DNSProxy:        dnsSrv,
		Dispatcher:      dispatch,
		NetlinkListener: netlinkLsn,
	}
	d.listeners = []listener{fwmarkSrv, dnsSrv, dispatch}
	return d
}

// Run starts every listening socket concurrently, logs readiness, and
// blocks until ctx is canceled, at which point it closes every
// listener and returns the first start-up error encountered, if any.
func (d *Daemon) Run(ctx context.Context) error {
	ingress, err := firewall.NewRealIngressMarker()
	if err != nil {
		return fmt.Errorf("daemon: opening ingress marker: %w", err)
	}
	if err := ingress.Setup(); err != nil {
		return fmt.Errorf("daemon: setting up ingress marker: %w", err)
	}
	d.Ingress = ingress
	d.Networks.SetIngressMarker(ingress)

	group, _ := errgroup.WithContext(ctx)
	for _, l := range d.listeners {
		l := l
		group.Go(func() error { return l.Start() })
	}
	group.Go(func() error { return d.NetlinkListener.Start() })

	if err := group.Wait(); err != nil {
		d.closeAll()
		return fmt.Errorf("daemon: startup: %w", err)
	}

	d.logger.Audit("daemon_started", "daemon", map[string]any{
		"admin_socket":    d.cfg.AdminSocketPath,
		"fwmark_socket":   d.cfg.FwmarkSocketPath,
		"dnsproxy_socket": d.cfg.DNSProxySocketPath,
	})

	<-ctx.Done()
	d.logger.Info("shutting down")
	d.closeAll()
	return nil
}

func (d *Daemon) closeAll() {
	d.NetlinkListener.Stop()
	for _, l := range d.listeners {
		if err := l.Close(); err != nil {
			d.logger.Warn("listener close failed", "err", err)
		}
	}
}
