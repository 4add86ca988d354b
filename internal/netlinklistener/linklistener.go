//go:build linux
// +build linux

package netlinklistener

import (
	"context"
	"fmt"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	"github.com/CyanogenMod/android-system-netd-sub000/internal/logging"
)

// Listener subscribes to kernel link events and bandwidth-quota alerts
// and broadcasts a textual event for each one. It owns no daemon
// state: every event is report-only.
type Listener struct {
	broadcaster Broadcaster
	logger      *logging.Logger
	quota       *QuotaAlertReader

	cancel context.CancelFunc
}

// New wires a listener. quota may be nil to disable the bandwidth-
// quota-alert feed (e.g. when the kernel has no matching NFLOG rule
// installed yet).
func New(broadcaster Broadcaster, quota *QuotaAlertReader) *Listener {
	return &Listener{
		broadcaster: broadcaster,
		logger:      logging.WithComponent("netlinklistener"),
		quota:       quota,
	}
}

// Start begins consuming link updates and, if configured, quota
// alerts, in background goroutines. Start returns once the initial
// subscriptions succeed; events stream until Stop is called.
func (l *Listener) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel

	updates := make(chan netlink.LinkUpdate)
	if err := netlink.LinkSubscribe(updates, ctx.Done()); err != nil {
		cancel()
		return fmt.Errorf("netlinklistener: subscribe to link updates: %w", err)
	}
	go l.consumeLinkUpdates(updates)

	if l.quota != nil {
		if err := l.quota.Start(); err != nil {
			cancel()
			return fmt.Errorf("netlinklistener: start quota-alert reader: %w", err)
		}
		go l.consumeQuotaAlerts(l.quota.Subscribe())
	}

	return nil
}

// Stop ends every subscription. Idempotent.
func (l *Listener) Stop() {
	if l.cancel != nil {
		l.cancel()
	}
	if l.quota != nil {
		l.quota.Stop()
	}
}

func (l *Listener) consumeLinkUpdates(updates <-chan netlink.LinkUpdate) {
	for update := range updates {
		l.broadcaster.Broadcast(InterfaceChange, describeLinkUpdate(update))
	}
}

func (l *Listener) consumeQuotaAlerts(alerts <-chan QuotaAlert) {
	for alert := range alerts {
		l.broadcaster.Broadcast(BandwidthControl, alert.String())
	}
}

// describeLinkUpdate turns a link update into the one-line event text
// the original's NetlinkHandler would have formatted for its framework
// clients: "<iface> <added|removed|up|down>".
func describeLinkUpdate(update netlink.LinkUpdate) string {
	name := update.Link.Attrs().Name

	switch update.Header.Type {
	case unix.RTM_DELLINK:
		return fmt.Sprintf("%s removed", name)
	case unix.RTM_NEWLINK:
		if update.Change&unix.IFF_UP != 0 {
			if update.IfInfomsg.Flags&unix.IFF_UP != 0 {
				return fmt.Sprintf("%s up", name)
			}
			return fmt.Sprintf("%s down", name)
		}
		return fmt.Sprintf("%s added", name)
	default:
		return fmt.Sprintf("%s changed", name)
	}
}
