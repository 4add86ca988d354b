//go:build linux
// +build linux

package netlinklistener

import (
	"context"
	"fmt"
	"sync"
	"time"

	nflog "github.com/florianl/go-nflog/v2"

	"github.com/CyanogenMod/android-system-netd-sub000/internal/logging"
)

// QuotaAlertGroup is the NFLOG group a bandwidth-quota nftables rule
// logs to. Quota *rule generation* is out of scope (spec.md
// Non-goals); this only consumes whatever alert a pre-existing rule
// already emits.
const QuotaAlertGroup = 101

// QuotaAlert is one bandwidth-quota-alert event read off the NFLOG
// group.
type QuotaAlert struct {
	Prefix string
	Mark   uint32
}

func (a QuotaAlert) String() string {
	if a.Prefix == "" {
		return fmt.Sprintf("quota alert mark=%d", a.Mark)
	}
	return fmt.Sprintf("quota alert %s mark=%d", a.Prefix, a.Mark)
}

// QuotaAlertReader reads bandwidth-quota-alert packets logged to an
// NFLOG group and fans them out to subscribers. Adapted from the
// teacher's NFLogReader: trimmed to the fields a quota alert actually
// carries (log prefix and fwmark), with the SNI-inspection and ring-
// buffer/stats-dashboard logic dropped since nothing here serves a
// dashboard.
type QuotaAlertReader struct {
	group uint16
	nf    *nflog.Nflog

	logger *logging.Logger

	subsMu sync.RWMutex
	subs   []chan QuotaAlert

	cancel context.CancelFunc
}

func NewQuotaAlertReader(group uint16) *QuotaAlertReader {
	return &QuotaAlertReader{
		group:  group,
		logger: logging.WithComponent("netlinklistener.quota"),
	}
}

func (r *QuotaAlertReader) Start() error {
	config := nflog.Config{
		Group:       r.group,
		Copymode:    nflog.CopyPacket,
		ReadTimeout: 10 * time.Millisecond,
	}
	nf, err := nflog.Open(&config)
	if err != nil {
		return fmt.Errorf("quotaalert: open nflog group %d: %w", r.group, err)
	}
	r.nf = nf

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel

	err = nf.RegisterWithErrorFunc(ctx,
		func(attrs nflog.Attribute) int {
			r.broadcast(parseAttributes(attrs))
			return 0
		},
		func(err error) int {
			r.logger.Warn("nflog read error", "err", err)
			return 0
		},
	)
	if err != nil {
		nf.Close()
		cancel()
		return fmt.Errorf("quotaalert: register callback: %w", err)
	}
	return nil
}

func (r *QuotaAlertReader) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	if r.nf != nil {
		r.nf.Close()
	}
}

// Subscribe returns a channel that receives every alert from this
// point forward. The channel is buffered and drops events rather than
// blocking the nflog callback if a subscriber falls behind.
func (r *QuotaAlertReader) Subscribe() <-chan QuotaAlert {
	r.subsMu.Lock()
	defer r.subsMu.Unlock()
	ch := make(chan QuotaAlert, 64)
	r.subs = append(r.subs, ch)
	return ch
}

func (r *QuotaAlertReader) broadcast(alert QuotaAlert) {
	r.subsMu.RLock()
	defer r.subsMu.RUnlock()
	for _, ch := range r.subs {
		select {
		case ch <- alert:
		default:
		}
	}
}

func parseAttributes(attrs nflog.Attribute) QuotaAlert {
	var alert QuotaAlert
	if attrs.Prefix != nil {
		alert.Prefix = *attrs.Prefix
	}
	if attrs.Mark != nil {
		alert.Mark = *attrs.Mark
	}
	return alert
}
