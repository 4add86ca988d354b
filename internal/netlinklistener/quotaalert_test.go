//go:build linux
// +build linux

package netlinklistener

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuotaAlertStringWithPrefix(t *testing.T) {
	a := QuotaAlert{Prefix: "quota_exceeded", Mark: 42}
	assert.Equal(t, "quota alert quota_exceeded mark=42", a.String())
}

func TestQuotaAlertStringWithoutPrefix(t *testing.T) {
	a := QuotaAlert{Mark: 7}
	assert.Equal(t, "quota alert mark=7", a.String())
}

func TestQuotaAlertSubscribeFanout(t *testing.T) {
	r := NewQuotaAlertReader(QuotaAlertGroup)
	chA := r.Subscribe()
	chB := r.Subscribe()

	r.broadcast(QuotaAlert{Mark: 1})

	assert.Equal(t, QuotaAlert{Mark: 1}, <-chA)
	assert.Equal(t, QuotaAlert{Mark: 1}, <-chB)
}

func TestQuotaAlertBroadcastDropsWhenSubscriberFull(t *testing.T) {
	r := NewQuotaAlertReader(QuotaAlertGroup)
	ch := r.Subscribe()

	for i := 0; i < 100; i++ {
		r.broadcast(QuotaAlert{Mark: uint32(i)})
	}

	assert.LessOrEqual(t, len(ch), cap(ch))
}
