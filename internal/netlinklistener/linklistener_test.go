//go:build linux
// +build linux

package netlinklistener

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"
)

type fakeBroadcaster struct {
	codes    []int
	messages []string
}

func (f *fakeBroadcaster) Broadcast(code int, message string) {
	f.codes = append(f.codes, code)
	f.messages = append(f.messages, message)
}

func newLinkUpdate(msgType uint16, change, flags uint32, name string) netlink.LinkUpdate {
	link := &netlink.Device{LinkAttrs: netlink.LinkAttrs{Name: name}}
	return netlink.LinkUpdate{
		Header: unix.NlMsghdr{Type: msgType},
		IfInfomsg: netlink.IfInfomsg{
			IfInfomsg: unix.IfInfomsg{Flags: flags, Change: change},
		},
		Link: link,
	}
}

func TestDescribeLinkUpdateAdded(t *testing.T) {
	u := newLinkUpdate(unix.RTM_NEWLINK, 0, 0, "wlan0")
	assert.Equal(t, "wlan0 added", describeLinkUpdate(u))
}

func TestDescribeLinkUpdateUp(t *testing.T) {
	u := newLinkUpdate(unix.RTM_NEWLINK, unix.IFF_UP, unix.IFF_UP, "wlan0")
	assert.Equal(t, "wlan0 up", describeLinkUpdate(u))
}

func TestDescribeLinkUpdateDown(t *testing.T) {
	u := newLinkUpdate(unix.RTM_NEWLINK, unix.IFF_UP, 0, "wlan0")
	assert.Equal(t, "wlan0 down", describeLinkUpdate(u))
}

func TestDescribeLinkUpdateRemoved(t *testing.T) {
	u := newLinkUpdate(unix.RTM_DELLINK, 0, 0, "wlan0")
	assert.Equal(t, "wlan0 removed", describeLinkUpdate(u))
}

func TestConsumeLinkUpdatesBroadcasts(t *testing.T) {
	b := &fakeBroadcaster{}
	l := New(b, nil)

	ch := make(chan netlink.LinkUpdate, 1)
	ch <- newLinkUpdate(unix.RTM_DELLINK, 0, 0, "eth1")
	close(ch)

	l.consumeLinkUpdates(ch)

	assert.Equal(t, []int{InterfaceChange}, b.codes)
	assert.Equal(t, []string{"eth1 removed"}, b.messages)
}
