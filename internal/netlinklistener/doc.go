// Package netlinklistener watches kernel network events and turns them
// into broadcast lines on the admin dispatcher's connection registry.
// It never mutates daemon state: interface add/remove/link-up/down and
// bandwidth-quota alerts are reported, not acted on.
package netlinklistener
