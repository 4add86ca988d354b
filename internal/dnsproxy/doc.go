// Package dnsproxy implements the local socket unprivileged processes
// use to resolve names on behalf of whichever network the caller's UID
// currently selects. It never resolves anything itself: every lookup
// is dialed out through a socket stamped with the caller's fwmark, so
// the kernel's policy-routing rules hand it to the right interface and
// the system resolver configuration for that network does the actual
// work.
package dnsproxy
