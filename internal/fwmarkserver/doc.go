// Package fwmarkserver implements the ancillary-data socket that lets
// an unprivileged process ask the daemon to stamp a fwmark onto one of
// its own sockets.
//
// A client connects, sends one fixed-size command record plus a single
// socket fd via SCM_RIGHTS, and the server replies with a 4-byte status
// and closes. The passed fd is never kept past the one request: its
// SO_MARK is read, transitioned according to the command, written back,
// and the fd is closed before the connection handler returns.
package fwmarkserver
