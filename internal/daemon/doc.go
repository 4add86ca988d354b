// Package daemon is the composition root: it owns every controller and
// every listening socket, wires them together once at startup, and
// brings them up and down as a unit. Nothing outside this package
// holds a global reference to any of them.
package daemon
