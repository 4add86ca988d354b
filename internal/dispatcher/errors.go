package dispatcher

import (
	"errors"

	"github.com/CyanogenMod/android-system-netd-sub000/internal/neterr"
)

// wireError tags an error with the exact admin-protocol response code
// it should produce. Command handlers return a plain wireError for
// validation failures caught before any controller is called; an
// error with no wireError in its chain is assumed to have come from a
// controller and reached the kernel boundary, which the admin
// protocol reports uniformly as "accepted but failed" regardless of
// whether the underlying neterr.Kind was Domain, Permission, or
// Kernel.
type wireError struct {
	code int
	err  error
}

func (w *wireError) Error() string { return w.err.Error() }
func (w *wireError) Unwrap() error { return w.err }

// syntaxErrorf reports a malformed command or wrong arity: 500.
func syntaxErrorf(format string, args ...any) error {
	return &wireError{code: CommandSyntaxErr, err: neterr.SyntaxError(format, args...)}
}

// paramErrorf reports a well-formed command with an invalid argument
// value (bad keyword, unparsable range): 501.
func paramErrorf(format string, args ...any) error {
	return &wireError{code: CommandParamErr, err: neterr.SyntaxError(format, args...)}
}

// codeFor maps a command handler's returned error onto its wire
// response code.
func codeFor(err error) int {
	var we *wireError
	if errors.As(err, &we) {
		return we.code
	}
	return OperationFailed
}
