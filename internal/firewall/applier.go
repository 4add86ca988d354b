//go:build linux

package firewall

import "fmt"

// Applier submits a complete nft script as one transaction. A chain
// replace built with ScriptBuilder is always flush-then-repopulate, so
// a single ApplyScript call never leaves traffic matching a half
// replaced chain.
type Applier interface {
	ValidateScript(script string) error
	ApplyScript(script string) error
}

// RealApplier shells out to nft(8), the same mechanism the platform's
// own netfilter tooling uses for one-shot atomic rule loads.
type RealApplier struct {
	runner CommandRunner
}

func NewRealApplier(runner CommandRunner) *RealApplier {
	return &RealApplier{runner: runner}
}

func (a *RealApplier) ValidateScript(script string) error {
	if err := a.runner.RunInput(script, "nft", "-c", "-f", "-"); err != nil {
		return fmt.Errorf("firewall: script validation: %w", err)
	}
	return nil
}

func (a *RealApplier) ApplyScript(script string) error {
	if err := a.runner.RunInput(script, "nft", "-f", "-"); err != nil {
		return fmt.Errorf("firewall: script apply: %w", err)
	}
	return nil
}

// ApplyAtomically validates before applying so a syntax error never
// reaches the kernel half-applied.
func ApplyAtomically(a Applier, script string) error {
	if err := a.ValidateScript(script); err != nil {
		return err
	}
	return a.ApplyScript(script)
}
