//go:build linux
// +build linux

package firewall

import (
	"fmt"
	"regexp"
	"strings"
)

var identifierRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

func isValidIdentifier(s string) bool {
	return s != "" && identifierRegex.MatchString(s)
}

// quote wraps s in double quotes unless it is already a safe bare
// nft identifier, so names containing whitespace or punctuation can
// never be read as extra script syntax.
func quote(s string) string {
	if isValidIdentifier(s) {
		return s
	}
	return fmt.Sprintf("%q", s)
}

// ScriptBuilder accumulates nft(8) script statements line by line. It
// does not validate rule expressions — callers compose those with
// %-literal Sprintf and rely on Applier.ValidateScript to catch
// malformed syntax before anything is applied.
type ScriptBuilder struct {
	lines  []string
	table  string
	family string
}

func NewScriptBuilder(table, family string) *ScriptBuilder {
	return &ScriptBuilder{table: table, family: family}
}

func (b *ScriptBuilder) AddLine(line string) {
	b.lines = append(b.lines, line)
}

func (b *ScriptBuilder) AddTable() {
	b.AddLine(fmt.Sprintf("add table %s %s", b.family, quote(b.table)))
}

// AddChain declares chain, flushing it immediately after so re-running
// the same script against an already-present chain is idempotent.
// hookType/hook/priority/policy are only meaningful for base chains;
// pass empty hookType for a regular (non-base) chain.
func (b *ScriptBuilder) AddChain(name, hookType, hook string, priority int, policy string) {
	var line strings.Builder
	fmt.Fprintf(&line, "add chain %s %s %s", b.family, quote(b.table), quote(name))
	if hookType != "" {
		fmt.Fprintf(&line, " { type %s hook %s priority %d; policy %s; }", hookType, hook, priority, policy)
	}
	b.AddLine(line.String())
	b.AddLine(fmt.Sprintf("flush chain %s %s %s", b.family, quote(b.table), quote(name)))
}

func (b *ScriptBuilder) AddRule(chain, expr string) {
	b.AddLine(fmt.Sprintf("add rule %s %s %s %s", b.family, quote(b.table), quote(chain), expr))
}

func (b *ScriptBuilder) DeleteChain(name string) {
	b.AddLine(fmt.Sprintf("delete chain %s %s %s", b.family, quote(b.table), quote(name)))
}

func (b *ScriptBuilder) Build() string {
	return strings.Join(b.lines, "\n") + "\n"
}
