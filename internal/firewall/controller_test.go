//go:build linux

package firewall

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newRecordingApplier() *MockApplier {
	a := &MockApplier{}
	a.On("ValidateScript", mock.Anything).Return(nil).Maybe()
	a.On("ApplyScript", mock.Anything).Return(nil).Maybe()
	return a
}

func TestReplaceUIDChainWhitelistShape(t *testing.T) {
	applier := newRecordingApplier()
	c := NewController(applier)

	require.NoError(t, c.ReplaceUIDChain(chainDozable, Whitelist, []uint32{10023, 10059, 10124}))

	require.NotEmpty(t, applier.AppliedScripts)
	script := applier.AppliedScripts[len(applier.AppliedScripts)-1]

	for _, want := range []string{
		"meta skuid 10023 return",
		"meta skuid 10059 return",
		"meta skuid 10124 return",
		"icmpv6 type packet-too-big return",
		"meta skuid 0-9999 return",
		"drop",
	} {
		assert.Contains(t, script, want)
	}
}

func TestReplaceUIDChainBlacklistHasNoSystemPassthrough(t *testing.T) {
	applier := newRecordingApplier()
	c := NewController(applier)

	require.NoError(t, c.ReplaceUIDChain(chainStandby, Blacklist, []uint32{10500}))

	script := applier.AppliedScripts[len(applier.AppliedScripts)-1]
	assert.Contains(t, script, "meta skuid 10500 drop")
	assert.NotContains(t, script, "0-9999")
}

func TestReplaceUIDChainEmptyListStillValid(t *testing.T) {
	applier := newRecordingApplier()
	c := NewController(applier)

	require.NoError(t, c.ReplaceUIDChain(chainDozable, Whitelist, nil))
	script := applier.AppliedScripts[len(applier.AppliedScripts)-1]
	assert.Contains(t, script, "add chain")
	assert.Contains(t, script, "drop")
}

func TestSetChildChainEnabledAttachesJumpToBothBaseChains(t *testing.T) {
	applier := newRecordingApplier()
	c := NewController(applier)

	require.NoError(t, c.SetChildChainEnabled(chainDozable, true))
	script := applier.AppliedScripts[len(applier.AppliedScripts)-1]

	assert.Equal(t, 2, strings.Count(script, "jump fw_dozable"))
	assert.Contains(t, script, "chain inet filter fw_INPUT")
	assert.Contains(t, script, "chain inet filter fw_OUTPUT")

	require.NoError(t, c.SetChildChainEnabled(chainDozable, false))
	script = applier.AppliedScripts[len(applier.AppliedScripts)-1]
	assert.NotContains(t, script, "jump")
}

func TestEnableFirewallWhitelistSeedsTerminalDeny(t *testing.T) {
	applier := newRecordingApplier()
	c := NewController(applier)

	require.NoError(t, c.EnableFirewall(Whitelist))
	script := applier.AppliedScripts[len(applier.AppliedScripts)-1]
	assert.Contains(t, script, "chain inet filter fw_INPUT")
	assert.Contains(t, script, "add rule inet filter fw_INPUT drop")

	require.NoError(t, c.DisableFirewall())
	script = applier.AppliedScripts[len(applier.AppliedScripts)-1]
	// A disabled firewall reseeds base chains with no terminal deny.
	lines := strings.Split(script, "\n")
	inputSection := false
	for _, l := range lines {
		if strings.Contains(l, "add chain") && strings.Contains(l, "fw_INPUT") {
			inputSection = true
			continue
		}
		if inputSection && strings.Contains(l, "add chain") {
			break
		}
		if inputSection {
			assert.NotContains(t, l, "drop")
		}
	}
}

func TestSetUIDRuleGenericChainAppliesToBothBaseChains(t *testing.T) {
	applier := newRecordingApplier()
	c := NewController(applier)

	require.NoError(t, c.SetUIDRule("", 10777, Deny))
	script := applier.AppliedScripts[len(applier.AppliedScripts)-1]

	assert.Equal(t, 2, strings.Count(script, "meta skuid 10777 drop"))
}

func TestValidateScriptFailureAbortsApply(t *testing.T) {
	applier := &MockApplier{}
	applier.On("ValidateScript", mock.Anything).Return(assert.AnError)
	c := NewController(applier)

	err := c.ReplaceUIDChain(chainDozable, Whitelist, []uint32{1})
	assert.Error(t, err)
	assert.Empty(t, applier.AppliedScripts)
}
