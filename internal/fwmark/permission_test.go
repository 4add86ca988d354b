package fwmark

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPermissionHolds(t *testing.T) {
	both := PermissionChangeNetworkState | PermissionConnectivityInternal

	assert.True(t, both.Holds(PermissionChangeNetworkState))
	assert.True(t, both.Holds(PermissionConnectivityInternal))
	assert.True(t, both.Holds(both))
	assert.True(t, PermissionNone.Holds(PermissionNone))

	assert.False(t, PermissionChangeNetworkState.Holds(PermissionConnectivityInternal))
	assert.False(t, PermissionNone.Holds(PermissionChangeNetworkState))
}

func TestPermissionStringAndParseRoundTrip(t *testing.T) {
	tests := []struct {
		perm Permission
		str  string
	}{
		{PermissionNone, "NONE"},
		{PermissionChangeNetworkState, "CHANGE_NETWORK_STATE"},
		{PermissionConnectivityInternal, "CONNECTIVITY_INTERNAL"},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.str, tc.perm.String())
		got, ok := ParsePermission(tc.str)
		assert.True(t, ok)
		assert.Equal(t, tc.perm, got)
	}

	assert.Equal(t, "CHANGE_NETWORK_STATE|CONNECTIVITY_INTERNAL",
		(PermissionChangeNetworkState | PermissionConnectivityInternal).String())
}

func TestParsePermissionEmptyIsNone(t *testing.T) {
	got, ok := ParsePermission("")
	assert.True(t, ok)
	assert.Equal(t, PermissionNone, got)
}

func TestParsePermissionRejectsUnknown(t *testing.T) {
	_, ok := ParsePermission("BOGUS")
	assert.False(t, ok)
}
