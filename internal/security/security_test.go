package security

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGrantThenCheckSpecificObject(t *testing.T) {
	c := NewStaticPrivilegeChecker()
	c.Grant("alice", ObjectTable, "accounts", PrivSelect, PrivInsert)

	require.True(t, c.UserHasPrivilege("alice", ObjectTable, "accounts", PrivSelect))
	require.True(t, c.UserHasPrivilege("alice", ObjectTable, "accounts", PrivInsert))
	require.False(t, c.UserHasPrivilege("alice", ObjectTable, "accounts", PrivDelete))
}

func TestWildcardObjectNameGrant(t *testing.T) {
	c := NewStaticPrivilegeChecker()
	c.Grant("bob", ObjectTable, "*", PrivSelect)

	require.True(t, c.UserHasPrivilege("bob", ObjectTable, "anything", PrivSelect))
	require.False(t, c.UserHasPrivilege("bob", ObjectView, "anything", PrivSelect))
}

func TestRevokeRemovesPrivilege(t *testing.T) {
	c := NewStaticPrivilegeChecker()
	c.Grant("alice", ObjectTable, "accounts", PrivSelect)
	c.Revoke("alice", ObjectTable, "accounts", PrivSelect)

	require.False(t, c.UserHasPrivilege("alice", ObjectTable, "accounts", PrivSelect))
}

func TestUngrantedUserHasNoPrivileges(t *testing.T) {
	c := NewStaticPrivilegeChecker()
	require.False(t, c.UserHasPrivilege("nobody", ObjectTable, "accounts", PrivSelect))
}
