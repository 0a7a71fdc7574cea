package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_happyPath(t *testing.T) {
	s := New()
	assert.Equal(t, LoggedOut, s.State())

	require.NoError(t, s.Begin())
	assert.Equal(t, LoggingIn, s.State())

	require.NoError(t, s.Succeed("Manager", "tok-1"))
	assert.Equal(t, LoggedIn, s.State())
	assert.Equal(t, "tok-1", s.ID())
	assert.Equal(t, "Manager", s.Current().Role)
	assert.True(t, s.CanManageInventory())

	s.Logout()
	assert.Equal(t, LoggedOut, s.State())
	assert.Empty(t, s.ID())
	assert.Empty(t, s.Current().Role)
}

func TestSession_beginRefusedWhileLoggingIn(t *testing.T) {
	s := New()
	require.NoError(t, s.Begin())
	assert.ErrorIs(t, s.Begin(), ErrLoginInProgress)

	s.Fail()
	assert.Equal(t, LoggedOut, s.State())
	require.NoError(t, s.Begin())
}

func TestSession_beginRefusedWhenLoggedIn(t *testing.T) {
	s := New()
	require.NoError(t, s.Begin())
	require.NoError(t, s.Succeed("Admin", "tok"))
	assert.ErrorIs(t, s.Begin(), ErrAlreadyLoggedIn)
}

func TestSession_succeedRequiresLoggingIn(t *testing.T) {
	s := New()
	assert.ErrorIs(t, s.Succeed("Admin", "tok"), ErrBadTransition)
	assert.Equal(t, LoggedOut, s.State())
}

func TestSession_invalidateClearsAndNotifies(t *testing.T) {
	s := New()
	var reasons []Reason
	s.OnLogout(func(r Reason) { reasons = append(reasons, r) })

	require.NoError(t, s.Begin())
	require.NoError(t, s.Succeed("Cashier", "tok-1"))
	assert.False(t, s.CanManageInventory())

	s.Invalidate()
	assert.Equal(t, LoggedOut, s.State())
	assert.Empty(t, s.ID())

	// A second invalidation from another in-flight call is a no-op.
	s.Invalidate()
	assert.Equal(t, []Reason{ReasonInvalidated}, reasons)

	require.NoError(t, s.Begin())
	require.NoError(t, s.Succeed("Cashier", "tok-2"))
	assert.Equal(t, "tok-2", s.ID())
}

func TestCanManageInventory(t *testing.T) {
	assert.True(t, CanManageInventory("admin"))
	assert.True(t, CanManageInventory("Manager"))
	assert.False(t, CanManageInventory("Cashier"))
	assert.False(t, CanManageInventory(""))
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "LoggedOut", LoggedOut.String())
	assert.Equal(t, "LoggingIn", LoggingIn.String())
	assert.Equal(t, "LoggedIn", LoggedIn.String())
	assert.Equal(t, "Unknown", State(9).String())
}
