package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var doctor = Identity{UserID: "d1", Username: "drwho", Role: RoleDoctor, Email: "w@example.com", FullName: "John Smith"}

func TestLogin_IsAtomic(t *testing.T) {
	s := newSession("s1")

	err := s.Login("access", "refresh", Identity{UserID: "u1", Username: "x", Role: "janitor"})
	assert.ErrorIs(t, err, ErrInvalidIdentity)
	assert.False(t, s.IsAuthenticated())
	assert.Empty(t, s.AccessToken())

	assert.ErrorIs(t, s.Login("", "refresh", doctor), ErrMissingToken)
	assert.False(t, s.IsAuthenticated())

	require.NoError(t, s.Login("access", "refresh", doctor))
	id, ok := s.Identity()
	require.True(t, ok)
	assert.Equal(t, doctor, id)
	assert.Equal(t, "access", s.AccessToken())
	assert.Equal(t, "refresh", s.RefreshToken())
}

func TestLogin_NormalizesRoleAndFullName(t *testing.T) {
	s := newSession("s1")
	require.NoError(t, s.Login("a", "", Identity{UserID: "u1", Username: "ann", Role: "Patient"}))
	id, _ := s.Identity()
	assert.Equal(t, RolePatient, id.Role)
	assert.Equal(t, "ann", id.FullName)
}

func TestReplaceTokens(t *testing.T) {
	s := newSession("s1")
	assert.ErrorIs(t, s.ReplaceTokens("a", "r"), ErrNotLoggedIn)

	require.NoError(t, s.Login("a1", "r1", doctor))
	require.NoError(t, s.ReplaceTokens("a2", ""))
	assert.Equal(t, "a2", s.AccessToken())
	assert.Equal(t, "r1", s.RefreshToken())

	assert.ErrorIs(t, s.ReplaceTokens("", "r3"), ErrMissingToken)
	assert.Equal(t, "a2", s.AccessToken())
}

func TestSyncIdentity(t *testing.T) {
	s := newSession("s1")
	assert.ErrorIs(t, s.SyncIdentity(doctor), ErrNotLoggedIn)

	require.NoError(t, s.Login("a", "r", doctor))
	s.dirty = false

	require.NoError(t, s.SyncIdentity(doctor))
	assert.False(t, s.dirty, "unchanged identity must not dirty the session")

	changed := doctor
	changed.Email = "new@example.com"
	require.NoError(t, s.SyncIdentity(changed))
	id, _ := s.Identity()
	assert.Equal(t, "new@example.com", id.Email)
	assert.True(t, s.dirty)

	assert.ErrorIs(t, s.SyncIdentity(Identity{UserID: "d1"}), ErrInvalidIdentity)
}

func TestClear_KeepsFlashes(t *testing.T) {
	s := newSession("s1")
	require.NoError(t, s.Login("a", "r", doctor))
	s.SetRememberMe(true)
	s.AddFlash(FlashWarning, "Your session has expired. Please login again.")

	s.Clear()
	assert.False(t, s.IsAuthenticated())
	assert.Empty(t, s.AccessToken())
	assert.Empty(t, s.RefreshToken())
	assert.False(t, s.RememberMe())
	_, ok := s.Identity()
	assert.False(t, ok)

	flashes := s.PopFlashes()
	require.Len(t, flashes, 1)
	assert.Equal(t, FlashWarning, flashes[0].Level)
	assert.Nil(t, s.PopFlashes())
}

func TestFlush_DropsEverything(t *testing.T) {
	s := newSession("s1")
	require.NoError(t, s.Login("a", "r", doctor))
	s.AddFlash(FlashInfo, "hi")
	s.Flush()
	assert.True(t, s.empty())
}

func TestCodec_RoundTrip(t *testing.T) {
	s := newSession("s1")
	require.NoError(t, s.Login("a", "r", doctor))
	s.SetRememberMe(true)
	s.AddFlash(FlashSuccess, "Welcome")

	b, err := encode(s)
	require.NoError(t, err)

	got, invalid, err := decode("s1", b)
	require.NoError(t, err)
	assert.False(t, invalid)
	assert.Equal(t, "a", got.AccessToken())
	assert.True(t, got.RememberMe())
	id, _ := got.Identity()
	assert.Equal(t, doctor, id)
	assert.Len(t, got.PopFlashes(), 1)
}

func TestCodec_DropsTokenWithoutIdentity(t *testing.T) {
	got, invalid, err := decode("s1", []byte(`{"auth":{"access_token":"a","identity":{"user_id":""}},"flashes":[{"level":"info","message":"x"}]}`))
	require.NoError(t, err)
	assert.True(t, invalid)
	assert.False(t, got.IsAuthenticated())
	assert.Len(t, got.PopFlashes(), 1)
}

func TestParseRole(t *testing.T) {
	for _, r := range []string{"admin", "STAFF", " doctor ", "nurse", "patient"} {
		_, ok := ParseRole(r)
		assert.True(t, ok, r)
	}
	_, ok := ParseRole("superuser")
	assert.False(t, ok)
	assert.Equal(t, "Patient", RolePatient.Title())
}
