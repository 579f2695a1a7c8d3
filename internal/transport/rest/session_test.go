package rest

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionManager_SetAndReadParty_RoundTrips(t *testing.T) {
	sm := NewSessionManager("test-secret-key-0123456789", 3600)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/party", nil)

	sess, err := sm.get(r)
	require.NoError(t, err)
	setParty(sess, "abc123", 4, 2)
	require.NoError(t, sess.Save(r, w))

	r2 := httptest.NewRequest(http.MethodGet, "/party", nil)
	r2.Header.Set("Cookie", w.Header().Get("Set-Cookie"))

	ps, _, err := sm.readParty(r2)
	require.NoError(t, err)
	assert.True(t, ps.HasParty)
	assert.Equal(t, "abc123", ps.PartyID)
	assert.Equal(t, 4, ps.PartySize)
	assert.Equal(t, "queued", ps.Status)
	assert.Equal(t, 2, ps.InitialQueuePosition)
}

func TestExpirySessionMiddleware_ClearsExpiredSeatedSession(t *testing.T) {
	sm := NewSessionManager("test-secret-key-0123456789", 3600)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/party", nil)
	sess, err := sm.get(r)
	require.NoError(t, err)
	setParty(sess, "abc123", 4, 1)
	setSeated(sess, time.Now().Add(-time.Minute))
	require.NoError(t, sess.Save(r, w))

	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })

	r2 := httptest.NewRequest(http.MethodGet, "/party", nil)
	r2.Header.Set("Cookie", w.Header().Get("Set-Cookie"))
	w2 := httptest.NewRecorder()

	sm.expirySessionMiddleware(next).ServeHTTP(w2, r2)
	assert.True(t, called)

	r3 := httptest.NewRequest(http.MethodGet, "/party", nil)
	r3.Header.Set("Cookie", w2.Header().Get("Set-Cookie"))
	ps, _, err := sm.readParty(r3)
	require.NoError(t, err)
	assert.False(t, ps.HasParty)
}

func TestExpirySessionMiddleware_LeavesActiveSeatedSessionAlone(t *testing.T) {
	sm := NewSessionManager("test-secret-key-0123456789", 3600)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/party", nil)
	sess, err := sm.get(r)
	require.NoError(t, err)
	setParty(sess, "abc123", 4, 1)
	setSeated(sess, time.Now().Add(time.Minute))
	require.NoError(t, sess.Save(r, w))

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	r2 := httptest.NewRequest(http.MethodGet, "/party", nil)
	r2.Header.Set("Cookie", w.Header().Get("Set-Cookie"))
	w2 := httptest.NewRecorder()

	sm.expirySessionMiddleware(next).ServeHTTP(w2, r2)

	assert.Empty(t, w2.Header().Get("Set-Cookie"))
}
