package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/baechuer/waitline/internal/audit"
	"github.com/baechuer/waitline/internal/domain"
	"github.com/baechuer/waitline/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	createResult domain.CreateResult
	createErr    error
	getParty     domain.Party
	getErr       error
}

func (f *fakeStore) GetByPartyID(ctx context.Context, partyID string) (domain.Party, error) {
	return f.getParty, f.getErr
}
func (f *fakeStore) Create(ctx context.Context, name string, size int) (domain.CreateResult, error) {
	return f.createResult, f.createErr
}
func (f *fakeStore) DeleteByPartyID(ctx context.Context, partyID string) error { return nil }
func (f *fakeStore) AvailableSeats(ctx context.Context) (int, error)          { return 0, nil }
func (f *fakeStore) CurrentQueuePositions(ctx context.Context) ([]domain.QueuePosition, error) {
	return nil, nil
}
func (f *fakeStore) PartiesToDequeue(ctx context.Context, available int) ([]string, error) {
	return nil, nil
}
func (f *fakeStore) SetCheckingIn(ctx context.Context, partyIDs []string) (time.Time, error) {
	return time.Time{}, nil
}
func (f *fakeStore) DeleteCheckinExpired(ctx context.Context) ([]string, error) { return nil, nil }
func (f *fakeStore) SetSeated(ctx context.Context, partyID string, size int) (time.Time, error) {
	return time.Time{}, nil
}
func (f *fakeStore) RemoveExpiredSeats(ctx context.Context) ([]string, error) { return nil, nil }

var _ domain.PartyStore = (*fakeStore)(nil)

type fakeJobs struct{}

func (fakeJobs) Enqueue(ctx context.Context, queue string, payload any, delay time.Duration) error {
	return nil
}
func (fakeJobs) StartWorker(ctx context.Context, queue string, handler func(context.Context) error) error {
	return nil
}

var _ domain.JobBus = fakeJobs{}

type fakeClock struct{ t time.Time }

func (f fakeClock) Now() time.Time { return f.t }

func newTestHandler(store *fakeStore) (*Handler, *SessionManager) {
	api := &service.PartyAPI{
		Store:              store,
		Jobs:               fakeJobs{},
		Clock:              fakeClock{time.Now()},
		Audit:              audit.New(),
		MaxSeats:           10,
		MaxPartyNameLength: 30,
	}
	sessions := NewSessionManager("test-secret-key-0123456789", 3600)
	return NewHandler(api, sessions, NewStreamBridge(nil)), sessions
}

func TestCreateParty_Success_SetsSessionAndReturns201(t *testing.T) {
	store := &fakeStore{createResult: domain.CreateResult{PartyID: "abc123", PositionInQueue: 3}}
	h, _ := newTestHandler(store)

	body, _ := json.Marshal(map[string]any{"name": "Alice", "size": 2})
	r := httptest.NewRequest(http.MethodPost, "/party", bytes.NewReader(body))
	w := httptest.NewRecorder()

	h.CreateParty(w, r)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.NotEmpty(t, w.Header().Get("Set-Cookie"))
}

func TestCreateParty_ValidationFailure_Returns400(t *testing.T) {
	store := &fakeStore{createErr: domain.ErrPartyCouldNotBeCreated}
	h, _ := newTestHandler(store)

	body, _ := json.Marshal(map[string]any{"name": "Alice", "size": 99})
	r := httptest.NewRequest(http.MethodPost, "/party", bytes.NewReader(body))
	w := httptest.NewRecorder()

	h.CreateParty(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLeave_NoSession_Returns401(t *testing.T) {
	store := &fakeStore{}
	h, _ := newTestHandler(store)

	r := httptest.NewRequest(http.MethodDelete, "/party", nil)
	w := httptest.NewRecorder()

	h.Leave(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPartyStatus_PartyNotFound_ClearsSessionAndReturns404(t *testing.T) {
	store := &fakeStore{getErr: domain.ErrPartyNotFound}
	h, sessions := newTestHandler(store)

	w1 := httptest.NewRecorder()
	r1 := httptest.NewRequest(http.MethodPost, "/party", nil)
	sess, err := sessions.get(r1)
	require.NoError(t, err)
	setParty(sess, "abc123", 2, 1)
	require.NoError(t, sess.Save(r1, w1))

	r2 := httptest.NewRequest(http.MethodGet, "/party", nil)
	r2.Header.Set("Cookie", w1.Header().Get("Set-Cookie"))
	w2 := httptest.NewRecorder()

	h.PartyStatus(w2, r2)

	assert.Equal(t, http.StatusNotFound, w2.Code)

	r3 := httptest.NewRequest(http.MethodGet, "/party", nil)
	r3.Header.Set("Cookie", w2.Header().Get("Set-Cookie"))
	ps, _, err := sessions.readParty(r3)
	require.NoError(t, err)
	assert.False(t, ps.HasParty)
}
