package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/layer-3/tonbridge/adapters/store"
	"github.com/layer-3/tonbridge/core"
	"github.com/layer-3/tonbridge/internal/stubs"
	"github.com/layer-3/tonbridge/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	svc       *HandshakeService
	registry  ports.Registry
	connector *stubs.Connector
	backend   *stubs.Backend
	publisher *stubs.Publisher
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	return newFixtureWithRegistry(t, store.NewMemoryStore(), opts...)
}

func newFixtureWithRegistry(t *testing.T, registry ports.Registry, opts ...Option) *fixture {
	t.Helper()

	f := &fixture{
		registry:  registry,
		connector: &stubs.Connector{ConnectURL: "tc://connect?id=1"},
		backend: &stubs.Backend{Response: core.BackendResponse{
			Status: http.StatusOK,
			Body:   []byte(`{"status":"success"}`),
		}},
		publisher: &stubs.Publisher{},
	}
	opts = append([]Option{WithEventPublisher(f.publisher)}, opts...)
	f.svc = NewHandshakeService(f.registry, f.backend, "https://bridge.example/", opts...)
	f.svc.AttachConnector(f.connector)

	return f
}

func (f *fixture) issue(t *testing.T, chatID string) string {
	t.Helper()

	_, err := f.svc.IssueAuthLink(context.Background(), chatID)
	require.NoError(t, err)
	return f.connector.LastRequest().State
}

func TestIssueAuthLink(t *testing.T) {
	f := newFixture(t)

	url, err := f.svc.IssueAuthLink(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, "tc://connect?id=1", url)

	req := f.connector.LastRequest()
	assert.Equal(t, "https://bridge.example/auth-callback?chat_id=42", req.ReturnURL)
	assert.Equal(t, []string{"ton_addr", "ton_proof"}, req.Items)
	assert.Len(t, req.State, 2*stateBytes)

	pending, ok, err := f.registry.Get(context.Background(), "42")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, req.State, pending.State)
	assert.True(t, pending.ExpiresAt.IsZero())
}

func TestIssueAuthLinkEscapesChatID(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.IssueAuthLink(context.Background(), "a b&c")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(f.connector.LastRequest().ReturnURL, "chat_id=a+b%26c"))
}

func TestIssueAuthLinkIdentityIsOpaque(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.IssueAuthLink(context.Background(), " ")
	require.NoError(t, err)

	pending, ok, err := f.registry.Get(context.Background(), " ")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, f.connector.LastRequest().State, pending.State)
}

func TestIssueAuthLinkFreshStateEachTime(t *testing.T) {
	f := newFixture(t)

	first := f.issue(t, "42")
	second := f.issue(t, "42")
	assert.NotEqual(t, first, second)
}

func TestIssueAuthLinkErrors(t *testing.T) {
	t.Run("empty identity", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.IssueAuthLink(context.Background(), "")
		assert.ErrorIs(t, err, core.ErrInvalidIdentity)
	})

	t.Run("connector not attached", func(t *testing.T) {
		svc := NewHandshakeService(store.NewMemoryStore(), &stubs.Backend{}, "https://bridge.example")
		assert.False(t, svc.Ready())

		_, err := svc.IssueAuthLink(context.Background(), "42")
		assert.ErrorIs(t, err, core.ErrCapabilityUnavailable)
	})

	t.Run("connector failure", func(t *testing.T) {
		f := newFixture(t)
		f.connector.BeginErr = errors.New("bridge unreachable")

		_, err := f.svc.IssueAuthLink(context.Background(), "42")
		assert.ErrorIs(t, err, core.ErrUpstream)
		assert.Len(t, f.connector.Requests, 1, "no retry")
	})
}

func TestIssueAuthLinkPendingTTL(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	f := newFixtureWithRegistry(t,
		store.NewMemoryStore(store.WithClock(clock)),
		WithPendingTTL(10*time.Minute),
		WithClock(clock),
	)

	f.issue(t, "42")

	pending, ok, err := f.registry.Get(context.Background(), "42")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, now, pending.IssuedAt)
	assert.Equal(t, now.Add(10*time.Minute), pending.ExpiresAt)

	now = now.Add(11 * time.Minute)
	_, ok, err = f.registry.Get(context.Background(), "42")
	require.NoError(t, err)
	assert.False(t, ok, "link expires on the shared clock")
}

type staticProofs struct{}

func (staticProofs) IssuePayload(chatID, state string) (string, error) {
	return "proof:" + chatID, nil
}

func TestIssueAuthLinkProofPayload(t *testing.T) {
	f := newFixture(t, WithProofIssuer(staticProofs{}))

	f.issue(t, "42")
	assert.Equal(t, "proof:42", f.connector.LastRequest().ProofPayload)
}

func TestCompleteAuthSuccess(t *testing.T) {
	f := newFixture(t)
	state := f.issue(t, "42")
	f.connector.SetWallet("EQAbc")

	resp, err := f.svc.CompleteAuth(context.Background(), "42", state, "proof")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.JSONEq(t, `{"status":"success"}`, string(resp.Body))

	require.Len(t, f.backend.Calls, 1)
	assert.Equal(t, stubs.BackendCall{ChatID: "42", WalletAddress: "EQAbc"}, f.backend.Calls[0])

	_, ok, err := f.registry.Get(context.Background(), "42")
	require.NoError(t, err)
	assert.False(t, ok, "pending entry must be cleared")

	require.Len(t, f.publisher.Events, 1)
	assert.Equal(t, "EQAbc", f.publisher.Events[0].WalletAddress)
}

func TestCompleteAuthReplayFails(t *testing.T) {
	f := newFixture(t)
	state := f.issue(t, "42")
	f.connector.SetWallet("EQAbc")

	_, err := f.svc.CompleteAuth(context.Background(), "42", state, "")
	require.NoError(t, err)

	_, err = f.svc.CompleteAuth(context.Background(), "42", state, "")
	assert.ErrorIs(t, err, core.ErrInvalidState)
	assert.Equal(t, 1, f.backend.CallCount())
}

func TestCompleteAuthReissueInvalidatesOldToken(t *testing.T) {
	f := newFixture(t)
	first := f.issue(t, "42")
	second := f.issue(t, "42")
	f.connector.SetWallet("EQAbc")

	_, err := f.svc.CompleteAuth(context.Background(), "42", first, "")
	assert.ErrorIs(t, err, core.ErrInvalidState)

	_, err = f.svc.CompleteAuth(context.Background(), "42", second, "")
	assert.NoError(t, err)
}

func TestCompleteAuthUnknownToken(t *testing.T) {
	f := newFixture(t)
	f.issue(t, "42")
	f.connector.SetWallet("EQAbc")

	for _, tc := range []struct{ chatID, state string }{
		{"42", "never-issued"},
		{"42", ""},
		{"43", "anything"},
	} {
		_, err := f.svc.CompleteAuth(context.Background(), tc.chatID, tc.state, "")
		assert.ErrorIs(t, err, core.ErrInvalidState, "chat %q state %q", tc.chatID, tc.state)
	}
	assert.Equal(t, 0, f.connector.Restores, "state is checked before the connector is asked")
	assert.Equal(t, 0, f.backend.CallCount())
}

func TestCompleteAuthWalletNotResolvedKeepsEntry(t *testing.T) {
	for _, wallet := range []*core.WalletInfo{nil, {Account: core.Account{}}} {
		f := newFixture(t)
		state := f.issue(t, "42")
		f.connector.Wallet = wallet

		_, err := f.svc.CompleteAuth(context.Background(), "42", state, "")
		assert.ErrorIs(t, err, core.ErrWalletVerificationFailed)

		pending, ok, err := f.registry.Get(context.Background(), "42")
		require.NoError(t, err)
		require.True(t, ok, "entry stays until overwritten or consumed")
		assert.Equal(t, state, pending.State)
		assert.Equal(t, 0, f.backend.CallCount())

		// the same link can still complete once the wallet shows up
		f.connector.SetWallet("EQAbc")
		_, err = f.svc.CompleteAuth(context.Background(), "42", state, "")
		assert.NoError(t, err)
	}
}

func TestCompleteAuthRestoreFailure(t *testing.T) {
	f := newFixture(t)
	state := f.issue(t, "42")
	f.connector.RestoreErr = errors.New("sse closed")

	_, err := f.svc.CompleteAuth(context.Background(), "42", state, "")
	assert.ErrorIs(t, err, core.ErrUpstream)
}

func TestCompleteAuthBackendFailure(t *testing.T) {
	f := newFixture(t)
	state := f.issue(t, "42")
	f.connector.SetWallet("EQAbc")
	f.backend.Err = &core.BackendError{Status: http.StatusServiceUnavailable, Body: "down"}

	_, err := f.svc.CompleteAuth(context.Background(), "42", state, "")
	assert.ErrorIs(t, err, core.ErrBackend)

	var backendErr *core.BackendError
	require.True(t, errors.As(err, &backendErr))
	assert.Equal(t, http.StatusServiceUnavailable, backendErr.Status)
	assert.Empty(t, f.publisher.Events)

	// entry was consumed before forwarding; the user restarts the handshake
	_, err = f.svc.CompleteAuth(context.Background(), "42", state, "")
	assert.ErrorIs(t, err, core.ErrInvalidState)
}

func TestCompleteAuthPublishFailureIsIgnored(t *testing.T) {
	f := newFixture(t)
	state := f.issue(t, "42")
	f.connector.SetWallet("EQAbc")
	f.publisher.Err = errors.New("redis down")

	_, err := f.svc.CompleteAuth(context.Background(), "42", state, "")
	assert.NoError(t, err)
}

func TestCompleteAuthConnectorNotAttached(t *testing.T) {
	svc := NewHandshakeService(store.NewMemoryStore(), &stubs.Backend{}, "https://bridge.example")

	_, err := svc.CompleteAuth(context.Background(), "42", "abc", "")
	assert.ErrorIs(t, err, core.ErrCapabilityUnavailable)
}

func TestCompleteAuthConcurrentCallbacks(t *testing.T) {
	f := newFixture(t)
	state := f.issue(t, "42")
	f.connector.SetWallet("EQAbc")

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.CompleteAuth(context.Background(), "42", state, ""); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, f.backend.CallCount())
}
