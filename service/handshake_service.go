package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/layer-3/tonbridge/core"
	"github.com/layer-3/tonbridge/ports"
)

// stateBytes is the entropy of a state token before hex encoding
const stateBytes = 32

type connectorRef struct {
	connector ports.Connector
}

// HandshakeService coordinates the per-chat wallet authentication handshake
type HandshakeService struct {
	registry  ports.Registry
	backend   ports.Backend
	proofs    ports.ProofIssuer
	eventPub  ports.EventPublisher
	connector atomic.Pointer[connectorRef]

	baseURL    string
	pendingTTL time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures a HandshakeService
type Option func(*HandshakeService)

// WithProofIssuer sets the issuer of ton_proof payloads
func WithProofIssuer(proofs ports.ProofIssuer) Option {
	return func(s *HandshakeService) {
		s.proofs = proofs
	}
}

// WithEventPublisher sets where wallet connected events go
func WithEventPublisher(eventPub ports.EventPublisher) Option {
	return func(s *HandshakeService) {
		s.eventPub = eventPub
	}
}

// WithPendingTTL bounds how long an issued link stays valid; zero disables expiry
func WithPendingTTL(ttl time.Duration) Option {
	return func(s *HandshakeService) {
		s.pendingTTL = ttl
	}
}

// WithLogger sets the service logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *HandshakeService) {
		s.logger = logger
	}
}

// WithClock sets the time source for issuance and expiry timestamps
func WithClock(now func() time.Time) Option {
	return func(s *HandshakeService) {
		s.now = now
	}
}

// NewHandshakeService creates a new handshake service.
// baseURL is the public address wallets return to.
func NewHandshakeService(registry ports.Registry, backend ports.Backend, baseURL string, opts ...Option) *HandshakeService {
	s := &HandshakeService{
		registry: registry,
		backend:  backend,
		baseURL:  strings.TrimRight(baseURL, "/"),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "handshake")

	return s
}

// AttachConnector makes the connection capability available to handshakes
func (s *HandshakeService) AttachConnector(connector ports.Connector) {
	s.connector.Store(&connectorRef{connector: connector})
}

// Ready reports whether a connector has been attached
func (s *HandshakeService) Ready() bool {
	return s.loadConnector() != nil
}

func (s *HandshakeService) loadConnector() ports.Connector {
	ref := s.connector.Load()
	if ref == nil {
		return nil
	}
	return ref.connector
}

// IssueAuthLink registers a fresh state token for the chat and returns the wallet connect URL.
// Any link previously issued for the same chat stops being valid.
func (s *HandshakeService) IssueAuthLink(ctx context.Context, chatID string) (string, error) {
	if chatID == "" {
		return "", core.ErrInvalidIdentity
	}

	connector := s.loadConnector()
	if connector == nil {
		return "", core.ErrCapabilityUnavailable
	}

	state, err := newState()
	if err != nil {
		return "", err
	}

	now := s.now()
	pending := core.PendingAuth{
		ChatID:   chatID,
		State:    state,
		IssuedAt: now,
	}
	if s.pendingTTL > 0 {
		pending.ExpiresAt = now.Add(s.pendingTTL)
	}

	if err := s.registry.Put(ctx, pending); err != nil {
		return "", fmt.Errorf("failed to register state: %w", err)
	}

	req := core.ConnectRequest{
		ReturnURL: s.returnURL(chatID),
		State:     state,
		Items:     core.RequestedItems,
	}
	if s.proofs != nil {
		payload, err := s.proofs.IssuePayload(chatID, state)
		if err != nil {
			return "", fmt.Errorf("failed to issue proof payload: %w", err)
		}
		req.ProofPayload = payload
	}

	connectURL, err := connector.BeginConnection(ctx, req)
	if err != nil {
		if !errors.Is(err, core.ErrUpstream) {
			err = fmt.Errorf("%w: %v", core.ErrUpstream, err)
		}
		return "", err
	}

	s.logger.InfoContext(ctx, "auth link issued", "chat_id", chatID, "return_url", req.ReturnURL)
	return connectURL, nil
}

// CompleteAuth validates a wallet callback, resolves the connected wallet and forwards
// the identity to the backend. The pending entry is removed only once a wallet resolves.
func (s *HandshakeService) CompleteAuth(ctx context.Context, chatID, state, proof string) (core.BackendResponse, error) {
	connector := s.loadConnector()
	if connector == nil {
		return core.BackendResponse{}, core.ErrCapabilityUnavailable
	}

	pending, ok, err := s.registry.Get(ctx, chatID)
	if err != nil {
		return core.BackendResponse{}, fmt.Errorf("failed to load state: %w", err)
	}
	if !ok || state == "" || subtle.ConstantTimeCompare([]byte(pending.State), []byte(state)) != 1 {
		s.logger.WarnContext(ctx, "invalid state", "chat_id", chatID)
		return core.BackendResponse{}, core.ErrInvalidState
	}

	s.logger.DebugContext(ctx, "callback accepted", "chat_id", chatID, "has_proof", proof != "")

	wallet, err := connector.RestoreConnection(ctx)
	if err != nil {
		if !errors.Is(err, core.ErrUpstream) {
			err = fmt.Errorf("%w: %v", core.ErrUpstream, err)
		}
		return core.BackendResponse{}, err
	}
	address := wallet.Address()
	if address == "" {
		s.logger.WarnContext(ctx, "wallet not resolved", "chat_id", chatID)
		return core.BackendResponse{}, core.ErrWalletVerificationFailed
	}

	consumed, err := s.registry.Consume(ctx, chatID, state)
	if err != nil {
		return core.BackendResponse{}, fmt.Errorf("failed to clear state: %w", err)
	}
	if !consumed {
		// another callback or a new link got there first
		return core.BackendResponse{}, core.ErrInvalidState
	}

	resp, err := s.backend.AuthCallback(ctx, chatID, address)
	if err != nil {
		s.logger.ErrorContext(ctx, "backend call failed", "chat_id", chatID, "error", err)
		return core.BackendResponse{}, err
	}

	if s.eventPub != nil {
		event := core.WalletConnectedEvent{
			ChatID:        chatID,
			WalletAddress: address,
			ConnectedAt:   s.now(),
		}
		if err := s.eventPub.PublishWalletConnected(ctx, event); err != nil {
			s.logger.WarnContext(ctx, "failed to publish wallet connected event", "chat_id", chatID, "error", err)
		}
	}

	s.logger.InfoContext(ctx, "wallet connected", "chat_id", chatID, "wallet_address", address)
	return resp, nil
}

func (s *HandshakeService) returnURL(chatID string) string {
	return s.baseURL + "/auth-callback?chat_id=" + url.QueryEscape(chatID)
}

func newState() (string, error) {
	b := make([]byte, stateBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return hex.EncodeToString(b), nil
}
