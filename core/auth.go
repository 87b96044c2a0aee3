package core

import "time"

// Items requested from the wallet on every connection
const (
	ItemTonAddr  = "ton_addr"
	ItemTonProof = "ton_proof"
)

// RequestedItems is the fixed set of proof items asked for when a link is issued
var RequestedItems = []string{ItemTonAddr, ItemTonProof}

// PendingAuth represents an outstanding handshake for a single requester
type PendingAuth struct {
	ChatID    string    // Requester identity, opaque
	State     string    // Single-use state token bound to ChatID
	IssuedAt  time.Time // When the auth link was issued
	ExpiresAt time.Time // Zero means the entry never expires
}

// Expired reports whether the entry has passed its expiry at the given time
func (p PendingAuth) Expired(now time.Time) bool {
	return !p.ExpiresAt.IsZero() && now.After(p.ExpiresAt)
}

// ConnectRequest is what the connection capability needs to start a connection
type ConnectRequest struct {
	ReturnURL    string
	State        string
	Items        []string
	ProofPayload string
}

// Account is the wallet account resolved by the connection capability
type Account struct {
	Address   string `json:"address"`
	Chain     string `json:"chain,omitempty"`
	PublicKey string `json:"public_key,omitempty"`
}

// WalletInfo is the result of restoring the most recently completed connection
type WalletInfo struct {
	Account Account `json:"account"`
}

// Address returns the resolved wallet address or an empty string
func (w *WalletInfo) Address() string {
	if w == nil {
		return ""
	}
	return w.Account.Address
}

// Manifest is the app descriptor wallets fetch to identify the bridge
type Manifest struct {
	URL     string `json:"url"`
	Name    string `json:"name"`
	IconURL string `json:"iconUrl,omitempty"`
}

// BackendResponse is the backend's reply to a forwarded authentication
type BackendResponse struct {
	Status int
	Body   []byte
}

// WalletConnectedEvent is emitted after a handshake completes
type WalletConnectedEvent struct {
	ChatID        string    `json:"chat_id"`
	WalletAddress string    `json:"wallet_address"`
	ConnectedAt   time.Time `json:"connected_at"`
}
