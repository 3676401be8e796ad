// Package wallet models the payer's connected wallets: a Cosmos-family
// session (Keplr-style, one bech32 address per enabled chain) and an
// EVM-family session (MetaMask-style, one account valid on every EVM
// network). The payment orchestrator reads from sessions but does not manage
// their lifecycle.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fissionlabs/fissionpay/internal/chain"
	"github.com/fissionlabs/fissionpay/internal/route"
)

var (
	ErrNotConnected = errors.New("wallet not connected")
	ErrNoAddress    = errors.New("no address for chain")
)

// SignFunc produces a signed transaction from an unsigned payload.
type SignFunc func(ctx context.Context, tx []byte) ([]byte, error)

// Session is one connected wallet, able to supply addresses and signers for
// the chains of its family.
type Session interface {
	Family() chain.Family
	Connected() bool
	Address(ctx context.Context, chainID string) (string, error)
	Signer(ctx context.Context, chainID string) (route.Signer, error)
}

type chainSigner struct {
	address string
	sign    SignFunc
}

func (s *chainSigner) Address() string { return s.address }

func (s *chainSigner) Sign(ctx context.Context, tx []byte) ([]byte, error) {
	return s.sign(ctx, tx)
}

// Key is one chain's signing material inside a Cosmos session.
type Key struct {
	Address string
	Sign    SignFunc
}

// EnableFunc is invoked when a Cosmos session is asked for a chain it has no
// key for yet, mirroring a wallet-extension "enable chain" prompt. It returns
// the key for that chain or an error.
type EnableFunc func(ctx context.Context, chainID string) (Key, error)

// CosmosSession is a Keplr-style wallet session.
type CosmosSession struct {
	mu        sync.Mutex
	connected bool
	keys      map[string]Key
	enable    EnableFunc
}

func NewCosmosSession(enable EnableFunc) *CosmosSession {
	return &CosmosSession{keys: make(map[string]Key), enable: enable}
}

func (s *CosmosSession) Family() chain.Family { return chain.FamilyCosmos }

func (s *CosmosSession) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *CosmosSession) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = true
	return nil
}

func (s *CosmosSession) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
}

// AddKey registers signing material for one chain.
func (s *CosmosSession) AddKey(chainID string, key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[chainID] = key
}

func (s *CosmosSession) key(ctx context.Context, chainID string) (Key, error) {
	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return Key{}, ErrNotConnected
	}
	key, ok := s.keys[chainID]
	enable := s.enable
	s.mu.Unlock()

	if ok {
		return key, nil
	}
	if enable == nil {
		return Key{}, fmt.Errorf("%w: %s", ErrNoAddress, chainID)
	}
	key, err := enable(ctx, chainID)
	if err != nil {
		return Key{}, fmt.Errorf("enabling chain %s: %w", chainID, err)
	}
	s.AddKey(chainID, key)
	return key, nil
}

func (s *CosmosSession) Address(ctx context.Context, chainID string) (string, error) {
	key, err := s.key(ctx, chainID)
	if err != nil {
		return "", err
	}
	return key.Address, nil
}

func (s *CosmosSession) Signer(ctx context.Context, chainID string) (route.Signer, error) {
	key, err := s.key(ctx, chainID)
	if err != nil {
		return nil, err
	}
	return &chainSigner{address: key.Address, sign: key.Sign}, nil
}

// EVMSession is a MetaMask-style wallet session: a single account used on
// every EVM chain, switching the active network before signing.
type EVMSession struct {
	mu        sync.Mutex
	connected bool
	account   string
	chainID   string // currently active network
	sign      SignFunc
}

func NewEVMSession(account string, sign SignFunc) (*EVMSession, error) {
	if !common.IsHexAddress(account) {
		return nil, fmt.Errorf("invalid EVM account %q", account)
	}
	return &EVMSession{account: account, sign: sign}, nil
}

func (s *EVMSession) Family() chain.Family { return chain.FamilyEVM }

func (s *EVMSession) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *EVMSession) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = true
	return nil
}

func (s *EVMSession) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
}

// ChainID returns the currently active network.
func (s *EVMSession) ChainID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chainID
}

// SwitchChain makes chainID the active network for subsequent signing.
func (s *EVMSession) SwitchChain(ctx context.Context, chainID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return ErrNotConnected
	}
	s.chainID = chainID
	return nil
}

func (s *EVMSession) Address(ctx context.Context, chainID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return "", ErrNotConnected
	}
	return s.account, nil
}

func (s *EVMSession) Signer(ctx context.Context, chainID string) (route.Signer, error) {
	if _, err := s.Address(ctx, chainID); err != nil {
		return nil, err
	}
	if err := s.SwitchChain(ctx, chainID); err != nil {
		return nil, err
	}
	return &chainSigner{address: s.account, sign: s.sign}, nil
}

// Ring is the ordered set of sessions the payer has connected. Resolution
// queries sessions of the matching family in order.
type Ring struct {
	sessions []Session
}

func NewRing(sessions ...Session) *Ring {
	return &Ring{sessions: sessions}
}

func (r *Ring) Add(s Session) {
	r.sessions = append(r.sessions, s)
}

// ByFamily returns the connected sessions of the given family, in the order
// they were added.
func (r *Ring) ByFamily(f chain.Family) []Session {
	var out []Session
	for _, s := range r.sessions {
		if s.Family() == f && s.Connected() {
			out = append(out, s)
		}
	}
	return out
}
