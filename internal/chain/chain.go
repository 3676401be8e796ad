// Package chain maps chain identifiers to their protocol family and validates
// addresses per family. The family is resolved once through a registry lookup
// so callers dispatch on a tag instead of re-inspecting identifier strings.
package chain

import (
	"regexp"
	"strings"
	"sync"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/ethereum/go-ethereum/common"
)

// Family is the broad protocol category of a network, which determines the
// wallet and signing mechanism that applies to it.
type Family int

const (
	FamilyUnknown Family = iota
	FamilyCosmos
	FamilyEVM
)

func (f Family) String() string {
	switch f {
	case FamilyCosmos:
		return "cosmos"
	case FamilyEVM:
		return "evm"
	default:
		return "unknown"
	}
}

// Info describes a known network.
type Info struct {
	ID           string
	Name         string
	Family       Family
	Bech32Prefix string // Cosmos chains only
}

// Registry resolves chain identifiers to Info. It is seeded with the networks
// payments are routed across and can be extended at runtime.
type Registry struct {
	mu     sync.RWMutex
	chains map[string]Info
}

func NewRegistry() *Registry {
	r := &Registry{chains: make(map[string]Info)}
	for _, info := range builtin {
		r.chains[info.ID] = info
	}
	return r
}

var builtin = []Info{
	{ID: "noble-1", Name: "Noble", Family: FamilyCosmos, Bech32Prefix: "noble"},
	{ID: "cosmoshub-4", Name: "Cosmos Hub", Family: FamilyCosmos, Bech32Prefix: "cosmos"},
	{ID: "osmosis-1", Name: "Osmosis", Family: FamilyCosmos, Bech32Prefix: "osmo"},
	{ID: "celestia", Name: "Celestia", Family: FamilyCosmos, Bech32Prefix: "celestia"},
	{ID: "axelar-dojo-1", Name: "Axelar", Family: FamilyCosmos, Bech32Prefix: "axelar"},
	{ID: "1", Name: "Ethereum", Family: FamilyEVM},
	{ID: "10", Name: "Optimism", Family: FamilyEVM},
	{ID: "137", Name: "Polygon", Family: FamilyEVM},
	{ID: "8453", Name: "Base", Family: FamilyEVM},
	{ID: "42161", Name: "Arbitrum One", Family: FamilyEVM},
}

func (r *Registry) Register(info Info) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chains[info.ID] = info
}

func (r *Registry) Lookup(chainID string) (Info, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.chains[chainID]
	return info, ok
}

// FamilyOf returns the family of a chain. Unregistered identifiers fall back
// to shape-based classification.
func (r *Registry) FamilyOf(chainID string) Family {
	if info, ok := r.Lookup(chainID); ok {
		return info.Family
	}
	return classify(chainID)
}

var (
	numericRe     = regexp.MustCompile(`^\d+$`)
	cosmosLikeRe  = regexp.MustCompile(`-\d+$`)
	cosmosMarkers = []string{"cosmos", "noble", "osmosis", "celestia"}
)

func classify(chainID string) Family {
	if chainID == "" {
		return FamilyUnknown
	}
	if numericRe.MatchString(chainID) {
		return FamilyEVM
	}
	if cosmosLikeRe.MatchString(chainID) {
		return FamilyCosmos
	}
	for _, m := range cosmosMarkers {
		if strings.Contains(chainID, m) {
			return FamilyCosmos
		}
	}
	return FamilyUnknown
}

// ValidAddress reports whether addr is well formed for the given family:
// a bech32 string for Cosmos, a 0x-prefixed hex address for EVM.
func ValidAddress(family Family, addr string) bool {
	switch family {
	case FamilyCosmos:
		_, _, err := bech32.Decode(addr)
		return err == nil
	case FamilyEVM:
		return common.IsHexAddress(addr)
	default:
		return false
	}
}

// ValidAddressForChain additionally checks the bech32 prefix against the
// chain's registered prefix, when one is known.
func (r *Registry) ValidAddressForChain(chainID, addr string) bool {
	family := r.FamilyOf(chainID)
	if !ValidAddress(family, addr) {
		return false
	}
	if family == FamilyCosmos {
		if info, ok := r.Lookup(chainID); ok && info.Bech32Prefix != "" {
			hrp, _, err := bech32.Decode(addr)
			return err == nil && hrp == info.Bech32Prefix
		}
	}
	return true
}
