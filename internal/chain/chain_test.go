package chain

import (
	"testing"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/stretchr/testify/require"
)

func bech32Addr(t *testing.T, hrp string) string {
	t.Helper()
	conv, err := bech32.ConvertBits(make([]byte, 20), 8, 5, true)
	require.NoError(t, err)
	addr, err := bech32.Encode(hrp, conv)
	require.NoError(t, err)
	return addr
}

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry()

	info, ok := r.Lookup("noble-1")
	require.True(t, ok)
	require.Equal(t, FamilyCosmos, info.Family)
	require.Equal(t, "noble", info.Bech32Prefix)

	info, ok = r.Lookup("10")
	require.True(t, ok)
	require.Equal(t, FamilyEVM, info.Family)

	_, ok = r.Lookup("does-not-exist-1")
	require.False(t, ok)
}

func TestRegister(t *testing.T) {
	r := NewRegistry()
	r.Register(Info{ID: "juno-1", Name: "Juno", Family: FamilyCosmos, Bech32Prefix: "juno"})

	info, ok := r.Lookup("juno-1")
	require.True(t, ok)
	require.Equal(t, "Juno", info.Name)
}

func TestFamilyOfFallback(t *testing.T) {
	r := NewRegistry()

	// registered chains resolve from the registry
	require.Equal(t, FamilyCosmos, r.FamilyOf("celestia"))
	require.Equal(t, FamilyEVM, r.FamilyOf("42161"))

	// unregistered ones fall back to shape classification
	require.Equal(t, FamilyCosmos, r.FamilyOf("juno-1"))
	require.Equal(t, FamilyCosmos, r.FamilyOf("dydx-mainnet-1"))
	require.Equal(t, FamilyEVM, r.FamilyOf("56"))
	require.Equal(t, FamilyUnknown, r.FamilyOf("solana"))
	require.Equal(t, FamilyUnknown, r.FamilyOf(""))
}

func TestValidAddress(t *testing.T) {
	require.True(t, ValidAddress(FamilyEVM, "0x0b2C639c533813f4Aa9D7837CAf62653d097Ff85"))
	require.False(t, ValidAddress(FamilyEVM, "0x123"))
	require.False(t, ValidAddress(FamilyEVM, "noble1qqqq"))

	require.True(t, ValidAddress(FamilyCosmos, bech32Addr(t, "noble")))
	require.False(t, ValidAddress(FamilyCosmos, "0x0b2C639c533813f4Aa9D7837CAf62653d097Ff85"))
	require.False(t, ValidAddress(FamilyCosmos, "not-bech32"))

	require.False(t, ValidAddress(FamilyUnknown, "anything"))
}

func TestValidAddressForChain(t *testing.T) {
	r := NewRegistry()

	require.True(t, r.ValidAddressForChain("noble-1", bech32Addr(t, "noble")))
	// right encoding, wrong prefix for the chain
	require.False(t, r.ValidAddressForChain("noble-1", bech32Addr(t, "osmo")))
	require.True(t, r.ValidAddressForChain("10", "0x0b2C639c533813f4Aa9D7837CAf62653d097Ff85"))
	// unregistered cosmos chain: any valid bech32 accepted
	require.True(t, r.ValidAddressForChain("juno-1", bech32Addr(t, "juno")))
}
