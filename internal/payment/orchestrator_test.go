package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/require"

	"github.com/fissionlabs/fissionpay/internal/billing"
	"github.com/fissionlabs/fissionpay/internal/chain"
	"github.com/fissionlabs/fissionpay/internal/route"
	"github.com/fissionlabs/fissionpay/internal/wallet"
)

const evmAccount = "0x0b2C639c533813f4Aa9D7837CAf62653d097Ff85"

type fakeRouter struct {
	route *route.Route
	err   error
	calls int
}

func (f *fakeRouter) Route(ctx context.Context, req route.RouteRequest) (*route.Route, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	r := *f.route
	r.SourceAssetDenom = req.SourceAssetDenom
	r.SourceAssetChainID = req.SourceAssetChainID
	r.DestAssetDenom = req.DestAssetDenom
	r.DestAssetChainID = req.DestAssetChainID
	r.AmountIn = req.AmountIn
	return &r, nil
}

type fakeExecutor struct {
	txHash string
	err    error
	calls  int
}

func (f *fakeExecutor) Execute(ctx context.Context, r *route.Route, addrs map[string]string, signerFor route.SignerProvider, hooks route.Hooks) (string, error) {
	f.calls++
	for i, chainID := range r.RequiredChainAddresses {
		if _, err := signerFor(ctx, chainID); err != nil {
			return "", err
		}
		if hooks.OnTransactionBroadcast != nil {
			hooks.OnTransactionBroadcast(route.TxBroadcast{TxHash: f.txHash, ChainID: chainID})
		}
		if f.err != nil && i == 0 {
			return "", f.err
		}
		if hooks.OnTransactionCompleted != nil {
			hooks.OnTransactionCompleted(route.TxComplete{ChainID: chainID, TxHash: f.txHash, Status: route.StateCompletedSuccess})
		}
	}
	return f.txHash, nil
}

func sign(ctx context.Context, tx []byte) ([]byte, error) { return tx, nil }

func bech32Addr(t *testing.T, hrp string) string {
	t.Helper()
	conv, err := bech32.ConvertBits(make([]byte, 20), 8, 5, true)
	require.NoError(t, err)
	addr, err := bech32.Encode(hrp, conv)
	require.NoError(t, err)
	return addr
}

type fixture struct {
	orch   *Orchestrator
	ledger *billing.Ledger
	bill   *billing.Bill
	router *fakeRouter
	exec   *fakeExecutor
	cosmos *wallet.CosmosSession
	evm    *wallet.EVMSession
}

func newFixture(t *testing.T, router *fakeRouter, exec *fakeExecutor) *fixture {
	t.Helper()
	ctx := context.Background()
	registry := chain.NewRegistry()
	ledger := billing.NewLedger(billing.NewMemStore(), registry, slogt.New(t))

	bill, err := ledger.Create(ctx, bech32Addr(t, "noble"), "noble-1", "10000000")
	require.NoError(t, err)

	cosmos := wallet.NewCosmosSession(nil)
	cosmos.AddKey("noble-1", wallet.Key{Address: bech32Addr(t, "noble"), Sign: sign})
	require.NoError(t, cosmos.Connect(ctx))

	evm, err := wallet.NewEVMSession(evmAccount, sign)
	require.NoError(t, err)
	require.NoError(t, evm.Connect(ctx))

	ring := wallet.NewRing(cosmos, evm)
	orch := New(router, exec, ledger, registry, ring, "uusdc", slogt.New(t))
	return &fixture{orch: orch, ledger: ledger, bill: bill, router: router, exec: exec, cosmos: cosmos, evm: evm}
}

func twoChainRoute() *route.Route {
	return &route.Route{
		AmountOut:              "2490000",
		RequiredChainAddresses: []string{"10", "noble-1"},
		Operations: []route.Hop{
			{ChainID: "10", Type: "bridge"},
			{ChainID: "noble-1", Type: "transfer"},
		},
	}
}

func TestPaymentAmount(t *testing.T) {
	f := newFixture(t, &fakeRouter{route: twoChainRoute()}, &fakeExecutor{txHash: "TXF"})

	amt, err := f.orch.PaymentAmount(f.bill, 0.25)
	require.NoError(t, err)
	require.Equal(t, "2500000", amt)

	_, err = f.orch.PaymentAmount(f.bill, 1.5)
	require.ErrorIs(t, err, billing.ErrInvalidInput)
}

func TestCalculateRoute(t *testing.T) {
	f := newFixture(t, &fakeRouter{route: twoChainRoute()}, &fakeExecutor{txHash: "TXF"})
	ctx := context.Background()

	r, err := f.orch.CalculateRoute(ctx, f.bill, Source{ChainID: "10", Denom: "usdc"}, "2500000")
	require.NoError(t, err)
	require.Equal(t, StatusIdle, f.orch.Status())
	require.Equal(t, "uusdc", r.DestAssetDenom)
	require.Equal(t, "noble-1", r.DestAssetChainID)
	require.Equal(t, "2500000", r.AmountIn)
}

func TestCalculateRouteInvalidInput(t *testing.T) {
	f := newFixture(t, &fakeRouter{route: twoChainRoute()}, &fakeExecutor{})
	ctx := context.Background()

	_, err := f.orch.CalculateRoute(ctx, f.bill, Source{ChainID: "10", Denom: "usdc"}, "0")
	require.ErrorIs(t, err, billing.ErrInvalidInput)

	_, err = f.orch.CalculateRoute(ctx, f.bill, Source{}, "2500000")
	require.ErrorIs(t, err, billing.ErrInvalidInput)
	require.Equal(t, 0, f.router.calls)
}

func TestCalculateRouteFailure(t *testing.T) {
	router := &fakeRouter{err: &route.RoutingError{StatusCode: 404, Message: "no routes found"}}
	f := newFixture(t, router, &fakeExecutor{})
	ctx := context.Background()

	_, err := f.orch.CalculateRoute(ctx, f.bill, Source{ChainID: "10", Denom: "usdc"}, "2500000")
	require.Error(t, err)
	require.Equal(t, StatusError, f.orch.Status())

	var rerr *route.RoutingError
	require.ErrorAs(t, err, &rerr)

	// the ledger was never touched
	got, lerr := f.ledger.Get(ctx, f.bill.ID)
	require.NoError(t, lerr)
	require.Equal(t, "10000000", got.RemainingAmount)

	// error state is retry-eligible
	router.err = nil
	router.route = twoChainRoute()
	_, err = f.orch.CalculateRoute(ctx, f.bill, Source{ChainID: "10", Denom: "usdc"}, "2500000")
	require.NoError(t, err)
	require.Equal(t, StatusIdle, f.orch.Status())
}

func TestResolveAddresses(t *testing.T) {
	f := newFixture(t, &fakeRouter{route: twoChainRoute()}, &fakeExecutor{})
	ctx := context.Background()

	addrs, err := f.orch.ResolveAddresses(ctx, twoChainRoute())
	require.NoError(t, err)
	require.Equal(t, evmAccount, addrs["10"])
	require.NotEmpty(t, addrs["noble-1"])
}

func TestResolveAddressesMissingSigner(t *testing.T) {
	f := newFixture(t, &fakeRouter{route: twoChainRoute()}, &fakeExecutor{})
	ctx := context.Background()

	// disconnect the cosmos wallet: the noble-1 hop has no signer
	f.cosmos.Disconnect()

	_, err := f.orch.ResolveAddresses(ctx, twoChainRoute())
	var msErr *MissingSignerError
	require.ErrorAs(t, err, &msErr)
	require.Equal(t, "noble-1", msErr.ChainID)
	require.Equal(t, chain.FamilyCosmos, msErr.Family)
	require.Contains(t, msErr.Error(), "noble-1")
	require.Contains(t, msErr.Error(), "cosmos")
}

func TestResolveAddressesUnknownChain(t *testing.T) {
	f := newFixture(t, &fakeRouter{route: twoChainRoute()}, &fakeExecutor{})

	r := &route.Route{RequiredChainAddresses: []string{"solana"}}
	_, err := f.orch.ResolveAddresses(context.Background(), r)
	var msErr *MissingSignerError
	require.ErrorAs(t, err, &msErr)
	require.Equal(t, chain.FamilyUnknown, msErr.Family)
}

func TestExecute(t *testing.T) {
	exec := &fakeExecutor{txHash: "TXFINAL"}
	f := newFixture(t, &fakeRouter{route: twoChainRoute()}, exec)
	ctx := context.Background()

	r := twoChainRoute()
	addrs, err := f.orch.ResolveAddresses(ctx, r)
	require.NoError(t, err)

	receipt, err := f.orch.Execute(ctx, f.bill, r, addrs, "2500000")
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, f.orch.Status())
	require.Equal(t, "TXFINAL", receipt.TxHash)
	require.Equal(t, "2500000", receipt.AmountPaid)
	require.Equal(t, "7500000", receipt.Bill.RemainingAmount)
	require.Len(t, receipt.Broadcasts, 2)
}

func TestExecuteFullSettlement(t *testing.T) {
	exec := &fakeExecutor{txHash: "TXFULL"}
	f := newFixture(t, &fakeRouter{route: twoChainRoute()}, exec)
	ctx := context.Background()

	r := twoChainRoute()
	addrs, err := f.orch.ResolveAddresses(ctx, r)
	require.NoError(t, err)

	receipt, err := f.orch.Execute(ctx, f.bill, r, addrs, "10000000")
	require.NoError(t, err)
	require.Equal(t, "0", receipt.Bill.RemainingAmount)
	require.Equal(t, billing.StatePaid, receipt.Bill.State())
}

func TestExecuteFailureLeavesLedgerUntouched(t *testing.T) {
	exec := &fakeExecutor{txHash: "TXBAD", err: errors.New("hop reverted")}
	f := newFixture(t, &fakeRouter{route: twoChainRoute()}, exec)
	ctx := context.Background()

	r := twoChainRoute()
	addrs, err := f.orch.ResolveAddresses(ctx, r)
	require.NoError(t, err)

	_, err = f.orch.Execute(ctx, f.bill, r, addrs, "2500000")
	require.Error(t, err)
	require.Equal(t, StatusError, f.orch.Status())

	got, err := f.ledger.Get(ctx, f.bill.ID)
	require.NoError(t, err)
	require.Equal(t, "10000000", got.RemainingAmount)

	// the already-broadcast transaction is reported, not discarded
	require.NotEmpty(t, f.orch.Broadcasts())
}

func TestExecuteRetryDoesNotDoubleApply(t *testing.T) {
	exec := &fakeExecutor{txHash: "TXSAME"}
	f := newFixture(t, &fakeRouter{route: twoChainRoute()}, exec)
	ctx := context.Background()

	r := twoChainRoute()
	addrs, err := f.orch.ResolveAddresses(ctx, r)
	require.NoError(t, err)

	first, err := f.orch.Execute(ctx, f.bill, r, addrs, "2500000")
	require.NoError(t, err)
	require.Equal(t, "7500000", first.Bill.RemainingAmount)

	// caller retries after an ambiguous failure; the route produces the same
	// final transaction, so the ledger must not decrement twice
	retry := New(f.router, exec, f.ledger, chain.NewRegistry(), wallet.NewRing(f.cosmos, f.evm), "uusdc", slogt.New(t))
	second, err := retry.Execute(ctx, f.bill, r, addrs, "2500000")
	require.NoError(t, err)
	require.Equal(t, "7500000", second.Bill.RemainingAmount)
}

func TestExecuteGuardsPhase(t *testing.T) {
	exec := &fakeExecutor{txHash: "TX"}
	f := newFixture(t, &fakeRouter{route: twoChainRoute()}, exec)
	ctx := context.Background()

	r := twoChainRoute()
	addrs, err := f.orch.ResolveAddresses(ctx, r)
	require.NoError(t, err)

	_, err = f.orch.Execute(ctx, f.bill, r, addrs, "2500000")
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, f.orch.Status())

	// a finished attempt cannot be re-executed
	_, err = f.orch.Execute(ctx, f.bill, r, addrs, "2500000")
	require.Error(t, err)
}
