package route

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/require"
)

func TestClientRoute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v2/fungible/route", r.URL.Path)
		require.Equal(t, "test-key", r.Header.Get("Authorization"))

		var req RouteRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "uusdc", req.DestAssetDenom)
		require.Equal(t, "2500000", req.AmountIn)
		require.True(t, req.SmartRelay)

		json.NewEncoder(w).Encode(Route{
			SourceAssetDenom:       req.SourceAssetDenom,
			SourceAssetChainID:     req.SourceAssetChainID,
			DestAssetDenom:         req.DestAssetDenom,
			DestAssetChainID:       req.DestAssetChainID,
			AmountIn:               req.AmountIn,
			AmountOut:              "2490000",
			RequiredChainAddresses: []string{"10", "noble-1"},
			Operations: []Hop{
				{ChainID: "10", Type: "bridge", DenomIn: "usdc", DenomOut: "uusdc"},
				{ChainID: "noble-1", Type: "transfer", DenomIn: "uusdc", DenomOut: "uusdc"},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", slogt.New(t))
	r, err := c.Route(context.Background(), RouteRequest{
		SourceAssetDenom:   "0x0b2C639c533813f4Aa9D7837CAf62653d097Ff85",
		SourceAssetChainID: "10",
		DestAssetDenom:     "uusdc",
		DestAssetChainID:   "noble-1",
		AmountIn:           "2500000",
		SmartRelay:         true,
	})
	require.NoError(t, err)
	require.Equal(t, "2490000", r.AmountOut)
	require.Equal(t, []string{"10", "noble-1"}, r.RequiredChainAddresses)
	require.Len(t, r.Operations, 2)
}

func TestClientRouteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"message": "no routes found"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", slogt.New(t))
	_, err := c.Route(context.Background(), RouteRequest{})
	require.Error(t, err)

	var rerr *RoutingError
	require.ErrorAs(t, err, &rerr)
	require.Equal(t, http.StatusBadRequest, rerr.StatusCode)
	require.Equal(t, "no routes found", rerr.Message)
}

func TestClientSubmitAndStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v2/tx/submit":
			var req struct {
				ChainID string `json:"chainId"`
				Tx      string `json:"tx"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			require.Equal(t, "noble-1", req.ChainID)
			require.NotEmpty(t, req.Tx)
			json.NewEncoder(w).Encode(map[string]string{"txHash": "ABC123"})
		case "/v2/tx/status":
			require.Equal(t, "noble-1", r.URL.Query().Get("chainId"))
			require.Equal(t, "ABC123", r.URL.Query().Get("txHash"))
			json.NewEncoder(w).Encode(TxStatus{
				ChainID: "noble-1", TxHash: "ABC123", State: StateCompletedSuccess,
			})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", slogt.New(t))

	hash, err := c.SubmitTx(context.Background(), "noble-1", []byte("signed-tx"))
	require.NoError(t, err)
	require.Equal(t, "ABC123", hash)

	st, err := c.TxStatus(context.Background(), "noble-1", "ABC123")
	require.NoError(t, err)
	require.Equal(t, StateCompletedSuccess, st.State)
}
