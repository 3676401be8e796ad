package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/fissionlabs/fissionpay/internal/billing"
	"github.com/fissionlabs/fissionpay/internal/payment"
	"github.com/fissionlabs/fissionpay/internal/route"
)

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleCreateBill(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MerchantAddress string `json:"merchantAddress"`
		MerchantChainID string `json:"merchantChainId"`
		TotalAmount     string `json:"totalAmount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.MerchantAddress == "" || req.MerchantChainID == "" || req.TotalAmount == "" {
		writeError(w, http.StatusBadRequest, "Missing required fields")
		return
	}

	bill, err := a.ledger.Create(r.Context(), req.MerchantAddress, req.MerchantChainID, req.TotalAmount)
	if err != nil {
		if errors.Is(err, billing.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		a.log.Error("creating bill", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to create bill")
		return
	}
	writeJSON(w, http.StatusCreated, bill)
}

func (a *API) handleListBills(w http.ResponseWriter, r *http.Request) {
	bills, err := a.ledger.List(r.Context())
	if err != nil {
		a.log.Error("listing bills", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to list bills")
		return
	}
	if bills == nil {
		bills = []*billing.Bill{}
	}
	writeJSON(w, http.StatusOK, bills)
}

func (a *API) handleGetBill(w http.ResponseWriter, r *http.Request) {
	bill, err := a.ledger.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, billing.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Bill not found")
			return
		}
		a.log.Error("getting bill", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to get bill")
		return
	}
	writeJSON(w, http.StatusOK, bill)
}

func (a *API) handlePatchBill(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req struct {
		RemainingAmount *string `json:"remainingAmount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// no override requested: return the current bill unchanged
	if req.RemainingAmount == nil {
		a.handleGetBill(w, r)
		return
	}

	bill, err := a.ledger.Override(r.Context(), id, *req.RemainingAmount)
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrNotFound):
			writeError(w, http.StatusNotFound, "Bill not found")
		case errors.Is(err, billing.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			a.log.Error("updating bill", "err", err)
			writeError(w, http.StatusInternalServerError, "failed to update bill")
		}
		return
	}
	writeJSON(w, http.StatusOK, bill)
}

func (a *API) handlePayBill(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req struct {
		PaymentAmount string `json:"paymentAmount"`
		TxHash        string `json:"txHash"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PaymentAmount == "" || req.TxHash == "" {
		writeError(w, http.StatusBadRequest, "Missing payment amount or transaction hash")
		return
	}

	bill, err := a.ledger.ApplyPayment(r.Context(), id, req.PaymentAmount, req.TxHash)
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrNotFound):
			writeError(w, http.StatusNotFound, "Bill not found")
		case errors.Is(err, billing.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			a.log.Error("applying payment", "err", err)
			writeError(w, http.StatusInternalServerError, "failed to apply payment")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":            true,
		"bill":               bill,
		"newRemainingAmount": bill.RemainingAmount,
	})
}

// handleQuoteRoute computes a route for paying a bill from a source asset,
// without executing anything. The payer UI uses it to preview the path and
// the destination amount before confirming.
func (a *API) handleQuoteRoute(w http.ResponseWriter, r *http.Request) {
	if a.quoter == nil {
		writeError(w, http.StatusServiceUnavailable, "routing service not configured")
		return
	}
	id := mux.Vars(r)["id"]

	var req struct {
		SourceAssetDenom   string   `json:"sourceAssetDenom"`
		SourceAssetChainID string   `json:"sourceAssetChainId"`
		PaymentAmount      string   `json:"paymentAmount"`
		Fraction           *float64 `json:"fraction"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SourceAssetDenom == "" || req.SourceAssetChainID == "" {
		writeError(w, http.StatusBadRequest, "Missing source chain or asset")
		return
	}

	bill, err := a.ledger.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, billing.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Bill not found")
			return
		}
		a.log.Error("getting bill", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to get bill")
		return
	}

	orch := payment.New(a.quoter, nil, a.ledger, nil, nil, a.destDenom, a.log)

	amountIn := req.PaymentAmount
	if amountIn == "" {
		fraction := 1.0
		if req.Fraction != nil {
			fraction = *req.Fraction
		}
		amountIn, err = orch.PaymentAmount(bill, fraction)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	rt, err := orch.CalculateRoute(r.Context(), bill, payment.Source{
		ChainID: req.SourceAssetChainID,
		Denom:   req.SourceAssetDenom,
	}, amountIn)
	if err != nil {
		var rerr *route.RoutingError
		switch {
		case errors.Is(err, billing.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.As(err, &rerr):
			writeError(w, http.StatusBadGateway, rerr.Message)
		default:
			a.log.Error("calculating route", "bill", id, "err", err)
			writeError(w, http.StatusBadGateway, "failed to calculate route")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"route":         rt,
		"paymentAmount": amountIn,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
