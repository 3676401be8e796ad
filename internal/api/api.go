// Package api exposes the bill service over REST for the merchant and payer
// web UIs.
package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/fissionlabs/fissionpay/internal/billing"
	"github.com/fissionlabs/fissionpay/internal/payment"
)

type API struct {
	router    *mux.Router
	ledger    *billing.Ledger
	quoter    payment.Router // nil disables the route quote endpoint
	destDenom string
	log       *slog.Logger
}

func New(ledger *billing.Ledger, quoter payment.Router, destDenom string, log *slog.Logger) *API {
	a := &API{
		router:    mux.NewRouter(),
		ledger:    ledger,
		quoter:    quoter,
		destDenom: destDenom,
		log:       log,
	}
	a.setupRoutes()
	return a
}

func (a *API) setupRoutes() {
	a.router.HandleFunc("/healthz", a.handleHealth).Methods("GET")

	// Bill routes are served both bare and under /api, matching the paths the
	// web UIs call.
	a.registerBillRoutes(a.router)
	a.registerBillRoutes(a.router.PathPrefix("/api").Subrouter())
}

func (a *API) registerBillRoutes(r *mux.Router) {
	r.HandleFunc("/bills", a.handleCreateBill).Methods("POST")
	r.HandleFunc("/bills", a.handleListBills).Methods("GET")
	r.HandleFunc("/bills", a.methodNotAllowed("GET", "POST"))

	r.HandleFunc("/bills/{id}", a.handleGetBill).Methods("GET")
	r.HandleFunc("/bills/{id}", a.handlePatchBill).Methods("PATCH")
	r.HandleFunc("/bills/{id}", a.methodNotAllowed("GET", "PATCH"))

	r.HandleFunc("/bills/{id}/pay", a.handlePayBill).Methods("POST")
	r.HandleFunc("/bills/{id}/pay", a.methodNotAllowed("POST"))

	r.HandleFunc("/bills/{id}/route", a.handleQuoteRoute).Methods("POST")
	r.HandleFunc("/bills/{id}/route", a.methodNotAllowed("POST"))
}

// Handler returns the fully wrapped HTTP handler: CORS for the browser UIs
// plus request logging.
func (a *API) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
	})
	return a.logRequests(c.Handler(a.router))
}

func (a *API) methodNotAllowed(allowed ...string) http.HandlerFunc {
	allow := strings.Join(allowed, ", ")
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Allow", allow)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (a *API) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		a.log.Debug("request", "method", r.Method, "path", r.URL.Path, "status", rec.status)
	})
}
