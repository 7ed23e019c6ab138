// Package httpapi is the thin web surface (spec §6): one handler per
// mutating command and per read model, wired onto the stdlib's
// pattern-matching ServeMux. Grounded on
// original_source/src/subsystems/web_server.rs's axum::Router table.
package httpapi

import (
	"encoding/json"
	"net/http"

	"cartflow/internal/decision"
	"cartflow/pkg/eventlog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// Server holds the dependencies every handler needs.
type Server struct {
	executor *decision.Executor
	store    eventlog.EventStore
	pool     *pgxpool.Pool
	log      *logrus.Entry
}

// NewServer returns a Server.
func NewServer(executor *decision.Executor, store eventlog.EventStore, pool *pgxpool.Pool, log *logrus.Entry) *Server {
	return &Server{executor: executor, store: store, pool: pool, log: log}
}

// Handler builds the routed mux (spec §6's HTTP surface).
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /additem/{cart_id}", s.handleAddItem)
	mux.HandleFunc("POST /removeitem/{cart_id}", s.handleRemoveItem)
	mux.HandleFunc("POST /clearcart/{cart_id}", s.handleClearCart)
	mux.HandleFunc("POST /submitcart/{cart_id}", s.handleSubmitCart)
	mux.HandleFunc("POST /changeprice/{product_id}", s.handleChangePrice)
	mux.HandleFunc("GET /{cart_id}/cartitems", s.handleCartItemsLive)
	mux.HandleFunc("GET /{cart_id}/cartitemsfromdb", s.handleCartItemsFromDB)
	mux.HandleFunc("GET /cartswithproducts/{product_id}", s.handleCartsWithProducts)
	mux.HandleFunc("GET /inventories/{product_id}", s.handleInventory)
	mux.HandleFunc("GET /healthcheck", s.handleHealthCheck)
	return mux
}

// writeJSON writes v as a 200 JSON body.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(v)
}

// idResult mirrors add_item.rs's Json<(Uuid, i64)> tuple response as a
// two-element JSON array: [id, last_event_id].
func idResult(id string, lastEventID int64) [2]any {
	return [2]any{id, lastEventID}
}

// writeErr classifies err (spec §7) and writes the matching status.
func (s *Server) writeErr(w http.ResponseWriter, err error) {
	status, message := classify(err)
	if status == http.StatusInternalServerError {
		s.log.WithError(err).Error("httpapi: request failed")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(struct {
		Message string `json:"message"`
	}{message})
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, "Ok")
}
