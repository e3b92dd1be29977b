package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/DytallixHQ/Dytallix-sub005/core"
)

// Server adapts the synchronous core facade to HTTP. Every handler is a
// thin translation layer: decode, call the facade, encode; no chain
// logic lives here.
type Server struct {
	node       *core.Node
	log        *logrus.Logger
	router     chi.Router
	httpServer *http.Server
}

func NewServer(addr string, node *core.Node, metrics *core.HealthMetrics, log *logrus.Logger) *Server {
	s := &Server{node: node, log: log, router: chi.NewRouter()}
	s.router.Use(s.requestID)
	s.router.Use(s.logging)

	s.router.Post("/api/tx", s.handleSubmit)
	s.router.Get("/api/balance/{addr}", s.handleBalance)
	s.router.Get("/api/nonce/{addr}", s.handleNonce)
	s.router.Get("/api/block/latest", s.handleLatestBlock)
	s.router.Get("/api/block/height/{height}", s.handleBlockByHeight)
	s.router.Get("/api/block/hash/{hash}", s.handleBlockByHash)
	s.router.Get("/api/receipt/{hash}", s.handleReceipt)
	s.router.Get("/api/stats", s.handleStats)
	s.router.Method(http.MethodGet, "/metrics", metrics.Handler())

	s.httpServer = &http.Server{Addr: addr, Handler: s.router}
	return s
}

func (s *Server) Start() error { return s.httpServer.ListenAndServe() }
func (s *Server) Close() error { return s.httpServer.Close() }

// requestID tags every request with a correlation id, echoed back to
// the client and attached to every log line for the request.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r.WithContext(withRequestID(r.Context(), id)))
	})
}

func (s *Server) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.log.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"request_id": requestIDFrom(r.Context()),
		}).Debug("rpc request")
		next.ServeHTTP(w, r)
	})
}

type errorBody struct {
	Code     string  `json:"code"`
	Message  string  `json:"message"`
	Expected *uint64 `json:"expected,omitempty"`
	Got      *uint64 `json:"got,omitempty"`
}

// writeError maps core errors onto wire codes and HTTP statuses. Coded
// validation errors pass their code through verbatim; a missing record
// is not_found (404); anything else is an internal error.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var coded *core.CodedError
	if errors.As(err, &coded) {
		status := http.StatusBadRequest
		switch coded.Code {
		case core.CodeDuplicateTx:
			status = http.StatusConflict
		case core.CodeMempoolFull:
			status = http.StatusServiceUnavailable
		case core.CodeInternal:
			status = http.StatusInternalServerError
		}
		writeJSON(w, status, errorBody{
			Code: string(coded.Code), Message: coded.Message,
			Expected: coded.Expected, Got: coded.Got,
		})
		return
	}
	if errors.Is(err, core.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorBody{Code: "not_found", Message: "no such record"})
		return
	}
	s.log.WithFields(logrus.Fields{
		"request_id": requestIDFrom(r.Context()),
	}).WithError(err).Error("rpc internal error")
	writeJSON(w, http.StatusInternalServerError, errorBody{Code: string(core.CodeInternal), Message: "internal error"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var stx core.SignedTransaction
	if err := json.NewDecoder(r.Body).Decode(&stx); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Code: string(core.CodeInternal), Message: "malformed transaction envelope"})
		return
	}
	res, err := s.node.Submit(&stx)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"hash":   res.Hash.Hex(),
		"status": string(res.Status),
	})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	addr := core.Address(chi.URLParam(r, "addr"))
	var denom *core.Denom
	if d := r.URL.Query().Get("denom"); d != "" {
		dd := core.Denom(d)
		denom = &dd
	}
	balances, err := s.node.BalanceOf(addr, denom)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := map[string]string{}
	for _, d := range core.SortedBalanceKeys(balances) {
		out[string(d)] = balances[d].String()
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleNonce(w http.ResponseWriter, r *http.Request) {
	addr := core.Address(chi.URLParam(r, "addr"))
	nonce, err := s.node.NonceOf(addr)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"nonce": nonce})
}

func (s *Server) handleLatestBlock(w http.ResponseWriter, r *http.Request) {
	blk, err := s.node.LatestBlock()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, blk.ToView())
}

func (s *Server) handleBlockByHeight(w http.ResponseWriter, r *http.Request) {
	h, err := strconv.ParseUint(chi.URLParam(r, "height"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Code: "not_found", Message: "bad height"})
		return
	}
	blk, err := s.node.BlockByHeight(h)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, blk.ToView())
}

func (s *Server) handleBlockByHash(w http.ResponseWriter, r *http.Request) {
	var h core.Hash
	if err := h.UnmarshalJSON([]byte(strconv.Quote(chi.URLParam(r, "hash")))); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Code: "not_found", Message: "bad block hash"})
		return
	}
	blk, err := s.node.BlockByHash(h)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, blk.ToView())
}

func (s *Server) handleReceipt(w http.ResponseWriter, r *http.Request) {
	var h core.Hash
	if err := h.UnmarshalJSON([]byte(strconv.Quote(chi.URLParam(r, "hash")))); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Code: "not_found", Message: "bad tx hash"})
		return
	}
	rcpt, err := s.node.Receipt(h)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rcpt)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.node.Stats()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
