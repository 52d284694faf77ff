package rpc

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"rampnet/native/market"
	"rampnet/native/scheduler"
	"rampnet/observability"
)

const maxRequestBody = 1 << 20 // 1 MiB

// Server is the HTTP front-end for the escrow engine and its scheduler.
type Server struct {
	engine  *market.Engine
	sched   *scheduler.Scheduler
	log     *slog.Logger
	metrics *observability.MarketMetrics
	router  http.Handler
}

// NewServer wires the engine and scheduler behind a chi router.
func NewServer(engine *market.Engine, sched *scheduler.Scheduler, log *slog.Logger) *Server {
	if engine == nil {
		panic("market engine required")
	}
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		engine:  engine,
		sched:   sched,
		log:     log,
		metrics: observability.Market(),
	}
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(s.requestLogger)
	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/orders", s.handleDeposit)
		r.Route("/orders/{key}", func(r chi.Router) {
			r.Get("/", s.handleGetOrder)
			r.Get("/claims", s.handleGetClaims)
			r.Post("/reserve", s.handleReserve)
			r.Post("/release", s.handleRelease)
			r.Post("/withdraw", s.handleWithdraw)
			r.Post("/close", s.handleClose)
			r.Post("/reprice", s.handleReprice)
			r.Post("/signal-close", s.handleSignalClose)
			r.Post("/clear-close", s.handleClearClose)
		})
		r.Post("/admin/assets", s.handleAdminAssets)
		r.Post("/admin/front-doors", s.handleAdminFrontDoors)
		if sched != nil {
			r.Route("/scheduler/{key}", func(r chi.Router) {
				r.Get("/", s.handleGetOperation)
				r.Post("/", s.handleSchedule)
				r.Post("/cancel", s.handleCancel)
				r.Post("/execute", s.handleExecute)
			})
		}
	})
	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		requestID := uuid.NewString()
		next.ServeHTTP(w, r)
		s.log.Info("request",
			"requestId", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"elapsedMs", time.Since(started).Milliseconds(),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type depositRequest struct {
	Seller         string `json:"seller"`
	Price          string `json:"price"`
	Asset          string `json:"asset"`
	Verifier       string `json:"verifier"`
	Scheduler      string `json:"scheduler"`
	Amount         string `json:"amount"`
	MaxClaimAmount uint64 `json:"maxClaimAmount"`
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	defer s.observe("deposit", time.Now(), r)
	var req depositRequest
	if !decodeBody(w, r, &req) {
		return
	}
	seller, err := parseAddress(req.Seller)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_seller", err)
		return
	}
	asset, err := parseAddress(req.Asset)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_asset", err)
		return
	}
	verifier, err := parseAddress(req.Verifier)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_verifier", err)
		return
	}
	schedAddr, err := parseAddress(req.Scheduler)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_scheduler", err)
		return
	}
	price, err := parseAmount(req.Price)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_price", err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_amount", err)
		return
	}
	key, err := s.engine.Deposit(seller, price, asset, verifier, schedAddr, amount, req.MaxClaimAmount)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"orderKey": hex.EncodeToString(key[:])})
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	key, ok := s.orderKey(w, r)
	if !ok {
		return
	}
	order, found := s.engine.Order(key)
	if !found {
		writeError(w, http.StatusNotFound, "order_not_found", market.ErrOrderNotFound)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) handleGetClaims(w http.ResponseWriter, r *http.Request) {
	key, ok := s.orderKey(w, r)
	if !ok {
		return
	}
	claims, err := s.engine.Claims(key)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, claims)
}

type reserveRequest struct {
	Caller    string   `json:"caller"`
	Recipient string   `json:"recipient"`
	Amount    uint64   `json:"amount"`
	MaxFee    uint64   `json:"maxFee"`
	Hints     []uint64 `json:"staleSlotHints,omitempty"`
}

func (s *Server) handleReserve(w http.ResponseWriter, r *http.Request) {
	defer s.observe("reserve", time.Now(), r)
	key, ok := s.orderKey(w, r)
	if !ok {
		return
	}
	var req reserveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_caller", err)
		return
	}
	recipient, err := parseAddress(req.Recipient)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_recipient", err)
		return
	}
	index, err := s.engine.Reserve(key, caller, recipient, req.Amount, req.MaxFee, req.Hints)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"claimIndex": index})
}

type releaseRequest struct {
	OrderIndex uint64 `json:"orderIndex"`
	ClaimIndex uint64 `json:"claimIndex"`
	Nullifier  string `json:"nullifier"`
}

func (s *Server) handleRelease(w http.ResponseWriter, r *http.Request) {
	defer s.observe("release", time.Now(), r)
	key, ok := s.orderKey(w, r)
	if !ok {
		return
	}
	var req releaseRequest
	if !decodeBody(w, r, &req) {
		return
	}
	nullifier, err := parseHash(req.Nullifier)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_nullifier", err)
		return
	}
	paid, err := s.engine.Release(key, req.OrderIndex, req.ClaimIndex, nullifier)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"transferred": paid.String()})
}

type withdrawRequest struct {
	Caller string `json:"caller"`
	Amount string `json:"amount,omitempty"`
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	defer s.observe("withdraw", time.Now(), r)
	key, ok := s.orderKey(w, r)
	if !ok {
		return
	}
	var req withdrawRequest
	if !decodeBody(w, r, &req) {
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_caller", err)
		return
	}
	amount := big.NewInt(0)
	if strings.TrimSpace(req.Amount) != "" {
		amount, err = parseAmount(req.Amount)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_amount", err)
			return
		}
	}
	withdrawn, err := s.engine.WithdrawUnreserved(key, caller, amount)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"withdrawn": withdrawn.String()})
}

type callerRequest struct {
	Caller string `json:"caller"`
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	defer s.observe("close", time.Now(), r)
	key, ok := s.orderKey(w, r)
	if !ok {
		return
	}
	var req callerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_caller", err)
		return
	}
	refunded, err := s.engine.CloseOrder(key, caller)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"refunded": refunded.String()})
}

type repriceRequest struct {
	Caller   string `json:"caller"`
	NewPrice string `json:"newPrice"`
}

func (s *Server) handleReprice(w http.ResponseWriter, r *http.Request) {
	defer s.observe("reprice", time.Now(), r)
	key, ok := s.orderKey(w, r)
	if !ok {
		return
	}
	var req repriceRequest
	if !decodeBody(w, r, &req) {
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_caller", err)
		return
	}
	newPrice, err := parseAmount(req.NewPrice)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_price", err)
		return
	}
	newKey, err := s.engine.UpdateSellPrice(key, caller, newPrice)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"orderKey": hex.EncodeToString(newKey[:])})
}

func (s *Server) handleSignalClose(w http.ResponseWriter, r *http.Request) {
	s.handleCloseSignal(w, r, true)
}

func (s *Server) handleClearClose(w http.ResponseWriter, r *http.Request) {
	s.handleCloseSignal(w, r, false)
}

func (s *Server) handleCloseSignal(w http.ResponseWriter, r *http.Request, signal bool) {
	defer s.observe("close_signal", time.Now(), r)
	key, ok := s.orderKey(w, r)
	if !ok {
		return
	}
	var req callerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_caller", err)
		return
	}
	if signal {
		err = s.engine.SignalClose(key, caller)
	} else {
		err = s.engine.ClearCloseSignal(key, caller)
	}
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type allowRequest struct {
	Caller  string `json:"caller"`
	Address string `json:"address"`
	Allowed bool   `json:"allowed"`
}

func (s *Server) handleAdminAssets(w http.ResponseWriter, r *http.Request) {
	s.handleAllowList(w, r, s.engine.SetAssetAllowed)
}

func (s *Server) handleAdminFrontDoors(w http.ResponseWriter, r *http.Request) {
	s.handleAllowList(w, r, s.engine.SetFrontDoorAllowed)
}

func (s *Server) handleAllowList(w http.ResponseWriter, r *http.Request, mutate func([20]byte, [20]byte, bool) error) {
	defer s.observe("admin_allow", time.Now(), r)
	var req allowRequest
	if !decodeBody(w, r, &req) {
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_caller", err)
		return
	}
	addr, err := parseAddress(req.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_address", err)
		return
	}
	if err := mutate(caller, addr, req.Allowed); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type scheduleRequest struct {
	Caller   string `json:"caller"`
	Kind     string `json:"kind"`
	NewPrice string `json:"newPrice,omitempty"`
}

func parseKind(value string) (scheduler.Kind, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "close":
		return scheduler.KindClose, nil
	case "reprice":
		return scheduler.KindReprice, nil
	default:
		return scheduler.KindNone, fmt.Errorf("unknown operation kind %q", value)
	}
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	defer s.observe("schedule", time.Now(), r)
	key, ok := s.orderKey(w, r)
	if !ok {
		return
	}
	var req scheduleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_caller", err)
		return
	}
	kind, err := parseKind(req.Kind)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_kind", err)
		return
	}
	var newPrice *big.Int
	if kind == scheduler.KindReprice {
		newPrice, err = parseAmount(req.NewPrice)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_price", err)
			return
		}
	}
	op, err := s.sched.Schedule(key, caller, kind, newPrice)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, op)
}

func (s *Server) handleGetOperation(w http.ResponseWriter, r *http.Request) {
	key, ok := s.orderKey(w, r)
	if !ok {
		return
	}
	op, found := s.sched.Operation(key)
	if !found {
		writeError(w, http.StatusNotFound, "not_scheduled", scheduler.ErrNotScheduled)
		return
	}
	writeJSON(w, http.StatusOK, op)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	defer s.observe("schedule_cancel", time.Now(), r)
	key, ok := s.orderKey(w, r)
	if !ok {
		return
	}
	var req callerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_caller", err)
		return
	}
	if err := s.sched.Cancel(key, caller); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type executeRequest struct {
	Kind string `json:"kind"`
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	defer s.observe("schedule_execute", time.Now(), r)
	key, ok := s.orderKey(w, r)
	if !ok {
		return
	}
	var req executeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	kind, err := parseKind(req.Kind)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_kind", err)
		return
	}
	if err := s.sched.Execute(key, kind); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "executed"})
}

func (s *Server) orderKey(w http.ResponseWriter, r *http.Request) ([32]byte, bool) {
	key, err := parseHash(chi.URLParam(r, "key"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_order_key", err)
		return key, false
	}
	return key, true
}

func (s *Server) observe(operation string, started time.Time, _ *http.Request) {
	s.metrics.Observe(operation, "handled", time.Since(started))
}
