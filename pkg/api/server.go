package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/swaplabs/swapd/pkg/escrow"
	"github.com/swaplabs/swapd/pkg/events"
	"github.com/swaplabs/swapd/pkg/ledger"
	"github.com/swaplabs/swapd/pkg/metering"
	"github.com/swaplabs/swapd/pkg/util"
)

// Server exposes the escrow engine, ledger and metering service over HTTP
// plus a WebSocket event feed.
type Server struct {
	engine  *escrow.Engine
	ledger  *ledger.Ledger
	meter   *metering.Service
	clock   util.TickSource
	journal *events.StoreLog
	hub     *Hub
	log     *zap.SugaredLogger
	http    *http.Server
}

func NewServer(addr string, engine *escrow.Engine, l *ledger.Ledger, meter *metering.Service, clock util.TickSource, journal *events.StoreLog, hub *Hub, log *zap.SugaredLogger) *Server {
	s := &Server{
		engine:  engine,
		ledger:  l,
		meter:   meter,
		clock:   clock,
		journal: journal,
		hub:     hub,
		log:     log,
	}

	r := mux.NewRouter()
	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/orders", s.handleCreateOrder).Methods("POST")
	api.HandleFunc("/orders", s.handleListOrders).Methods("GET")
	api.HandleFunc("/orders/{address}", s.handleGetOrder).Methods("GET")
	api.HandleFunc("/orders/{address}/fill", s.handleFillOrder).Methods("POST")
	api.HandleFunc("/orders/{address}/cancel", s.handleCancelOrder).Methods("POST")

	api.HandleFunc("/accounts/{address}", s.handleGetAccount).Methods("GET")
	api.HandleFunc("/accounts/{address}/deposit", s.handleAccountDeposit).Methods("POST")
	api.HandleFunc("/accounts/{address}/token", s.handleOpenTokenAccount).Methods("POST")

	api.HandleFunc("/metering/{owner}", s.handleInitMeter).Methods("POST")
	api.HandleFunc("/metering/{owner}", s.handleGetMeter).Methods("GET")
	api.HandleFunc("/metering/{owner}/deposit", s.handleMeterDeposit).Methods("POST")
	api.HandleFunc("/metering/{owner}/charge", s.handleMeterCharge).Methods("POST")
	api.HandleFunc("/metering/{owner}/withdraw", s.handleMeterWithdraw).Methods("POST")
	api.HandleFunc("/metering/{owner}/events", s.handleMeterRecordEvent).Methods("POST")

	api.HandleFunc("/events", s.handleRecentEvents).Methods("GET")

	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.HandleFunc("/ws", s.handleWebSocket)

	handler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(r)

	s.http = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	return s
}

// Start blocks serving HTTP until the listener fails or Shutdown runs.
func (s *Server) Start() error {
	s.log.Infow("api_listening", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	maker, ok := parseAddress(req.Maker)
	if !ok {
		s.respondError(w, http.StatusBadRequest, "invalid maker address")
		return
	}
	direction, err := escrow.ParseDirection(req.Direction)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var counterRecipient *common.Address
	if req.CounterRecipient != "" {
		cr, ok := parseAddress(req.CounterRecipient)
		if !ok {
			s.respondError(w, http.StatusBadRequest, "invalid counter recipient address")
			return
		}
		counterRecipient = &cr
	}

	order, err := s.engine.Create(maker, req.Amount, direction, req.ExpirationTick, counterRecipient)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, orderResponse(order))
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	orders := s.engine.Orders()
	out := make([]OrderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, orderResponse(o))
	}
	s.respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddress(mux.Vars(r)["address"])
	if !ok {
		s.respondError(w, http.StatusBadRequest, "invalid order address")
		return
	}
	order, ok := s.engine.Order(addr)
	if !ok {
		s.respondError(w, http.StatusNotFound, "order not found")
		return
	}
	s.respondJSON(w, http.StatusOK, orderResponse(order))
}

func (s *Server) handleFillOrder(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddress(mux.Vars(r)["address"])
	if !ok {
		s.respondError(w, http.StatusBadRequest, "invalid order address")
		return
	}
	var req FillOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	taker, ok := parseAddress(req.Taker)
	if !ok {
		s.respondError(w, http.StatusBadRequest, "invalid taker address")
		return
	}

	order, err := s.engine.Fill(addr, taker)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, orderResponse(order))
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddress(mux.Vars(r)["address"])
	if !ok {
		s.respondError(w, http.StatusBadRequest, "invalid order address")
		return
	}
	var req CancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	caller, ok := parseAddress(req.Caller)
	if !ok {
		s.respondError(w, http.StatusBadRequest, "invalid caller address")
		return
	}

	order, err := s.engine.Cancel(addr, caller)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, orderResponse(order))
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddress(mux.Vars(r)["address"])
	if !ok {
		s.respondError(w, http.StatusBadRequest, "invalid account address")
		return
	}
	acc, ok := s.ledger.Account(addr)
	if !ok {
		s.respondError(w, http.StatusNotFound, "account not found")
		return
	}

	resp := AccountResponse{
		Address:       acc.Address.Hex(),
		NativeBalance: acc.NativeBalance,
		Vault:         acc.VaultSalt != nil,
	}
	if acc.Token != nil {
		resp.TokenMint = acc.Token.Mint
		resp.TokenBalance = acc.Token.Balance
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// handleAccountDeposit credits external funds into the ledger. This is the
// faucet edge of the system; everything after it is conserved transfers.
func (s *Server) handleAccountDeposit(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddress(mux.Vars(r)["address"])
	if !ok {
		s.respondError(w, http.StatusBadRequest, "invalid account address")
		return
	}
	var req DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	kind := ledger.Native
	switch req.Kind {
	case "", "native":
	case "token":
		kind = ledger.Token
	default:
		s.respondError(w, http.StatusBadRequest, "invalid asset kind")
		return
	}

	if err := s.ledger.Deposit(kind, addr, req.Amount); err != nil {
		s.respondEngineError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]uint64{"balance": s.ledger.Balance(addr, kind)})
}

func (s *Server) handleOpenTokenAccount(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddress(mux.Vars(r)["address"])
	if !ok {
		s.respondError(w, http.StatusBadRequest, "invalid account address")
		return
	}
	if err := s.ledger.OpenTokenAccount(addr, s.ledger.Mint()); err != nil {
		s.respondEngineError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"mint": s.ledger.Mint()})
}

func (s *Server) handleInitMeter(w http.ResponseWriter, r *http.Request) {
	owner, ok := parseAddress(mux.Vars(r)["owner"])
	if !ok {
		s.respondError(w, http.StatusBadRequest, "invalid owner address")
		return
	}
	if err := s.meter.Initialize(owner); err != nil {
		s.respondEngineError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, MeterResponse{Owner: owner.Hex()})
}

func (s *Server) handleGetMeter(w http.ResponseWriter, r *http.Request) {
	owner, ok := parseAddress(mux.Vars(r)["owner"])
	if !ok {
		s.respondError(w, http.StatusBadRequest, "invalid owner address")
		return
	}
	acc, ok := s.meter.Account(owner)
	if !ok {
		s.respondError(w, http.StatusNotFound, "metering account not found")
		return
	}
	s.respondJSON(w, http.StatusOK, meterResponse(acc))
}

func (s *Server) handleMeterDeposit(w http.ResponseWriter, r *http.Request) {
	owner, ok := parseAddress(mux.Vars(r)["owner"])
	if !ok {
		s.respondError(w, http.StatusBadRequest, "invalid owner address")
		return
	}
	var req DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.meter.Deposit(owner, req.Amount); err != nil {
		s.respondEngineError(w, err)
		return
	}
	acc, _ := s.meter.Account(owner)
	s.respondJSON(w, http.StatusOK, meterResponse(acc))
}

func (s *Server) handleMeterCharge(w http.ResponseWriter, r *http.Request) {
	owner, ok := parseAddress(mux.Vars(r)["owner"])
	if !ok {
		s.respondError(w, http.StatusBadRequest, "invalid owner address")
		return
	}
	var req ChargeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.meter.Charge(owner, req.Cost); err != nil {
		s.respondEngineError(w, err)
		return
	}
	acc, _ := s.meter.Account(owner)
	s.respondJSON(w, http.StatusOK, meterResponse(acc))
}

func (s *Server) handleMeterWithdraw(w http.ResponseWriter, r *http.Request) {
	owner, ok := parseAddress(mux.Vars(r)["owner"])
	if !ok {
		s.respondError(w, http.StatusBadRequest, "invalid owner address")
		return
	}
	amount, err := s.meter.Withdraw(owner)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, WithdrawResponse{Owner: owner.Hex(), Amount: amount})
}

func (s *Server) handleMeterRecordEvent(w http.ResponseWriter, r *http.Request) {
	owner, ok := parseAddress(mux.Vars(r)["owner"])
	if !ok {
		s.respondError(w, http.StatusBadRequest, "invalid owner address")
		return
	}
	var req RecordEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.meter.RecordEvent(owner, req.Label); err != nil {
		s.respondEngineError(w, err)
		return
	}
	acc, _ := s.meter.Account(owner)
	s.respondJSON(w, http.StatusOK, meterResponse(acc))
}

func (s *Server) handleRecentEvents(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	entries, err := s.journal.Recent(limit)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []events.RawEntry{}
	}
	s.respondJSON(w, http.StatusOK, entries)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, HealthResponse{
		Status:      "ok",
		CurrentTick: s.clock.CurrentTick(),
		OpenOrders:  len(s.engine.Orders()),
	})
}

func orderResponse(o *escrow.Order) OrderResponse {
	resp := OrderResponse{
		Address:        o.Address.Hex(),
		Maker:          o.Maker.Hex(),
		Amount:         o.Amount,
		Direction:      o.Direction.String(),
		ExpirationTick: o.ExpirationTick,
		CreatedTick:    o.CreatedTick,
		Deposit:        o.Deposit,
		Filled:         o.Filled,
		Vault:          o.VaultAddress().Hex(),
	}
	if o.CounterRecipient != nil {
		resp.CounterRecipient = o.CounterRecipient.Hex()
	}
	return resp
}

func meterResponse(acc metering.Account) MeterResponse {
	return MeterResponse{
		Owner:      acc.Owner.Hex(),
		Balance:    acc.Balance,
		TotalSpent: acc.TotalSpent,
		MatchCount: acc.MatchCount,
	}
}

func parseAddress(s string) (common.Address, bool) {
	if !common.IsHexAddress(s) {
		return common.Address{}, false
	}
	return common.HexToAddress(s), true
}

// respondEngineError maps sentinel errors from the engine, ledger and
// metering service onto HTTP status codes.
func (s *Server) respondEngineError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, escrow.ErrOrderNotFound),
		errors.Is(err, ledger.ErrAccountNotFound),
		errors.Is(err, metering.ErrAccountNotFound):
		status = http.StatusNotFound

	case errors.Is(err, escrow.ErrOrderExists),
		errors.Is(err, escrow.ErrOrderAlreadyFilled),
		errors.Is(err, escrow.ErrOrderExpired),
		errors.Is(err, ledger.ErrAccountExists),
		errors.Is(err, metering.ErrAccountExists):
		status = http.StatusConflict

	case errors.Is(err, escrow.ErrUnauthorized),
		errors.Is(err, ledger.ErrVaultAuthority):
		status = http.StatusForbidden

	case errors.Is(err, escrow.ErrAmountBelowMinimum),
		errors.Is(err, escrow.ErrInvalidDirection),
		errors.Is(err, escrow.ErrExpirationInPast),
		errors.Is(err, escrow.ErrExpirationTooFar),
		errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrMissingTokenAccount),
		errors.Is(err, ledger.ErrMintMismatch),
		errors.Is(err, ledger.ErrZeroAmount),
		errors.Is(err, ledger.ErrArithmeticOverflow),
		errors.Is(err, metering.ErrInvalidAmount),
		errors.Is(err, metering.ErrInsufficientBalance),
		errors.Is(err, metering.ErrNoBalance),
		errors.Is(err, metering.ErrOverflow):
		status = http.StatusBadRequest
	}

	s.respondError(w, status, err.Error())
}

func (s *Server) respondError(w http.ResponseWriter, status int, msg string) {
	s.respondJSON(w, status, ErrorResponse{Error: msg})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorw("response_encode_failed", "err", err)
	}
}
