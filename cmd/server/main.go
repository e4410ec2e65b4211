// Package main runs the settlement ledger service: deterministic escrow
// accounts, signature-authorized giveaway claims and the admin-gated
// treasury, exposed over HTTP with a websocket event feed.
package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"reelpay-ledger/internal/domain"
	"reelpay-ledger/internal/feed"
	"reelpay-ledger/internal/ledger"
	"reelpay-ledger/internal/observability"
	"reelpay-ledger/internal/storage"
	chstore "reelpay-ledger/internal/storage/clickhouse"
	"reelpay-ledger/internal/storage/memory"
	"reelpay-ledger/internal/storage/migrations"
	pgstore "reelpay-ledger/internal/storage/postgres"
)

// DefaultProgramID namespaces address derivation when --program-id is unset.
const DefaultProgramID = "paytGwzjKgffkpCPPTzMbKJV1miozAjuXpzjZx6it5T"

// Server holds all components of the ledger service.
type Server struct {
	giveaway *ledger.GiveawayLedger
	treasury *ledger.TreasuryLedger
	hub      *feed.Hub
	metrics  *observability.Metrics
	logger   *log.Logger

	mu        sync.Mutex
	startedAt time.Time
	requests  int
}

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	listenAddr := flag.String("listen-addr", envOr("LISTEN_ADDR", ":8080"), "HTTP API listen address")
	metricsAddr := flag.String("metrics-addr", envOr("METRICS_ADDR", ":9090"), "Prometheus metrics HTTP address")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	programID := flag.String("program-id", envOr("PROGRAM_ID", DefaultProgramID), "Base58 program ID namespacing derived addresses")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	disableDeadline := flag.Bool("disable-claim-deadline", false, "Accept claims with past timestamps (replay/backfill)")

	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	if !*useMemory && (*postgresDSN == "" || *clickhouseDSN == "") {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory storage)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, events, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	metrics := observability.NewMetrics("")
	hub := feed.NewHub(feed.DefaultHubConfig(), log.New(os.Stdout, "[feed] ", log.LstdFlags), metrics)
	defer hub.Close()

	opts := ledger.Options{
		ProgramID:            *programID,
		Store:                store,
		Events:               &fanoutSink{journal: events, hub: hub, metrics: metrics},
		Logger:               log.New(os.Stdout, "[ledger] ", log.LstdFlags),
		Metrics:              metrics,
		DisableClaimDeadline: *disableDeadline,
	}

	giveaway, err := ledger.NewGiveawayLedger(opts)
	if err != nil {
		logger.Fatalf("Failed to create giveaway ledger: %v", err)
	}
	treasury, err := ledger.NewTreasuryLedger(opts)
	if err != nil {
		logger.Fatalf("Failed to create treasury ledger: %v", err)
	}

	server := &Server{
		giveaway:  giveaway,
		treasury:  treasury,
		hub:       hub,
		metrics:   metrics,
		logger:    logger,
		startedAt: time.Now(),
	}

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	apiServer := &http.Server{Addr: *listenAddr, Handler: server.routes()}

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			logger.Printf("HTTP shutdown error: %v", err)
		}
		cancel()
	}()

	go server.startMetricsServer(*metricsAddr)

	logger.Printf("Starting HTTP API on %s (program id %s)", *listenAddr, *programID)
	if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("HTTP server error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// createStores wires the transactional ledger store and event journal.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (storage.Ledger, storage.EventStore, func(), error) {
	if useMemory {
		return memory.NewLedger(), memory.NewEventStore(), func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("run postgres migrations: %w", err)
	}

	chConn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("run clickhouse migrations: %w", err)
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}
	return pgstore.NewLedger(pool), chstore.NewEventStore(chConn), cleanup, nil
}

// fanoutSink journals committed events and pushes them to feed subscribers.
type fanoutSink struct {
	journal storage.EventStore
	hub     *feed.Hub
	metrics *observability.Metrics
}

func (s *fanoutSink) Publish(ctx context.Context, e *domain.LedgerEvent) error {
	if err := s.journal.Insert(ctx, e); err != nil {
		if s.metrics != nil {
			s.metrics.EventPublishErrors.Inc()
		}
		return err
	}
	if s.metrics != nil {
		s.metrics.EventsPublished.Inc()
	}
	return s.hub.Publish(ctx, e)
}

// routes builds the HTTP API mux.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/giveaways", s.handleCreateGiveaway)
	mux.HandleFunc("POST /v1/giveaways/claim", s.handleClaim)
	mux.HandleFunc("POST /v1/giveaways/refund", s.handleRefund)
	mux.HandleFunc("GET /v1/giveaways/{issuer}", s.handleGetGiveaway)

	mux.HandleFunc("POST /v1/treasury/initialize", s.handleInitialize)
	mux.HandleFunc("POST /v1/treasury/pools", s.handleCreatePool)
	mux.HandleFunc("POST /v1/treasury/pay", s.handlePay)
	mux.HandleFunc("POST /v1/treasury/withdraw", s.handleWithdraw)
	mux.HandleFunc("POST /v1/treasury/admin", s.handleChangeAdmin)

	mux.HandleFunc("POST /v1/balances", s.handleBalances)

	mux.Handle("/ws", s.hub)

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/status", s.handleStatus)

	return s.counting(mux)
}

// counting tracks request totals for /status.
func (s *Server) counting(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests++
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) startMetricsServer(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())

	s.logger.Printf("Starting metrics server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Printf("Metrics server error: %v", err)
	}
}

type createGiveawayRequest struct {
	Funder     string `json:"funder"`
	Issuer     string `json:"issuer"`
	TotalSlots uint32 `json:"totalSlots"`
	Amount     uint64 `json:"amount"`
	Mint       string `json:"mint,omitempty"`
}

type giveawayResponse struct {
	Address          string `json:"address"`
	Issuer           string `json:"issuer"`
	Creator          string `json:"creator"`
	Kind             string `json:"kind"`
	Mint             string `json:"mint,omitempty"`
	TokenPoolAddress string `json:"tokenPoolAddress,omitempty"`
	TotalSlots       uint32 `json:"totalSlots"`
	ClaimedSlots     uint32 `json:"claimedSlots"`
	Balance          uint64 `json:"balance"`
}

func toGiveawayResponse(g *domain.GiveawayPool) giveawayResponse {
	return giveawayResponse{
		Address:          g.Address,
		Issuer:           g.GiveawayID.Hex(),
		Creator:          g.Creator,
		Kind:             string(g.Kind),
		Mint:             g.Mint,
		TokenPoolAddress: g.TokenPoolAddress,
		TotalSlots:       g.TotalSlots,
		ClaimedSlots:     g.ClaimedSlots,
		Balance:          g.Balance,
	}
}

func (s *Server) handleCreateGiveaway(w http.ResponseWriter, r *http.Request) {
	var req createGiveawayRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	issuer, err := domain.ParseIdentity(req.Issuer)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var g *domain.GiveawayPool
	if req.Mint == "" {
		g, err = s.giveaway.CreateNative(r.Context(), req.Funder, issuer, req.TotalSlots, req.Amount)
	} else {
		g, err = s.giveaway.CreateToken(r.Context(), req.Funder, issuer, req.TotalSlots, req.Amount, req.Mint)
	}
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toGiveawayResponse(g))
}

type claimRequest struct {
	Issuer    string `json:"issuer"`
	Receiver  string `json:"receiver"`
	Amount    uint64 `json:"amount"`
	Timestamp uint64 `json:"timestamp"`
	Signature string `json:"signature"`
	Kind      string `json:"kind"`
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	issuer, err := domain.ParseIdentity(req.Issuer)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	sig, err := hex.DecodeString(strings.TrimPrefix(req.Signature, "0x"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode signature: %w", err))
		return
	}

	claim := ledger.ClaimRequest{
		Issuer:    issuer,
		Receiver:  req.Receiver,
		Amount:    req.Amount,
		Timestamp: req.Timestamp,
		Signature: sig,
	}

	var g *domain.GiveawayPool
	switch req.Kind {
	case "", string(domain.AssetNative):
		g, err = s.giveaway.ClaimNative(r.Context(), claim)
	case string(domain.AssetToken):
		g, err = s.giveaway.ClaimToken(r.Context(), claim)
	default:
		writeError(w, http.StatusBadRequest, fmt.Errorf("unknown kind %q", req.Kind))
		return
	}
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toGiveawayResponse(g))
}

type refundRequest struct {
	Caller string `json:"caller"`
	Issuer string `json:"issuer"`
}

func (s *Server) handleRefund(w http.ResponseWriter, r *http.Request) {
	var req refundRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	issuer, err := domain.ParseIdentity(req.Issuer)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	refunded, err := s.giveaway.Refund(r.Context(), req.Caller, issuer)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"refunded": refunded})
}

func (s *Server) handleGetGiveaway(w http.ResponseWriter, r *http.Request) {
	issuer, err := domain.ParseIdentity(r.PathValue("issuer"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	g, err := s.giveaway.Giveaway(r.Context(), issuer)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toGiveawayResponse(g))
}

type initializeRequest struct {
	AdminIdentity string `json:"adminIdentity"`
}

func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request) {
	var req initializeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.treasury.Initialize(r.Context(), req.AdminIdentity); err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "initialized"})
}

type createPoolRequest struct {
	Caller    string `json:"caller"`
	SeedLabel string `json:"seedLabel"`
	Mint      string `json:"mint"`
}

func (s *Server) handleCreatePool(w http.ResponseWriter, r *http.Request) {
	var req createPoolRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	pool, err := s.treasury.CreatePool(r.Context(), req.Caller, req.SeedLabel, req.Mint)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"address":   pool.Address,
		"seedLabel": pool.SeedLabel,
		"mint":      pool.Mint,
	})
}

type payRequest struct {
	Payer     string `json:"payer"`
	SeedLabel string `json:"seedLabel,omitempty"`
	OrderID   string `json:"orderId"`
	Amount    uint64 `json:"amount"`
}

func (s *Server) handlePay(w http.ResponseWriter, r *http.Request) {
	var req payRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var err error
	if req.SeedLabel == "" || req.SeedLabel == ledger.NativePoolSeed {
		err = s.treasury.PayNative(r.Context(), req.Payer, req.OrderID, req.Amount)
	} else {
		err = s.treasury.PayToken(r.Context(), req.Payer, req.SeedLabel, req.OrderID, req.Amount)
	}
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "paid"})
}

type withdrawRequest struct {
	Caller      string `json:"caller"`
	SeedLabel   string `json:"seedLabel"`
	Amount      uint64 `json:"amount"`
	Destination string `json:"destination"`
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	seed := req.SeedLabel
	if seed == "" {
		seed = ledger.NativePoolSeed
	}
	if err := s.treasury.Withdraw(r.Context(), req.Caller, seed, req.Amount, req.Destination); err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "withdrawn"})
}

type changeAdminRequest struct {
	Caller      string `json:"caller"`
	NewIdentity string `json:"newIdentity"`
}

func (s *Server) handleChangeAdmin(w http.ResponseWriter, r *http.Request) {
	var req changeAdminRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.treasury.ChangeAdmin(r.Context(), req.Caller, req.NewIdentity); err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "admin changed"})
}

type balancesRequest struct {
	Accounts []ledger.BalanceQuery `json:"accounts"`
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	var req balancesRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	balances, err := s.treasury.Balances(r.Context(), req.Accounts)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balances)
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status          string `json:"status"`
	Uptime          string `json:"uptime"`
	Requests        int    `json:"requests"`
	FeedSubscribers int    `json:"feed_subscribers"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	requests := s.requests
	uptime := time.Since(s.startedAt).String()
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, StatusResponse{
		Status:          "running",
		Uptime:          uptime,
		Requests:        requests,
		FeedSubscribers: s.hub.SubscriberCount(),
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request body: %w", err))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// writeLedgerError maps ledger sentinel errors onto HTTP statuses.
func writeLedgerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, ledger.ErrAlreadyExists),
		errors.Is(err, ledger.ErrAlreadyInitialized),
		errors.Is(err, ledger.ErrDuplicateOrder):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, ledger.ErrUnauthorized),
		errors.Is(err, ledger.ErrInvalidSignature):
		writeError(w, http.StatusForbidden, err)
	case errors.Is(err, ledger.ErrExhausted),
		errors.Is(err, ledger.ErrClaimExpired),
		errors.Is(err, ledger.ErrInsufficientBalance):
		writeError(w, http.StatusUnprocessableEntity, err)
	case errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrInvalidArgument),
		errors.Is(err, ledger.ErrArithmeticOverflow):
		writeError(w, http.StatusBadRequest, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
