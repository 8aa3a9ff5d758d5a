package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/robet-bot-poc/internal/shared/config"
	"github.com/radieske/robet-bot-poc/internal/shared/logger"
	"github.com/radieske/robet-bot-poc/internal/shared/metrics"
)

var (
	// Métricas Prometheus do simulador
	createRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chainb_sim_create_requests_total",
		Help: "requisições de criação por resultado",
	}, []string{"status"})
)

type createBetRequest struct {
	Description string `json:"description"`
	EndTime     int64  `json:"endTime"`
}

type createBetResponse struct {
	Success         bool   `json:"success"`
	BetID           int64  `json:"betId,omitempty"`
	TransactionHash string `json:"transactionHash,omitempty"`
	Error           string `json:"error,omitempty"`
}

// simulator imita o bridge do contrato CosmWasm em dev local:
// id sequencial por processo e hash de transação aleatório, com uma taxa de
// falha injetável pra exercitar o retry do reconciler.
type simulator struct {
	log         *zap.Logger
	nextBetID   atomic.Int64
	failEveryN  int64 // 0 desliga a injeção de falha
	requestSeen atomic.Int64
}

func (s *simulator) handleCreateBet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		createRequests.WithLabelValues("bad_request").Inc()
		writeJSON(w, http.StatusBadRequest, createBetResponse{Error: "invalid body"})
		return
	}
	if req.Description == "" || req.EndTime == 0 {
		createRequests.WithLabelValues("bad_request").Inc()
		writeJSON(w, http.StatusBadRequest, createBetResponse{Error: "description and endTime are required"})
		return
	}

	// Falha injetada a cada N requisições, pra observar o reconciler re-tentar
	if n := s.requestSeen.Add(1); s.failEveryN > 0 && n%s.failEveryN == 0 {
		createRequests.WithLabelValues("injected_failure").Inc()
		s.log.Warn("injected failure", zap.Int64("request", n))
		writeJSON(w, http.StatusServiceUnavailable, createBetResponse{Error: "injected failure"})
		return
	}

	betID := s.nextBetID.Add(1)
	txHash := randomTxHash()
	createRequests.WithLabelValues("ok").Inc()
	s.log.Info("bet created",
		zap.Int64("bet_id", betID),
		zap.String("tx_hash", txHash),
		zap.Time("end_time", time.UnixMilli(req.EndTime)),
	)

	writeJSON(w, http.StatusOK, createBetResponse{
		Success:         true,
		BetID:           betID,
		TransactionHash: txHash,
	})
}

func writeJSON(w http.ResponseWriter, code int, body createBetResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

func randomTxHash() string {
	var b [32]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	prometheus.MustRegister(createRequests)

	failEveryN := int64(0)
	if v := os.Getenv("SIM_FAIL_EVERY_N"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			failEveryN = n
		}
	}

	sim := &simulator{log: log, failEveryN: failEveryN}
	sim.nextBetID.Store(time.Now().Unix() % 100000) // ids distintos entre execuções

	metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error { return nil })

	mux := http.NewServeMux()
	mux.HandleFunc("/create-bet", sim.handleCreateBet)

	addr := ":" + cfg.HTTPPort
	log.Info("chainb-simulator started",
		zap.String("addr", addr),
		zap.Int64("fail_every_n", failEveryN),
	)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatal("http server", zap.Error(err))
	}
}
