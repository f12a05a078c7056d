package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tonicdex/core/internal/contract"
	"github.com/tonicdex/core/internal/custody"
	"github.com/tonicdex/core/internal/host"
	"github.com/tonicdex/core/pkg/account"
	"github.com/tonicdex/core/pkg/api"
	"github.com/tonicdex/core/pkg/market"
	"github.com/tonicdex/core/pkg/storage"
	"github.com/tonicdex/core/pkg/util"
	"github.com/tonicdex/core/params"
)

func main() {
	cfg := params.LoadFromEnv("")

	logFile := os.Getenv("LOG_FILE")
	if logFile == "" {
		logFile = "data/node.log"
	}
	logger, err := util.NewLoggerWithFile(logFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized")

	accountStore, err := account.NewStore(cfg.Server.DBPath + "/accounts")
	if err != nil {
		sugar.Fatalw("account_store_open_failed", "err", err)
	}
	defer accountStore.Close()

	marketStore, err := storage.NewStore(cfg.Server.DBPath + "/markets")
	if err != nil {
		sugar.Fatalw("market_store_open_failed", "err", err)
	}
	defer marketStore.Close()

	h := host.NewInProcess(cfg.Host.StorageByteCost, cfg.Host.ContractAccountID)

	accounts := account.NewManager(accountStore)
	outbox := custody.NewOutbox()
	custodyMgr := custody.New(accounts, outbox, h)

	registry := market.NewRegistry()
	if err := marketStore.IterateMarkets(registry.Register); err != nil {
		sugar.Fatalw("market_reload_failed", "err", err)
	}

	owner := common.HexToAddress(cfg.Host.OwnerAccountID)
	root := contract.New(owner, registry, accounts, custodyMgr, h, logger)

	// Persist every market snapshot on shutdown; a NEAR-style host
	// would instead commit storage writes per-call as part of the
	// host's own state transition, but this standalone server batches
	// them since it owns its own Pebble instance directly.
	persistAll := func() {
		for _, id := range registry.List(0, registry.Count()) {
			m, err := registry.Get(id)
			if err != nil {
				continue
			}
			if err := marketStore.SaveMarket(id, m); err != nil {
				sugar.Errorw("market_save_failed", "market", id.String(), "err", err)
			}
		}
	}
	defer persistAll()

	apiServer := api.NewServer(root, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := apiServer.Start(cfg.Server.ListenAddr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	sugar.Infow("node_started", "listen_addr", cfg.Server.ListenAddr, "markets", registry.Count())

	select {
	case <-ctx.Done():
		sugar.Info("shutting_down")
	case err := <-errCh:
		sugar.Errorw("api_server_failed", "err", err)
	}
}
