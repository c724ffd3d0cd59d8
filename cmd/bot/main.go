package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/big"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/holiman/uint256"
	"github.com/joho/godotenv"

	"github.com/pulkyeet/arb-engine/internal/collector"
	"github.com/pulkyeet/arb-engine/internal/config"
	"github.com/pulkyeet/arb-engine/internal/dex"
	"github.com/pulkyeet/arb-engine/internal/engine"
	"github.com/pulkyeet/arb-engine/internal/infra"
	"github.com/pulkyeet/arb-engine/internal/route"
	"github.com/pulkyeet/arb-engine/internal/simulator"
	"github.com/pulkyeet/arb-engine/internal/submit"
)

const metaCacheSize = 4096

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := infra.NewLogger(cfg.Logging.Dir, cfg.Logging.Level)
	logger.Info("starting arb engine",
		"workers", cfg.Engine.Workers,
		"simulators", cfg.Engine.Simulators,
		"cache_ttl", cfg.CacheTTL(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// liquidity index
	store, err := dex.NewStore(cfg.Store.Path)
	if err != nil {
		log.Fatalf("failed to open pool store: %v", err)
	}
	defer store.Close()
	index := dex.NewStoreIndex(store)

	if stats, err := store.Stats(); err == nil {
		logger.Info("pool store opened", "pools", stats["pool_entries"])
	}

	// simulators
	simClient, err := simulator.NewClient(cfg.RPC.HTTPURL)
	if err != nil {
		log.Fatalf("failed to dial rpc: %v", err)
	}
	defer simClient.Close()

	simPool, err := simulator.NewPool(cfg.Engine.Simulators, func(i int) (simulator.Simulator, error) {
		return simulator.NewCallSimulator(simClient, fmt.Sprintf("call-%d", i)), nil
	})
	if err != nil {
		log.Fatalf("failed to build simulator pool: %v", err)
	}

	dedicated := simulator.NewReplay(
		simulator.NewCallSimulator(simClient, "call-dedicated"),
		simClient, 2*time.Second, logger,
	)
	go dedicated.Run(ctx)

	// route search
	minLiquidity, ok := new(big.Int).SetString(cfg.Search.MinLiquidity, 10)
	if !ok {
		log.Fatalf("bad search.min_liquidity: %q", cfg.Search.MinLiquidity)
	}

	pegged := make(map[string]bool, len(cfg.Tokens.Pegged))
	for _, t := range cfg.Tokens.Pegged {
		pegged[dex.NormalizeTokenString(t)] = true
	}

	finder := route.NewPathFinder(index, route.SearchConfig{
		MaxHops:          cfg.Search.MaxHops,
		MinLiquidity:     minLiquidity,
		MaxPoolsPerToken: cfg.Search.MaxPoolsPerToken,
		WrappedNative:    dex.NormalizeTokenString(cfg.Tokens.WrappedNative),
		Pegged:           pegged,
	}, logger)

	probeAmounts := make([]*uint256.Int, 0, len(cfg.Search.ProbeAmountsWei))
	for _, s := range cfg.Search.ProbeAmountsWei {
		amount, err := uint256.FromDecimal(s)
		if err != nil {
			log.Fatalf("bad probe amount %q: %v", s, err)
		}
		probeAmounts = append(probeAmounts, amount)
	}
	if len(probeAmounts) == 0 {
		// 0.1, 0.5, 1 and 5 native units
		probeAmounts = []*uint256.Int{
			uint256.NewInt(100_000_000_000_000_000),
			uint256.NewInt(500_000_000_000_000_000),
			uint256.NewInt(1_000_000_000_000_000_000),
			uint256.NewInt(5_000_000_000_000_000_000),
		}
	}

	searcher := route.NewSearcher(
		finder,
		&route.VenueQuoter{GasPerHop: cfg.Search.GasPerHop},
		common.HexToAddress(cfg.Executor.Contract),
		probeAmounts,
		logger,
	)

	// collectors
	wsClient, err := ethclient.DialContext(ctx, cfg.RPC.WSURL)
	if err != nil {
		log.Fatalf("failed to dial ws rpc: %v", err)
	}
	defer wsClient.Close()

	rpcClient, err := rpc.DialContext(ctx, cfg.RPC.WSURL)
	if err != nil {
		log.Fatalf("failed to dial ws rpc: %v", err)
	}
	defer rpcClient.Close()

	routers := make(map[common.Address]string, len(cfg.Routers))
	for addr, name := range cfg.Routers {
		routers[common.HexToAddress(addr)] = name
	}

	decoder, err := collector.NewDecoder(store, routers, cfg.Tokens.WrappedNative, metaCacheSize, logger)
	if err != nil {
		log.Fatalf("failed to build decoder: %v", err)
	}

	blocks := collector.NewBlockCollector(wsClient, logger)
	mempool := collector.NewMempoolCollector(rpcClient, logger)

	// engine
	dispatcher := engine.NewDispatcher(engine.Config{
		Workers:        cfg.Engine.Workers,
		CacheTTL:       cfg.CacheTTL(),
		QueueHighWater: cfg.Engine.QueueHighWater,
		QueueCap:       cfg.Engine.QueueCap,
		MaxRecentArbs:  cfg.Engine.MaxRecentArbs,
		Sender:         common.HexToAddress(cfg.Executor.Sender),
		GasLimit:       cfg.Executor.GasLimit,
		GasPrice:       uint256.NewInt(cfg.Executor.GasPriceGwei * 1_000_000_000),
	}, engine.Deps{
		Decoder:   decoder,
		Epochs:    blocks,
		Finder:    searcher,
		Sims:      simPool,
		Dedicated: dedicated,
		Submitter: submit.NewLogSubmitter(logger),
	}, logger)

	dispatcher.Run(ctx)

	events := make(chan engine.Event, 256)
	go func() {
		if err := blocks.Run(ctx, events); err != nil && ctx.Err() == nil {
			logger.Error("block collector stopped", "err", err)
			stop()
		}
	}()
	go func() {
		if err := mempool.Run(ctx, events); err != nil && ctx.Err() == nil {
			logger.Error("mempool collector stopped", "err", err)
			stop()
		}
	}()

	logger.Info("event loop running")
	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return
		case ev := <-events:
			dispatcher.OnEvent(ctx, ev)
		}
	}
}
