package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
	"github.com/joho/godotenv"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"

	"github.com/pulkyeet/arb-engine/internal/collector"
	"github.com/pulkyeet/arb-engine/internal/config"
	"github.com/pulkyeet/arb-engine/internal/dex"
	"github.com/pulkyeet/arb-engine/internal/engine"
	"github.com/pulkyeet/arb-engine/internal/infra"
	"github.com/pulkyeet/arb-engine/internal/route"
	"github.com/pulkyeet/arb-engine/internal/simulator"
	"github.com/pulkyeet/arb-engine/internal/submit"
)

// ParquetRow matches the structure from Flashbots mempool-dumpster
type ParquetRow struct {
	Timestamp              int64
	Hash                   string
	ChainId                string
	From                   string
	To                     string
	Value                  string
	Nonce                  string
	Gas                    string
	GasPrice               string
	GasTipCap              string
	GasFeeCap              string
	DataSize               int64
	Data4Bytes             string
	Sources                []string
	IncludedAtBlockHeight  int64
	IncludedBlockTimestamp int64
	InclusionDelayMs       int64
	RawTx                  string
}

// fixedEpochSource pins simulation to a single historical block so
// every replayed candidate is quoted against the same state.
type fixedEpochSource struct {
	epoch simulator.SimEpoch
}

func (s *fixedEpochSource) CurrentEpoch() simulator.SimEpoch { return s.epoch }

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "config.yaml", "path to config file")
	parquetFile := flag.String("file", "", "path to mempool parquet file")
	block := flag.Uint64("block", 0, "fork block for simulation (0 = latest)")
	limit := flag.Int("limit", 0, "max transactions to replay (0 = all)")
	flag.Parse()

	if *parquetFile == "" {
		log.Fatal("usage: --file <parquet_file>")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := infra.NewLogger(cfg.Logging.Dir, cfg.Logging.Level)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := dex.NewStore(cfg.Store.Path)
	if err != nil {
		log.Fatalf("failed to open pool store: %v", err)
	}
	defer store.Close()

	simClient, err := simulator.NewClient(cfg.RPC.HTTPURL)
	if err != nil {
		log.Fatalf("failed to dial rpc: %v", err)
	}
	defer simClient.Close()

	var blockNumber *big.Int
	if *block != 0 {
		blockNumber = new(big.Int).SetUint64(*block)
	}
	header, err := simClient.HeaderByNumber(ctx, blockNumber)
	if err != nil {
		log.Fatalf("failed to fetch header: %v", err)
	}
	epochs := &fixedEpochSource{epoch: simulator.EpochFromHeader(header)}
	logger.Info("replaying against block", "number", header.Number, "base_fee", header.BaseFee)

	simPool, err := simulator.NewPool(cfg.Engine.Simulators, func(i int) (simulator.Simulator, error) {
		return simulator.NewCallSimulator(simClient, fmt.Sprintf("call-%d", i)), nil
	})
	if err != nil {
		log.Fatalf("failed to build simulator pool: %v", err)
	}
	dedicated := simulator.NewReplay(
		simulator.NewCallSimulator(simClient, "call-dedicated"),
		simClient, time.Minute, logger,
	)
	go dedicated.Run(ctx)

	minLiquidity, ok := new(big.Int).SetString(cfg.Search.MinLiquidity, 10)
	if !ok {
		log.Fatalf("bad search.min_liquidity: %q", cfg.Search.MinLiquidity)
	}
	pegged := make(map[string]bool, len(cfg.Tokens.Pegged))
	for _, t := range cfg.Tokens.Pegged {
		pegged[dex.NormalizeTokenString(t)] = true
	}
	finder := route.NewPathFinder(dex.NewStoreIndex(store), route.SearchConfig{
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
		probeAmounts = []*uint256.Int{uint256.NewInt(1_000_000_000_000_000_000)}
	}

	searcher := route.NewSearcher(
		finder,
		&route.VenueQuoter{GasPerHop: cfg.Search.GasPerHop},
		common.HexToAddress(cfg.Executor.Contract),
		probeAmounts,
		logger,
	)

	routers := make(map[common.Address]string, len(cfg.Routers))
	for addr, name := range cfg.Routers {
		routers[common.HexToAddress(addr)] = name
	}
	decoder, err := collector.NewDecoder(store, routers, cfg.Tokens.WrappedNative, 4096, logger)
	if err != nil {
		log.Fatalf("failed to build decoder: %v", err)
	}

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
		Epochs:    epochs,
		Finder:    searcher,
		Sims:      simPool,
		Dedicated: dedicated,
		Submitter: submit.NewLogSubmitter(logger),
	}, logger)
	dispatcher.Run(ctx)

	fr, err := local.NewLocalFileReader(*parquetFile)
	if err != nil {
		log.Fatalf("failed to open parquet file: %v", err)
	}
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, new(ParquetRow), 4)
	if err != nil {
		log.Fatalf("failed to create parquet reader: %v", err)
	}
	defer pr.ReadStop()

	numRows := int(pr.GetNumRows())
	if *limit > 0 && *limit < numRows {
		numRows = *limit
	}
	logger.Info("replaying mempool transactions", "total", numRows)

	batchSize := 1000
	replayed := 0
	skipped := 0
	start := time.Now()

	for i := 0; i < numRows; i += batchSize {
		toRead := batchSize
		if i+toRead > numRows {
			toRead = numRows - i
		}
		rawRows, err := pr.ReadByNumber(toRead)
		if err != nil {
			logger.Warn("failed to read parquet batch", "offset", i, "err", err)
			break
		}
		if len(rawRows) == 0 {
			break
		}

		for _, rawRow := range rawRows {
			pRow, ok := rawRow.(ParquetRow)
			if !ok {
				pRowPtr, ok := rawRow.(*ParquetRow)
				if !ok {
					skipped++
					continue
				}
				pRow = *pRowPtr
			}

			rawTx, err := hex.DecodeString(strings.TrimPrefix(pRow.RawTx, "0x"))
			if err != nil {
				skipped++
				continue
			}
			var tx types.Transaction
			if err := rlp.DecodeBytes(rawTx, &tx); err != nil {
				skipped++
				continue
			}

			dispatcher.OnEvent(ctx, engine.PendingTxEvent{Tx: &tx})
			replayed++
		}
	}

	elapsed := time.Since(start)
	logger.Info("replay complete",
		"replayed", replayed,
		"skipped", skipped,
		"elapsed", elapsed,
		"rate_tx_s", fmt.Sprintf("%.0f", float64(replayed)/elapsed.Seconds()),
	)

	// let in-flight workers drain before tearing down
	time.Sleep(2 * time.Second)
}
