package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hako/durafmt"

	"github.com/cyberia-to/universal-hash/config"
	"github.com/cyberia-to/universal-hash/metrics"
	"github.com/cyberia-to/universal-hash/miner"
	"github.com/cyberia-to/universal-hash/prooflog"
	"github.com/cyberia-to/universal-hash/stream"
	"github.com/cyberia-to/universal-hash/types"
	"github.com/cyberia-to/universal-hash/uhash"
	"github.com/cyberia-to/universal-hash/utils"
)

const defaultConfigPath = "config.toml"

func main() {
	// the config file feeds the flag defaults, flags win
	cfg, err := config.Load(defaultConfigPath)
	if err != nil {
		utils.Fatalf("%s", err)
	}

	benchCount := flag.Uint64("bench", 0, "run a benchmark of N hashes and exit")
	benchWorkers := flag.Int("bench-workers", 1, "parallel hashers for the benchmark")
	debugLog := flag.Bool("debug", false, "enable debug logging")

	flag.StringVar(&cfg.Seed, "seed", cfg.Seed, "epoch seed, 64 hex chars")
	flag.StringVar(&cfg.Address, "address", cfg.Address, "miner address (raw UTF-8 in the template)")
	flag.UintVar(&cfg.DifficultyBits, "difficulty", cfg.DifficultyBits, "required leading zero bits")
	flag.IntVar(&cfg.Workers, "workers", cfg.Workers, "worker goroutines (0 = one per CPU)")
	flag.Uint64Var(&cfg.BatchSize, "batch", cfg.BatchSize, "nonces per worker batch")
	flag.StringVar(&cfg.ProofLogPath, "prooflog", cfg.ProofLogPath, "SQLite proof log path (empty to disable)")
	flag.StringVar(&cfg.PromListen, "prom", cfg.PromListen, "Prometheus listen address (empty to disable)")
	flag.StringVar(&cfg.ZMQPublish, "zmq", cfg.ZMQPublish, "ZMQ PUB endpoint for the event stream (empty to disable)")
	flag.Parse()

	if *debugLog {
		utils.GlobalLogLevel |= utils.LogLevelNotice | utils.LogLevelDebug
	}

	if *benchCount > 0 {
		runBenchmark(*benchCount, *benchWorkers)
		return
	}

	if err = cfg.Validate(); err != nil {
		utils.Fatalf("%s", err)
	}
	seed, err := cfg.SeedHash()
	if err != nil {
		utils.Fatalf("%s", err)
	}

	run(cfg, seed)
}

func runBenchmark(count uint64, workers int) {
	caps := uhash.HostCapabilities()
	params, _ := utils.MarshalJSON(uhash.GetParams())
	utils.Logf("bench", "params: %s", params)
	utils.Logf("bench", "host: aes=%t sha2=%t", caps.AES, caps.SHA2)
	utils.Logf("bench", "hashing %d inputs on %d workers...", count, workers)

	var result uhash.BenchmarkResult
	if workers > 1 {
		result = uhash.RunBenchmarkParallel(count, workers)
	} else {
		result = uhash.RunBenchmark(count)
	}

	utils.Logf("bench", "%sH/s over %s",
		utils.SiUnits(result.HashrateHz, 2),
		durafmt.Parse(result.Elapsed.Round(time.Millisecond)),
	)
}

func run(cfg config.Config, seed types.Hash) {
	m, err := miner.New(seed, cfg.Address, uint64(time.Now().Unix()), uint32(cfg.DifficultyBits))
	if err != nil {
		utils.Fatalf("%s", err)
	}
	m.SetBatchSize(cfg.BatchSize)
	m.AttachSink(metrics.Sink{})
	m.AttachSink(logSink{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.ZMQPublish != "" {
		publisher, err := stream.NewPublisher(ctx, cfg.ZMQPublish)
		if err != nil {
			utils.Fatalf("%s", err)
		}
		defer publisher.Close()
		m.AttachSink(publisher)
		utils.Logf("main", "event stream on %s", cfg.ZMQPublish)
	}

	var store *prooflog.Store
	if cfg.ProofLogPath != "" {
		if store, err = prooflog.Open(cfg.ProofLogPath); err != nil {
			utils.Fatalf("%s", err)
		}
		defer store.Close()
		utils.Logf("main", "proof log at %s", cfg.ProofLogPath)
	}

	if cfg.PromListen != "" {
		go func() {
			if err := metrics.Serve(cfg.PromListen); err != nil {
				utils.Errorf("main", "metrics server: %s", err)
			}
		}()
		utils.Logf("main", "prometheus on %s", cfg.PromListen)
	}

	expected := types.DifficultyFromBits(uint32(cfg.DifficultyBits))
	utils.Logf("main", "mining for %s at %d bits (%s expected attempts per proof)",
		cfg.Address, cfg.DifficultyBits, expected)

	if err = m.Start(cfg.Workers, 0); err != nil {
		utils.Fatalf("%s", err)
	}
	started := time.Now()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	interval := time.Duration(cfg.StatsIntervalSeconds) * time.Second
	if interval == 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastDone uint64
	for {
		select {
		case <-ticker.C:
			done := m.HashesDone()
			metrics.RecordHashes(done - lastDone)
			lastDone = done
			m.PublishHashrate()

			utils.Logf("main", "%sH/s | %d hashes | %d pending | up %s",
				utils.SiUnits(m.Hashrate(), 2), done, m.PendingProofs(),
				durafmt.Parse(time.Since(started).Round(time.Second)).LimitFirstN(2))

			drainProofs(m, store, cfg.Address)

		case sig := <-sigCh:
			utils.Logf("main", "%s received, stopping", sig)
			m.Stop()
			drainProofs(m, store, cfg.Address)
			utils.Logf("main", "done: %d hashes over %s", m.HashesDone(),
				durafmt.Parse(time.Since(started).Round(time.Second)))
			return
		}
	}
}

func drainProofs(m *miner.Miner, store *prooflog.Store, address string) {
	proofs := m.TakeProofs()
	if store == nil {
		return
	}
	for _, p := range proofs {
		if err := store.Append(address, p); err != nil {
			metrics.RecordError("prooflog")
			m.PublishError(err)
		}
	}
}

// logSink prints the event stream through the process logger.
type logSink struct{}

func (logSink) Publish(ev miner.Event) {
	switch ev.Type {
	case miner.EventProofFound:
		utils.Logf("miner", "proof found: hash %s nonce %d", ev.Proof.Hash, ev.Proof.Nonce)
	case miner.EventRotation:
		utils.Logf("miner", "seed rotated to %s", ev.Seed)
	case miner.EventError:
		utils.Errorf("miner", "%s", ev.Err)
	}
}
