package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"eth-rugcheck/internal/chain"
	"eth-rugcheck/internal/config"
	"eth-rugcheck/internal/metrics"
	"eth-rugcheck/internal/narrative"
	"eth-rugcheck/internal/pair"
	"eth-rugcheck/internal/pipeline"
	"eth-rugcheck/internal/probe"
	"eth-rugcheck/internal/render"
	"eth-rugcheck/internal/risk"
	"eth-rugcheck/internal/store"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	os.Exit(run())
}

// run is main with an exit code, so deferred cleanup runs on every path.
func run() int {
	configPath := flag.String("config", "config.json", "Path to configuration JSON")
	tokenFlag := flag.String("token", "", "Token address to check (0x...)")
	format := flag.String("format", render.FormatText, "Output format: text, md or json")
	metricsAddr := flag.String("metrics", "", "Address to serve Prometheus metrics (disabled when empty)")
	serveAddr := flag.String("serve", "", "Serve reports over HTTP on this address instead of a single check")
	concurrencyOverride := flag.Int("concurrency", 0, "Override probe concurrency (default: use config)")
	testConfig := flag.Bool("t", false, "Test configuration and exit")
	flag.Parse()

	if *testConfig {
		cfg, err := config.Load(*configPath)
		if err != nil {
			fmt.Printf("Configuration error: %v\n", err)
			return 1
		}
		if err := config.Validate(cfg); err != nil {
			fmt.Printf("Configuration validation failed: %v\n", err)
			return 1
		}
		fmt.Println("Configuration OK")
		return 0
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Printf("%v", err)
		return 1
	}
	if err := config.Validate(cfg); err != nil {
		log.Printf("Configuration validation failed: %v", err)
		return 1
	}
	if *concurrencyOverride > 0 {
		cfg.Concurrency = *concurrencyOverride
	}

	if *serveAddr == "" && *tokenFlag == "" {
		fmt.Fprintln(os.Stderr, "usage: rugcheck -token 0x... [-format text|md|json] | -serve :8080")
		return 2
	}
	var token common.Address
	if *serveAddr == "" {
		var ok bool
		if token, ok = risk.ParseAddress(*tokenFlag); !ok {
			fmt.Fprintf(os.Stderr, "invalid token address %q\n", *tokenFlag)
			return 2
		}
	}

	setupLogging(cfg.Log)

	m := metrics.NewCheckerMetrics()
	reg := prometheus.NewRegistry()
	metrics.RegisterMetrics(reg, m)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	c, err := newChecker(ctx, cfg, m)
	if err != nil {
		log.Printf("Startup failed: %v", err)
		fmt.Fprintf(os.Stderr, "startup failed: %v\n", err)
		return 1
	}
	defer c.Close()

	if *serveAddr != "" {
		srv := newServer(c.Check, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		if c.store != nil {
			srv.latest = c.store.Latest
			srv.list = c.store.List
		}
		if err := serve(ctx, *serveAddr, srv); err != nil {
			log.Printf("Server error: %v", err)
			return 1
		}
		return 0
	}

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			log.Printf("Metrics server listening on %s", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				log.Printf("Metrics server error: %v", err)
			}
		}()
	}

	report, err := c.Check(ctx, token)
	if err != nil {
		var rerr *pair.ResolutionError
		if errors.As(err, &rerr) {
			fmt.Fprintf(os.Stderr, "no liquidity pair for %s against %d quote tokens\n", rerr.Token.Hex(), len(rerr.Quotes))
		} else {
			fmt.Fprintf(os.Stderr, "check failed: %v\n", err)
		}
		return 1
	}
	if err := render.Write(os.Stdout, *format, report); err != nil {
		fmt.Fprintf(os.Stderr, "render: %v\n", err)
		return 1
	}
	return 0
}

func setupLogging(path string) {
	if path == "" || path == "-" {
		return
	}
	logFile, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		log.Fatalf("log file open error: %v", err)
	}
	log.SetOutput(logFile)
}

// checker owns the long-lived collaborators of every run.
type checker struct {
	cfg      *config.Config
	metrics  *metrics.CheckerMetrics
	client   chain.Client
	chainID  uint64
	locator  probe.CreationLocator
	narrator pipeline.Narrator
	store    *store.SQLite
}

func newChecker(ctx context.Context, cfg *config.Config, m *metrics.CheckerMetrics) (*checker, error) {
	dialer := chain.NewDialer(cfg.RPCURLs(), m)
	client, chainID, err := dialer.Dial(ctx)
	if err != nil {
		return nil, err
	}
	log.Printf("Connected to chain %s", chainID)

	if cfg.SerializeRPC {
		client = chain.NewSerial(client)
	}
	client = chain.NewInstrumented(client, m)

	c := &checker{cfg: cfg, metrics: m, client: client, chainID: chainID.Uint64()}

	var locators probe.ChainLocator
	if cfg.Etherscan.APIKey != "" {
		locators = append(locators, &probe.EtherscanLocator{
			BaseURL: cfg.Etherscan.URL,
			APIKey:  cfg.Etherscan.APIKey,
			ChainID: etherscanChainID(cfg.Etherscan.ChainID, chainID),
			Client:  &http.Client{Timeout: 10 * time.Second},
		})
	}
	locators = append(locators, &probe.BisectLocator{Client: client})
	c.locator = locators

	if cfg.Narrative.Enabled {
		c.narrator = narrative.NewOpenAI(narrative.Options{
			APIKey:  cfg.Narrative.APIKey,
			BaseURL: cfg.Narrative.BaseURL,
			Model:   cfg.Narrative.Model,
		})
	}

	if cfg.DB != "" {
		s, err := store.Open(cfg.DB, m)
		if err != nil {
			client.Close()
			return nil, err
		}
		c.store = s
	}
	return c, nil
}

// Check runs one token and archives the report where configured.
func (c *checker) Check(ctx context.Context, token common.Address) (*risk.RiskReport, error) {
	runner := pipeline.New(c.client, pipeline.Options{
		Factory:          common.HexToAddress(c.cfg.Factory),
		Quotes:           c.cfg.QuoteAddresses(),
		QuoteSymbol:      c.cfg.QuoteSymbol,
		ChainID:          c.chainID,
		ProbeTimeout:     c.cfg.ProbeTimeout.Std(),
		Concurrency:      c.cfg.Concurrency,
		BlockTime:        c.cfg.BlockTime.Std(),
		LogChunkBlocks:   c.cfg.LogChunkBlocks,
		Locator:          c.locator,
		Narrator:         c.narrator,
		NarrativeTimeout: c.cfg.Narrative.Timeout.Std(),
		Metrics:          c.metrics,
	})

	report, err := runner.Run(ctx, token)
	if err != nil {
		return nil, err
	}
	log.Printf("Checked %s: pair %s, liquidity %s", token.Hex(), report.Pair.Pair.Hex(), report.LiquidityStatus)

	if c.cfg.Output != "" {
		if err := render.AppendJSONL(c.cfg.Output, report); err != nil {
			log.Printf("Failed to append report: %v", err)
		}
	}
	if c.store != nil {
		if _, err := c.store.Save(ctx, report); err != nil {
			log.Printf("Failed to store report: %v", err)
		}
	}
	return report, nil
}

// etherscanChainID prefers the configured chain and warns when it disagrees
// with the chain the RPC endpoint reported.
func etherscanChainID(configured string, dialed *big.Int) string {
	if dialed == nil {
		return configured
	}
	if configured == "" {
		return dialed.String()
	}
	if configured != dialed.String() {
		log.Printf("Etherscan chain %s differs from RPC chain %s", configured, dialed)
	}
	return configured
}

func (c *checker) Close() {
	if c.store != nil {
		if err := c.store.Close(); err != nil {
			log.Printf("Failed to close store: %v", err)
		}
	}
	c.client.Close()
}
