package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tickforge/straddlebot/config"
	"github.com/tickforge/straddlebot/core"
	"github.com/tickforge/straddlebot/exec"
	"github.com/tickforge/straddlebot/feeds"
	"github.com/tickforge/straddlebot/ledger"
	"github.com/tickforge/straddlebot/types"
)

// Replays a recorded tick file (JSONL, one tick per line) through the full
// engine with paper fills and prints the resulting performance report. The
// same file always produces the same trades.
func main() {
	_ = godotenv.Load()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	zerolog.SetGlobalLevel(zerolog.WarnLevel)

	var (
		tickFile = flag.String("ticks", "", "path to JSONL tick file (required)")
		verbose  = flag.Bool("v", false, "log every trade")
	)
	flag.Parse()

	if *tickFile == "" {
		fmt.Fprintln(os.Stderr, "usage: replay -ticks <file.jsonl> [-v]")
		os.Exit(2)
	}
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	ticks, err := feeds.ReadTicksJSONL(*tickFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read tick file")
	}

	// Replay trades every symbol present in the file that has parameters.
	symbols := symbolsIn(ticks)
	cfg.Symbols = symbols

	params, err := config.LoadCoinParams(cfg.CoinParamsPath, symbols)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load coin parameters")
	}

	book := ledger.New(cfg.InitialEquity, ledger.Rates{
		TakerFee: cfg.TakerFeeRate,
		MakerFee: cfg.MakerFeeRate,
		Slippage: cfg.SlippageRate,
	})
	gateway := exec.NewPaperGateway(cfg.SlippageRate, cfg.TakerFeeRate, cfg.MakerFeeRate).UseTickTime()

	engine, err := core.New(cfg, params, book, gateway, nil, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build engine")
	}

	start := time.Now()
	n, err := engine.Replay(ticks)
	if err != nil {
		log.Fatal().Err(err).Int("processed", n).Msg("Replay aborted")
	}
	elapsed := time.Since(start)

	report(engine, book, n, elapsed)
}

// symbolsIn lists the distinct symbols in file order of first appearance.
func symbolsIn(ticks []types.Tick) []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range ticks {
		if !seen[t.Symbol] {
			seen[t.Symbol] = true
			out = append(out, t.Symbol)
		}
	}
	return out
}

func report(engine *core.Engine, book *ledger.Ledger, ticks int, elapsed time.Duration) {
	var asOf time.Time
	trades := book.Trades()
	if len(trades) > 0 {
		asOf = trades[len(trades)-1].ExitTime
	} else {
		asOf = time.Now()
	}
	snap := engine.Performance(asOf)

	fmt.Printf("Replay: %d ticks in %s (%.0f ticks/s)\n", ticks, elapsed.Round(time.Millisecond), float64(ticks)/elapsed.Seconds())
	fmt.Printf("Equity:        %s -> %s (%s%%)\n", snap.InitialEquity.StringFixed(2), snap.Equity.StringFixed(2), snap.TotalReturnPct.StringFixed(2))
	fmt.Printf("Trades:        %d, win rate %.1f%%, profit factor %.2f\n", snap.TotalTrades, snap.WinRate*100, snap.ProfitFactor)
	fmt.Printf("Fees paid:     %s\n", snap.TotalFees.StringFixed(4))
	fmt.Printf("Max drawdown:  %s%%\n", snap.MaxDrawdownPct.StringFixed(2))
	fmt.Printf("Open at end:   %d (unrealized %s)\n", snap.OpenPositions, snap.UnrealizedGross.StringFixed(4))

	for _, t := range trades {
		fmt.Printf("  %s %-5s %-13s entry %.6g exit %.6g net %s\n",
			t.Symbol, t.Side, t.ExitReason, t.EntryPrice, t.ExitPrice, t.NetPnl.StringFixed(4))
	}
}
