package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tickforge/straddlebot/bot"
	"github.com/tickforge/straddlebot/config"
	"github.com/tickforge/straddlebot/core"
	"github.com/tickforge/straddlebot/exec"
	"github.com/tickforge/straddlebot/feeds"
	"github.com/tickforge/straddlebot/ledger"
	"github.com/tickforge/straddlebot/storage"
)

func main() {
	// Load .env file if present
	_ = godotenv.Load()

	// Configure logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	log.Info().
		Strs("symbols", cfg.Symbols).
		Bool("dry_run", cfg.DryRun).
		Str("equity", cfg.InitialEquity.String()).
		Msg("🤖 Starting straddle bot")

	params, err := config.LoadCoinParams(cfg.CoinParamsPath, cfg.Symbols)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load coin parameters")
	}

	db, err := storage.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer db.Close()

	notifier, err := bot.NewNotifier(cfg.TelegramToken, cfg.TelegramChatID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to start Telegram notifier")
	}

	book := ledger.New(cfg.InitialEquity, ledger.Rates{
		TakerFee: cfg.TakerFeeRate,
		MakerFee: cfg.MakerFeeRate,
		Slippage: cfg.SlippageRate,
	})

	// Live order routing is gated behind DRY_RUN; paper fills are the only
	// gateway wired today. A real connector slots in here unchanged.
	if !cfg.DryRun {
		log.Warn().Msg("⚠️ Live trading not wired, falling back to paper fills")
	}
	paper := exec.NewPaperGateway(cfg.SlippageRate, cfg.TakerFeeRate, cfg.MakerFeeRate)
	gateway := exec.WithRetry(paper)

	var events core.EventSink
	if notifier != nil {
		events = notifier
	}

	engine, err := core.New(cfg, params, book, gateway, db, events)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build engine")
	}
	if err := engine.Resume(); err != nil {
		log.Fatal().Err(err).Msg("Failed to resume open positions")
	}

	feed := feeds.NewBinanceFeed(cfg.StreamURL, cfg.Symbols)
	engine.Start(feed)

	// Periodic performance summary
	summaryTicker := time.NewTicker(1 * time.Hour)
	defer summaryTicker.Stop()
	go func() {
		for range summaryTicker.C {
			snap := engine.Performance(time.Now())
			log.Info().
				Str("equity", snap.Equity.StringFixed(2)).
				Int("trades", snap.TotalTrades).
				Int("open", snap.OpenPositions).
				Msg("📊 Hourly summary")
			notifier.SendPerformance(snap)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("Shutting down")

	// Positions stay open across restarts; stops resume from the database.
	feed.Stop()
	engine.Stop()

	final := engine.Performance(time.Now())
	notifier.SendPerformance(final)
	log.Info().
		Str("equity", final.Equity.StringFixed(2)).
		Str("return_pct", final.TotalReturnPct.StringFixed(2)).
		Int("trades", final.TotalTrades).
		Msg("👋 Session ended")
}
