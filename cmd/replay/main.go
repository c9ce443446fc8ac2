// Command replay fetches historical candles, builds a scenario on the older
// part of the window and replays the newer part through a paper-trading
// session. Useful for eyeballing how scenarios would have played out.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"crypto-scenario-engine/internal/candles"
	"crypto-scenario-engine/internal/feed"
	"crypto-scenario-engine/internal/forwardtest"
	"crypto-scenario-engine/internal/indicators"
	"crypto-scenario-engine/internal/levels"
	"crypto-scenario-engine/internal/logging"
	"crypto-scenario-engine/internal/marketdata"
	"crypto-scenario-engine/internal/scenario"
)

func main() {
	var (
		symbol    = flag.String("symbol", "BTCUSDT", "trading pair")
		interval  = flag.String("interval", "1h", "candle interval")
		limit     = flag.Int("limit", 500, "total candles to fetch")
		holdout   = flag.Int("holdout", 100, "candles reserved for the replay leg")
		direction = flag.String("direction", "", "long or short; empty infers from trend")
		size      = flag.Float64("size", 1.0, "position size")
		entryMode = flag.String("entry", "aggressive", "entry mode: aggressive or conservative")
		baseURL   = flag.String("base-url", "", "exchange API base URL (default public Binance)")
	)
	flag.Parse()

	if err := run(*symbol, *interval, *limit, *holdout, *direction, *size, *entryMode, *baseURL); err != nil {
		fmt.Fprintf(os.Stderr, "replay failed: %v\n", err)
		os.Exit(1)
	}
}

func run(symbol, interval string, limit, holdout int, direction string, size float64, entryMode, baseURL string) error {
	if holdout <= 0 || holdout >= limit {
		return fmt.Errorf("holdout must be between 1 and limit-1, got %d of %d", holdout, limit)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	client := marketdata.NewClient(baseURL, 10*time.Second)
	full, err := client.GetCandles(ctx, symbol, interval, limit)
	if err != nil {
		return err
	}
	if full.Len() <= holdout {
		return fmt.Errorf("only %d candles available, need more than %d", full.Len(), holdout)
	}

	cs := full.Snapshot()
	split := len(cs) - holdout
	buildSeries, err := candles.FromCandles(symbol, full.Timeframe(), cs[:split])
	if err != nil {
		return err
	}
	replaySeries, err := candles.FromCandles(symbol, full.Timeframe(), cs[split:])
	if err != nil {
		return err
	}

	meta, err := client.GetMarketMeta(ctx, symbol)
	if err != nil {
		fmt.Printf("market meta unavailable, skipping fibonacci levels: %v\n", err)
		meta = levels.MarketMeta{}
	}

	snap, err := indicators.Compute(buildSeries, indicators.DefaultConfig())
	if err != nil {
		return err
	}
	lvls, err := levels.NewGenerator(levels.DefaultConfig()).Generate(buildSeries, meta, snap)
	if err != nil {
		return err
	}

	var hint *scenario.Direction
	switch direction {
	case "":
	case string(scenario.Long), string(scenario.Short):
		d := scenario.Direction(direction)
		hint = &d
	default:
		return fmt.Errorf("direction must be long or short, got %q", direction)
	}

	sc, err := scenario.NewBuilder(scenario.DefaultOptions()).Build(buildSeries, snap, lvls, hint)
	if err != nil {
		return err
	}

	fmt.Printf("scenario %s %s  entry %.2f/%.2f  stop %.2f  confidence %.2f\n",
		sc.Symbol, sc.Direction,
		sc.EntryZone.Aggressive, sc.EntryZone.Conservative,
		sc.StopLoss.Conservative, sc.Confidence)
	for _, t := range sc.Targets {
		fmt.Printf("  target %-8s %.2f  rr %.2f\n", t.Label, t.Price, t.RR)
	}

	mode := forwardtest.EntryMode(entryMode)
	if mode != forwardtest.EntryAggressive && mode != forwardtest.EntryConservative {
		return fmt.Errorf("entry mode must be aggressive or conservative, got %q", entryMode)
	}

	session := forwardtest.NewSession("replay", forwardtest.Config{
		EntryMode: mode,
		Logger:    logging.Nop(),
	})
	opened, err := session.OpenFromScenario(sc, size, buildSeries.At(split-1).OpenTime)
	if err != nil {
		return err
	}

	accepted, rejected, err := feed.Drive(ctx, feed.FromSeries(replaySeries), session)
	if err != nil {
		return err
	}

	pos := session.Position(opened.ID)
	fmt.Printf("\nreplayed %d ticks (%d rejected)\n", accepted, rejected)
	fmt.Printf("position %s: %s, realized pnl %s\n", pos.ID, pos.Status, pos.RealizedPnL.StringFixed(4))
	for _, f := range pos.Fills {
		fmt.Printf("  fill seq %-4d %-16s price %s  pnl %s\n",
			f.Seq, f.Reason, f.Price.StringFixed(2), f.PnL.StringFixed(4))
	}

	stats := session.Stats()
	fmt.Printf("session: %d opened, %d closed, win rate %.0f%%\n",
		stats.OpenedCount, stats.ClosedCount, stats.WinRate*100)
	return nil
}
