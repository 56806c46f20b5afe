// Binary console is the read-only operator surface: venue status, account
// introspection, market data, the recent outcome journal, and config edits.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/MaxGoetzmann/jalshi/internal/config"
	"github.com/MaxGoetzmann/jalshi/internal/journal"
	"github.com/MaxGoetzmann/jalshi/internal/kalshi"
	"github.com/MaxGoetzmann/jalshi/internal/ratelimit"
	"github.com/MaxGoetzmann/jalshi/internal/util"
)

const requestTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "internal/config/config.yaml", "path to the YAML config")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	policy, err := cfg.Guardrail.Policy()
	if err != nil {
		fmt.Fprintf(os.Stderr, "guardrail policy: %v\n", err)
		os.Exit(1)
	}

	signer, err := kalshi.LoadSigner(kalshi.TierReadOnly)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read-only credentials: %v\n", err)
		os.Exit(1)
	}

	log := util.NewLogger(cfg.App.LogLevel)
	client := kalshi.NewClient(kalshi.Config{
		BaseURL:       kalshi.BaseURLFor(policy.Environment),
		Timeout:       cfg.Transport.Timeout(),
		MaxAttempts:   cfg.Transport.MaxAttempts,
		BackoffBase:   cfg.Transport.BackoffBase(),
		BackoffCap:    cfg.Transport.BackoffCap(),
		SessionMargin: cfg.Transport.SessionMargin(),
	}, signer, ratelimit.NewBucket(cfg.Limiter.Capacity, cfg.Limiter.PerSecond), util.Component(log, "venue-read"))

	c := &console{
		reader:     bufio.NewReader(os.Stdin),
		cfg:        cfg,
		client:     client,
		configPath: *configPath,
	}
	c.run()
}

type console struct {
	reader     *bufio.Reader
	cfg        *config.Config
	client     *kalshi.Client
	configPath string
}

func (c *console) run() {
	for {
		fmt.Println("\n=== Jalshi Console (read-only) ===")
		fmt.Println("1) Exchange status")
		fmt.Println("2) Balance")
		fmt.Println("3) Positions")
		fmt.Println("4) Markets for", c.cfg.Market.Series)
		fmt.Println("5) Orderbook for a ticker")
		fmt.Println("6) Recent journal entries")
		fmt.Println("7) Configuration summary")
		fmt.Println("8) Edit guardrail knobs")
		fmt.Println("9) Save config")
		fmt.Println("0) Exit")
		fmt.Print("Select option: ")

		switch strings.TrimSpace(c.readLine()) {
		case "1":
			c.showStatus()
		case "2":
			c.showBalance()
		case "3":
			c.showPositions()
		case "4":
			c.showMarkets()
		case "5":
			c.showOrderbook()
		case "6":
			c.showJournal()
		case "7":
			c.showSummary()
		case "8":
			c.editGuardrails()
		case "9":
			c.saveConfig()
		case "0":
			return
		default:
			fmt.Println("unknown option")
		}
	}
}

func (c *console) readLine() string {
	line, _ := c.reader.ReadString('\n')
	return line
}

func requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), requestTimeout)
}

func (c *console) showStatus() {
	ctx, cancel := requestContext()
	defer cancel()
	status, err := c.client.GetExchangeStatus(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "status failed: %v\n", err)
		return
	}
	fmt.Printf("exchange active: %v | trading active: %v\n", status.ExchangeActive, status.TradingActive)
}

func (c *console) showBalance() {
	ctx, cancel := requestContext()
	defer cancel()
	balance, err := c.client.GetBalance(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "balance failed: %v\n", err)
		return
	}
	fmt.Printf("available balance: $%.2f\n", float64(balance.Balance)/100)
}

func (c *console) showPositions() {
	ctx, cancel := requestContext()
	defer cancel()
	positions, err := c.client.GetPositions(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "positions failed: %v\n", err)
		return
	}
	if len(positions) == 0 {
		fmt.Println("no open positions")
		return
	}
	for _, p := range positions {
		fmt.Printf("%-34s position %+d  exposure $%.2f  realized $%.2f\n",
			p.Ticker, p.Position, float64(p.MarketExposure)/100, float64(p.RealizedPnl)/100)
	}
}

func (c *console) showMarkets() {
	ctx, cancel := requestContext()
	defer cancel()
	markets, err := c.client.GetMarkets(ctx, c.cfg.Market.Series)
	if err != nil {
		fmt.Fprintf(os.Stderr, "markets failed: %v\n", err)
		return
	}
	if len(markets) == 0 {
		fmt.Println("no markets in series", c.cfg.Market.Series)
		return
	}
	for _, m := range markets {
		fmt.Printf("%-34s %-10s yes %2d/%2d  no %2d/%2d  closes %s\n",
			m.Ticker, m.Status, m.YesBid, m.YesAsk, m.NoBid, m.NoAsk,
			m.CloseTime.Format(time.RFC3339))
	}
}

func (c *console) showOrderbook() {
	fmt.Print("Ticker: ")
	ticker := strings.TrimSpace(c.readLine())
	if ticker == "" {
		fmt.Println("no ticker given")
		return
	}

	ctx, cancel := requestContext()
	defer cancel()
	book, err := c.client.GetOrderbook(ctx, ticker, 5)
	if err != nil {
		fmt.Fprintf(os.Stderr, "orderbook failed: %v\n", err)
		return
	}

	if px, qty := book.BestYesBid(); px > 0 {
		fmt.Printf("best yes bid %2dc x%-5d (implied no ask %2dc)\n", px, qty, 100-px)
	} else {
		fmt.Println("no resting yes bids")
	}
	if px, qty := book.BestNoBid(); px > 0 {
		fmt.Printf("best no bid  %2dc x%-5d (implied yes ask %2dc)\n", px, qty, 100-px)
	} else {
		fmt.Println("no resting no bids")
	}
}

func (c *console) showJournal() {
	entries, err := journal.Tail(c.cfg.App.JournalPath, 10)
	if err != nil {
		fmt.Fprintf(os.Stderr, "journal read failed: %v\n", err)
		return
	}
	if len(entries) == 0 {
		fmt.Println("journal is empty")
		return
	}
	for _, e := range entries {
		switch {
		case e.Outcome != nil:
			o := e.Outcome
			if o.Accepted {
				mode := "live"
				if o.SimulatedFillPriceCents > 0 {
					mode = "paper"
				}
				fmt.Printf("%s  %s %s x%d @ %dc (%s)\n",
					e.Ts.Format(time.RFC3339), o.Ticker, o.Side, o.Contracts, o.LimitPriceCents, mode)
			} else {
				fmt.Printf("%s  rejected: %s\n", e.Ts.Format(time.RFC3339), o.RejectionReason)
			}
		case e.Settlement != nil:
			s := e.Settlement
			fmt.Printf("%s  settled %s %s  pnl $%s\n",
				e.Ts.Format(time.RFC3339), s.Ticker, s.Result, s.PnLUSD)
		}
	}
}

func (c *console) showSummary() {
	fmt.Println("\n--- Configuration Summary ---")
	fmt.Printf("Environment: %s (dry run %v)\n", c.cfg.Guardrail.Environment, c.cfg.Guardrail.DryRun)
	fmt.Printf("Series: %s | spot symbol: %s\n", c.cfg.Market.Series, strings.ToUpper(c.cfg.Market.SpotSymbol))
	fmt.Printf("Max order: $%.2f | default stake: $%.2f\n", c.cfg.Guardrail.MaxOrderUSD, c.cfg.Guardrail.DefaultOrderUSD)
	fmt.Printf("Daily loss limit: $%.2f (%s)\n", c.cfg.Guardrail.DailyLossLimitUSD, c.cfg.Guardrail.Timezone)
	fmt.Printf("Min confidence: %.2f | confirmation required: %v\n", c.cfg.Guardrail.MinConfidence, c.cfg.Guardrail.RequireConfirmation)
	fmt.Printf("Strategy: %s (analysis timeout %dms)\n", c.cfg.Strategy.Mode, c.cfg.Strategy.Params.AnalysisTimeoutMs)
	fmt.Printf("Paper bankroll: $%.2f\n", c.cfg.Paper.StartingCashUSD)
	fmt.Printf("Limiter: burst %d @ %.1f/s | transport attempts: %d\n",
		c.cfg.Limiter.Capacity, c.cfg.Limiter.PerSecond, c.cfg.Transport.MaxAttempts)
}

func (c *console) editGuardrails() {
	fmt.Println("\n--- Edit Guardrails ---")
	g := &c.cfg.Guardrail
	g.MaxOrderUSD = c.promptFloat("Max order (USD)", g.MaxOrderUSD)
	g.DefaultOrderUSD = c.promptFloat("Default stake (USD)", g.DefaultOrderUSD)
	g.DailyLossLimitUSD = c.promptFloat("Daily loss limit (USD)", g.DailyLossLimitUSD)
	g.MinConfidence = c.promptFloat("Min confidence (0..1)", g.MinConfidence)
}

func (c *console) saveConfig() {
	if err := c.cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "not saved, config invalid: %v\n", err)
		return
	}
	if err := config.Save(c.configPath, c.cfg); err != nil {
		fmt.Fprintf(os.Stderr, "save failed: %v\n", err)
		return
	}
	fmt.Println("config saved")
}

func (c *console) promptFloat(label string, current float64) float64 {
	fmt.Printf("%s [%.2f]: ", label, current)
	line := strings.TrimSpace(c.readLine())
	if line == "" {
		return current
	}
	val, err := strconv.ParseFloat(line, 64)
	if err != nil {
		fmt.Printf("invalid number, keeping %.2f\n", current)
		return current
	}
	return val
}
