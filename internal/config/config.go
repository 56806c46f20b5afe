// Package config exposes strongly typed application configuration structs loaded from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/MaxGoetzmann/jalshi/internal/risk"
)

// ProductionAcknowledgement is the exact literal an operator must export
// as KALSHI_PRODUCTION_CONFIRMED before production trading can confirm.
const ProductionAcknowledgement = "yes_i_understand_this_is_real_money"

// App captures process-wide runtime settings such as name, logging, and
// output paths.
type App struct {
	Name        string `yaml:"name"`
	LogLevel    string `yaml:"log_level"`
	MetricsAddr string `yaml:"metrics_addr"`
	JournalPath string `yaml:"journal_path"`
}

// Market selects the traded series and tunes the data feeds.
type Market struct {
	Series             string `yaml:"series"`
	SpotSymbol         string `yaml:"spot_symbol"`
	PollIntervalMs     int    `yaml:"poll_interval_ms"`
	DiscoveryRefreshMs int    `yaml:"discovery_refresh_ms"`
	HistorySize        int    `yaml:"history_size"`
}

// Guardrail holds the execution policy knobs: mode gates, size caps, the
// daily loss limit, and sizing defaults. USD amounts are plain numbers in
// the file and become decimals at the policy boundary.
type Guardrail struct {
	DryRun              bool    `yaml:"dry_run"`
	Environment         string  `yaml:"environment"`
	ProductionConfirmed bool    `yaml:"production_confirmed"`
	RequireConfirmation bool    `yaml:"require_confirmation"`
	MaxOrderUSD         float64 `yaml:"max_order_usd"`
	DailyLossLimitUSD   float64 `yaml:"daily_loss_limit_usd"`
	DefaultOrderUSD     float64 `yaml:"default_order_usd"`
	MinConfidence       float64 `yaml:"min_confidence"`
	Timezone            string  `yaml:"timezone"`
}

// Limiter bounds outbound venue calls.
type Limiter struct {
	Capacity  int     `yaml:"capacity"`
	PerSecond float64 `yaml:"per_second"`
}

// Transport tunes the venue client's HTTP behavior.
type Transport struct {
	TimeoutMs         int `yaml:"timeout_ms"`
	MaxAttempts       int `yaml:"max_attempts"`
	BackoffBaseMs     int `yaml:"backoff_base_ms"`
	BackoffCapMs      int `yaml:"backoff_cap_ms"`
	SessionMarginSecs int `yaml:"session_margin_secs"`
}

// StrategyParams groups tunable knobs for the shipped strategies.
type StrategyParams struct {
	TrendThresholdPct float64 `yaml:"trend_threshold_pct"`
	CheapYesAskCents  int     `yaml:"cheap_yes_ask_cents"`
	RichYesAskCents   int     `yaml:"rich_yes_ask_cents"`
	Confidence        float64 `yaml:"confidence"`
	FairOffsetCents   int     `yaml:"fair_offset_cents"`
	OBIThreshold      float64 `yaml:"obi_threshold"`
	AnalysisTimeoutMs int     `yaml:"analysis_timeout_ms"`
}

// Strategy specifies which strategy is active along with the parameter bundle.
type Strategy struct {
	Mode   string         `yaml:"mode"`
	Params StrategyParams `yaml:"params"`
}

// Paper captures the dry-run account settings.
type Paper struct {
	StartingCashUSD float64 `yaml:"starting_cash_usd"`
	LedgerSize      int     `yaml:"ledger_size"`
}

// Config collects every configuration leaf for easy marshaling from YAML.
type Config struct {
	App       App       `yaml:"app"`
	Market    Market    `yaml:"market"`
	Guardrail Guardrail `yaml:"guardrail"`
	Limiter   Limiter   `yaml:"limiter"`
	Transport Transport `yaml:"transport"`
	Strategy  Strategy  `yaml:"strategy"`
	Paper     Paper     `yaml:"paper"`
}

// Default returns the configuration assumed for fields absent from the
// file. Safe by default: dry run on, development tier, confirmation on.
func Default() Config {
	return Config{
		App: App{
			Name:        "jalshi",
			LogLevel:    "info",
			MetricsAddr: ":2112",
			JournalPath: "data/outcomes.jsonl",
		},
		Market: Market{
			Series:             "KXBTCD",
			SpotSymbol:         "btcusdt",
			PollIntervalMs:     1000,
			DiscoveryRefreshMs: 30000,
			HistorySize:        600,
		},
		Guardrail: Guardrail{
			DryRun:              true,
			Environment:         string(risk.EnvDevelopment),
			RequireConfirmation: true,
			MaxOrderUSD:         10,
			DailyLossLimitUSD:   50,
			DefaultOrderUSD:     10,
			MinConfidence:       0.55,
			Timezone:            "UTC",
		},
		Limiter: Limiter{Capacity: 20, PerSecond: 10},
		Transport: Transport{
			TimeoutMs:         30000,
			MaxAttempts:       3,
			BackoffBaseMs:     250,
			BackoffCapMs:      5000,
			SessionMarginSecs: 30,
		},
		Strategy: Strategy{
			Mode: "trend",
			Params: StrategyParams{
				TrendThresholdPct: 0.5,
				CheapYesAskCents:  55,
				RichYesAskCents:   45,
				Confidence:        0.6,
				FairOffsetCents:   10,
				OBIThreshold:      0.2,
				AnalysisTimeoutMs: 500,
			},
		},
		Paper: Paper{StartingCashUSD: 1000, LedgerSize: 256},
	}
}

// Load reads a YAML file from disk and hydrates a Config struct on top of
// the defaults. Fields missing from the file keep their default values.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	config := Default()
	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return &config, nil
}

// Save persists a Config struct to disk as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// ApplyEnv overlays environment variables on the loaded file. KALSHI_ENV
// selects the tier; production confirmation only upgrades when the exact
// acknowledgement literal is present, any other value changes nothing.
func (c *Config) ApplyEnv() {
	if env := os.Getenv("KALSHI_ENV"); env != "" {
		c.Guardrail.Environment = env
	}
	if os.Getenv("KALSHI_PRODUCTION_CONFIRMED") == ProductionAcknowledgement {
		c.Guardrail.ProductionConfirmed = true
	}
}

// Validate fails fast on the first invalid section so a broken config can
// never be discovered mid-trade.
func (c *Config) Validate() error {
	if err := c.App.validate(); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	if err := c.Market.validate(); err != nil {
		return fmt.Errorf("market: %w", err)
	}
	if err := c.Guardrail.validate(); err != nil {
		return fmt.Errorf("guardrail: %w", err)
	}
	if err := c.Limiter.validate(); err != nil {
		return fmt.Errorf("limiter: %w", err)
	}
	if err := c.Transport.validate(); err != nil {
		return fmt.Errorf("transport: %w", err)
	}
	if err := c.Strategy.validate(); err != nil {
		return fmt.Errorf("strategy: %w", err)
	}
	if err := c.Paper.validate(); err != nil {
		return fmt.Errorf("paper: %w", err)
	}
	return nil
}

func (a App) validate() error {
	if a.Name == "" {
		return fmt.Errorf("name must be set")
	}
	if a.MetricsAddr == "" {
		return fmt.Errorf("metrics_addr must be set")
	}
	return nil
}

func (m Market) validate() error {
	if m.Series == "" {
		return fmt.Errorf("series must be set")
	}
	if m.SpotSymbol == "" {
		return fmt.Errorf("spot_symbol must be set")
	}
	if m.PollIntervalMs <= 0 {
		return fmt.Errorf("poll_interval_ms must be positive")
	}
	if m.DiscoveryRefreshMs <= 0 {
		return fmt.Errorf("discovery_refresh_ms must be positive")
	}
	if m.HistorySize < 2 {
		return fmt.Errorf("history_size must be at least 2")
	}
	return nil
}

func (g Guardrail) validate() error {
	env, err := risk.ParseEnvironment(g.Environment)
	if err != nil {
		return err
	}
	if g.ProductionConfirmed && env != risk.EnvProduction {
		return fmt.Errorf("production_confirmed set with environment %q", g.Environment)
	}
	if g.MaxOrderUSD <= 0 {
		return fmt.Errorf("max_order_usd must be positive")
	}
	if g.DailyLossLimitUSD <= 0 {
		return fmt.Errorf("daily_loss_limit_usd must be positive")
	}
	if g.DefaultOrderUSD <= 0 {
		return fmt.Errorf("default_order_usd must be positive")
	}
	if g.MinConfidence < 0 || g.MinConfidence >= 1 {
		return fmt.Errorf("min_confidence must be in [0,1)")
	}
	if _, err := g.Location(); err != nil {
		return fmt.Errorf("timezone: %w", err)
	}
	return nil
}

func (l Limiter) validate() error {
	if l.Capacity <= 0 {
		return fmt.Errorf("capacity must be positive")
	}
	if l.PerSecond <= 0 {
		return fmt.Errorf("per_second must be positive")
	}
	return nil
}

func (t Transport) validate() error {
	if t.TimeoutMs <= 0 {
		return fmt.Errorf("timeout_ms must be positive")
	}
	if t.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be at least 1")
	}
	if t.BackoffBaseMs <= 0 {
		return fmt.Errorf("backoff_base_ms must be positive")
	}
	if t.BackoffCapMs < t.BackoffBaseMs {
		return fmt.Errorf("backoff_cap_ms must be at least backoff_base_ms")
	}
	return nil
}

func (s Strategy) validate() error {
	switch s.Mode {
	case "trend", "obi":
	default:
		return fmt.Errorf("unknown mode %q (want trend or obi)", s.Mode)
	}
	if s.Params.Confidence <= 0 || s.Params.Confidence > 1 {
		return fmt.Errorf("params.confidence must be in (0,1]")
	}
	if s.Params.AnalysisTimeoutMs <= 0 {
		return fmt.Errorf("params.analysis_timeout_ms must be positive")
	}
	return nil
}

func (p Paper) validate() error {
	if p.StartingCashUSD <= 0 {
		return fmt.Errorf("starting_cash_usd must be positive")
	}
	if p.LedgerSize <= 0 {
		return fmt.Errorf("ledger_size must be positive")
	}
	return nil
}

// Policy converts the guardrail section into the engine's policy value.
func (g Guardrail) Policy() (risk.Policy, error) {
	env, err := risk.ParseEnvironment(g.Environment)
	if err != nil {
		return risk.Policy{}, err
	}
	return risk.Policy{
		MaxOrderUSD:         decimal.NewFromFloat(g.MaxOrderUSD),
		DailyLossLimitUSD:   decimal.NewFromFloat(g.DailyLossLimitUSD),
		DryRun:              g.DryRun,
		Environment:         env,
		ProductionConfirmed: g.ProductionConfirmed,
		RequireConfirmation: g.RequireConfirmation,
	}, nil
}

// Location resolves the accounting timezone; empty means UTC.
func (g Guardrail) Location() (*time.Location, error) {
	if g.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(g.Timezone)
}

// Duration accessors for the millisecond and second fields.

func (m Market) PollInterval() time.Duration {
	return time.Duration(m.PollIntervalMs) * time.Millisecond
}

func (m Market) DiscoveryRefresh() time.Duration {
	return time.Duration(m.DiscoveryRefreshMs) * time.Millisecond
}

func (t Transport) Timeout() time.Duration {
	return time.Duration(t.TimeoutMs) * time.Millisecond
}

func (t Transport) BackoffBase() time.Duration {
	return time.Duration(t.BackoffBaseMs) * time.Millisecond
}

func (t Transport) BackoffCap() time.Duration {
	return time.Duration(t.BackoffCapMs) * time.Millisecond
}

func (t Transport) SessionMargin() time.Duration {
	return time.Duration(t.SessionMarginSecs) * time.Second
}

func (s StrategyParams) AnalysisTimeout() time.Duration {
	return time.Duration(s.AnalysisTimeoutMs) * time.Millisecond
}
