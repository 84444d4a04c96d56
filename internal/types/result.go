package types

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// RunStatus is the terminal status of a backtest run.
type RunStatus string

const (
	// RunStatusCompleted means the feed was exhausted and the result is complete.
	RunStatusCompleted RunStatus = "COMPLETED"
	// RunStatusFailed means the strategy returned a fatal error; the result
	// carries everything recorded up to the failure point.
	RunStatusFailed RunStatus = "FAILED"
	// RunStatusCancelled means the run was aborted by the operator before completion.
	RunStatusCancelled RunStatus = "CANCELLED"
)

// EquityPoint is one sample of the equity curve: total account value
// (cash + mark-to-market positions) at a bar close.
type EquityPoint struct {
	Time   time.Time `yaml:"time" json:"time" csv:"time"`
	Equity float64   `yaml:"equity" json:"equity" csv:"equity"`
}

// Metrics summarizes the performance of a completed run.
type Metrics struct {
	StartingCash float64 `yaml:"starting_cash" json:"starting_cash"`
	FinalEquity  float64 `yaml:"final_equity" json:"final_equity"`
	// TotalReturn is (final equity / starting cash) - 1.
	TotalReturn float64 `yaml:"total_return" json:"total_return"`
	// MaxDrawdown is the largest peak-to-trough decline of the equity curve,
	// expressed as a positive fraction.
	MaxDrawdown float64 `yaml:"max_drawdown" json:"max_drawdown"`
	// SharpeRatio is computed over per-bar equity returns, annualized
	// assuming 252 bars per year.
	SharpeRatio float64 `yaml:"sharpe_ratio" json:"sharpe_ratio"`
	// WinRate is the fraction of closing fills with positive realized PnL.
	WinRate     float64 `yaml:"win_rate" json:"win_rate"`
	NumTrades   int     `yaml:"num_trades" json:"num_trades"`
	TotalFees   float64 `yaml:"total_fees" json:"total_fees"`
	RealizedPnL float64 `yaml:"realized_pnl" json:"realized_pnl"`
}

// Result is the immutable outcome of one backtest run.
type Result struct {
	// RunID is a unique identifier for this run.
	RunID string `yaml:"run_id" json:"run_id"`
	// StrategyName identifies the strategy instance that produced this result.
	StrategyName string `yaml:"strategy_name" json:"strategy_name"`
	// DatasetID is the identity hash of the time series the run replayed.
	DatasetID string `yaml:"dataset_id" json:"dataset_id"`
	// ConfigLabel identifies the broker configuration variation.
	ConfigLabel string    `yaml:"config_label" json:"config_label"`
	Status      RunStatus `yaml:"status" json:"status"`
	// Error is set when Status is FAILED or CANCELLED.
	Error       string        `yaml:"error,omitempty" json:"error,omitempty"`
	EquityCurve []EquityPoint `yaml:"equity_curve" json:"equity_curve"`
	Trades      []Fill        `yaml:"trades" json:"trades"`
	Metrics     Metrics       `yaml:"metrics" json:"metrics"`
	Runtime     time.Duration `yaml:"runtime" json:"runtime"`
}

// Summary is the per-run header written to the batch summary file. It omits
// the full equity curve and trade log, which go to Parquet.
type Summary struct {
	RunID        string    `yaml:"run_id" json:"run_id"`
	StrategyName string    `yaml:"strategy_name" json:"strategy_name"`
	DatasetID    string    `yaml:"dataset_id" json:"dataset_id"`
	ConfigLabel  string    `yaml:"config_label" json:"config_label"`
	Status       RunStatus `yaml:"status" json:"status"`
	Error        string    `yaml:"error,omitempty" json:"error,omitempty"`
	Metrics      Metrics   `yaml:"metrics" json:"metrics"`
	Runtime      string    `yaml:"runtime" json:"runtime"`
}

// Summarize builds the Summary for a result.
func (r *Result) Summarize() Summary {
	return Summary{
		RunID:        r.RunID,
		StrategyName: r.StrategyName,
		DatasetID:    r.DatasetID,
		ConfigLabel:  r.ConfigLabel,
		Status:       r.Status,
		Error:        r.Error,
		Metrics:      r.Metrics,
		Runtime:      r.Runtime.String(),
	}
}

// WriteSummaries writes run summaries to a YAML file.
func WriteSummaries(path string, summaries []Summary) error {
	data, err := yaml.Marshal(summaries)
	if err != nil {
		return fmt.Errorf("failed to marshal run summaries to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write run summaries to file: %w", err)
	}

	return nil
}
