package model

import (
	"time"
)

type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// Trade 回测中的单笔成交, 记录后不可修改
type Trade struct {
	Date   time.Time `json:"date"`
	Action Action    `json:"action"`
	Shares int64     `json:"shares"`
	Price  float64   `json:"price"`
}

// EquityPoint 权益曲线上的一个点
type EquityPoint struct {
	Date   time.Time `json:"date"`
	Equity float64   `json:"equity"`
}

// BacktestMetrics 回测结果报告
type BacktestMetrics struct {
	StrategyName   string        `json:"strategy_name,omitempty"`
	TotalReturnPct float64       `json:"total_return_pct"`
	SharpeRatio    float64       `json:"sharpe_ratio"`
	MaxDrawdownPct float64       `json:"max_drawdown_pct"` // 最大回撤 (百分比)
	WinRatePct     float64       `json:"win_rate_pct"`
	Trades         []Trade       `json:"trades"`
	EquityCurve    []EquityPoint `json:"equity_curve"` // 按日期升序
}

// RiskMetrics 风险指标, 每次调用重新计算
type RiskMetrics struct {
	Volatility    float64 `json:"volatility"`
	ValueAtRisk95 float64 `json:"value_at_risk_95"`
	MaxDrawdown   float64 `json:"max_drawdown"`
	Beta          float64 `json:"beta"`
	SharpeRatio   float64 `json:"sharpe_ratio"`
	SortinoRatio  float64 `json:"sortino_ratio"`
	CVaR95        float64 `json:"cvar_95"`
	CalmarRatio   float64 `json:"calmar_ratio"`
}
