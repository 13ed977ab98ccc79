package model

import "time"

// MarketConditions 行情状态快照, 每次优化只计算一次
type MarketConditions struct {
	Volatility    float64 `json:"volatility"`
	Trend         float64 `json:"trend"`
	AverageVolume float64 `json:"average_volume"`
}

type OptimizationResult struct {
	Parameters     ParameterSet `json:"parameters"`
	TotalReturnPct float64      `json:"total_return_pct"`
}

// OptimizationOutcome 参数搜索的最优结果
type OptimizationOutcome struct {
	Parameters  ParameterSet       `json:"parameters"`
	Result      OptimizationResult `json:"result"`
	Score       float64            `json:"score"`
	RiskMetrics RiskMetrics        `json:"risk_metrics"`
}

// PredictionResponse 方向预测结果
type PredictionResponse struct {
	Symbol       string             `json:"symbol"`
	AsOfDate     time.Time          `json:"as_of_date"`
	TargetDate   time.Time          `json:"target_date"`
	PriceGoingUp bool               `json:"price_going_up"`
	Direction    string             `json:"direction"`
	Confidence   float64            `json:"confidence"`
	Indicators   map[string]float64 `json:"indicators"`
}
