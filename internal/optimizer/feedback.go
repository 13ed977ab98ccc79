package optimizer

import (
	"fmt"
	"math"
	"strings"

	"quant-lab/internal/model"
	"quant-lab/internal/stats"
)

type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

type RiskAssessment struct {
	Level RiskLevel `json:"level"`
	Score float64   `json:"score"`
}

type Feedback struct {
	OverallAssessment string            `json:"overall_assessment"`
	Recommendations   []string          `json:"recommendations"`
	MetricAnalysis    map[string]string `json:"metric_analysis"`
	RiskAssessment    RiskAssessment    `json:"risk_assessment"`
	PositionSize      float64           `json:"position_size"`
	StopLoss          float64           `json:"stop_loss"`
}

// Thresholds are the volatility and drawdown limits after regime adjustment
type Thresholds struct {
	Volatility  float64 `json:"volatility"`
	MaxDrawdown float64 `json:"max_drawdown"`
}

// DynamicThresholds scales the baseline limits: strong trends (|trend| > 0.2)
// widen volatility by 30% and drawdown by 20%, choppy high-volatility markets
// tighten them by 20% and 30%.
func DynamicThresholds(prefs Preferences, conditions model.MarketConditions) Thresholds {
	t := Thresholds{Volatility: prefs.VolatilityThreshold, MaxDrawdown: prefs.MaxDrawdownThreshold}
	switch {
	case math.Abs(conditions.Trend) > 0.2:
		t.Volatility *= 1.3
		t.MaxDrawdown *= 1.2
	case conditions.Volatility > prefs.VolatilityThreshold:
		t.Volatility *= 0.8
		t.MaxDrawdown *= 0.7
	}
	return t
}

func formatMetric(name string, value float64, unit string) string {
	return fmt.Sprintf("%s: %.2f%s", name, value, unit)
}

func buildFeedback(prefs Preferences, conditions model.MarketConditions, rm model.RiskMetrics,
	metrics map[string]float64, volume VolumeMetrics) Feedback {
	analysis := make(map[string]string)
	var recs []string

	recs = append(recs, volumeFindings(volume, analysis)...)
	recs = append(recs, riskFindings(rm, DynamicThresholds(prefs, conditions), analysis)...)

	position := PositionSize(prefs, rm)
	stop := StopLoss(rm)
	recs = append(recs,
		fmt.Sprintf("Recommended position size: %.1f%% of portfolio - Based on current market volatility and strategy Sharpe ratio", position*100),
		fmt.Sprintf("Recommended stop loss: %.1f%% below entry - Adjusted for current market volatility", stop*100),
	)
	if metrics["beta"] > 1.2 {
		recs = append(recs, "Consider reducing position size in high market volatility periods - Strategy shows high market sensitivity")
	}
	if metrics["alpha"] > 0.05 {
		recs = append(recs, "Strategy shows strong alpha generation - Consider increasing allocation during favorable market conditions")
	}

	return Feedback{
		OverallAssessment: overallAssessment(rm, metrics, conditions),
		Recommendations:   recs,
		MetricAnalysis:    analysis,
		RiskAssessment:    AssessRisk(rm, conditions),
		PositionSize:      position,
		StopLoss:          stop,
	}
}

func volumeFindings(v VolumeMetrics, analysis map[string]string) []string {
	analysis["volumeVolatility"] = formatMetric("Volume volatility", v.VolumeVolatility*100, "%")
	analysis["volumeTrend"] = formatMetric("Volume trend", v.VolumeTrend*100, "%")
	analysis["volumeMomentum"] = formatMetric("Volume momentum", v.VolumeMomentum*100, "%")
	analysis["priceVolumeCorrelation"] = formatMetric("Price-volume correlation", v.PriceVolumeCorrelation, "")

	var recs []string
	if n := len(v.VolumeSpikeDates); n > 0 {
		recs = append(recs, fmt.Sprintf("Detected %d significant volume spikes - Consider adjusting position sizing around these events", n))
	}
	switch {
	case v.VolumeTrend > 0.1:
		recs = append(recs, "Rising volume trend detected - Consider increasing position sizes")
	case v.VolumeTrend < -0.1:
		recs = append(recs, "Declining volume trend detected - Consider reducing position sizes")
	}
	if c := v.PriceVolumeCorrelation; math.Abs(c) > 0.7 {
		recs = append(recs, fmt.Sprintf("Strong price-volume correlation (%.2f) detected - Consider volume-weighted position sizing", c))
	}
	if d := v.Distribution; d.Median > 0 && (d.Q3-d.Q1)/d.Median > 1.5 {
		recs = append(recs, "High volume dispersion detected - Consider using volume-based filters")
	}
	return recs
}

func riskFindings(rm model.RiskMetrics, t Thresholds, analysis map[string]string) []string {
	analysis["volatility"] = formatMetric("Annualized volatility", rm.Volatility*100, "%")
	analysis["valueAtRisk"] = formatMetric("Daily VaR (95%)", rm.ValueAtRisk95*100, "%")
	analysis["sharpeRatio"] = formatMetric("Sharpe ratio", rm.SharpeRatio, "")
	analysis["sortinoRatio"] = formatMetric("Sortino ratio", rm.SortinoRatio, "")
	analysis["beta"] = formatMetric("Beta", rm.Beta, "")
	analysis["cvar"] = formatMetric("Conditional VaR (95%)", rm.CVaR95*100, "%")
	analysis["calmarRatio"] = formatMetric("Calmar ratio", rm.CalmarRatio, "")

	var recs []string
	if math.Abs(rm.CVaR95) > math.Abs(rm.ValueAtRisk95)*1.5 {
		recs = append(recs, fmt.Sprintf("High tail risk detected: CVaR (%.2f%%) significantly exceeds VaR (%.2f%%) - Consider implementing tail risk hedging strategies",
			rm.CVaR95*100, rm.ValueAtRisk95*100))
	}
	switch {
	case rm.CalmarRatio < 0.5:
		recs = append(recs, "Low Calmar ratio indicates poor return relative to maximum drawdown - Consider adjusting position sizing or implementing stronger drawdown controls")
	case rm.CalmarRatio > 2.0:
		recs = append(recs, "Strong Calmar ratio suggests effective drawdown management - Current risk parameters appear well-calibrated")
	}
	if rm.Volatility > t.Volatility {
		recs = append(recs, fmt.Sprintf("Consider increasing smoothing parameters: Current volatility (%.2f%%) exceeds dynamic threshold (%.2f%%) adjusted for market conditions",
			rm.Volatility*100, t.Volatility*100))
	}
	if rm.MaxDrawdown > t.MaxDrawdown {
		recs = append(recs, fmt.Sprintf("Implement tighter stop-loss controls: Maximum drawdown (%.2f%%) exceeds dynamic threshold (%.2f%%) calibrated to current market volatility",
			rm.MaxDrawdown*100, t.MaxDrawdown*100))
	}
	if rm.SortinoRatio < 1.0 && rm.SharpeRatio > 1.0 {
		recs = append(recs, "Strategy shows good overall risk-adjusted returns but poor downside protection: Consider implementing asymmetric stop losses")
	}
	return recs
}

func overallAssessment(rm model.RiskMetrics, metrics map[string]float64, conditions model.MarketConditions) string {
	var b strings.Builder
	b.WriteString("Strategy optimization completed with the following characteristics:\n")

	switch {
	case rm.SharpeRatio > 2.0:
		b.WriteString("- Excellent risk-adjusted returns (Sharpe > 2.0)\n")
	case rm.SharpeRatio > 1.0:
		b.WriteString("- Good risk-adjusted returns (Sharpe > 1.0)\n")
	default:
		b.WriteString("- Moderate risk-adjusted returns (Sharpe < 1.0)\n")
	}

	beta, ok := metrics["beta"]
	if !ok {
		beta = 1.0
	}
	switch {
	case beta > 1.2:
		b.WriteString("- High market sensitivity (Beta > 1.2)\n")
	case beta < 0.8:
		b.WriteString("- Low market correlation (Beta < 0.8)\n")
	default:
		b.WriteString("- Moderate market correlation (Beta 0.8-1.2)\n")
	}

	if metrics["sortino"] > rm.SharpeRatio {
		b.WriteString("- Strong downside protection (Sortino > Sharpe)\n")
	}
	fmt.Fprintf(&b, "Current market conditions: %.2f%% volatility, %.2f trend strength\n",
		conditions.Volatility*100, conditions.Trend)
	return b.String()
}

// PositionSize is half of a Kelly fraction (50% win rate, 1.5 win/loss ratio),
// scaled down when realized volatility or drawdown exceed the preferences.
func PositionSize(prefs Preferences, rm model.RiskMetrics) float64 {
	const winRate, winLoss = 0.5, 1.5
	kelly := winRate - (1-winRate)/winLoss

	adjustment := 1.0
	if rm.Volatility > 0 && rm.MaxDrawdown > 0 {
		adjustment = math.Min(1, (prefs.VolatilityThreshold/rm.Volatility)*(prefs.MaxDrawdownThreshold/rm.MaxDrawdown))
	}
	return kelly * adjustment * 0.5
}

// StopLoss sits two daily standard deviations below entry.
func StopLoss(rm model.RiskMetrics) float64 {
	return 2 * rm.Volatility / math.Sqrt(stats.TradingDaysPerYear)
}

// AssessRisk blends volatility, drawdown, trend strength and inverse Sharpe.
func AssessRisk(rm model.RiskMetrics, conditions model.MarketConditions) RiskAssessment {
	score := rm.Volatility*0.3 + rm.MaxDrawdown*0.3 + math.Abs(conditions.Trend)*0.2
	if rm.SharpeRatio != 0 {
		score += 1 / math.Abs(rm.SharpeRatio) * 0.2
	} else {
		score += 0.2
	}

	level := RiskLow
	switch {
	case score > 0.7:
		level = RiskHigh
	case score > 0.4:
		level = RiskMedium
	}
	return RiskAssessment{Level: level, Score: score}
}
