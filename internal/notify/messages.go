package notify

import (
	"fmt"
	"sort"
	"strings"

	"github.com/alanyoungcy/themetrader/internal/domain"
)

// CycleMessage renders a cycle report for chat.
func CycleMessage(r domain.CycleReport) (title, message string) {
	title = fmt.Sprintf("Cycle %s", r.StartedAt.Format("2006-01-02 15:04"))

	var b strings.Builder
	fmt.Fprintf(&b, "Candidates: %d, opened: %d, sells: %d\n", len(r.Candidates), len(r.Opened), len(r.Sells()))
	for _, p := range r.Opened {
		fmt.Fprintf(&b, "BUY %s (%s) %.2f @ %.2f\n", p.Symbol, p.Name, p.Quantity, p.EntryPrice)
	}
	for _, d := range r.Sells() {
		fmt.Fprintf(&b, "SELL %s %.0f%% @ %.2f risk=%.2f pnl=%.2f\n",
			d.Symbol, d.SellRatio*100, d.Sell.Price, d.RiskScore, d.Sell.RealizedPnL)
	}
	fmt.Fprintf(&b, "Cash: %.2f, positions: %d/%d", r.Status.Cash, r.Status.PositionCount, r.Status.MaxPositions)
	if len(r.Errors) > 0 {
		fmt.Fprintf(&b, "\nErrors: %s", strings.Join(r.Errors, "; "))
	}
	return title, b.String()
}

// PositionClosedMessage renders a full exit.
func PositionClosedMessage(d domain.RiskDecision) (title, message string) {
	title = fmt.Sprintf("Closed %s", d.Symbol)
	message = fmt.Sprintf("Sold %.2f @ %.2f, proceeds %.2f, realized pnl %.2f, risk %.2f",
		d.Sell.Quantity, d.Sell.Price, d.Sell.Proceeds, d.Sell.RealizedPnL, d.RiskScore)
	return title, message
}

// SummaryMessage renders the end-of-day portfolio summary.
func SummaryMessage(s domain.PortfolioStatus) (title, message string) {
	title = fmt.Sprintf("Daily summary %s", s.AsOf.Format("2006-01-02"))

	var b strings.Builder
	fmt.Fprintf(&b, "Cash: %.2f, positions: %d/%d", s.Cash, s.PositionCount, s.MaxPositions)
	syms := make([]string, 0, len(s.Positions))
	for sym := range s.Positions {
		syms = append(syms, sym)
	}
	sort.Strings(syms)
	for _, sym := range syms {
		p := s.Positions[sym]
		fmt.Fprintf(&b, "\n%s (%s): %.2f @ %.2f", p.Symbol, p.Name, p.Quantity, p.EntryPrice)
	}
	return title, b.String()
}
