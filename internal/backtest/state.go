package backtest

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade is one completed round trip.
type Trade struct {
	EntryTime  time.Time `json:"entry_time"`
	ExitTime   time.Time `json:"exit_time"`
	EntryPrice float64   `json:"entry_price"`
	ExitPrice  float64   `json:"exit_price"`
	Quantity   float64   `json:"quantity"`
	PnL        float64   `json:"pnl"`
	Commission float64   `json:"commission"`
}

// PortfolioState tracks cash, the open position and completed trades during a
// replay. Cash and position accounting use decimals so commission rounding
// never drifts across long runs.
type PortfolioState struct {
	Cash        decimal.Decimal
	Quantity    decimal.Decimal
	EntryPrice  decimal.Decimal
	entryTime   time.Time
	entryFee    decimal.Decimal
	PeakEquity  float64
	Trades      []Trade
	EquityCurve EquityCurve
}

// NewPortfolioState initializes state with the starting cash balance.
func NewPortfolioState(initialCash float64) *PortfolioState {
	return &PortfolioState{
		Cash:       decimal.NewFromFloat(initialCash),
		PeakEquity: initialCash,
	}
}

// Holding reports whether a position is open.
func (s *PortfolioState) Holding() bool {
	return s.Quantity.IsPositive()
}

// Equity is the mark-to-market portfolio value at the given price.
func (s *PortfolioState) Equity(price float64) float64 {
	value := s.Cash.Add(s.Quantity.Mul(decimal.NewFromFloat(price)))
	equity, _ := value.Float64()
	return equity
}

// Enter opens a position of qty units at price, deducting commission.
func (s *PortfolioState) Enter(t time.Time, price, qty, commissionRate float64) {
	p := decimal.NewFromFloat(price)
	q := decimal.NewFromFloat(qty)
	notional := p.Mul(q)
	fee := notional.Mul(decimal.NewFromFloat(commissionRate))

	s.Cash = s.Cash.Sub(notional).Sub(fee)
	s.Quantity = q
	s.EntryPrice = p
	s.entryTime = t
	s.entryFee = fee
}

// Exit closes the open position at price and records the completed trade.
func (s *PortfolioState) Exit(t time.Time, price, commissionRate float64) {
	p := decimal.NewFromFloat(price)
	notional := p.Mul(s.Quantity)
	fee := notional.Mul(decimal.NewFromFloat(commissionRate))

	s.Cash = s.Cash.Add(notional).Sub(fee)

	grossPnL := p.Sub(s.EntryPrice).Mul(s.Quantity)
	totalFee := s.entryFee.Add(fee)
	netPnL, _ := grossPnL.Sub(totalFee).Float64()
	commission, _ := totalFee.Float64()
	qty, _ := s.Quantity.Float64()
	entryPrice, _ := s.EntryPrice.Float64()

	s.Trades = append(s.Trades, Trade{
		EntryTime:  s.entryTime,
		ExitTime:   t,
		EntryPrice: entryPrice,
		ExitPrice:  price,
		Quantity:   qty,
		PnL:        netPnL,
		Commission: commission,
	})

	s.Quantity = decimal.Zero
	s.EntryPrice = decimal.Zero
	s.entryFee = decimal.Zero
}

// RecordEquityPoint marks the portfolio value at t onto the equity curve.
func (s *PortfolioState) RecordEquityPoint(t time.Time, price float64) {
	equity := s.Equity(price)
	if equity > s.PeakEquity {
		s.PeakEquity = equity
	}
	drawdown := 0.0
	if s.PeakEquity > 0 && equity < s.PeakEquity {
		drawdown = (s.PeakEquity - equity) / s.PeakEquity
	}
	s.EquityCurve = append(s.EquityCurve, EquityPoint{
		Time:     t,
		Value:    equity,
		Drawdown: drawdown,
	})
}
