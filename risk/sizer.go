package risk

import (
	"errors"
	"fmt"
	"math"

	"github.com/rustyeddy/trendtrader/market"
	"github.com/rustyeddy/trendtrader/strategy"
	"github.com/shopspring/decimal"
)

var (
	ErrNotActionable      = errors.New("signal is not actionable")
	ErrTakeProfitTooSmall = errors.New("take-profit below minimum")
)

// LotSize converts a stop distance and a dollar risk budget into a volume.
// The raw volume is rounded down to the lot step so the budget is never
// exceeded, then clamped to the instrument's lot bounds. A non-positive
// stop distance yields the minimum lot.
func LotSize(stopDistance, riskDollars float64, inst market.InstrumentMeta) float64 {
	if stopDistance <= 0 || math.IsNaN(stopDistance) || inst.ContractSize <= 0 {
		return inst.MinLot
	}

	raw := decimal.NewFromFloat(riskDollars).Div(
		decimal.NewFromFloat(stopDistance).Mul(decimal.NewFromFloat(inst.ContractSize)))

	lots := raw
	if inst.LotStep > 0 {
		step := decimal.NewFromFloat(inst.LotStep)
		lots = raw.Div(step).Floor().Mul(step)
	}

	min := decimal.NewFromFloat(inst.MinLot)
	if lots.LessThan(min) {
		lots = min
	}
	if inst.MaxLot > 0 {
		if max := decimal.NewFromFloat(inst.MaxLot); lots.GreaterThan(max) {
			lots = max
		}
	}
	return lots.InexactFloat64()
}

// MinAcceptableTPDollars is the smallest take-profit worth placing:
// factor*atr*dollarsPerPoint*volume, never below floor. Degenerate atr or
// volume returns floor.
func MinAcceptableTPDollars(atr, volume, factor, floor, dollarsPerPoint float64) float64 {
	if atr <= 0 || volume <= 0 {
		return floor
	}
	return math.Max(factor*atr*dollarsPerPoint*volume, floor)
}

// TakeProfitDollars values a take-profit distance for volume lots.
func TakeProfitDollars(tpDistance, volume, dollarsPerPoint float64) float64 {
	return decimal.NewFromFloat(tpDistance).
		Mul(decimal.NewFromFloat(dollarsPerPoint)).
		Mul(decimal.NewFromFloat(volume)).
		InexactFloat64()
}

// RejectTakeProfit is true only when tpDollars is below both the dynamic
// minimum and the absolute floor. Clearing either one is enough.
func RejectTakeProfit(tpDollars, dynamicMin, absoluteFloor float64) bool {
	return tpDollars < dynamicMin && tpDollars < absoluteFloor
}

// Sizer turns signals into risked orders for one instrument.
type Sizer struct {
	Instrument  market.InstrumentMeta
	RiskDollars float64

	TPFactor        float64
	TPFloor         float64
	AbsoluteTPFloor float64

	// MinStopDistance widens stops tighter than this before sizing.
	MinStopDistance float64
}

// RiskedOrder is a sized order ready to send.
type RiskedOrder struct {
	Direction          market.Direction
	Volume             float64
	EntryPrice         float64
	StopLoss           float64
	TakeProfit         float64
	StopDistance       float64
	TakeProfitDistance float64

	RiskDollars  float64
	TPDollars    float64
	MinTPDollars float64
}

func (o RiskedOrder) String() string {
	return fmt.Sprintf("%s %.2f lots @ %.2f sl=%.2f tp=%.2f risk=$%.2f tp=$%.2f",
		o.Direction, o.Volume, o.EntryPrice, o.StopLoss, o.TakeProfit, o.RiskDollars, o.TPDollars)
}

func (s Sizer) LotSize(stopDistance float64) float64 {
	return LotSize(stopDistance, s.RiskDollars, s.Instrument)
}

// Size prices sig at entry. The stop distance is measured from entry to
// the signal's stop and widened to MinStopDistance; the stop and target
// prices sent to the broker are placed at those distances from entry.
func (s Sizer) Size(sig strategy.Signal, entry float64) (RiskedOrder, error) {
	if !sig.Actionable() {
		return RiskedOrder{}, ErrNotActionable
	}

	sd := math.Abs(entry - sig.StopLoss)
	if sd < s.MinStopDistance {
		sd = s.MinStopDistance
	}
	vol := s.LotSize(sd)
	dpp := s.Instrument.ContractSize
	sign := sig.Direction.Sign()

	o := RiskedOrder{
		Direction:          sig.Direction,
		Volume:             vol,
		EntryPrice:         entry,
		StopLoss:           entry - sign*sd,
		TakeProfit:         entry + sign*sig.TakeProfitDistance,
		StopDistance:       sd,
		TakeProfitDistance: sig.TakeProfitDistance,
		RiskDollars:        sd * dpp * vol,
		TPDollars:          TakeProfitDollars(sig.TakeProfitDistance, vol, dpp),
		MinTPDollars:       MinAcceptableTPDollars(sig.ATR, vol, s.TPFactor, s.TPFloor, dpp),
	}

	if RejectTakeProfit(o.TPDollars, o.MinTPDollars, s.AbsoluteTPFloor) {
		return o, fmt.Errorf("%w: $%.2f < min $%.2f and floor $%.2f",
			ErrTakeProfitTooSmall, o.TPDollars, o.MinTPDollars, s.AbsoluteTPFloor)
	}
	return o, nil
}
