package config

import (
	"github.com/rustyeddy/trendtrader/ledger"
	"github.com/rustyeddy/trendtrader/market"
	"github.com/rustyeddy/trendtrader/reconcile"
	"github.com/rustyeddy/trendtrader/risk"
)

// Instrument returns the contract metadata for the configured symbol.
func (c *Config) Instrument() market.InstrumentMeta {
	m, _ := market.Lookup(c.Symbol)
	return m
}

func (c *Config) Sizer() risk.Sizer {
	return risk.Sizer{
		Instrument:      c.Instrument(),
		RiskDollars:     c.Risk.RiskDollars,
		TPFactor:        c.Risk.TPFactor,
		TPFloor:         c.Risk.TPFloor,
		AbsoluteTPFloor: c.Risk.AbsoluteTPFloor,
		MinStopDistance: c.Risk.MinStopDistance,
	}
}

func (c *Config) ReconcileOptions() reconcile.Options {
	return reconcile.Options{
		RetryDelay:  c.Reconcile.RetryDelay.D(),
		SettleDelay: c.Reconcile.SettleDelay.D(),
	}
}

func (c *Config) LedgerOptions() ledger.Options {
	return ledger.Options{
		ContractSize: c.Instrument().ContractSize,
		MaxAttempts:  c.Ledger.MaxAttempts,
		MinBackoff:   c.Ledger.MinBackoff.D(),
		MaxBackoff:   c.Ledger.MaxBackoff.D(),
	}
}

// OpenLedgerStore opens the configured ledger store.
func (c *Config) OpenLedgerStore() (ledger.Store, error) {
	switch c.Ledger.Type {
	case "sqlite":
		return ledger.NewSQLiteStore(c.Ledger.Path)
	case "memory":
		return ledger.NewMemoryStore(), nil
	default:
		s, err := ledger.NewCSVStore(c.Ledger.Path)
		if err != nil {
			return nil, err
		}
		s.SetLockStale(c.Ledger.LockStale.D())
		return s, nil
	}
}
