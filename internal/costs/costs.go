// Package costs implements the price table consulted before any paid
// provider call and the ledger that records spend afterwards.
package costs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"reelsmith/internal/config"
	"reelsmith/internal/logging"
	"reelsmith/internal/services"
	"reelsmith/internal/services/imagegen"
	"reelsmith/internal/services/motiongen"
	"reelsmith/internal/services/musicgen"
	"reelsmith/internal/services/scriptgen"
	"reelsmith/internal/services/speech"
	"reelsmith/internal/store"
)

// Resource names used across the pipeline. Price rules and ledger entries
// share this vocabulary, and each adapter stamps the matching resource on
// the costs it returns.
const (
	ResourceScript    = "script"
	ResourceNarration = "narration"
	ResourceImage     = "image"
	ResourceMotion    = "motion"
	ResourceMusic     = "music"
)

type priceKey struct {
	provider string
	model    string
	resource string
}

// PriceTable resolves unit prices from the configured pricing rules. It
// implements services.Pricer.
type PriceTable struct {
	rules map[priceKey]float64
}

// NewPriceTable builds a lookup table from configuration.
func NewPriceTable(rules []config.PriceRule) *PriceTable {
	table := &PriceTable{rules: make(map[priceKey]float64, len(rules))}
	for _, rule := range rules {
		table.rules[priceKey{rule.Provider, rule.Model, rule.Resource}] = rule.UnitUSD
	}
	return table
}

// UnitPrice returns the configured unit price for a triple, or an
// ErrConfiguration-wrapped error when no rule covers it.
func (t *PriceTable) UnitPrice(provider, model, resource string) (float64, error) {
	if price, ok := t.rules[priceKey{provider, model, resource}]; ok {
		return price, nil
	}
	return 0, services.Wrap(services.ErrConfiguration, "", "price lookup",
		fmt.Sprintf("no price rule for provider=%s model=%s resource=%s", provider, model, resource), nil)
}

// Preflight confirms a price rule exists for every (provider, model,
// resource) triple the pipeline will bill against. Called before any stage
// touches a paid endpoint so a configuration gap costs nothing.
func Preflight(table services.Pricer, cfg *config.Config) error {
	checks := []struct {
		label    string
		model    string
		resource string
	}{
		{scriptgen.ProviderLabel, cfg.Providers.Script.Model, ResourceScript},
		{speech.ProviderLabel, cfg.Providers.Speech.Model, ResourceNarration},
		{imagegen.ProviderLabel, cfg.Providers.Image.Model, ResourceImage},
		{motiongen.ProviderLabel, cfg.Providers.Motion.Model, ResourceMotion},
		{musicgen.ProviderLabel, cfg.Providers.Music.Model, ResourceMusic},
	}
	for _, check := range checks {
		if _, err := table.UnitPrice(check.label, check.model, check.resource); err != nil {
			return err
		}
	}
	return nil
}

// Ledger records provider spend in the store. Writes are fire and forget:
// a ledger failure is logged but never fails the stage that earned the
// cost, since the money is already spent either way.
type Ledger struct {
	store  *store.Store
	logger *slog.Logger
}

// NewLedger builds a ledger backed by the given store.
func NewLedger(st *store.Store, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Ledger{store: st, logger: logging.NewComponentLogger(logger, "costs")}
}

// Record persists one cost asynchronously.
func (l *Ledger) Record(outputID string, cost services.Cost) {
	if l == nil || l.store == nil {
		return
	}
	entry := &store.CostEntry{
		OutputID:  outputID,
		Resource:  cost.Resource,
		Provider:  cost.Provider,
		Model:     cost.Model,
		Units:     cost.Units,
		AmountUSD: cost.AmountUSD,
	}
	if len(cost.Metadata) > 0 {
		if data, err := json.Marshal(cost.Metadata); err == nil {
			entry.MetadataJSON = string(data)
		}
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := l.store.AddCostEntry(ctx, entry); err != nil {
			l.logger.Warn("cost entry dropped",
				logging.String(logging.FieldOutputID, outputID),
				logging.String("resource", cost.Resource),
				logging.Error(err))
		}
	}()
}
