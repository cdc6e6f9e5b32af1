package costs_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"reelsmith/internal/config"
	"reelsmith/internal/costs"
	"reelsmith/internal/services"
	"reelsmith/internal/services/imagegen"
	"reelsmith/internal/services/motiongen"
	"reelsmith/internal/services/musicgen"
	"reelsmith/internal/services/scriptgen"
	"reelsmith/internal/services/speech"
	"reelsmith/internal/testsupport"
)

func fullPricing(cfg *config.Config) []config.PriceRule {
	return []config.PriceRule{
		{Provider: scriptgen.ProviderLabel, Model: cfg.Providers.Script.Model, Resource: costs.ResourceScript, UnitUSD: 0.002},
		{Provider: speech.ProviderLabel, Model: cfg.Providers.Speech.Model, Resource: costs.ResourceNarration, UnitUSD: 0.015},
		{Provider: imagegen.ProviderLabel, Model: cfg.Providers.Image.Model, Resource: costs.ResourceImage, UnitUSD: 0.04},
		{Provider: motiongen.ProviderLabel, Model: cfg.Providers.Motion.Model, Resource: costs.ResourceMotion, UnitUSD: 0.25},
		{Provider: musicgen.ProviderLabel, Model: cfg.Providers.Music.Model, Resource: costs.ResourceMusic, UnitUSD: 0.08},
	}
}

func TestPreflightPassesWithFullPricing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Pricing = fullPricing(cfg)

	table := costs.NewPriceTable(cfg.Pricing)
	if err := costs.Preflight(table, cfg); err != nil {
		t.Fatalf("Preflight: %v", err)
	}
}

func TestPreflightFailsOnMissingRule(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	rules := fullPricing(cfg)
	// Drop the motion rule; pre-flight must fail before any call is made.
	cfg.Pricing = append(rules[:3:3], rules[4])

	table := costs.NewPriceTable(cfg.Pricing)
	err := costs.Preflight(table, cfg)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestUnitPriceLookup(t *testing.T) {
	table := costs.NewPriceTable([]config.PriceRule{
		{Provider: "openrouter", Model: "m1", Resource: "script", UnitUSD: 0.002},
	})

	price, err := table.UnitPrice("openrouter", "m1", "script")
	if err != nil {
		t.Fatalf("UnitPrice: %v", err)
	}
	if price != 0.002 {
		t.Fatalf("expected 0.002, got %f", price)
	}

	if _, err := table.UnitPrice("openrouter", "m2", "script"); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration for unknown model, got %v", err)
	}
}

func TestLedgerRecordsAsynchronously(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	output := testsupport.NewOutput(t, st, "soap making")

	ledger := costs.NewLedger(st, nil)
	ledger.Record(output.ID, services.Cost{
		Resource:  costs.ResourceImage,
		Provider:  imagegen.ProviderLabel,
		Model:     "standard",
		Units:     1,
		AmountUSD: 0.04,
		Metadata:  map[string]string{"scene": "0"},
	})

	deadline := time.Now().Add(5 * time.Second)
	for {
		entries, err := st.ListCostEntries(context.Background(), output.ID)
		if err != nil {
			t.Fatalf("ListCostEntries: %v", err)
		}
		if len(entries) == 1 {
			if entries[0].AmountUSD != 0.04 {
				t.Fatalf("expected 0.04, got %f", entries[0].AmountUSD)
			}
			if entries[0].MetadataJSON == "" {
				t.Fatal("expected metadata recorded")
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("ledger entry never arrived")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
