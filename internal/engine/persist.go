package engine

import (
	"context"
	"time"

	"github.com/Alias1177/CardPredictor/internal/ledger"
	"github.com/Alias1177/CardPredictor/internal/model"
	"github.com/Alias1177/CardPredictor/internal/store"
)

func (e *Engine) markDirty(keys ...string) {
	for _, k := range keys {
		e.dirty[k] = true
	}
}

func (e *Engine) record(key string) any {
	switch key {
	case store.KeyLedger:
		return e.ledger.Snapshot()
	case store.KeyRules:
		return e.ruleSet
	case store.KeyQuarantine:
		return e.quarantine.Entries()
	case store.KeyCooldown:
		return e.quarantine.CooldownUntil()
	case store.KeyPredictions:
		return e.book.Snapshot()
	case store.KeyReportMarkers:
		return e.sched.Markers()
	case store.KeyLastReset:
		return e.sched.LastReset()
	case store.KeySettings:
		return e.settings
	}
	return nil
}

// persist writes every dirty record. A failed write is logged and the record
// stays dirty so the next mutation retries it; memory remains authoritative.
func (e *Engine) persist(ctx context.Context) {
	for key := range e.dirty {
		if err := e.store.Save(ctx, key, e.record(key)); err != nil {
			e.logger.Error().Err(err).Str("key", key).Msg("Failed to persist record")
			continue
		}
		delete(e.dirty, key)
	}
}

func (e *Engine) load(ctx context.Context) {
	var snap ledger.Snapshot
	if e.loadKey(ctx, store.KeyLedger, &snap) {
		e.ledger.Restore(snap)
	}

	var rs model.RuleSet
	if e.loadKey(ctx, store.KeyRules, &rs) {
		e.ruleSet = rs
	}

	var entries map[string]int
	if e.loadKey(ctx, store.KeyQuarantine, &entries) {
		e.quarantine.RestoreEntries(entries)
	}

	var until time.Time
	if e.loadKey(ctx, store.KeyCooldown, &until) {
		e.quarantine.RestoreCooldown(until)
	}

	var preds []model.Prediction
	if e.loadKey(ctx, store.KeyPredictions, &preds) {
		e.book.Restore(preds)
	}

	var markers map[string]bool
	if e.loadKey(ctx, store.KeyReportMarkers, &markers) {
		e.sched.RestoreMarkers(markers)
	}

	var lastReset string
	if e.loadKey(ctx, store.KeyLastReset, &lastReset) {
		e.sched.RestoreLastReset(lastReset)
	}

	var settings Settings
	if e.loadKey(ctx, store.KeySettings, &settings) {
		e.settings = settings
	}

	e.logger.Info().
		Int("observations", len(e.ledger.Observations())).
		Int("rules", len(e.ruleSet.Rules)).
		Int("predictions", e.book.Tally().Total).
		Msg("State loaded")
}

func (e *Engine) loadKey(ctx context.Context, key string, v any) bool {
	found, err := e.store.Load(ctx, key, v)
	if err != nil {
		e.logger.Error().Err(err).Str("key", key).Msg("Failed to load record, starting empty")
		return false
	}
	return found
}
