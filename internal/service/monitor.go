package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"stock-monitor/config"
	"stock-monitor/internal/contract"
	"stock-monitor/internal/dto"
	"stock-monitor/internal/model"
	"stock-monitor/internal/repository"
	"stock-monitor/pkg/cache"
	"stock-monitor/pkg/common"
	"stock-monitor/pkg/logger"
	"stock-monitor/pkg/utils"
)

var (
	ErrInstrumentNotFound = fmt.Errorf("instrument not found")
	ErrNoState            = fmt.Errorf("instrument has no session state yet")
)

// InstrumentSnapshot joins a config with a copy of its session state.
// State is nil until the first successful sample since add or restart.
type InstrumentSnapshot struct {
	Config model.InstrumentConfig `json:"config"`
	State  *model.InstrumentState `json:"state,omitempty"`
}

// MonitorEngine owns the tracked instruments and drives the poll loop.
//
// Exactly one poll cycle is ever in flight: the next cycle is scheduled with
// time.AfterFunc only after the previous one fully completes, so cadence can
// change every tick and slow fetches never overlap. Control operations and
// state mutation are serialized under one mutex; fetches happen outside the
// lock and their results are discarded when the engine stopped meanwhile.
type MonitorEngine struct {
	cfg           *config.Config
	log           *logger.Logger
	repo          repository.InstrumentRepository
	clock         *MarketClock
	policy        *AlertPolicy
	notifier      contract.Notifier
	inmemoryCache cache.Cache

	mu        sync.Mutex
	running   bool
	gen       uint64
	timer     *time.Timer
	quoteRepo repository.QuoteRepository
	interval  time.Duration
	configs   []*model.InstrumentConfig
	states    map[string]*model.InstrumentState

	baseCtx context.Context
	nowFn   func() time.Time
}

func NewMonitorEngine(
	cfg *config.Config,
	log *logger.Logger,
	repo *repository.Repository,
	inmemoryCache cache.Cache,
	notifier contract.Notifier,
) *MonitorEngine {
	clock := NewMarketClock()
	return &MonitorEngine{
		cfg:           cfg,
		log:           log,
		repo:          repo.InstrumentRepo,
		clock:         clock,
		policy:        NewAlertPolicy(clock),
		notifier:      notifier,
		inmemoryCache: inmemoryCache,
		quoteRepo:     repo.QuoteRepo,
		interval:      cfg.Monitor.PollInterval,
		states:        make(map[string]*model.InstrumentState),
		baseCtx:       context.Background(),
		nowFn:         utils.TimeNowMarket,
	}
}

// Load restores the tracked instrument configs from storage. Session states
// are not persisted and start empty.
func (e *MonitorEngine) Load(ctx context.Context) error {
	configs, err := e.repo.Load(ctx)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.configs = e.configs[:0]
	for i := range configs {
		cfg := configs[i]
		e.configs = append(e.configs, &cfg)
	}
	e.log.Info("Loaded instruments", logger.IntField("count", len(e.configs)))
	return nil
}

// Start transitions to running, rebinds the quote source and interval from
// configuration and kicks off one immediate poll cycle. No-op when already
// running.
func (e *MonitorEngine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return nil
	}

	quoteRepo, err := repository.NewQuoteRepository(e.cfg, e.log)
	if err != nil {
		return fmt.Errorf("failed to bind quote source: %w", err)
	}

	e.baseCtx = ctx
	e.quoteRepo = quoteRepo
	e.interval = e.cfg.Monitor.PollInterval
	e.running = true
	e.gen++
	gen := e.gen

	e.log.Info("Monitor started",
		logger.StringField("quote_source", quoteRepo.Source()),
		logger.StringField("poll_interval", e.interval.String()),
	)

	utils.GoSafe(func() {
		e.runCycle(gen)
	})
	return nil
}

// Stop cancels any pending cycle. Idempotent. An in-flight fetch is not
// interrupted; its result is discarded at apply time.
func (e *MonitorEngine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running {
		return
	}
	e.running = false
	e.gen++
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.log.Info("Monitor stopped")
}

// Restart applies changed settings by a stop-then-start cycle so they take
// effect on an immediate poll instead of the in-flight timer.
func (e *MonitorEngine) Restart(ctx context.Context) error {
	e.Stop()
	return e.Start(ctx)
}

func (e *MonitorEngine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

func (e *MonitorEngine) Status() dto.MonitorStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return dto.MonitorStatus{
		Running:         e.running,
		MarketOpen:      e.clock.IsOpen(e.nowFn()),
		QuoteSource:     e.quoteRepo.Source(),
		PollInterval:    e.interval.String(),
		InstrumentCount: len(e.configs),
	}
}

// runCycle performs one pass over all enabled instruments and reschedules
// itself. A single instrument's fetch failure never aborts the pass; the
// reschedule step is always reached while the engine is running. gen ties
// the cycle to the Start that launched it: a cycle whose fetch straddles a
// stop/start pair must not re-arm next to the chain the new Start began.
func (e *MonitorEngine) runCycle(gen uint64) {
	e.mu.Lock()
	if !e.running || gen != e.gen {
		e.mu.Unlock()
		return
	}
	ctx := e.baseCtx
	quoteRepo := e.quoteRepo
	codes := make([]string, 0, len(e.configs))
	for _, cfg := range e.configs {
		if cfg.Enabled {
			codes = append(codes, cfg.Code)
		}
	}
	e.mu.Unlock()

	for _, code := range codes {
		sample, err := quoteRepo.Fetch(ctx, code)
		if err != nil {
			e.log.WarnContext(ctx, "Failed to fetch sample, skipping instrument for this cycle",
				logger.StringField("code", code),
				logger.ErrorField(err),
			)
			continue
		}
		e.applySample(sample)
	}

	e.schedule(gen)
}

// applySample folds one sample into the instrument's state and evaluates the
// alert policy. Results arriving after Stop, or for instruments removed
// mid-cycle, are discarded.
func (e *MonitorEngine) applySample(sample *dto.PriceSample) {
	e.mu.Lock()

	if !e.running {
		e.mu.Unlock()
		return
	}
	cfg := e.findConfigLocked(sample.Code)
	if cfg == nil {
		e.mu.Unlock()
		return
	}

	state, ok := e.states[sample.Code]
	if !ok {
		state = model.NewInstrumentState(sample)
		e.states[sample.Code] = state
	} else {
		state.Apply(sample)
	}

	e.inmemoryCache.Set(fmt.Sprintf(common.KeyLastSample, sample.Code), sample, 0)

	now := e.nowFn()
	fire := e.policy.ShouldAlert(cfg, state, now)

	var alert contract.Alert
	if fire {
		alert = contract.Alert{
			Code:            cfg.Code,
			Name:            cfg.Name,
			CurrentPrice:    state.CurrentPrice,
			MaxRisePercent:  state.MaxRisePercent,
			CurrentRise:     state.CurrentRisePercent,
			FallbackPercent: state.FallbackPercent,
			Threshold:       cfg.FallbackThresholdPercent,
			FiredAt:         now,
		}
	}
	ctx := e.baseCtx
	e.mu.Unlock()

	if fire {
		e.dispatchAlert(ctx, alert)
	}
}

// dispatchAlert delivers the alert without blocking the poll loop. The
// throttle stamp was already recorded with the decision; the returned action
// is applied when a synchronous notifier reports one.
func (e *MonitorEngine) dispatchAlert(ctx context.Context, alert contract.Alert) {
	utils.GoSafe(func() {
		action, err := e.notifier.Notify(ctx, alert)
		if err != nil {
			e.log.ErrorContextWithAlert(ctx, "Failed to deliver alert",
				logger.StringField("code", alert.Code),
				logger.ErrorField(err),
			)
			return
		}
		switch action {
		case contract.ActionMuteToday:
			if err := e.MuteToday(alert.Code); err != nil {
				e.log.WarnContext(ctx, "Failed to mute instrument", logger.StringField("code", alert.Code), logger.ErrorField(err))
			}
		case contract.ActionViewDetail, contract.ActionNone:
			// Rendering is the notifier's concern.
		}
	})
}

// schedule arms the timer for the next cycle unless Stop was invoked during
// the pass, or the pass belongs to a superseded start.
func (e *MonitorEngine) schedule(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running || gen != e.gen {
		return
	}
	delay := e.clock.NextPollDelay(e.nowFn(), e.interval)
	e.timer = time.AfterFunc(delay, func() {
		utils.GoSafe(func() {
			e.runCycle(gen)
		})
	})
}

// AddInstrument upserts the config, persists it, then performs one seeding
// fetch so the session state exists right away. When the seeding fetch fails
// the config intentionally stays persisted and the error is returned; the
// caller decides whether to roll back.
func (e *MonitorEngine) AddInstrument(ctx context.Context, code, name string, thresholdOverride *float64) (*model.InstrumentConfig, error) {
	threshold := e.cfg.Monitor.DefaultFallbackThreshold
	if thresholdOverride != nil && *thresholdOverride > 0 {
		threshold = *thresholdOverride
	}

	e.mu.Lock()
	cfg := e.findConfigLocked(code)
	if cfg != nil {
		cfg.Name = name
		cfg.FallbackThresholdPercent = threshold
		cfg.Enabled = true
	} else {
		cfg = &model.InstrumentConfig{
			Code:                     code,
			Name:                     name,
			FallbackThresholdPercent: threshold,
			Enabled:                  true,
			Position:                 len(e.configs),
		}
		e.configs = append(e.configs, cfg)
	}
	persisted := *cfg
	quoteRepo := e.quoteRepo
	e.mu.Unlock()

	if err := e.repo.Upsert(ctx, &persisted); err != nil {
		return nil, fmt.Errorf("failed to persist instrument %s: %w", code, err)
	}

	sample, err := quoteRepo.Fetch(ctx, code)
	if err != nil {
		// Known quirk: the config stays tracked so the next poll cycle can
		// retry; the caller surfaces the failure.
		return &persisted, fmt.Errorf("failed to seed instrument %s: %w", code, err)
	}

	e.mu.Lock()
	if cfg.Name == "" && sample.Name != "" {
		cfg.Name = sample.Name
	}
	e.states[code] = model.NewInstrumentState(sample)
	e.inmemoryCache.Set(fmt.Sprintf(common.KeyLastSample, code), sample, 0)
	added := *cfg
	e.mu.Unlock()

	if added.Name != persisted.Name {
		if err := e.repo.Update(ctx, &added); err != nil {
			e.log.WarnContext(ctx, "Failed to persist resolved instrument name",
				logger.StringField("code", code),
				logger.ErrorField(err),
			)
		}
	}

	e.log.InfoContext(ctx, "Instrument added",
		logger.StringField("code", code),
		logger.Float64Field("threshold", threshold),
	)
	return &added, nil
}

// RemoveInstrument deletes the config and destroys the session state, so a
// later re-add starts from a fresh open/high baseline.
func (e *MonitorEngine) RemoveInstrument(ctx context.Context, code string) error {
	e.mu.Lock()
	idx := e.findConfigIndexLocked(code)
	if idx < 0 {
		e.mu.Unlock()
		return ErrInstrumentNotFound
	}
	e.configs = append(e.configs[:idx], e.configs[idx+1:]...)
	delete(e.states, code)
	e.mu.Unlock()

	e.inmemoryCache.Delete(fmt.Sprintf(common.KeyLastSample, code))

	if err := e.repo.Delete(ctx, code); err != nil {
		return err
	}
	e.log.InfoContext(ctx, "Instrument removed", logger.StringField("code", code))
	return nil
}

// PinInstrument moves the instrument to the front of the display order and
// persists the new ordering. No-op when already first or absent.
func (e *MonitorEngine) PinInstrument(ctx context.Context, code string) error {
	e.mu.Lock()
	idx := e.findConfigIndexLocked(code)
	if idx <= 0 {
		e.mu.Unlock()
		return nil
	}
	pinned := e.configs[idx]
	e.configs = append(e.configs[:idx], e.configs[idx+1:]...)
	e.configs = append([]*model.InstrumentConfig{pinned}, e.configs...)
	codes := make([]string, len(e.configs))
	for i, cfg := range e.configs {
		cfg.Position = i
		codes[i] = cfg.Code
	}
	e.mu.Unlock()

	return e.repo.SaveOrder(ctx, codes)
}

// SetEnabled gates polling for the instrument; the session state is kept.
func (e *MonitorEngine) SetEnabled(ctx context.Context, code string, enabled bool) error {
	e.mu.Lock()
	cfg := e.findConfigLocked(code)
	if cfg == nil {
		e.mu.Unlock()
		return ErrInstrumentNotFound
	}
	cfg.Enabled = enabled
	persisted := *cfg
	e.mu.Unlock()

	return e.repo.Update(ctx, &persisted)
}

// SetThreshold changes the fallback threshold and persists it.
func (e *MonitorEngine) SetThreshold(ctx context.Context, code string, threshold float64) error {
	if threshold <= 0 {
		return fmt.Errorf("threshold must be positive")
	}

	e.mu.Lock()
	cfg := e.findConfigLocked(code)
	if cfg == nil {
		e.mu.Unlock()
		return ErrInstrumentNotFound
	}
	cfg.FallbackThresholdPercent = threshold
	persisted := *cfg
	e.mu.Unlock()

	return e.repo.Update(ctx, &persisted)
}

// MuteToday suppresses the instrument's alerts until the next market close.
func (e *MonitorEngine) MuteToday(code string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	state, ok := e.states[code]
	if !ok {
		return ErrNoState
	}
	e.policy.MuteToday(state, e.nowFn())
	return nil
}

// ToggleAlert flips the per-instrument alert switch and reports the new
// value.
func (e *MonitorEngine) ToggleAlert(code string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	state, ok := e.states[code]
	if !ok {
		return false, ErrNoState
	}
	return e.policy.ToggleAlert(state), nil
}

// Snapshot returns the tracked instruments in display order, each config
// paired with a copy of its session state.
func (e *MonitorEngine) Snapshot() []InstrumentSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snapshots := make([]InstrumentSnapshot, 0, len(e.configs))
	for _, cfg := range e.configs {
		snapshots = append(snapshots, InstrumentSnapshot{
			Config: *cfg,
			State:  e.states[cfg.Code].Clone(),
		})
	}
	return snapshots
}

// Get returns one instrument's snapshot.
func (e *MonitorEngine) Get(code string) (*InstrumentSnapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	cfg := e.findConfigLocked(code)
	if cfg == nil {
		return nil, ErrInstrumentNotFound
	}
	return &InstrumentSnapshot{Config: *cfg, State: e.states[code].Clone()}, nil
}

// LastSample returns the most recent successful sample for the code, if any.
func (e *MonitorEngine) LastSample(code string) (*dto.PriceSample, bool) {
	return cache.GetFromCache[*dto.PriceSample](e.inmemoryCache, fmt.Sprintf(common.KeyLastSample, code))
}

// Preview fetches a one-off sample without tracking the code. Add flows use
// it to confirm the code resolves and to obtain the display name.
func (e *MonitorEngine) Preview(ctx context.Context, code string) (*dto.PriceSample, error) {
	e.mu.Lock()
	quoteRepo := e.quoteRepo
	e.mu.Unlock()
	return quoteRepo.Fetch(ctx, code)
}

func (e *MonitorEngine) findConfigLocked(code string) *model.InstrumentConfig {
	if idx := e.findConfigIndexLocked(code); idx >= 0 {
		return e.configs[idx]
	}
	return nil
}

func (e *MonitorEngine) findConfigIndexLocked(code string) int {
	for i, cfg := range e.configs {
		if cfg.Code == code {
			return i
		}
	}
	return -1
}
