package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"stock-monitor/config"
	"stock-monitor/internal/contract"
	"stock-monitor/internal/dto"
	"stock-monitor/internal/model"
	"stock-monitor/internal/repository"
	"stock-monitor/pkg/cache"
	"stock-monitor/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQuoteRepo struct {
	mu      sync.Mutex
	samples map[string]*dto.PriceSample
	errs    map[string]error
	started chan struct{}
	gate    chan struct{}
}

func newFakeQuoteRepo() *fakeQuoteRepo {
	return &fakeQuoteRepo{
		samples: make(map[string]*dto.PriceSample),
		errs:    make(map[string]error),
	}
}

func (f *fakeQuoteRepo) setPrice(code string, current, open float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.samples[code] = &dto.PriceSample{
		Code:         code,
		Name:         "Instrument " + code,
		CurrentPrice: current,
		OpenPrice:    open,
	}
}

func (f *fakeQuoteRepo) setError(code string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[code] = err
}

// holdNextFetch makes the next Fetch signal its arrival and block until the
// release channel is closed.
func (f *fakeQuoteRepo) holdNextFetch() (started, release chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = make(chan struct{})
	f.gate = make(chan struct{})
	return f.started, f.gate
}

func (f *fakeQuoteRepo) Fetch(ctx context.Context, code string) (*dto.PriceSample, error) {
	f.mu.Lock()
	started, gate := f.started, f.gate
	f.started, f.gate = nil, nil
	err := f.errs[code]
	sample, ok := f.samples[code]
	f.mu.Unlock()

	if started != nil {
		close(started)
	}
	if gate != nil {
		<-gate
	}

	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("unknown code %s", code)
	}
	copied := *sample
	return &copied, nil
}

func (f *fakeQuoteRepo) Source() string {
	return "fake"
}

type fakeInstrumentRepo struct {
	mu         sync.Mutex
	saved      []model.InstrumentConfig
	deleted    []string
	savedOrder []string
}

func (f *fakeInstrumentRepo) Load(ctx context.Context) ([]model.InstrumentConfig, error) {
	return nil, nil
}

func (f *fakeInstrumentRepo) Upsert(ctx context.Context, cfg *model.InstrumentConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, *cfg)
	return nil
}

func (f *fakeInstrumentRepo) Update(ctx context.Context, cfg *model.InstrumentConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, *cfg)
	return nil
}

func (f *fakeInstrumentRepo) Delete(ctx context.Context, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, code)
	return nil
}

func (f *fakeInstrumentRepo) SaveOrder(ctx context.Context, codes []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.savedOrder = append([]string(nil), codes...)
	return nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	alerts []contract.Alert
	action contract.Action
	fired  chan contract.Alert
}

func newFakeNotifier(action contract.Action) *fakeNotifier {
	return &fakeNotifier{
		action: action,
		fired:  make(chan contract.Alert, 16),
	}
}

func (f *fakeNotifier) Notify(ctx context.Context, alert contract.Alert) (contract.Action, error) {
	f.mu.Lock()
	f.alerts = append(f.alerts, alert)
	f.mu.Unlock()
	f.fired <- alert
	return f.action, nil
}

func (f *fakeNotifier) Send(ctx context.Context, text string) error {
	return nil
}

func newTestEngine(t *testing.T, notifier contract.Notifier) (*MonitorEngine, *fakeQuoteRepo, *fakeInstrumentRepo) {
	t.Helper()

	cfg := &config.Config{}
	cfg.Monitor.PollInterval = 3 * time.Second
	cfg.Monitor.DefaultFallbackThreshold = 2.0
	cfg.Monitor.QuoteSource = dto.QuoteSourceSina

	log, err := logger.New("error", "console")
	require.NoError(t, err)

	quoteRepo := newFakeQuoteRepo()
	instrumentRepo := &fakeInstrumentRepo{}
	repo := &repository.Repository{
		InstrumentRepo: instrumentRepo,
		QuoteRepo:      quoteRepo,
	}

	engine := NewMonitorEngine(cfg, log, repo, cache.NewCache(time.Minute, time.Minute), notifier)
	engine.nowFn = func() time.Time { return marketTime(24, 10, 0) }
	return engine, quoteRepo, instrumentRepo
}

func TestMonitorEngine_AddInstrument(t *testing.T) {
	t.Run("seeds state and persists", func(t *testing.T) {
		engine, quoteRepo, instrumentRepo := newTestEngine(t, newFakeNotifier(contract.ActionNone))
		quoteRepo.setPrice("600000", 100, 100)

		cfg, err := engine.AddInstrument(context.Background(), "600000", "", nil)
		require.NoError(t, err)
		assert.Equal(t, "600000", cfg.Code)
		assert.Equal(t, "Instrument 600000", cfg.Name, "display name comes from the seeding sample")
		assert.Equal(t, 2.0, cfg.FallbackThresholdPercent)
		assert.True(t, cfg.Enabled)
		require.NotEmpty(t, instrumentRepo.saved)
		last := instrumentRepo.saved[len(instrumentRepo.saved)-1]
		assert.Equal(t, "Instrument 600000", last.Name, "the resolved name is persisted")

		snap, err := engine.Get("600000")
		require.NoError(t, err)
		require.NotNil(t, snap.State)
		assert.Equal(t, 100.0, snap.State.OpenPrice)
	})

	t.Run("threshold override", func(t *testing.T) {
		engine, quoteRepo, _ := newTestEngine(t, newFakeNotifier(contract.ActionNone))
		quoteRepo.setPrice("600001", 50, 50)

		threshold := 7.5
		cfg, err := engine.AddInstrument(context.Background(), "600001", "", &threshold)
		require.NoError(t, err)
		assert.Equal(t, 7.5, cfg.FallbackThresholdPercent)
	})

	t.Run("seeding failure keeps the config tracked", func(t *testing.T) {
		engine, quoteRepo, instrumentRepo := newTestEngine(t, newFakeNotifier(contract.ActionNone))
		quoteRepo.setError("600002", fmt.Errorf("provider down"))

		cfg, err := engine.AddInstrument(context.Background(), "600002", "", nil)
		assert.Error(t, err)
		require.NotNil(t, cfg, "the persisted config is still returned")
		assert.Len(t, instrumentRepo.saved, 1)

		snap, err := engine.Get("600002")
		require.NoError(t, err)
		assert.Nil(t, snap.State, "no session state until a sample succeeds")
	})

	t.Run("re-add of a removed instrument starts a fresh baseline", func(t *testing.T) {
		engine, quoteRepo, _ := newTestEngine(t, newFakeNotifier(contract.ActionNone))
		quoteRepo.setPrice("600003", 100, 100)

		_, err := engine.AddInstrument(context.Background(), "600003", "", nil)
		require.NoError(t, err)

		engine.mu.Lock()
		engine.running = true
		engine.mu.Unlock()
		quoteRepo.setPrice("600003", 110, 100)
		sample, err := quoteRepo.Fetch(context.Background(), "600003")
		require.NoError(t, err)
		engine.applySample(sample)
		engine.Stop()

		require.NoError(t, engine.RemoveInstrument(context.Background(), "600003"))

		quoteRepo.setPrice("600003", 110, 100)
		_, err = engine.AddInstrument(context.Background(), "600003", "", nil)
		require.NoError(t, err)

		snap, err := engine.Get("600003")
		require.NoError(t, err)
		assert.Equal(t, 100.0, snap.State.OpenPrice, "open comes from the provider, not the session history")
		assert.Equal(t, 0.0, snap.State.MaxRisePercent, "the session peak does not survive a remove")
	})
}

func TestMonitorEngine_RemoveInstrument(t *testing.T) {
	engine, quoteRepo, instrumentRepo := newTestEngine(t, newFakeNotifier(contract.ActionNone))
	quoteRepo.setPrice("600000", 100, 100)

	_, err := engine.AddInstrument(context.Background(), "600000", "", nil)
	require.NoError(t, err)

	require.NoError(t, engine.RemoveInstrument(context.Background(), "600000"))
	assert.Equal(t, []string{"600000"}, instrumentRepo.deleted)

	_, err = engine.Get("600000")
	assert.ErrorIs(t, err, ErrInstrumentNotFound)

	err = engine.RemoveInstrument(context.Background(), "600000")
	assert.ErrorIs(t, err, ErrInstrumentNotFound)
}

func TestMonitorEngine_PinInstrument(t *testing.T) {
	engine, quoteRepo, instrumentRepo := newTestEngine(t, newFakeNotifier(contract.ActionNone))
	for i, code := range []string{"600000", "600001", "600002"} {
		quoteRepo.setPrice(code, float64(100+i), float64(100+i))
		_, err := engine.AddInstrument(context.Background(), code, "", nil)
		require.NoError(t, err)
	}

	require.NoError(t, engine.PinInstrument(context.Background(), "600002"))

	snaps := engine.Snapshot()
	require.Len(t, snaps, 3)
	assert.Equal(t, "600002", snaps[0].Config.Code)
	assert.Equal(t, "600000", snaps[1].Config.Code)
	assert.Equal(t, "600001", snaps[2].Config.Code)
	assert.Equal(t, []string{"600002", "600000", "600001"}, instrumentRepo.savedOrder)

	// Pinning the front entry is a no-op and persists nothing new.
	instrumentRepo.savedOrder = nil
	require.NoError(t, engine.PinInstrument(context.Background(), "600002"))
	assert.Nil(t, instrumentRepo.savedOrder)
}

func TestMonitorEngine_ApplySample(t *testing.T) {
	t.Run("discarded when stopped", func(t *testing.T) {
		engine, quoteRepo, _ := newTestEngine(t, newFakeNotifier(contract.ActionNone))
		quoteRepo.setPrice("600000", 100, 100)
		_, err := engine.AddInstrument(context.Background(), "600000", "", nil)
		require.NoError(t, err)

		engine.applySample(&dto.PriceSample{Code: "600000", CurrentPrice: 110, OpenPrice: 100})

		snap, err := engine.Get("600000")
		require.NoError(t, err)
		assert.Equal(t, 100.0, snap.State.CurrentPrice, "a result after stop never mutates state")
	})

	t.Run("discarded for a removed instrument", func(t *testing.T) {
		engine, _, _ := newTestEngine(t, newFakeNotifier(contract.ActionNone))
		engine.mu.Lock()
		engine.running = true
		engine.mu.Unlock()

		engine.applySample(&dto.PriceSample{Code: "999999", CurrentPrice: 110, OpenPrice: 100})

		_, err := engine.Get("999999")
		assert.ErrorIs(t, err, ErrInstrumentNotFound)
		engine.Stop()
	})
}

func TestMonitorEngine_AlertFlow(t *testing.T) {
	notifier := newFakeNotifier(contract.ActionMuteToday)
	engine, quoteRepo, _ := newTestEngine(t, notifier)
	quoteRepo.setPrice("600000", 100, 100)

	_, err := engine.AddInstrument(context.Background(), "600000", "", nil)
	require.NoError(t, err)

	engine.mu.Lock()
	engine.running = true
	engine.mu.Unlock()
	defer engine.Stop()

	engine.applySample(&dto.PriceSample{Code: "600000", CurrentPrice: 110, OpenPrice: 100})
	engine.applySample(&dto.PriceSample{Code: "600000", CurrentPrice: 107, OpenPrice: 100})

	select {
	case alert := <-notifier.fired:
		assert.Equal(t, "600000", alert.Code)
		assert.InDelta(t, 10.0, alert.MaxRisePercent, 1e-9)
		assert.InDelta(t, 7.0, alert.CurrentRise, 1e-9)
		assert.InDelta(t, 3.0, alert.FallbackPercent, 1e-9)
		assert.Equal(t, 2.0, alert.Threshold)
	case <-time.After(2 * time.Second):
		t.Fatal("expected an alert")
	}

	// The notifier asked for a mute; it is applied asynchronously.
	assert.Eventually(t, func() bool {
		snap, err := engine.Get("600000")
		if err != nil || snap.State == nil {
			return false
		}
		return snap.State.MutedUntil != nil
	}, 2*time.Second, 10*time.Millisecond)

	// A further fallback while muted stays silent.
	engine.applySample(&dto.PriceSample{Code: "600000", CurrentPrice: 104, OpenPrice: 100})
	select {
	case <-notifier.fired:
		t.Fatal("muted instrument must not alert")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestMonitorEngine_RunCycleToleratesFetchFailure(t *testing.T) {
	notifier := newFakeNotifier(contract.ActionNone)
	engine, quoteRepo, _ := newTestEngine(t, notifier)
	quoteRepo.setPrice("600000", 100, 100)
	quoteRepo.setPrice("600001", 50, 50)

	for _, code := range []string{"600000", "600001"} {
		_, err := engine.AddInstrument(context.Background(), code, "", nil)
		require.NoError(t, err)
	}

	quoteRepo.setError("600000", fmt.Errorf("provider down"))
	quoteRepo.setPrice("600001", 55, 50)

	engine.mu.Lock()
	engine.running = true
	engine.gen++
	gen := engine.gen
	engine.baseCtx = context.Background()
	engine.mu.Unlock()
	defer engine.Stop()

	engine.runCycle(gen)

	snap, err := engine.Get("600001")
	require.NoError(t, err)
	assert.Equal(t, 55.0, snap.State.CurrentPrice, "one failing instrument never aborts the pass")

	engine.mu.Lock()
	assert.NotNil(t, engine.timer, "the next cycle is scheduled even after failures")
	engine.mu.Unlock()
}

func TestMonitorEngine_RestartDuringFetchKeepsOneChain(t *testing.T) {
	engine, quoteRepo, _ := newTestEngine(t, newFakeNotifier(contract.ActionNone))
	quoteRepo.setPrice("600000", 100, 100)
	_, err := engine.AddInstrument(context.Background(), "600000", "", nil)
	require.NoError(t, err)

	engine.mu.Lock()
	engine.running = true
	engine.gen++
	staleGen := engine.gen
	engine.baseCtx = context.Background()
	engine.mu.Unlock()

	started, release := quoteRepo.holdNextFetch()
	done := make(chan struct{})
	go func() {
		engine.runCycle(staleGen)
		close(done)
	}()
	<-started

	// Stop, then start again while the fetch is still in flight, the way
	// Restart does.
	engine.Stop()
	engine.mu.Lock()
	engine.running = true
	engine.gen++
	engine.mu.Unlock()
	defer engine.Stop()

	close(release)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("the held cycle never finished")
	}

	engine.mu.Lock()
	assert.Nil(t, engine.timer, "a superseded cycle must not arm a timer next to the restarted chain")
	engine.mu.Unlock()
}

func TestMonitorEngine_SettingsAndState(t *testing.T) {
	engine, quoteRepo, _ := newTestEngine(t, newFakeNotifier(contract.ActionNone))
	quoteRepo.setPrice("600000", 100, 100)
	_, err := engine.AddInstrument(context.Background(), "600000", "", nil)
	require.NoError(t, err)

	t.Run("set threshold", func(t *testing.T) {
		require.NoError(t, engine.SetThreshold(context.Background(), "600000", 4.0))
		snap, err := engine.Get("600000")
		require.NoError(t, err)
		assert.Equal(t, 4.0, snap.Config.FallbackThresholdPercent)

		assert.Error(t, engine.SetThreshold(context.Background(), "600000", 0))
		assert.ErrorIs(t, engine.SetThreshold(context.Background(), "999999", 4.0), ErrInstrumentNotFound)
	})

	t.Run("set enabled", func(t *testing.T) {
		require.NoError(t, engine.SetEnabled(context.Background(), "600000", false))
		snap, err := engine.Get("600000")
		require.NoError(t, err)
		assert.False(t, snap.Config.Enabled)
		require.NotNil(t, snap.State, "disabling keeps the session state")

		require.NoError(t, engine.SetEnabled(context.Background(), "600000", true))
	})

	t.Run("toggle alert", func(t *testing.T) {
		enabled, err := engine.ToggleAlert("600000")
		require.NoError(t, err)
		assert.False(t, enabled)

		enabled, err = engine.ToggleAlert("600000")
		require.NoError(t, err)
		assert.True(t, enabled)

		_, err = engine.ToggleAlert("999999")
		assert.ErrorIs(t, err, ErrNoState)
	})

	t.Run("mute today", func(t *testing.T) {
		require.NoError(t, engine.MuteToday("600000"))
		snap, err := engine.Get("600000")
		require.NoError(t, err)
		require.NotNil(t, snap.State.MutedUntil)
		assert.Equal(t, marketTime(24, 15, 0), *snap.State.MutedUntil)

		assert.ErrorIs(t, engine.MuteToday("999999"), ErrNoState)
	})
}

func TestMonitorEngine_Status(t *testing.T) {
	engine, quoteRepo, _ := newTestEngine(t, newFakeNotifier(contract.ActionNone))
	quoteRepo.setPrice("600000", 100, 100)
	_, err := engine.AddInstrument(context.Background(), "600000", "", nil)
	require.NoError(t, err)

	status := engine.Status()
	assert.False(t, status.Running)
	assert.True(t, status.MarketOpen)
	assert.Equal(t, "fake", status.QuoteSource)
	assert.Equal(t, 1, status.InstrumentCount)
	assert.Equal(t, "3s", status.PollInterval)
}
