package irrigation

import (
	"context"
	"sync"
	"time"

	"github.com/openallotment/allotment-core/internal/command"
	"github.com/openallotment/allotment-core/internal/device"
	"github.com/openallotment/allotment-core/internal/infrastructure/logging"
	"github.com/openallotment/allotment-core/internal/telemetry"
)

// moistureType is the sensor type the loop waters on.
const moistureType = "moisture"

// DeviceLister is the slice of the device repository the engine needs.
type DeviceLister interface {
	List(ctx context.Context) ([]device.Device, error)
}

// ReadingSource supplies the latest readings per device.
type ReadingSource interface {
	LatestByDeviceAndType(ctx context.Context, deviceID, sensorType string) ([]telemetry.Reading, error)
}

// Pumper dispatches pump commands; the command dispatcher satisfies it.
type Pumper interface {
	Pump(ctx context.Context, id command.Identity, deviceUID, action string, seconds float64) error
}

// Options configures the watering loop.
type Options struct {
	// MoistureThreshold is the average moisture below which a device's
	// pump is run.
	MoistureThreshold float64

	// PumpSeconds is the run duration per trigger.
	PumpSeconds float64

	// PollInterval is how often latest readings are evaluated.
	PollInterval time.Duration

	// SkipInterval is the minimum gap between triggers for one device
	// while its moisture stays low.
	SkipInterval time.Duration
}

// Engine is the irrigation loop: poll latest moisture per device, run the
// pump when the average drops below the threshold, back off between runs.
//
// Decisions use each sensor's latest value, not history: a device with
// three soil probes waters on their mean. A reading above the threshold
// resets the device's back-off so the next dry spell triggers promptly.
type Engine struct {
	devices  DeviceLister
	readings ReadingSource
	pump     Pumper
	opts     Options
	logger   *logging.Logger

	mu          sync.Mutex
	lastTrigger map[string]time.Time

	now    func() time.Time
	cancel context.CancelFunc
	done   chan struct{}
}

// NewEngine creates the irrigation engine.
func NewEngine(devices DeviceLister, readings ReadingSource, pump Pumper, opts Options, logger *logging.Logger) *Engine {
	return &Engine{
		devices:     devices,
		readings:    readings,
		pump:        pump,
		opts:        opts,
		logger:      logger,
		lastTrigger: make(map[string]time.Time),
		now:         time.Now,
	}
}

// Start launches the polling loop. One evaluation runs immediately, then
// every PollInterval until the context is cancelled or Stop is called.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	e.done = make(chan struct{})

	e.logger.Info("irrigation engine started",
		"threshold", e.opts.MoistureThreshold,
		"pump_seconds", e.opts.PumpSeconds,
		"poll_interval", e.opts.PollInterval.String(),
	)

	go func() {
		defer close(e.done)

		e.Evaluate(ctx)

		ticker := time.NewTicker(e.opts.PollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				e.Evaluate(ctx)
			}
		}
	}()
}

// Stop cancels the loop and waits for the current evaluation to finish.
func (e *Engine) Stop() {
	if e.cancel == nil {
		return
	}
	e.cancel()
	<-e.done
	e.logger.Info("irrigation engine stopped")
}

// Evaluate runs one pass over every active device. Failures are logged
// per device; one broken device never starves the rest.
func (e *Engine) Evaluate(ctx context.Context) {
	devices, err := e.devices.List(ctx)
	if err != nil {
		e.logger.Error("listing devices for irrigation", "error", err)
		return
	}

	for _, d := range devices {
		if !d.Active {
			continue
		}
		e.evaluateDevice(ctx, d)
	}
}

func (e *Engine) evaluateDevice(ctx context.Context, d device.Device) {
	readings, err := e.readings.LatestByDeviceAndType(ctx, d.ID, moistureType)
	if err != nil {
		e.logger.Error("reading moisture for irrigation", "device_uid", d.UID, "error", err)
		return
	}
	if len(readings) == 0 {
		return
	}

	var sum float64
	for _, r := range readings {
		sum += r.Value
	}
	avg := sum / float64(len(readings))

	if avg >= e.opts.MoistureThreshold {
		e.clearBackoff(d.UID)
		return
	}

	if wait, inBackoff := e.backoffRemaining(d.UID); inBackoff {
		e.logger.Info("moisture low but inside back-off",
			"device_uid", d.UID,
			"average", avg,
			"retry_in", wait.String(),
		)
		return
	}

	e.logger.Info("moisture below threshold, running pump",
		"device_uid", d.UID,
		"average", avg,
		"threshold", e.opts.MoistureThreshold,
		"seconds", e.opts.PumpSeconds,
	)

	if err := e.pump.Pump(ctx, command.SystemIdentity(), d.UID, command.PumpRun, e.opts.PumpSeconds); err != nil {
		e.logger.Error("dispatching irrigation pump run", "device_uid", d.UID, "error", err)
		return
	}
	e.markTriggered(d.UID)
}

func (e *Engine) backoffRemaining(uid string) (time.Duration, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	last, ok := e.lastTrigger[uid]
	if !ok {
		return 0, false
	}
	elapsed := e.now().Sub(last)
	if elapsed >= e.opts.SkipInterval {
		return 0, false
	}
	return e.opts.SkipInterval - elapsed, true
}

func (e *Engine) markTriggered(uid string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastTrigger[uid] = e.now()
}

func (e *Engine) clearBackoff(uid string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.lastTrigger, uid)
}
