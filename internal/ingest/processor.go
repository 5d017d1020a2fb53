package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/openallotment/allotment-core/internal/device"
	"github.com/openallotment/allotment-core/internal/infrastructure/logging"
	"github.com/openallotment/allotment-core/internal/telemetry"
)

// Mirror receives accepted readings after they have been committed to
// SQLite. Writes are fire-and-forget; the InfluxDB client satisfies this.
type Mirror interface {
	WriteSensorReading(deviceUID, sensorName, sensorType string, value float64, unit string, at time.Time)
}

// RejectedSensor names a reading that was dropped and why.
type RejectedSensor struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// Result is the per-message outcome: which sensors landed, which were
// dropped, and whether this message was the device's first.
type Result struct {
	DeviceUID       string           `json:"device_uid"`
	DeviceActivated bool             `json:"device_activated"`
	Accepted        []string         `json:"accepted"`
	Rejected        []RejectedSensor `json:"rejected"`
}

// Processor applies inbound telemetry messages to the store.
//
// Each message runs in a single transaction: activation, last-seen
// refresh, reading appends and last-value updates commit together, so a
// crash mid-batch can't leave a device active with none of its readings
// persisted. Per-sensor validation is independent; one bad sensor never
// blocks its siblings.
type Processor struct {
	db       *sql.DB
	devices  device.Repository
	sensors  device.SensorRepository
	readings telemetry.Repository
	mirror   Mirror
	logger   *logging.Logger
}

// NewProcessor creates an ingest processor.
func NewProcessor(db *sql.DB, devices device.Repository, sensors device.SensorRepository, readings telemetry.Repository, logger *logging.Logger) *Processor {
	return &Processor{
		db:       db,
		devices:  devices,
		sensors:  sensors,
		readings: readings,
		logger:   logger,
	}
}

// SetMirror wires an optional time-series mirror. Safe to leave unset.
func (p *Processor) SetMirror(m Mirror) {
	p.mirror = m
}

// Process applies one inbound message.
//
// Validation failures (unprovisioned UID, unknown device) return typed
// errors the listener logs and drops; there is no error path back to the
// device over this transport. Store failures return untyped errors so the
// message is not treated as handled.
func (p *Processor) Process(ctx context.Context, msg *Message) (*Result, error) {
	if IsUnprovisionedUID(msg.DeviceUID) {
		return nil, fmt.Errorf("%w: %s", ErrUnprovisionedDevice, msg.DeviceUID)
	}

	dev, err := p.devices.GetByUID(ctx, msg.DeviceUID)
	if err != nil {
		if errors.Is(err, device.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownDevice, msg.DeviceUID)
		}
		return nil, fmt.Errorf("looking up device %s: %w", msg.DeviceUID, err)
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning ingest transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	devices := p.devices.WithTx(tx)
	sensors := p.sensors.WithTx(tx)
	readings := p.readings.WithTx(tx)

	now := time.Now().UTC()

	activated, err := devices.Activate(ctx, dev.ID)
	if err != nil {
		return nil, fmt.Errorf("activating device %s: %w", msg.DeviceUID, err)
	}
	if err := devices.TouchLastSeen(ctx, dev.ID, now); err != nil {
		return nil, fmt.Errorf("refreshing last seen for %s: %w", msg.DeviceUID, err)
	}

	result := &Result{
		DeviceUID:       msg.DeviceUID,
		DeviceActivated: activated,
		Accepted:        []string{},
		Rejected:        []RejectedSensor{},
	}
	var committed []telemetry.Reading

	for _, sr := range msg.Sensors {
		sensor, err := sensors.GetByName(ctx, dev.ID, sr.ID)
		if err != nil {
			if errors.Is(err, device.ErrSensorNotFound) {
				result.Rejected = append(result.Rejected, RejectedSensor{ID: sr.ID, Reason: "not registered"})
				continue
			}
			return nil, fmt.Errorf("looking up sensor %s on %s: %w", sr.ID, msg.DeviceUID, err)
		}
		if !sensor.Active {
			result.Rejected = append(result.Rejected, RejectedSensor{ID: sr.ID, Reason: "inactive"})
			continue
		}
		if sensor.SensorType != sr.Type {
			result.Rejected = append(result.Rejected, RejectedSensor{ID: sr.ID, Reason: "type mismatch"})
			continue
		}

		unit := sensor.Unit
		if unit == "" {
			unit = DefaultUnit(sr.Type)
		}

		reading := telemetry.Reading{
			SiteID:     dev.SiteID,
			DeviceID:   dev.ID,
			Time:       now,
			SensorID:   sr.ID,
			SensorName: sensor.SensorName,
			SensorType: sensor.SensorType,
			Value:      sr.Value,
			Unit:       unit,
		}
		if err := readings.Append(ctx, &reading); err != nil {
			return nil, fmt.Errorf("appending reading for %s/%s: %w", msg.DeviceUID, sr.ID, err)
		}
		if err := sensors.UpdateLastReading(ctx, sensor.ID, sr.Value, now); err != nil {
			return nil, fmt.Errorf("updating last reading for %s/%s: %w", msg.DeviceUID, sr.ID, err)
		}

		result.Accepted = append(result.Accepted, sr.ID)
		committed = append(committed, reading)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing ingest transaction: %w", err)
	}

	if activated {
		p.logger.Info("device activated on first message", "device_uid", msg.DeviceUID)
	}
	p.logger.Info("ingest message processed",
		"device_uid", msg.DeviceUID,
		"accepted", len(result.Accepted),
		"rejected", len(result.Rejected),
	)
	for _, r := range result.Rejected {
		p.logger.Warn("sensor reading rejected",
			"device_uid", msg.DeviceUID,
			"sensor", r.ID,
			"reason", r.Reason,
		)
	}

	// Mirror after commit so a slow or failing time-series backend can
	// never hold up or poison the transaction.
	if p.mirror != nil {
		for _, r := range committed {
			p.mirror.WriteSensorReading(msg.DeviceUID, r.SensorName, r.SensorType, r.Value, r.Unit, r.Time)
		}
	}

	return result, nil
}
