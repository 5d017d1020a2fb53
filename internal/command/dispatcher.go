package command

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openallotment/allotment-core/internal/auth"
	"github.com/openallotment/allotment-core/internal/infrastructure/logging"
	"github.com/openallotment/allotment-core/internal/infrastructure/mqtt"
)

// commandQoS: broker-acknowledged delivery, never retained. A stale
// retained pump command replayed at a reconnecting device would be a
// hazard, not a convenience.
const commandQoS = 1

// Pump actions understood by the device firmware.
const (
	PumpOn  = "on"
	PumpOff = "off"
	PumpRun = "run"
)

// Publisher is the slice of the MQTT client the dispatcher needs.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Authorizer answers device-access questions; auth.Resolver satisfies it.
type Authorizer interface {
	UserCanAccessDeviceByUID(ctx context.Context, userID, deviceUID string) (bool, error)
	TokenCanAccessDevice(ctx context.Context, info *auth.TokenInfo, deviceUID string) (bool, error)
}

// Auditor records dispatched commands; the audit package satisfies it.
type Auditor interface {
	Record(ctx context.Context, event, actorID, actorName, subject string, detail map[string]any)
}

// PumpMirror receives pump events for the time-series backend; the
// InfluxDB client satisfies it.
type PumpMirror interface {
	WritePumpEvent(deviceUID, action string, seconds float64, requestedBy string)
}

// Identity is who is asking for a command. Either a session-backed user
// (UserID set), an API token (Token set), or the irrigation engine
// (System set, which bypasses access checks).
type Identity struct {
	UserID string
	Token  *auth.TokenInfo
	Name   string
	System bool
}

// SystemIdentity is the identity the irrigation engine dispatches under.
func SystemIdentity() Identity {
	return Identity{System: true, Name: "system"}
}

// requestedBy is the attribution string stamped into command payloads.
func (id Identity) requestedBy() string {
	if id.Name != "" {
		return id.Name
	}
	if id.Token != nil {
		return id.Token.Name
	}
	return id.UserID
}

// Dispatcher turns authorized control requests into MQTT publications.
//
// Publication is at-least-once with no device acknowledgment: "sent" and
// "executed" are different facts, and callers must not conflate them.
type Dispatcher struct {
	publisher Publisher
	access    Authorizer
	logger    *logging.Logger
	audit     Auditor
	mirror    PumpMirror
}

// NewDispatcher creates a command dispatcher.
func NewDispatcher(publisher Publisher, access Authorizer, logger *logging.Logger) *Dispatcher {
	return &Dispatcher{
		publisher: publisher,
		access:    access,
		logger:    logger,
	}
}

// SetAuditor wires an audit recorder. Safe to leave unset.
func (d *Dispatcher) SetAuditor(a Auditor) {
	d.audit = a
}

// SetMirror wires an optional pump-event mirror. Safe to leave unset.
func (d *Dispatcher) SetMirror(m PumpMirror) {
	d.mirror = m
}

// Pump publishes a pump command to pump/{uid}.
//
// Actions: on, off, run. A run carries its duration in seconds; on and
// off carry none. Seconds outside (0, 3600] reject a run.
func (d *Dispatcher) Pump(ctx context.Context, id Identity, deviceUID, action string, seconds float64) error {
	switch action {
	case PumpOn, PumpOff:
		seconds = 0
	case PumpRun:
		if seconds <= 0 || seconds > 3600 {
			return fmt.Errorf("%w: %g seconds", ErrInvalidDuration, seconds)
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}

	if err := d.authorize(ctx, id, deviceUID); err != nil {
		return err
	}

	payload := map[string]any{
		"command":      "pump",
		"action":       action,
		"requested_by": id.requestedBy(),
	}
	if action == PumpRun {
		payload["seconds"] = seconds
	}

	if err := d.publish(mqtt.Topics{}.PumpCommand(deviceUID), payload); err != nil {
		return err
	}

	d.logger.Info("pump command dispatched",
		"device_uid", deviceUID,
		"action", action,
		"requested_by", id.requestedBy(),
	)
	d.record(ctx, "command.pump", id, deviceUID, map[string]any{
		"action":  action,
		"seconds": seconds,
	})
	if d.mirror != nil {
		d.mirror.WritePumpEvent(deviceUID, action, seconds, id.requestedBy())
	}
	return nil
}

// Send publishes an arbitrary command to cmd/{uid}/{command}, merging
// extra fields into the payload alongside the command name.
func (d *Dispatcher) Send(ctx context.Context, id Identity, deviceUID, command string, extra map[string]any) error {
	if command == "" || strings.ContainsAny(command, "/+#") {
		return fmt.Errorf("%w: %q", ErrInvalidCommand, command)
	}

	if err := d.authorize(ctx, id, deviceUID); err != nil {
		return err
	}

	payload := map[string]any{"command": command}
	for k, v := range extra {
		if k == "command" {
			continue
		}
		payload[k] = v
	}

	if err := d.publish(mqtt.Topics{}.DeviceCommand(deviceUID, command), payload); err != nil {
		return err
	}

	d.logger.Info("command dispatched",
		"device_uid", deviceUID,
		"command", command,
		"requested_by", id.requestedBy(),
	)
	d.record(ctx, "command.send", id, deviceUID, map[string]any{"command": command})
	return nil
}

// authorize checks the identity against the device. System callers are
// trusted; tokens need device access plus the write:commands scope; users
// need site access to the device.
func (d *Dispatcher) authorize(ctx context.Context, id Identity, deviceUID string) error {
	if id.System {
		return nil
	}

	if id.Token != nil {
		ok, err := d.access.TokenCanAccessDevice(ctx, id.Token, deviceUID)
		if err != nil {
			return fmt.Errorf("authorizing token for %s: %w", deviceUID, err)
		}
		if !ok || !id.Token.Scopes.Allows("write", "commands") {
			return fmt.Errorf("%w: %s", ErrNotAuthorized, deviceUID)
		}
		return nil
	}

	if id.UserID != "" {
		ok, err := d.access.UserCanAccessDeviceByUID(ctx, id.UserID, deviceUID)
		if err != nil {
			return fmt.Errorf("authorizing user for %s: %w", deviceUID, err)
		}
		if !ok {
			return fmt.Errorf("%w: %s", ErrNotAuthorized, deviceUID)
		}
		return nil
	}

	return fmt.Errorf("%w: no identity", ErrNotAuthorized)
}

func (d *Dispatcher) publish(topic string, payload map[string]any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding command payload: %w", err)
	}
	if err := d.publisher.Publish(topic, raw, commandQoS, false); err != nil {
		return fmt.Errorf("publishing to %s: %w", topic, err)
	}
	return nil
}

func (d *Dispatcher) record(ctx context.Context, event string, id Identity, subject string, detail map[string]any) {
	if d.audit == nil {
		return
	}
	d.audit.Record(ctx, event, id.UserID, id.requestedBy(), subject, detail)
}
