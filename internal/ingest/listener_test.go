package ingest

import (
	"context"
	"testing"

	"github.com/openallotment/allotment-core/internal/infrastructure/logging"
	"github.com/openallotment/allotment-core/internal/infrastructure/mqtt"
)

type fakeSubscriber struct {
	subscribed   []string
	unsubscribed []string
	qos          byte
	handler      mqtt.MessageHandler
}

func (f *fakeSubscriber) Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error {
	f.subscribed = append(f.subscribed, topic)
	f.qos = qos
	f.handler = handler
	return nil
}

func (f *fakeSubscriber) Unsubscribe(topic string) error {
	f.unsubscribed = append(f.unsubscribed, topic)
	return nil
}

func testListener(t *testing.T) (*Listener, *fakeSubscriber) {
	t.Helper()

	db := testDB(t)
	seedDevice(t, db, "plot7-esp32")

	sub := &fakeSubscriber{}
	l := NewListener(sub, testProcessor(t, db), 1, logging.Default())
	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { _ = l.Stop() })

	return l, sub
}

func TestListenerSubscribesWildcard(t *testing.T) {
	_, sub := testListener(t)

	if len(sub.subscribed) != 1 || sub.subscribed[0] != "sensors/+/data" {
		t.Errorf("subscribed to %v, want [sensors/+/data]", sub.subscribed)
	}
	if sub.qos != 1 {
		t.Errorf("qos = %d, want 1", sub.qos)
	}
}

func TestListenerHandlesMessage(t *testing.T) {
	_, sub := testListener(t)

	payload := []byte(`{"device_uid":"plot7-esp32","sensors":[{"id":"soil-1","type":"moisture","value":31.5}]}`)
	if err := sub.handler("sensors/plot7-esp32/data", payload); err != nil {
		t.Errorf("handler error = %v", err)
	}
}

// Validation failures are dropped, not surfaced as handler errors: there
// is no point asking the broker to redeliver a message that will never
// validate.
func TestListenerDropsInvalidMessages(t *testing.T) {
	_, sub := testListener(t)

	tests := []struct {
		name    string
		topic   string
		payload string
	}{
		{"garbage payload", "sensors/plot7-esp32/data", "not json"},
		{"unknown device", "sensors/ghost/data", `{"device_uid":"ghost","sensors":[]}`},
		{"unprovisioned device", "sensors/x/data", `{"device_uid":"esp32-UNKNOWN","sensors":[]}`},
		{"malformed topic", "sensors/data", `{"device_uid":"plot7-esp32","sensors":[]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := sub.handler(tt.topic, []byte(tt.payload)); err != nil {
				t.Errorf("handler error = %v, want nil (dropped)", err)
			}
		})
	}
}

func TestListenerStopUnsubscribes(t *testing.T) {
	l, sub := testListener(t)

	if err := l.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if len(sub.unsubscribed) != 1 || sub.unsubscribed[0] != "sensors/+/data" {
		t.Errorf("unsubscribed from %v, want [sensors/+/data]", sub.unsubscribed)
	}
}
