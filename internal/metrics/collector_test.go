package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/coreswitch/pbx/internal/pbx"
)

type fakeRegistry struct {
	count, capacity      int
	counts               map[pbx.State]int
	notificationsEmitted uint64
	callsConnected       uint64
}

func (f *fakeRegistry) Count() int                     { return f.count }
func (f *fakeRegistry) Capacity() int                  { return f.capacity }
func (f *fakeRegistry) StateCounts() map[pbx.State]int { return f.counts }
func (f *fakeRegistry) NotificationsEmitted() uint64   { return f.notificationsEmitted }
func (f *fakeRegistry) CallsConnected() uint64         { return f.callsConnected }

func TestCollectorGathersRegistryStats(t *testing.T) {
	reg := &fakeRegistry{
		count: 3, capacity: 1024,
		counts: map[pbx.State]int{
			pbx.StateOnHook:    1,
			pbx.StateConnected: 2,
		},
		notificationsEmitted: 42,
		callsConnected:       7,
	}
	c := NewCollector(reg, time.Now().Add(-10*time.Second))

	ch := make(chan prometheus.Metric, 16)
	go func() {
		c.Collect(ch)
		close(ch)
	}()

	var sawRegistered, sawCapacity, sawNotifications, sawCallsConnected bool
	for m := range ch {
		var pm dto.Metric
		if err := m.Write(&pm); err != nil {
			t.Fatalf("writing metric: %v", err)
		}
		desc := m.Desc().String()
		switch {
		case strings.Contains(desc, "pbx_registered_extensions"):
			sawRegistered = true
			if pm.GetGauge().GetValue() != 3 {
				t.Errorf("registered extensions = %v, want 3", pm.GetGauge().GetValue())
			}
		case strings.Contains(desc, "pbx_extension_capacity"):
			sawCapacity = true
			if pm.GetGauge().GetValue() != 1024 {
				t.Errorf("capacity = %v, want 1024", pm.GetGauge().GetValue())
			}
		case strings.Contains(desc, "pbx_notifications_emitted_total"):
			sawNotifications = true
			if pm.GetCounter().GetValue() != 42 {
				t.Errorf("notifications emitted = %v, want 42", pm.GetCounter().GetValue())
			}
		case strings.Contains(desc, "pbx_calls_connected_total"):
			sawCallsConnected = true
			if pm.GetCounter().GetValue() != 7 {
				t.Errorf("calls connected = %v, want 7", pm.GetCounter().GetValue())
			}
		}
	}

	if !sawRegistered || !sawCapacity || !sawNotifications || !sawCallsConnected {
		t.Error("expected registered-extensions, capacity, notifications, and calls-connected metrics to all be emitted")
	}
}

func TestCollectorDescribeEmitsAllDescriptors(t *testing.T) {
	c := NewCollector(&fakeRegistry{counts: map[pbx.State]int{}}, time.Now())

	ch := make(chan *prometheus.Desc, 16)
	go func() {
		c.Describe(ch)
		close(ch)
	}()

	n := 0
	for range ch {
		n++
	}
	if n != 6 {
		t.Errorf("Describe emitted %d descriptors, want 6", n)
	}
}
