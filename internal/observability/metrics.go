package observability

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"remindbot/internal/eventbus"
	"remindbot/internal/task/engine"
)

const namespace = "remindbot"

type Metrics struct {
	reg *prometheus.Registry

	created   prometheus.Counter
	delivered prometheus.Counter
	failed    prometheus.Counter
	cancelled prometheus.Counter
	swept     prometheus.Counter
	restored  prometheus.Counter
	tasks     *prometheus.CounterVec
}

// NewMetrics registers the reminder collectors. armed, when set, backs the
// armed-timers gauge.
func NewMetrics(armed func() int) *Metrics {
	reg := prometheus.NewRegistry()
	counter := func(name, help string) prometheus.Counter {
		c := prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Subsystem: "reminders", Name: name, Help: help})
		reg.MustRegister(c)
		return c
	}
	m := &Metrics{
		reg:       reg,
		created:   counter("created_total", "Reminders created."),
		delivered: counter("delivered_total", "Reminders delivered."),
		failed:    counter("delivery_failures_total", "Reminders whose delivery failed after all attempts."),
		cancelled: counter("cancelled_total", "Reminders cancelled by their owner."),
		swept:     counter("swept_total", "Rows removed by the retention sweep."),
		restored:  counter("restored_total", "Rows re-armed at startup."),
		tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "tasks", Name: "total",
			Help: "Executor task outcomes by task name.",
		}, []string{"name", "result"}),
	}
	reg.MustRegister(m.tasks)
	if armed != nil {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "scheduler", Name: "armed_timers",
			Help: "Reminder timers waiting to fire.",
		}, func() float64 { return float64(armed()) }))
	}
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Observe updates counters for one bus event; unknown types are ignored.
func (m *Metrics) Observe(ev eventbus.Event) {
	switch ev.Type {
	case eventbus.ReminderCreated:
		m.created.Inc()
	case eventbus.ReminderDelivered:
		m.delivered.Inc()
	case eventbus.ReminderFailed:
		m.failed.Inc()
	case eventbus.ReminderCancelled:
		m.cancelled.Inc()
	case eventbus.ReminderSwept:
		if d, ok := ev.Data.(eventbus.ReminderData); ok && d.Count > 0 {
			m.swept.Add(float64(d.Count))
		}
	case eventbus.ReminderRestored:
		if d, ok := ev.Data.(eventbus.ReminderData); ok && d.Count > 0 {
			m.restored.Add(float64(d.Count))
		}
	case engine.EventFinished, engine.EventFailed, engine.EventDropped:
		name := "unknown"
		if d, ok := ev.Data.(engine.TaskEvent); ok && d.Name != "" {
			name = d.Name
		}
		m.tasks.WithLabelValues(name, resultOf(ev.Type)).Inc()
	}
}

func resultOf(typ string) string {
	switch typ {
	case engine.EventFinished:
		return "ok"
	case engine.EventFailed:
		return "failed"
	default:
		return "dropped"
	}
}

// Run feeds bus events into the counters until ctx ends.
func (m *Metrics) Run(ctx context.Context, bus eventbus.Bus) error {
	ch, unsub := bus.Subscribe(256)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			m.Observe(ev)
		}
	}
}
