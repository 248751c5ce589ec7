package logger

import (
	"context"
	"strings"
	"sync/atomic"
	"time"
)

var (
	ordersPrepared  int64
	ordersRejected  int64
	ordersSubmitted int64
	reconnects      int64
	warnsPipeline   int64
	warnsStream     int64
	errorsPipeline  int64
	errorsStream    int64
)

func recordWarn(component string) {
	if strings.Contains(component, "stream") {
		atomic.AddInt64(&warnsStream, 1)
	} else {
		atomic.AddInt64(&warnsPipeline, 1)
	}
}

func recordError(component string) {
	if strings.Contains(component, "stream") {
		atomic.AddInt64(&errorsStream, 1)
	} else {
		atomic.AddInt64(&errorsPipeline, 1)
	}
}

func IncrementOrderPrepared() {
	atomic.AddInt64(&ordersPrepared, 1)
}

func IncrementOrderRejected() {
	atomic.AddInt64(&ordersRejected, 1)
}

func IncrementOrderSubmitted() {
	atomic.AddInt64(&ordersSubmitted, 1)
}

func IncrementReconnect() {
	atomic.AddInt64(&reconnects, 1)
}

// Counters is a point-in-time snapshot of the process counters.
type Counters struct {
	OrdersPrepared  int64
	OrdersRejected  int64
	OrdersSubmitted int64
	Reconnects      int64
	WarnsPipeline   int64
	WarnsStream     int64
	ErrorsPipeline  int64
	ErrorsStream    int64
}

// StartCounterReport publishes counter deltas as metrics on the given
// interval until the context is cancelled.
func StartCounterReport(ctx context.Context, log *Log, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		prev := SnapshotCounters()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				prev = reportCounters(log, prev)
			}
		}
	}()
}

// reportCounters emits the counters that moved since the previous snapshot
// and returns the current one.
func reportCounters(log *Log, prev Counters) Counters {
	cur := SnapshotCounters()

	emit := func(metric string, delta int64) {
		if delta != 0 {
			log.LogMetric("counters", metric, delta, "counter", Fields{})
		}
	}
	emit("orders_prepared", cur.OrdersPrepared-prev.OrdersPrepared)
	emit("orders_rejected", cur.OrdersRejected-prev.OrdersRejected)
	emit("orders_submitted", cur.OrdersSubmitted-prev.OrdersSubmitted)
	emit("reconnects", cur.Reconnects-prev.Reconnects)
	emit("warns_pipeline", cur.WarnsPipeline-prev.WarnsPipeline)
	emit("warns_stream", cur.WarnsStream-prev.WarnsStream)
	emit("errors_pipeline", cur.ErrorsPipeline-prev.ErrorsPipeline)
	emit("errors_stream", cur.ErrorsStream-prev.ErrorsStream)

	return cur
}

// SnapshotCounters returns the current counter values.
func SnapshotCounters() Counters {
	return Counters{
		OrdersPrepared:  atomic.LoadInt64(&ordersPrepared),
		OrdersRejected:  atomic.LoadInt64(&ordersRejected),
		OrdersSubmitted: atomic.LoadInt64(&ordersSubmitted),
		Reconnects:      atomic.LoadInt64(&reconnects),
		WarnsPipeline:   atomic.LoadInt64(&warnsPipeline),
		WarnsStream:     atomic.LoadInt64(&warnsStream),
		ErrorsPipeline:  atomic.LoadInt64(&errorsPipeline),
		ErrorsStream:    atomic.LoadInt64(&errorsStream),
	}
}
