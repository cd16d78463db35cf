// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package scheduler

import (
	"github.com/luxfi/metric"

	"github.com/luxfi/arbiter/utils/wrappers"
)

type queueMetrics struct {
	pending         metric.Gauge
	settled         metric.Counter
	handlerFailures metric.Counter
}

func newQueueMetrics(registerer metric.Registerer) (*queueMetrics, error) {
	m := &queueMetrics{
		pending: metric.NewGauge(metric.GaugeOpts{
			Name: "dispute_queue_pending",
			Help: "Number of disputes awaiting settlement",
		}),
		settled: metric.NewCounter(metric.CounterOpts{
			Name: "dispute_queue_settled",
			Help: "Number of disputes settled by the queue",
		}),
		handlerFailures: metric.NewCounter(metric.CounterOpts{
			Name: "dispute_queue_handler_failures",
			Help: "Number of failed settlement handler invocations",
		}),
	}

	errs := wrappers.Errs{}
	if registerer != nil {
		errs.Add(
			registerer.Register(metric.AsCollector(m.pending)),
			registerer.Register(metric.AsCollector(m.settled)),
			registerer.Register(metric.AsCollector(m.handlerFailures)),
		)
	}
	return m, errs.Err
}
