// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package verdict

import (
	"github.com/luxfi/metric"

	"github.com/luxfi/arbiter/utils/wrappers"
)

type verdictMetrics struct {
	submitted metric.Counter
	settled   metric.Counter
}

func newVerdictMetrics(registerer metric.Registerer) (*verdictMetrics, error) {
	m := &verdictMetrics{
		submitted: metric.NewCounter(metric.CounterOpts{
			Name: "verdicts_submitted",
			Help: "Number of verdicts submitted to the ledger",
		}),
		settled: metric.NewCounter(metric.CounterOpts{
			Name: "verdicts_settled",
			Help: "Number of disputes settled via the verdict orchestrator",
		}),
	}

	errs := wrappers.Errs{}
	if registerer != nil {
		errs.Add(
			registerer.Register(metric.AsCollector(m.submitted)),
			registerer.Register(metric.AsCollector(m.settled)),
		)
	}
	return m, errs.Err
}
