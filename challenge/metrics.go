// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package challenge

import (
	"github.com/luxfi/metric"

	"github.com/luxfi/arbiter/utils/wrappers"
)

type challengeMetrics struct {
	initiated       metric.Counter
	outliersFlagged metric.Counter
}

func newChallengeMetrics(registerer metric.Registerer) (*challengeMetrics, error) {
	m := &challengeMetrics{
		initiated: metric.NewCounter(metric.CounterOpts{
			Name: "challenges_initiated",
			Help: "Number of disputes opened by this process",
		}),
		outliersFlagged: metric.NewCounter(metric.CounterOpts{
			Name: "challenge_outliers_flagged",
			Help: "Number of miners flagged as outliers during monitoring",
		}),
	}

	errs := wrappers.Errs{}
	if registerer != nil {
		errs.Add(
			registerer.Register(metric.AsCollector(m.initiated)),
			registerer.Register(metric.AsCollector(m.outliersFlagged)),
		)
	}
	return m, errs.Err
}
