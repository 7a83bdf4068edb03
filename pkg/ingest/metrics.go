// Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ingestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cmtsmon_ingest_duration_seconds",
			Help:    "Time taken by one ingestion run",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		},
	)

	ingestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cmtsmon_ingest_total",
			Help: "Total number of ingestion runs",
		},
		[]string{"status"}, // success or error
	)

	ingestDevices = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cmtsmon_ingest_devices",
			Help: "Number of devices in the last assembled snapshot",
		},
	)

	coercionSubstitutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cmtsmon_coercion_substitutions_total",
			Help: "Values replaced by the sentinel during type coercion",
		},
		[]string{"column"},
	)

	sinkErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cmtsmon_sink_errors_total",
			Help: "Failed publications of the recent view",
		},
	)
)
