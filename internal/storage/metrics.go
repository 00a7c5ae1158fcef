package storage

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	loads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pirat_store_loads_total",
		Help: "Количество чтений коллекций.",
	}, []string{"collection"})

	saves = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pirat_store_saves_total",
		Help: "Количество записей коллекций.",
	}, []string{"collection"})

	corruptPayloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pirat_store_corrupt_payloads_total",
		Help: "Количество повреждённых полезных нагрузок, заменённых пустой коллекцией.",
	}, []string{"collection"})

	changeEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pirat_store_change_events_total",
		Help: "Количество опубликованных событий изменения.",
	}, []string{"collection"})
)
