package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	recipesCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recipes_created_total",
			Help: "Total number of recipes stored",
		},
	)

	recipeLinesAdded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recipes_lines_added_total",
			Help: "Instructions and ingredients appended to existing recipes",
		},
		[]string{"kind"},
	)
)
