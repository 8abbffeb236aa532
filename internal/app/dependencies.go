package app

import (
	"fmt"
	"time"

	"github.com/klokku/venuebook/internal/config"
	"github.com/klokku/venuebook/internal/event_bus"
	"github.com/klokku/venuebook/internal/utils"
	"github.com/klokku/venuebook/pkg/booking"
	"github.com/klokku/venuebook/pkg/calendar"
	"github.com/klokku/venuebook/pkg/conflict"
	"github.com/klokku/venuebook/pkg/executor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Dependencies holds all services and handlers for the application.
type Dependencies struct {
	Clock    utils.Clock
	EventBus *event_bus.EventBus
	// Metrics is nil when metrics are disabled.
	Metrics *prometheus.Registry

	Repository booking.Repository
	Board      *booking.Board
	Detector   *conflict.Detector
	Executor   *executor.Executor

	CalendarSession *calendar.Session
	CalendarHandler *calendar.Handler
}

// BuildDependencies initializes and wires all application services and handlers.
func BuildDependencies(repo booking.Repository, cfg config.Application) (*Dependencies, error) {
	grid, err := cfg.Calendar.Grid()
	if err != nil {
		return nil, fmt.Errorf("invalid calendar config: %w", err)
	}

	deps := &Dependencies{}
	deps.Clock = &utils.SystemClock{}
	deps.EventBus = event_bus.NewEventBus()

	deps.Repository = repo
	deps.Board = booking.NewBoard()
	deps.Detector = conflict.NewDetector(deps.Board, grid, cfg.Calendar.Statuses()...)

	var registerer prometheus.Registerer
	if cfg.Metrics.Enabled {
		deps.Metrics = prometheus.NewRegistry()
		deps.Metrics.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		registerer = deps.Metrics
	}
	deps.Executor = executor.New(deps.Board, deps.Repository, deps.EventBus, executor.Options{
		MaxHistorySize: cfg.Calendar.MaxHistorySize,
		PersistTimeout: time.Duration(cfg.Calendar.PersistTimeoutSeconds) * time.Second,
		Clock:          deps.Clock,
		Registerer:     registerer,
	})

	deps.CalendarSession = calendar.NewSession(grid, deps.Board, deps.Detector, deps.Executor, deps.EventBus)
	deps.CalendarHandler = calendar.NewHandler(deps.CalendarSession)

	return deps, nil
}
