package app

import (
	"github.com/gorilla/mux"
	"github.com/klokku/venuebook/internal/config"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// RegisterRoutes registers all API endpoints.
func RegisterRoutes(r *mux.Router, deps *Dependencies, cfg config.Application) {

	// Bookings
	r.HandleFunc("/api/calendar/booking", deps.CalendarHandler.GetBookings).Methods("GET")
	r.HandleFunc("/api/calendar/booking/refresh", deps.CalendarHandler.RefreshBookings).Queries("from", "{from}", "to", "{to}").Methods("POST")

	// Slot selection
	r.HandleFunc("/api/calendar/selection", deps.CalendarHandler.GetSelection).Methods("GET")
	r.HandleFunc("/api/calendar/selection", deps.CalendarHandler.ClearSelection).Methods("DELETE")
	r.HandleFunc("/api/calendar/selection/click", deps.CalendarHandler.Click).Methods("POST")
	r.HandleFunc("/api/calendar/selection/drag-start", deps.CalendarHandler.SelectionDragStart).Methods("POST")
	r.HandleFunc("/api/calendar/selection/drag-move", deps.CalendarHandler.SelectionDragMove).Methods("POST")

	// Booking drag and resize
	r.HandleFunc("/api/calendar/booking/drag-over", deps.CalendarHandler.BookingDragOver).Methods("POST")
	r.HandleFunc("/api/calendar/booking/resize-move", deps.CalendarHandler.ResizeMove).Methods("POST")
	r.HandleFunc("/api/calendar/booking/{bookingId}/drag-start", deps.CalendarHandler.BookingDragStart).Methods("POST")
	r.HandleFunc("/api/calendar/booking/{bookingId}/resize-start", deps.CalendarHandler.ResizeStart).Methods("POST")
	r.HandleFunc("/api/calendar/preview", deps.CalendarHandler.GetPreview).Methods("GET")

	// Global input
	r.HandleFunc("/api/calendar/pointer-up", deps.CalendarHandler.PointerUp).Methods("POST")
	r.HandleFunc("/api/calendar/cancel", deps.CalendarHandler.Cancel).Methods("POST")

	// History
	r.HandleFunc("/api/calendar/history", deps.CalendarHandler.GetHistory).Methods("GET")
	r.HandleFunc("/api/calendar/history", deps.CalendarHandler.ClearHistory).Methods("DELETE")
	r.HandleFunc("/api/calendar/history/undo", deps.CalendarHandler.Undo).Methods("POST")
	r.HandleFunc("/api/calendar/history/redo", deps.CalendarHandler.Redo).Methods("POST")

	// Availability
	r.HandleFunc("/api/calendar/conflict", deps.CalendarHandler.CheckConflict).Methods("GET")
	r.HandleFunc("/api/calendar/available-slot", deps.CalendarHandler.NearestAvailableSlot).Methods("GET")
	r.HandleFunc("/api/calendar/slot-available", deps.CalendarHandler.SlotAvailable).Methods("GET")

	// Metrics
	if cfg.Metrics.Enabled && deps.Metrics != nil {
		r.Handle(cfg.Metrics.Path, promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{})).Methods("GET")
		log.Infof("Prometheus metrics endpoint exposed at %s", cfg.Metrics.Path)
	}
}
