package calendar

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/klokku/venuebook/internal/rest"
	"github.com/klokku/venuebook/pkg/booking"
	"github.com/klokku/venuebook/pkg/drag"
	"github.com/klokku/venuebook/pkg/executor"
	"github.com/klokku/venuebook/pkg/selection"
	log "github.com/sirupsen/logrus"
)

type Handler struct {
	session *Session
}

func NewHandler(s *Session) *Handler {
	return &Handler{s}
}

type BookingDTO struct {
	Id           string            `json:"id"`
	ResourceId   string            `json:"resourceId"`
	Date         booking.Date      `json:"date"`
	StartTime    booking.WallClock `json:"startTime"`
	EndTime      booking.WallClock `json:"endTime"`
	Status       booking.Status    `json:"status"`
	CustomerName string            `json:"customerName"`
}

// CellDTO addresses one cell under the pointer, with the modifier keys held.
type CellDTO struct {
	ResourceId string            `json:"resourceId"`
	Date       booking.Date      `json:"date"`
	Time       booking.WallClock `json:"time"`
	Shift      bool              `json:"shift"`
	Ctrl       bool              `json:"ctrl"`
	Meta       bool              `json:"meta"`
}

type TimeRangeDTO struct {
	ResourceId string            `json:"resourceId"`
	Date       booking.Date      `json:"date"`
	Start      booking.WallClock `json:"start"`
	End        booking.WallClock `json:"end"`
}

type SelectionDTO struct {
	Slots      []booking.TimeSlot `json:"slots"`
	IsDragging bool               `json:"isDragging"`
	DragStart  *booking.TimeSlot  `json:"dragStart,omitempty"`
	DragEnd    *booking.TimeSlot  `json:"dragEnd,omitempty"`
	Range      *TimeRangeDTO      `json:"range,omitempty"`
}

type PointerUpDTO struct {
	BookingChanged bool               `json:"bookingChanged"`
	Selection      []booking.TimeSlot `json:"selection"`
}

type DropTargetDTO struct {
	ResourceId string            `json:"resourceId"`
	Date       booking.Date      `json:"date"`
	StartTime  booking.WallClock `json:"startTime"`
}

type PreviewDTO struct {
	Mode   string         `json:"mode"`
	Target *DropTargetDTO `json:"target,omitempty"`
}

type ResizeStartDTO struct {
	Edge drag.Edge `json:"edge"`
}

type ResizeMoveDTO struct {
	Time booking.WallClock `json:"time"`
}

type PlacementDTO struct {
	ResourceId string            `json:"resourceId"`
	Date       booking.Date      `json:"date"`
	StartTime  booking.WallClock `json:"startTime"`
	EndTime    booking.WallClock `json:"endTime"`
}

type ActionDTO struct {
	Id        string             `json:"id"`
	Kind      booking.ActionKind `json:"kind"`
	BookingId string             `json:"bookingId"`
	Previous  PlacementDTO       `json:"previous"`
	New       PlacementDTO       `json:"new"`
	Timestamp time.Time          `json:"timestamp"`
}

type OutcomeDTO struct {
	ActionId string       `json:"actionId"`
	Origin   string       `json:"origin"`
	Applied  PlacementDTO `json:"applied"`
	Error    string       `json:"error,omitempty"`
}

type HistoryDTO struct {
	Actions      []ActionDTO `json:"actions"`
	CurrentIndex int         `json:"currentIndex"`
	CanUndo      bool        `json:"canUndo"`
	CanRedo      bool        `json:"canRedo"`
	LastOutcome  *OutcomeDTO `json:"lastOutcome,omitempty"`
}

type StepDTO struct {
	Applied bool       `json:"applied"`
	History HistoryDTO `json:"history"`
}

type ConflictDTO struct {
	HasConflict         bool         `json:"hasConflict"`
	ConflictingBookings []BookingDTO `json:"conflictingBookings"`
	Message             string       `json:"message,omitempty"`
}

type SlotAvailabilityDTO struct {
	Available bool `json:"available"`
}

type AvailableSlotDTO struct {
	Available bool               `json:"available"`
	StartTime *booking.WallClock `json:"startTime,omitempty"`
}

func (h *Handler) GetBookings(w http.ResponseWriter, r *http.Request) {
	bookings := h.session.Bookings()
	dtos := make([]BookingDTO, 0, len(bookings))
	for _, b := range bookings {
		dtos = append(dtos, bookingToDTO(b))
	}
	rest.WriteJSON(w, http.StatusOK, dtos)
}

func (h *Handler) RefreshBookings(w http.ResponseWriter, r *http.Request) {
	from, ok := queryDate(w, r, "from")
	if !ok {
		return
	}
	to, ok := queryDate(w, r, "to")
	if !ok {
		return
	}
	if to < from {
		rest.WriteError(w, http.StatusBadRequest, "Invalid date range", "'to' must not be before 'from'")
		return
	}

	if err := h.session.Refresh(r.Context(), from, to); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.GetBookings(w, r)
}

func (h *Handler) Click(w http.ResponseWriter, r *http.Request) {
	cell, ok := decodeCell(w, r)
	if !ok {
		return
	}
	mods := selection.Modifiers{Shift: cell.Shift, Ctrl: cell.Ctrl, Meta: cell.Meta}
	h.session.Click(cell.Date, cell.ResourceId, cell.Time, mods)
	h.GetSelection(w, r)
}

func (h *Handler) SelectionDragStart(w http.ResponseWriter, r *http.Request) {
	cell, ok := decodeCell(w, r)
	if !ok {
		return
	}
	h.session.SelectionDragStart(cell.Date, cell.ResourceId, cell.Time)
	h.GetSelection(w, r)
}

func (h *Handler) SelectionDragMove(w http.ResponseWriter, r *http.Request) {
	cell, ok := decodeCell(w, r)
	if !ok {
		return
	}
	h.session.SelectionDragMove(cell.Date, cell.ResourceId, cell.Time)
	h.GetSelection(w, r)
}

func (h *Handler) GetSelection(w http.ResponseWriter, r *http.Request) {
	state := h.session.SelectionState()
	dto := SelectionDTO{
		Slots:      state.SelectedSlots,
		IsDragging: state.IsDragging,
		DragStart:  state.DragStart,
		DragEnd:    state.DragEnd,
	}
	if dto.Slots == nil {
		dto.Slots = []booking.TimeSlot{}
	}
	if tr, ok := h.session.SelectionTimeRange(); ok {
		dto.Range = &TimeRangeDTO{ResourceId: tr.ResourceId, Date: tr.Date, Start: tr.Start, End: tr.End}
	}
	rest.WriteJSON(w, http.StatusOK, dto)
}

func (h *Handler) ClearSelection(w http.ResponseWriter, r *http.Request) {
	h.session.ClearSelection()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) PointerUp(w http.ResponseWriter, r *http.Request) {
	result, err := h.session.PointerUp(r.Context())
	if err != nil {
		log.Errorf("pointer up failed: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	dto := PointerUpDTO{BookingChanged: result.BookingChanged, Selection: result.Selection}
	if dto.Selection == nil {
		dto.Selection = []booking.TimeSlot{}
	}
	rest.WriteJSON(w, http.StatusOK, dto)
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.session.Cancel()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) BookingDragStart(w http.ResponseWriter, r *http.Request) {
	bookingId := mux.Vars(r)["bookingId"]
	if err := h.session.BookingDragStart(bookingId); err != nil {
		writeBookingError(w, err)
		return
	}
	h.GetPreview(w, r)
}

func (h *Handler) BookingDragOver(w http.ResponseWriter, r *http.Request) {
	cell, ok := decodeCell(w, r)
	if !ok {
		return
	}
	h.session.BookingDragOver(cell.ResourceId, cell.Date, cell.Time)
	h.GetPreview(w, r)
}

func (h *Handler) ResizeStart(w http.ResponseWriter, r *http.Request) {
	var dto ResizeStartDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !dto.Edge.Valid() {
		rest.WriteError(w, http.StatusBadRequest, "Invalid edge", "'edge' must be 'start' or 'end'")
		return
	}
	if err := h.session.ResizeStart(mux.Vars(r)["bookingId"], dto.Edge); err != nil {
		writeBookingError(w, err)
		return
	}
	h.GetPreview(w, r)
}

func (h *Handler) ResizeMove(w http.ResponseWriter, r *http.Request) {
	var dto ResizeMoveDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.session.ResizeMove(dto.Time)
	h.GetPreview(w, r)
}

func (h *Handler) GetPreview(w http.ResponseWriter, r *http.Request) {
	mode, target, ok := h.session.Preview()
	dto := PreviewDTO{Mode: mode.String()}
	if ok {
		dto.Target = &DropTargetDTO{ResourceId: target.ResourceId, Date: target.Date, StartTime: target.StartTime}
	}
	rest.WriteJSON(w, http.StatusOK, dto)
}

func (h *Handler) Undo(w http.ResponseWriter, r *http.Request) {
	applied, err := h.session.Undo(r.Context())
	h.writeStep(w, applied, err)
}

func (h *Handler) Redo(w http.ResponseWriter, r *http.Request) {
	applied, err := h.session.Redo(r.Context())
	h.writeStep(w, applied, err)
}

func (h *Handler) writeStep(w http.ResponseWriter, applied bool, err error) {
	if err != nil {
		if errors.Is(err, booking.ErrBookingNotFound) {
			rest.WriteError(w, http.StatusConflict, "Booking no longer exists", err.Error())
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	rest.WriteJSON(w, http.StatusOK, StepDTO{Applied: applied, History: h.historyDTO()})
}

func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	rest.WriteJSON(w, http.StatusOK, h.historyDTO())
}

func (h *Handler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	h.session.ClearHistory()
	log.Debug("calendar: history cleared")
	rest.WriteJSON(w, http.StatusOK, h.historyDTO())
}

func (h *Handler) historyDTO() HistoryDTO {
	state := h.session.HistoryState()
	dto := historyToDTO(state)
	if outcome, ok := h.session.LastOutcome(); ok {
		o := OutcomeDTO{
			ActionId: outcome.Action.Id.String(),
			Origin:   string(outcome.Origin),
			Applied:  placementToDTO(outcome.Applied),
		}
		if outcome.Err != nil {
			o.Error = outcome.Err.Error()
		}
		dto.LastOutcome = &o
	}
	return dto
}

func (h *Handler) CheckConflict(w http.ResponseWriter, r *http.Request) {
	resourceId := r.URL.Query().Get("resourceId")
	date, ok := queryDate(w, r, "date")
	if !ok {
		return
	}
	start, ok := queryWallClock(w, r, "start")
	if !ok {
		return
	}
	end, ok := queryWallClock(w, r, "end")
	if !ok {
		return
	}

	result := h.session.CheckConflict(resourceId, date, start, end, r.URL.Query().Get("excludeBookingId"))
	dto := ConflictDTO{
		HasConflict:         result.HasConflict,
		ConflictingBookings: make([]BookingDTO, 0, len(result.ConflictingBookings)),
		Message:             result.Message,
	}
	for _, b := range result.ConflictingBookings {
		dto.ConflictingBookings = append(dto.ConflictingBookings, bookingToDTO(b))
	}
	rest.WriteJSON(w, http.StatusOK, dto)
}

func (h *Handler) SlotAvailable(w http.ResponseWriter, r *http.Request) {
	resourceId := r.URL.Query().Get("resourceId")
	if resourceId == "" {
		rest.WriteError(w, http.StatusBadRequest, "Missing resource", "'resourceId' is required")
		return
	}
	date, ok := queryDate(w, r, "date")
	if !ok {
		return
	}
	start, ok := queryWallClock(w, r, "start")
	if !ok {
		return
	}

	available := h.session.IsSlotAvailable(resourceId, date, start, r.URL.Query().Get("excludeBookingId"))
	rest.WriteJSON(w, http.StatusOK, SlotAvailabilityDTO{Available: available})
}

func (h *Handler) NearestAvailableSlot(w http.ResponseWriter, r *http.Request) {
	resourceId := r.URL.Query().Get("resourceId")
	date, ok := queryDate(w, r, "date")
	if !ok {
		return
	}
	preferred, ok := queryWallClock(w, r, "preferred")
	if !ok {
		return
	}
	duration, err := strconv.Atoi(r.URL.Query().Get("duration"))
	if err != nil || duration <= 0 {
		rest.WriteError(w, http.StatusBadRequest, "Invalid duration", "'duration' must be a positive number of minutes")
		return
	}

	var dto AvailableSlotDTO
	if start, found := h.session.NearestAvailableSlot(resourceId, date, duration, preferred); found {
		dto = AvailableSlotDTO{Available: true, StartTime: &start}
	}
	rest.WriteJSON(w, http.StatusOK, dto)
}

func decodeCell(w http.ResponseWriter, r *http.Request) (CellDTO, bool) {
	var cell CellDTO
	if err := json.NewDecoder(r.Body).Decode(&cell); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return CellDTO{}, false
	}
	if _, err := booking.ParseDate(string(cell.Date)); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid date format", "'date' must be in YYYY-MM-DD format")
		return CellDTO{}, false
	}
	if cell.ResourceId == "" {
		rest.WriteError(w, http.StatusBadRequest, "Missing resource", "'resourceId' is required")
		return CellDTO{}, false
	}
	return cell, true
}

func queryDate(w http.ResponseWriter, r *http.Request, name string) (booking.Date, bool) {
	date, err := booking.ParseDate(r.URL.Query().Get(name))
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid "+name+" (date) format", "'"+name+"' must be in YYYY-MM-DD format")
		return "", false
	}
	return date, true
}

func queryWallClock(w http.ResponseWriter, r *http.Request, name string) (booking.WallClock, bool) {
	t, err := booking.ParseWallClock(r.URL.Query().Get(name))
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid "+name+" (time) format", "'"+name+"' must be in HH:MM format")
		return 0, false
	}
	return t, true
}

func writeBookingError(w http.ResponseWriter, err error) {
	if errors.Is(err, booking.ErrBookingNotFound) {
		rest.WriteError(w, http.StatusNotFound, "Booking not found", err.Error())
		return
	}
	rest.WriteError(w, http.StatusBadRequest, "Invalid request", err.Error())
}

func bookingToDTO(b booking.Booking) BookingDTO {
	return BookingDTO{
		Id:           b.Id,
		ResourceId:   b.ResourceId,
		Date:         b.Date,
		StartTime:    b.StartTime,
		EndTime:      b.EndTime,
		Status:       b.Status,
		CustomerName: b.CustomerName,
	}
}

func placementToDTO(p booking.Placement) PlacementDTO {
	return PlacementDTO{
		ResourceId: p.ResourceId,
		Date:       p.Date,
		StartTime:  p.StartTime,
		EndTime:    p.EndTime,
	}
}

func historyToDTO(state executor.HistoryState) HistoryDTO {
	dto := HistoryDTO{
		Actions:      make([]ActionDTO, 0, len(state.Actions)),
		CurrentIndex: state.CurrentIndex,
		CanUndo:      state.CanUndo,
		CanRedo:      state.CanRedo,
	}
	for _, a := range state.Actions {
		dto.Actions = append(dto.Actions, ActionDTO{
			Id:        a.Id.String(),
			Kind:      a.Kind,
			BookingId: a.Booking.Id,
			Previous:  placementToDTO(a.Previous),
			New:       placementToDTO(a.New),
			Timestamp: a.Timestamp,
		})
	}
	return dto
}
