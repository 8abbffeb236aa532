package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/klokku/venuebook/internal/event_bus"
	"github.com/klokku/venuebook/internal/rest"
	"github.com/klokku/venuebook/internal/utils"
	"github.com/klokku/venuebook/pkg/booking"
	"github.com/klokku/venuebook/pkg/conflict"
	"github.com/klokku/venuebook/pkg/executor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = booking.Date("2025-06-14")

type handlerFixture struct {
	handler  *Handler
	session  *Session
	executor *executor.Executor
	repo     *booking.RepositoryStub
}

func newBooking(id, resource, start, end string) booking.Booking {
	return booking.Booking{
		Id:           id,
		ResourceId:   resource,
		Date:         day,
		StartTime:    booking.MustWallClock(start),
		EndTime:      booking.MustWallClock(end),
		Status:       booking.StatusConfirmed,
		CustomerName: "Alex",
	}
}

// Test setup helper
func setupHandlerTest(t *testing.T) handlerFixture {
	ctx := context.Background()
	repo := booking.NewRepositoryStub()
	bookings := []booking.Booking{
		newBooking("b1", "court-1", "09:00", "10:00"),
		newBooking("b2", "court-2", "09:00", "10:00"),
	}
	for _, b := range bookings {
		require.NoError(t, repo.StoreBooking(ctx, b))
	}

	grid := booking.DefaultGrid()
	board := booking.NewBoard(bookings...)
	bus := event_bus.NewEventBus()
	exec := executor.New(board, repo, bus, executor.Options{
		PersistTimeout: time.Second,
		Clock:          &utils.MockClock{FixedNow: time.Date(2025, time.June, 14, 8, 0, 0, 0, time.UTC)},
	})
	t.Cleanup(exec.Close)
	session := NewSession(grid, board, conflict.NewDetector(board, grid), exec, bus)

	return handlerFixture{handler: NewHandler(session), session: session, executor: exec, repo: repo}
}

func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	var result T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&result))
	return result
}

func TestGetBookings(t *testing.T) {
	f := setupHandlerTest(t)

	w := httptest.NewRecorder()
	f.handler.GetBookings(w, httptest.NewRequest(http.MethodGet, "/api/calendar/booking", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var raw []map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&raw))
	require.Len(t, raw, 2)
	assert.Equal(t, "b1", raw[0]["id"])
	assert.Equal(t, "09:00", raw[0]["startTime"])
	assert.Equal(t, "10:00", raw[0]["endTime"])
	assert.Equal(t, "2025-06-14", raw[0]["date"])
}

func TestRefreshBookings_InvalidFromDate(t *testing.T) {
	f := setupHandlerTest(t)

	req := httptest.NewRequest(http.MethodPost, "/api/calendar/booking/refresh?from=invalid-date&to=2025-06-20", nil)
	w := httptest.NewRecorder()
	f.handler.RefreshBookings(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	errResponse := decode[rest.ErrorResponse](t, w)
	assert.Contains(t, errResponse.Error, "Invalid from (date) format")
	assert.Contains(t, errResponse.Details, "YYYY-MM-DD")
}

func TestRefreshBookings(t *testing.T) {
	f := setupHandlerTest(t)
	require.NoError(t, f.repo.StoreBooking(context.Background(), newBooking("b3", "court-3", "12:00", "13:00")))

	req := httptest.NewRequest(http.MethodPost, "/api/calendar/booking/refresh?from=2025-06-14&to=2025-06-14", nil)
	w := httptest.NewRecorder()
	f.handler.RefreshBookings(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	bookings := decode[[]BookingDTO](t, w)
	assert.Len(t, bookings, 3)
}

func TestSelectionClickAndRange(t *testing.T) {
	f := setupHandlerTest(t)

	w := httptest.NewRecorder()
	f.handler.Click(w, jsonRequest(t, http.MethodPost, "/api/calendar/selection/click",
		CellDTO{ResourceId: "court-3", Date: day, Time: booking.MustWallClock("11:00")}))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	f.handler.Click(w, jsonRequest(t, http.MethodPost, "/api/calendar/selection/click",
		CellDTO{ResourceId: "court-3", Date: day, Time: booking.MustWallClock("12:00"), Shift: true}))
	require.Equal(t, http.StatusOK, w.Code)

	selection := decode[SelectionDTO](t, w)
	assert.Len(t, selection.Slots, 3)
	require.NotNil(t, selection.Range)
	assert.Equal(t, booking.MustWallClock("11:00"), selection.Range.Start)
	assert.Equal(t, booking.MustWallClock("12:30"), selection.Range.End)
}

func TestSelectionClick_InvalidCell(t *testing.T) {
	f := setupHandlerTest(t)

	testCases := []struct {
		name string
		body string
	}{
		{name: "bad time", body: `{"resourceId":"court-1","date":"2025-06-14","time":"9am"}`},
		{name: "bad date", body: `{"resourceId":"court-1","date":"14/06/2025","time":"09:00"}`},
		{name: "missing resource", body: `{"date":"2025-06-14","time":"09:00"}`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/calendar/selection/click", bytes.NewBufferString(tc.body))
			w := httptest.NewRecorder()
			f.handler.Click(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestSelectionDragAndPointerUp(t *testing.T) {
	f := setupHandlerTest(t)

	w := httptest.NewRecorder()
	f.handler.SelectionDragStart(w, jsonRequest(t, http.MethodPost, "/api/calendar/selection/drag-start",
		CellDTO{ResourceId: "court-1", Date: day, Time: booking.MustWallClock("13:00")}))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[SelectionDTO](t, w).IsDragging)

	w = httptest.NewRecorder()
	f.handler.SelectionDragMove(w, jsonRequest(t, http.MethodPost, "/api/calendar/selection/drag-move",
		CellDTO{ResourceId: "court-1", Date: day, Time: booking.MustWallClock("14:00")}))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	f.handler.PointerUp(w, httptest.NewRequest(http.MethodPost, "/api/calendar/pointer-up", nil))
	require.Equal(t, http.StatusOK, w.Code)

	result := decode[PointerUpDTO](t, w)
	assert.False(t, result.BookingChanged)
	require.Len(t, result.Selection, 3)
	assert.Equal(t, booking.MustWallClock("13:00"), result.Selection[0].StartTime)
	assert.Len(t, f.session.CompletedSelection(), 3)
}

func TestBookingDragAndDrop(t *testing.T) {
	f := setupHandlerTest(t)

	req := mux.SetURLVars(httptest.NewRequest(http.MethodPost, "/api/calendar/booking/b1/drag-start", nil),
		map[string]string{"bookingId": "b1"})
	w := httptest.NewRecorder()
	f.handler.BookingDragStart(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "dragging", decode[PreviewDTO](t, w).Mode)

	w = httptest.NewRecorder()
	f.handler.BookingDragOver(w, jsonRequest(t, http.MethodPost, "/api/calendar/booking/drag-over",
		CellDTO{ResourceId: "court-2", Date: day, Time: booking.MustWallClock("10:15")}))
	require.Equal(t, http.StatusOK, w.Code)
	preview := decode[PreviewDTO](t, w)
	require.NotNil(t, preview.Target)
	assert.Equal(t, booking.MustWallClock("10:00"), preview.Target.StartTime)

	w = httptest.NewRecorder()
	f.handler.PointerUp(w, httptest.NewRequest(http.MethodPost, "/api/calendar/pointer-up", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[PointerUpDTO](t, w).BookingChanged)

	f.executor.Wait()
	stored, ok := f.repo.Stored("b1")
	require.True(t, ok)
	assert.Equal(t, "court-2", stored.ResourceId)
	assert.Equal(t, booking.MustWallClock("10:00"), stored.StartTime)

	w = httptest.NewRecorder()
	f.handler.GetHistory(w, httptest.NewRequest(http.MethodGet, "/api/calendar/history", nil))
	history := decode[HistoryDTO](t, w)
	require.Len(t, history.Actions, 1)
	assert.Equal(t, "b1", history.Actions[0].BookingId)
	assert.True(t, history.CanUndo)
	require.NotNil(t, history.LastOutcome)
	assert.Equal(t, "commit", history.LastOutcome.Origin)
	assert.Empty(t, history.LastOutcome.Error)
}

func TestBookingDragStart_UnknownBooking(t *testing.T) {
	f := setupHandlerTest(t)

	req := mux.SetURLVars(httptest.NewRequest(http.MethodPost, "/api/calendar/booking/nope/drag-start", nil),
		map[string]string{"bookingId": "nope"})
	w := httptest.NewRecorder()
	f.handler.BookingDragStart(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestResizeAndUndo(t *testing.T) {
	f := setupHandlerTest(t)

	req := mux.SetURLVars(jsonRequest(t, http.MethodPost, "/api/calendar/booking/b1/resize-start", ResizeStartDTO{Edge: "end"}),
		map[string]string{"bookingId": "b1"})
	w := httptest.NewRecorder()
	f.handler.ResizeStart(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "resizing", decode[PreviewDTO](t, w).Mode)

	w = httptest.NewRecorder()
	f.handler.ResizeMove(w, jsonRequest(t, http.MethodPost, "/api/calendar/booking/resize-move",
		ResizeMoveDTO{Time: booking.MustWallClock("11:00")}))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	f.handler.PointerUp(w, httptest.NewRequest(http.MethodPost, "/api/calendar/pointer-up", nil))
	require.True(t, decode[PointerUpDTO](t, w).BookingChanged)
	f.executor.Wait()

	w = httptest.NewRecorder()
	f.handler.Undo(w, httptest.NewRequest(http.MethodPost, "/api/calendar/history/undo", nil))
	require.Equal(t, http.StatusOK, w.Code)
	step := decode[StepDTO](t, w)
	assert.True(t, step.Applied)
	assert.True(t, step.History.CanRedo)
	f.executor.Wait()

	stored, _ := f.repo.Stored("b1")
	assert.Equal(t, booking.MustWallClock("10:00"), stored.EndTime)
}

func TestResizeStart_InvalidEdge(t *testing.T) {
	f := setupHandlerTest(t)

	req := mux.SetURLVars(jsonRequest(t, http.MethodPost, "/api/calendar/booking/b1/resize-start", ResizeStartDTO{Edge: "middle"}),
		map[string]string{"bookingId": "b1"})
	w := httptest.NewRecorder()
	f.handler.ResizeStart(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCancel(t *testing.T) {
	f := setupHandlerTest(t)
	require.NoError(t, f.session.BookingDragStart("b1"))
	f.session.BookingDragOver("court-3", day, booking.MustWallClock("15:00"))

	w := httptest.NewRecorder()
	f.handler.Cancel(w, httptest.NewRequest(http.MethodPost, "/api/calendar/cancel", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	f.handler.GetPreview(w, httptest.NewRequest(http.MethodGet, "/api/calendar/preview", nil))
	preview := decode[PreviewDTO](t, w)
	assert.Equal(t, "idle", preview.Mode)
	assert.Nil(t, preview.Target)
}

func TestUndo_NothingToUndo(t *testing.T) {
	f := setupHandlerTest(t)

	w := httptest.NewRecorder()
	f.handler.Undo(w, httptest.NewRequest(http.MethodPost, "/api/calendar/history/undo", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[StepDTO](t, w).Applied)
}

func TestCheckConflict(t *testing.T) {
	f := setupHandlerTest(t)

	req := httptest.NewRequest(http.MethodGet, "/api/calendar/conflict?resourceId=court-1&date=2025-06-14&start=09:30&end=10:30", nil)
	w := httptest.NewRecorder()
	f.handler.CheckConflict(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	result := decode[ConflictDTO](t, w)
	assert.True(t, result.HasConflict)
	require.Len(t, result.ConflictingBookings, 1)
	assert.Equal(t, "b1", result.ConflictingBookings[0].Id)
	assert.Equal(t, "Time slot 09:30-10:30 conflicts with booking b1 (09:00-10:00)", result.Message)
}

func TestCheckConflict_InvalidTime(t *testing.T) {
	f := setupHandlerTest(t)

	req := httptest.NewRequest(http.MethodGet, "/api/calendar/conflict?resourceId=court-1&date=2025-06-14&start=25:00&end=10:30", nil)
	w := httptest.NewRecorder()
	f.handler.CheckConflict(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode[rest.ErrorResponse](t, w).Error, "Invalid start (time) format")
}

func TestNearestAvailableSlot(t *testing.T) {
	f := setupHandlerTest(t)

	req := httptest.NewRequest(http.MethodGet, "/api/calendar/available-slot?resourceId=court-1&date=2025-06-14&duration=60&preferred=09:00", nil)
	w := httptest.NewRecorder()
	f.handler.NearestAvailableSlot(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	result := decode[AvailableSlotDTO](t, w)
	assert.True(t, result.Available)
	require.NotNil(t, result.StartTime)
	assert.Equal(t, booking.MustWallClock("10:00"), *result.StartTime)
}

func TestNearestAvailableSlot_InvalidDuration(t *testing.T) {
	f := setupHandlerTest(t)

	req := httptest.NewRequest(http.MethodGet, "/api/calendar/available-slot?resourceId=court-1&date=2025-06-14&duration=-5&preferred=09:00", nil)
	w := httptest.NewRecorder()
	f.handler.NearestAvailableSlot(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestClearHistory(t *testing.T) {
	f := setupHandlerTest(t)
	require.NoError(t, f.session.BookingDragStart("b1"))
	f.session.BookingDragOver("court-3", day, booking.MustWallClock("12:00"))
	_, err := f.session.PointerUp(context.Background())
	require.NoError(t, err)
	f.executor.Wait()
	require.True(t, f.session.HistoryState().CanUndo)

	w := httptest.NewRecorder()
	f.handler.ClearHistory(w, httptest.NewRequest(http.MethodDelete, "/api/calendar/history", nil))

	require.Equal(t, http.StatusOK, w.Code)
	history := decode[HistoryDTO](t, w)
	assert.Empty(t, history.Actions)
	assert.Equal(t, -1, history.CurrentIndex)
	assert.False(t, history.CanUndo)
	assert.False(t, history.CanRedo)

	w = httptest.NewRecorder()
	f.handler.Undo(w, httptest.NewRequest(http.MethodPost, "/api/calendar/history/undo", nil))
	assert.False(t, decode[StepDTO](t, w).Applied)
	stored, _ := f.repo.Stored("b1")
	assert.Equal(t, "court-3", stored.ResourceId)
}

func TestSlotAvailable(t *testing.T) {
	testCases := []struct {
		name  string
		query string
		want  bool
	}{
		{name: "slot inside a booking", query: "resourceId=court-1&date=2025-06-14&start=09:30", want: false},
		{name: "slot after a booking", query: "resourceId=court-1&date=2025-06-14&start=10:00", want: true},
		{name: "booking excluded", query: "resourceId=court-1&date=2025-06-14&start=09:30&excludeBookingId=b1", want: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := setupHandlerTest(t)

			w := httptest.NewRecorder()
			f.handler.SlotAvailable(w, httptest.NewRequest(http.MethodGet, "/api/calendar/slot-available?"+tc.query, nil))

			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tc.want, decode[SlotAvailabilityDTO](t, w).Available)
		})
	}
}

func TestSlotAvailable_MissingResource(t *testing.T) {
	f := setupHandlerTest(t)

	w := httptest.NewRecorder()
	f.handler.SlotAvailable(w, httptest.NewRequest(http.MethodGet, "/api/calendar/slot-available?date=2025-06-14&start=09:30", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Missing resource", decode[rest.ErrorResponse](t, w).Error)
}
