package httpserver

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ProfDrJones/journals/internal/auth"
	"github.com/ProfDrJones/journals/internal/editor"
	httperrors "github.com/ProfDrJones/journals/internal/http/errors"
	"github.com/ProfDrJones/journals/internal/metrics"
	"github.com/ProfDrJones/journals/internal/settings"
	"github.com/ProfDrJones/journals/internal/store"
)

// API serves the settings, journal and editor endpoints.
type API struct {
	settings  *settings.Service
	calendars store.CalendarRepository
	objects   store.CalendarObjectRepository
	engine    editor.Engine
	locs      editor.Locations
	editors   *editorRegistry
	now       func() time.Time
	logger    *zap.Logger
}

func NewAPI(st *store.Store, settingsService *settings.Service, engine editor.Engine, locs editor.Locations, logger *zap.Logger) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &API{
		settings:  settingsService,
		calendars: st.Calendars,
		objects:   st.CalendarObjects,
		engine:    engine,
		locs:      locs,
		now:       time.Now,
		logger:    logger,
	}
	a.editors = newEditorRegistry(a.newEditor)
	return a
}

func (a *API) newEditor(userID int64) *editor.Editor {
	objects := &objectStore{userID: userID, calendars: a.calendars, objects: a.objects}
	return editor.New(a.engine, objects, editor.Options{
		Locations: a.locs,
		ResolvedTimezone: func() string {
			return a.settings.ResolvedTimezone(userID)
		},
		Forked: func(objectID, forkID string) {
			metrics.ObserveEditorOperation("fork", nil)
		},
		Logger: a.logger.With(zap.Int64("user_id", userID)),
	})
}

// user returns the authenticated user. RequireBasicAuth guarantees one.
func (a *API) user(w http.ResponseWriter, r *http.Request) (*store.User, bool) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return nil, false
	}
	return user, true
}

// GetSettings handles GET /v1/config.
func (a *API) GetSettings(w http.ResponseWriter, r *http.Request) {
	user, ok := a.user(w, r)
	if !ok {
		return
	}
	s, err := a.settings.Get(r.Context(), user.ID)
	if err != nil {
		writeError(a.logger, w, r, err, "failed to load settings")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

type settingRequest struct {
	Value string `json:"value"`
}

// SetSetting handles POST /v1/config/{key}.
func (a *API) SetSetting(w http.ResponseWriter, r *http.Request) {
	user, ok := a.user(w, r)
	if !ok {
		return
	}
	var req settingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(a.logger, w, r, err, "failed to decode setting")
		return
	}
	key := chi.URLParam(r, "key")
	if err := a.settings.Set(r.Context(), user.ID, key, req.Value); err != nil {
		writeError(a.logger, w, r, err, "failed to store setting")
		return
	}
	s, err := a.settings.Get(r.Context(), user.ID)
	if err != nil {
		writeError(a.logger, w, r, err, "failed to load settings")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

type calendarResponse struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Color *string `json:"color"`
}

// ListCalendars handles GET /v1/calendars.
func (a *API) ListCalendars(w http.ResponseWriter, r *http.Request) {
	user, ok := a.user(w, r)
	if !ok {
		return
	}
	cals, err := a.calendars.ListByUser(r.Context(), user.ID)
	if err != nil {
		writeError(a.logger, w, r, err, "failed to list journals")
		return
	}
	resp := make([]calendarResponse, 0, len(cals))
	for _, c := range cals {
		resp = append(resp, calendarResponse{ID: strconv.FormatInt(c.ID, 10), Name: c.Name, Color: c.Color})
	}
	writeJSON(w, http.StatusOK, resp)
}

// OpenExisting handles POST /v1/editor/edit/{objectId}/{recurrenceId}. A
// recurrenceId of "next" opens the occurrence closest to now.
func (a *API) OpenExisting(w http.ResponseWriter, r *http.Request) {
	user, ok := a.user(w, r)
	if !ok {
		return
	}
	if _, err := a.settings.Get(r.Context(), user.ID); err != nil {
		writeError(a.logger, w, r, err, "failed to load settings")
		return
	}
	ed := a.editors.get(user.ID)
	objectID := chi.URLParam(r, "objectId")
	rawRID := chi.URLParam(r, "recurrenceId")

	var (
		rid int64
		err error
	)
	if rawRID == "next" {
		rid, err = ed.ResolveClosestOccurrence(r.Context(), objectID, a.now())
	} else if rid, err = strconv.ParseInt(rawRID, 10, 64); err != nil {
		err = badRequest("recurrence id %q is not a unix timestamp", rawRID)
	}
	var inst *editor.Instance
	if err == nil {
		inst, err = ed.OpenExisting(r.Context(), objectID, rid)
	}
	metrics.ObserveEditorOperation("open", err)
	if err != nil {
		writeError(a.logger, w, r, err, "failed to open journal entry")
		return
	}
	writeJSON(w, http.StatusOK, inst)
}

type newItemRequest struct {
	IsAllDay   *bool      `json:"isAllDay"`
	Start      *time.Time `json:"start"`
	End        *time.Time `json:"end"`
	TimezoneID string     `json:"timezoneId"`
}

// newItemArgs fills omitted fields from the user's settings: the entry
// starts at the current hour and lasts an hour, or a day when all-day.
func (a *API) newItemArgs(s settings.Settings, userID int64, req newItemRequest) (bool, time.Time, time.Time, string) {
	allDay := s.DefaultJournalEntryAllDay
	if req.IsAllDay != nil {
		allDay = *req.IsAllDay
	}
	tz := req.TimezoneID
	if tz == "" {
		tz = a.settings.ResolvedTimezone(userID)
	}
	start := a.now().Truncate(time.Hour)
	if req.Start != nil {
		start = *req.Start
	}
	end := start.Add(time.Hour)
	if allDay {
		end = start.AddDate(0, 0, 1)
	}
	if req.End != nil {
		end = *req.End
	}
	return allDay, start, end, tz
}

// OpenNew handles POST /v1/editor/new, and PUT to re-time the open item.
func (a *API) OpenNew(w http.ResponseWriter, r *http.Request) {
	user, ok := a.user(w, r)
	if !ok {
		return
	}
	var req newItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(a.logger, w, r, err, "failed to decode new entry")
		return
	}
	s, err := a.settings.Get(r.Context(), user.ID)
	if err != nil {
		writeError(a.logger, w, r, err, "failed to load settings")
		return
	}
	allDay, start, end, tz := a.newItemArgs(s, user.ID, req)

	ed := a.editors.get(user.ID)
	var inst *editor.Instance
	if r.Method == http.MethodPut {
		inst, err = ed.UpdateNew(allDay, start, end, tz)
	} else {
		inst, err = ed.OpenNew(allDay, start, end, tz)
		metrics.ObserveEditorOperation("open", err)
	}
	if err != nil {
		writeError(a.logger, w, r, err, "failed to open new journal entry")
		return
	}
	writeJSON(w, http.StatusOK, inst)
}

// Current handles GET /v1/editor.
func (a *API) Current(w http.ResponseWriter, r *http.Request) {
	user, ok := a.user(w, r)
	if !ok {
		return
	}
	inst := a.editors.get(user.ID).Current()
	if inst == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, inst)
}

// Close handles DELETE /v1/editor.
func (a *API) Close(w http.ResponseWriter, r *http.Request) {
	user, ok := a.user(w, r)
	if !ok {
		return
	}
	a.editors.get(user.ID).Close()
	w.WriteHeader(http.StatusNoContent)
}

// ListOps handles GET /v1/editor/ops.
func (a *API) ListOps(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, opNames())
}

// ApplyOp handles POST /v1/editor/ops.
func (a *API) ApplyOp(w http.ResponseWriter, r *http.Request) {
	user, ok := a.user(w, r)
	if !ok {
		return
	}
	var req opRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(a.logger, w, r, err, "failed to decode operation")
		return
	}
	ed := a.editors.get(user.ID)
	if err := applyOp(ed, req); err != nil {
		writeError(a.logger, w, r, err, "operation failed")
		return
	}
	writeJSON(w, http.StatusOK, ed.Current())
}

type saveRequest struct {
	ThisAndAllFuture bool   `json:"thisAndAllFuture"`
	CalendarID       string `json:"calendarId"`
}

// Save handles POST /v1/editor/save. New entries without a journal go to
// the user's default journal.
func (a *API) Save(w http.ResponseWriter, r *http.Request) {
	user, ok := a.user(w, r)
	if !ok {
		return
	}
	var req saveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(a.logger, w, r, err, "failed to decode save request")
		return
	}
	ed := a.editors.get(user.ID)
	calendarID := req.CalendarID
	if inst := ed.Current(); calendarID == "" && inst != nil && inst.IsNew {
		s, err := a.settings.Get(r.Context(), user.ID)
		if err != nil {
			writeError(a.logger, w, r, err, "failed to load settings")
			return
		}
		id, ok := s.DefaultJournalID()
		if !ok {
			writeError(a.logger, w, r, fmt.Errorf("%w: no journal selected and no default journal configured", editor.ErrInvalidValue), "")
			return
		}
		calendarID = strconv.FormatInt(id, 10)
	}

	err := ed.Save(r.Context(), req.ThisAndAllFuture, calendarID)
	metrics.ObserveEditorOperation("save", err)
	if err != nil {
		writeError(a.logger, w, r, err, "failed to save journal entry")
		return
	}
	httperrors.LogInfo(a.logger, r, "journal entry saved")
	w.WriteHeader(http.StatusNoContent)
}

type deleteRequest struct {
	ThisAndAllFuture bool `json:"thisAndAllFuture"`
}

// Delete handles POST /v1/editor/delete.
func (a *API) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := a.user(w, r)
	if !ok {
		return
	}
	var req deleteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(a.logger, w, r, err, "failed to decode delete request")
		return
	}
	err := a.editors.get(user.ID).Delete(r.Context(), req.ThisAndAllFuture)
	metrics.ObserveEditorOperation("delete", err)
	if err != nil {
		writeError(a.logger, w, r, err, "failed to delete journal entry")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
