package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/starford/calendle/internal/apperr"
	"github.com/starford/calendle/internal/index"
	"github.com/starford/calendle/internal/planner"
	"github.com/starford/calendle/internal/sse"
	"github.com/starford/calendle/internal/timer"
	"github.com/starford/calendle/internal/week"
)

// Publisher receives the events produced by command handlers.
type Publisher interface {
	Publish(event sse.Event)
	PublishError(msg string)
}

// TimerSender accepts countdown timer commands.
type TimerSender interface {
	Send(ctx context.Context, cmd timer.Command) error
}

// Searcher runs bullet searches.
type Searcher interface {
	Search(query string, limit int) ([]index.SearchResult, error)
}

// Handler holds API route handlers.
type Handler struct {
	planner  *planner.Session
	events   Publisher
	timer    TimerSender
	search   Searcher
	relaunch func()
	logger   *slog.Logger
}

// HandlerOption configures optional Handler collaborators.
type HandlerOption func(*Handler)

// WithTimer enables POST /timer.
func WithTimer(t TimerSender) HandlerOption {
	return func(h *Handler) { h.timer = t }
}

// WithSearch enables GET /search.
func WithSearch(s Searcher) HandlerOption {
	return func(h *Handler) { h.search = s }
}

// WithRelaunch sets the hook invoked by POST /relaunch.
func WithRelaunch(fn func()) HandlerOption {
	return func(h *Handler) { h.relaunch = fn }
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) HandlerOption {
	return func(h *Handler) { h.logger = l }
}

// NewHandler creates a new Handler.
func NewHandler(p *planner.Session, events Publisher, opts ...HandlerOption) *Handler {
	h := &Handler{planner: p, events: events, logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// fail reports err to the caller and publishes one on-send-error event per
// independent failure.
func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	parts := apperr.Split(err)
	msgs := make([]string, 0, len(parts))
	for _, e := range parts {
		msg := "Error while " + op + ": " + e.Error()
		msgs = append(msgs, msg)
		h.events.PublishError(msg)
	}
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(op+" failed", slog.String("error", err.Error()))
	} else {
		h.logger.Warn(op+" rejected", slog.String("error", err.Error()))
	}
	writeJSON(w, status, errResponse{Error: msgs[0], Errors: msgs})
}

// LoadData handles POST /load-data.
//
//	@Summary		Load the merged payload for a week and a list
//	@Tags			planner
//	@Accept			json
//	@Produce		json
//	@Param			body	body		LoadRequest	true	"Date and list"
//	@Success		200		{object}	DataResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/load-data [post]
func (h *Handler) LoadData(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req LoadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, "loading data", apperr.Invalid("body", "invalid JSON body: %v", err))
		return
	}
	date, err := week.ParseDate(req.Date)
	if err != nil {
		h.fail(w, "loading data", apperr.Invalid("date", "%v", err))
		return
	}
	resp, err := h.load(r.Context(), date, req.List)
	if err != nil {
		h.fail(w, "loading data", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// SaveData handles POST /save-data.
//
//	@Summary		Save a merged payload back into its week and list documents
//	@Tags			planner
//	@Accept			json
//	@Produce		json
//	@Param			body	body		[]object	true	"Seven days followed by the list"
//	@Success		200		{object}	DataResponse
//	@Failure		400		{object}	errResponse
//	@Failure		500		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/save-data [post]
func (h *Handler) SaveData(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.fail(w, "saving data", apperr.Invalid("body", "read body: %v", err))
		return
	}
	payload, err := planner.DecodePayload(body)
	if err != nil {
		h.fail(w, "saving data", err)
		return
	}
	if err := h.planner.SaveMerged(r.Context(), payload); err != nil {
		h.fail(w, "saving data", err)
		return
	}
	// SaveMerged validated every day date, so this parse cannot fail.
	date, _ := week.ParseDate(payload.Days[0].Date)
	resp, err := h.load(r.Context(), date, payload.List.Name)
	if err != nil {
		h.fail(w, "loading data", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// load reads the merged payload and broadcasts it as on-send-data.
func (h *Handler) load(ctx context.Context, date time.Time, list string) (DataResponse, error) {
	merged, err := h.planner.LoadMerged(ctx, date, list)
	if err != nil {
		return DataResponse{}, err
	}
	resp := DataResponse{Data: merged, List: list}
	h.events.Publish(sse.Event{Type: sse.TypeData, Data: resp})
	return resp, nil
}

// Lists handles GET /lists.
//
//	@Summary		List the recognized list names
//	@Tags			planner
//	@Produce		json
//	@Success		200	{object}	ListsResponse
//	@Security		BearerAuth
//	@Router			/lists [get]
func (h *Handler) Lists(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, ListsResponse{Lists: h.planner.Lists()})
}

// Relaunch handles POST /relaunch.
//
//	@Summary		Restart the backend process
//	@Tags			app
//	@Success		202	{object}	statusResponse
//	@Failure		501	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/relaunch [post]
func (h *Handler) Relaunch(w http.ResponseWriter, _ *http.Request) {
	if h.relaunch == nil {
		writeJSON(w, http.StatusNotImplemented, errorBody("relaunch is not available"))
		return
	}
	writeJSON(w, http.StatusAccepted, statusResponse{Status: "accepted"})
	h.logger.Info("relaunch requested")
	h.relaunch()
}

// Timer handles POST /timer.
//
//	@Summary		Send a countdown timer command
//	@Tags			timer
//	@Accept			json
//	@Produce		json
//	@Param			body	body		timer.Command	true	"Timer command"
//	@Success		202		{object}	statusResponse
//	@Failure		400		{object}	errResponse
//	@Failure		503		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/timer [post]
func (h *Handler) Timer(w http.ResponseWriter, r *http.Request) {
	if h.timer == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody("timer is not running"))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var cmd timer.Command
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		h.fail(w, "handling timer command", apperr.Invalid("body", "invalid JSON body: %v", err))
		return
	}
	if err := h.timer.Send(r.Context(), cmd); err != nil {
		if errors.Is(err, timer.ErrStopped) {
			writeJSON(w, http.StatusServiceUnavailable, errorBody("timer is not running"))
			return
		}
		h.fail(w, "handling timer command", err)
		return
	}
	writeJSON(w, http.StatusAccepted, statusResponse{Status: "accepted"})
}

// Search handles GET /search.
//
//	@Summary		Search bullet text across weeks and lists
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	if h.search == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody("search index is not available"))
		return
	}
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter q is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.search.Search(q, limit)
	if err != nil {
		h.logger.Error("search failed", slog.String("query", q), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if results == nil {
		results = []index.SearchResult{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}
