package surveillance

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/malaria/das/internal/platform/auth"
	"github.com/malaria/das/internal/platform/requestlog"
)

// Handler exposes the surveillance tables over HTTP. Every route expects the
// authenticated user placed in the request context by auth.Middleware.
type Handler struct {
	svc      *Service
	recorder requestlog.Recorder
	logger   zerolog.Logger
}

func NewHandler(svc *Service, recorder requestlog.Recorder, logger zerolog.Logger) *Handler {
	if recorder == nil {
		recorder = requestlog.Nop
	}
	return &Handler{svc: svc, recorder: recorder, logger: logger}
}

// RegisterRoutes mounts the table routes on g, normally the /tables group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/:table", h.ReadTable)
	g.GET("/:table/timefilter", h.ReadTimeRange)
	g.GET("/:table/sampling", h.Sample)
	g.GET("/:table/:column/:key", h.ReadByKey)
	g.POST("/:table/create", h.Create)
	g.PUT("/:table/update/:id", h.Update)
	g.PATCH("/:table/update/:id", h.Update)
	g.DELETE("/:table/delete/:id", h.Delete)
}

// Welcome answers GET /.
func Welcome(c echo.Context) error {
	return c.HTML(http.StatusOK, `<h1>Hello world! </h1>
Welcome to the Data Access System
for Malaria Awareness in Rwanda!
`)
}

type message struct {
	Response string `json:"response"`
}

func (h *Handler) authorize(c echo.Context, op auth.Operation) (*auth.User, auth.Decision, error) {
	u := auth.UserFromContext(c.Request().Context())
	if u == nil {
		return nil, auth.Decision{}, echo.NewHTTPError(http.StatusBadRequest, auth.ErrMalformedCredential.Error())
	}
	d, err := auth.Authorize(u, c.Param("table"), op)
	if err != nil {
		return nil, auth.Decision{}, httpError(err)
	}
	return u, d, nil
}

func (h *Handler) ReadTable(c echo.Context) error {
	u, d, err := h.authorize(c, auth.OpRead)
	if err != nil {
		return err
	}
	set, err := h.svc.ReadTable(c.Request().Context(), d)
	if err != nil {
		return httpError(err)
	}
	h.record(c, u, auth.OpRead, d)
	return c.JSON(http.StatusOK, set)
}

func (h *Handler) ReadTimeRange(c echo.Context) error {
	u, d, err := h.authorize(c, auth.OpReadTimeRange)
	if err != nil {
		return err
	}
	var tr TimeRange
	if err := bindJSON(c, &tr); err != nil {
		return httpError(err)
	}
	set, err := h.svc.ReadTimeRange(c.Request().Context(), d, tr)
	if err != nil {
		return httpError(err)
	}
	h.record(c, u, auth.OpReadTimeRange, d)
	return c.JSON(http.StatusOK, set)
}

type sampleBody struct {
	BatchSize       *int     `json:"batch_size"`
	PreviousIndexes *[]int64 `json:"previous_indexes"`
}

func (h *Handler) Sample(c echo.Context) error {
	u, d, err := h.authorize(c, auth.OpReadSample)
	if err != nil {
		return err
	}
	var body sampleBody
	if err := bindJSON(c, &body); err != nil {
		return httpError(err)
	}
	if body.BatchSize == nil || body.PreviousIndexes == nil {
		return httpError(fmt.Errorf("batch_size and previous_indexes are required: %w", ErrInvalidRequestBody))
	}
	res, err := h.svc.Sample(c.Request().Context(), d, SampleRequest{
		BatchSize:       *body.BatchSize,
		PreviousIndexes: *body.PreviousIndexes,
	})
	if err != nil {
		return httpError(err)
	}
	h.record(c, u, auth.OpReadSample, d)
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) ReadByKey(c echo.Context) error {
	u, d, err := h.authorize(c, auth.OpReadByKey)
	if err != nil {
		return err
	}
	set, err := h.svc.ReadByKey(c.Request().Context(), d, c.Param("column"), c.Param("key"))
	if err != nil {
		return httpError(err)
	}
	h.record(c, u, auth.OpReadByKey, d)
	return c.JSON(http.StatusOK, set)
}

func (h *Handler) Create(c echo.Context) error {
	u, d, err := h.authorize(c, auth.OpCreate)
	if err != nil {
		return err
	}
	fields, err := decodeFields(c)
	if err != nil {
		return httpError(err)
	}
	if _, err := h.svc.Create(c.Request().Context(), d, fields); err != nil {
		return httpError(err)
	}
	h.record(c, u, auth.OpCreate, d)
	return c.JSON(http.StatusCreated, message{Response: "resource created"})
}

func (h *Handler) Update(c echo.Context) error {
	u, d, err := h.authorize(c, auth.OpUpdate)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return httpError(err)
	}
	fields, err := decodeFields(c)
	if err != nil {
		return httpError(err)
	}
	if err := h.svc.Update(c.Request().Context(), d, id, fields); err != nil {
		return httpError(err)
	}
	h.record(c, u, auth.OpUpdate, d)
	return c.JSON(http.StatusCreated, message{Response: "resource updated"})
}

func (h *Handler) Delete(c echo.Context) error {
	u, d, err := h.authorize(c, auth.OpDelete)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return httpError(err)
	}
	if err := h.svc.Delete(c.Request().Context(), d, id); err != nil {
		return httpError(err)
	}
	h.record(c, u, auth.OpDelete, d)
	return c.JSON(http.StatusOK, message{Response: "resource deleted"})
}

func pathID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("id %q is not an integer: %w", c.Param("id"), ErrInvalidRequestBody)
	}
	return id, nil
}

func requireJSON(c echo.Context) error {
	ct := c.Request().Header.Get(echo.HeaderContentType)
	if !strings.HasPrefix(ct, echo.MIMEApplicationJSON) {
		return fmt.Errorf("invalid content type, expected JSON data: %w", ErrInvalidRequestBody)
	}
	return nil
}

func bindJSON(c echo.Context, v any) error {
	if err := requireJSON(c); err != nil {
		return err
	}
	if err := c.Bind(v); err != nil {
		return fmt.Errorf("invalid JSON data: %v: %w", err, ErrInvalidRequestBody)
	}
	return nil
}

// decodeFields reads a JSON object, keeping numbers as json.Number so
// integers survive without float rounding.
func decodeFields(c echo.Context) (map[string]any, error) {
	if err := requireJSON(c); err != nil {
		return nil, err
	}
	dec := json.NewDecoder(c.Request().Body)
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("invalid JSON data: %v: %w", err, ErrInvalidRequestBody)
	}
	if fields == nil {
		return nil, fmt.Errorf("expected a JSON object: %w", ErrInvalidRequestBody)
	}
	return fields, nil
}

func (h *Handler) record(c echo.Context, u *auth.User, op auth.Operation, d auth.Decision) {
	req := c.Request()
	params := make(map[string]string, len(c.ParamNames()))
	for i, name := range c.ParamNames() {
		if i < len(c.ParamValues()) {
			params[name] = c.ParamValues()[i]
		}
	}
	rid, _ := c.Get("request_id").(string)
	entry := requestlog.Entry{
		Timestamp: time.Now(),
		User:      u,
		Request: requestlog.RequestInfo{
			RequestID:   rid,
			Method:      req.Method,
			Path:        req.URL.Path,
			Route:       c.Path(),
			Params:      params,
			Query:       req.URL.RawQuery,
			RemoteIP:    c.RealIP(),
			UserAgent:   req.UserAgent(),
			ContentType: req.Header.Get(echo.HeaderContentType),
			Operation:   op.String(),
		},
		ColumnsDropped: []string(d.Redaction),
	}
	if err := h.recorder.Record(req.Context(), entry); err != nil {
		h.logger.Error().Err(err).Str("request_id", rid).Msg("failed to record request")
	}
}

// httpError maps domain and store errors to HTTP responses.
func httpError(err error) error {
	var pgErr *pgconn.PgError
	switch {
	case errors.Is(err, auth.ErrTableNotFound),
		errors.Is(err, ErrColumnNotFound),
		errors.Is(err, ErrRecordNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, auth.ErrUnauthorized):
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, ErrInvalidRequestBody),
		errors.Is(err, ErrExhaustedIndexSet),
		errors.Is(err, ErrDateNotFound),
		errors.Is(err, ErrReferenceNotFound):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.As(err, &pgErr) && (strings.HasPrefix(pgErr.Code, "22") || strings.HasPrefix(pgErr.Code, "23")):
		return echo.NewHTTPError(http.StatusBadRequest, pgErr.Message).SetInternal(err)
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
	}
}
