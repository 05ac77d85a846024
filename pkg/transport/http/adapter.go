package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/rs/cors"

	"github.com/rhuss/watchtracker/pkg/api"
	"github.com/rhuss/watchtracker/pkg/debug"
	"github.com/rhuss/watchtracker/pkg/transport"
)

// HeaderRequestID carries the request ID in both directions.
const HeaderRequestID = "X-Request-ID"

// HealthChecker is implemented by services that can report store
// readiness. ledger.Service implements it.
type HealthChecker interface {
	Healthy(ctx context.Context) error
}

// Adapter serves the watchtracker API over HTTP.
// It decodes requests, runs each operation through the middleware chain,
// and serializes results.
type Adapter struct {
	service transport.EntryService
	chain   transport.Middleware
	mux     *http.ServeMux
	config  Config
}

// Config holds configuration for the HTTP adapter.
type Config struct {
	MaxBodySize int64

	// CORSAllowedOrigins defaults to any origin.
	CORSAllowedOrigins []string
	// CORSMaxAge is the preflight cache lifetime in seconds.
	CORSMaxAge int

	// HTTPMiddleware wraps the route mux directly, inside request ID and
	// CORS handling. Handlers here see r.Pattern after the mux has run.
	HTTPMiddleware []func(http.Handler) http.Handler
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		MaxBodySize: 1 << 20, // 1 MB
		CORSMaxAge:  10,
	}
}

// NewAdapter creates an HTTP adapter for service. Middleware is applied to
// every operation call in the given order.
func NewAdapter(service transport.EntryService, cfg Config, middlewares ...transport.Middleware) *Adapter {
	a := &Adapter{
		service: service,
		chain:   transport.Chain(middlewares...),
		mux:     http.NewServeMux(),
		config:  cfg,
	}

	a.mux.HandleFunc("GET /services", a.handleListServices)
	a.mux.HandleFunc("POST /add_entry", a.handleAddEntry)
	a.mux.HandleFunc("GET /get_entries", a.handleGetEntriesQuery)
	a.mux.HandleFunc("POST /get_entries", a.handleGetEntriesBody)
	a.mux.HandleFunc("GET /healthz", a.handleHealth)

	return a
}

// Handle registers an additional route (e.g. the metrics endpoint).
func (a *Adapter) Handle(pattern string, h http.Handler) {
	a.mux.Handle(pattern, h)
}

// Handler returns the http.Handler for this adapter. Use this to integrate
// with an http.Server or test with httptest. CORS and request ID
// propagation wrap everything else.
func (a *Adapter) Handler() http.Handler {
	var h http.Handler = a.mux
	for i := len(a.config.HTTPMiddleware) - 1; i >= 0; i-- {
		h = a.config.HTTPMiddleware[i](h)
	}
	h = httpRequestIDMiddleware(h)

	origins := a.config.CORSAllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{HeaderRequestID},
		MaxAge:         a.config.CORSMaxAge,
	})
	return c.Handler(h)
}

// httpRequestIDMiddleware makes sure every request carries an ID. A
// client-supplied X-Request-ID is kept; otherwise one is generated. The
// ID is put in the context for the transport middleware and echoed in the
// response header.
func httpRequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if id == "" {
			id = transport.NewRequestID()
		}
		w.Header().Set(HeaderRequestID, id)
		next.ServeHTTP(w, r.WithContext(transport.ContextWithRequestID(r.Context(), id)))
	})
}

// run dispatches one operation through the middleware chain and writes
// any error it returns.
func (a *Adapter) run(w http.ResponseWriter, r *http.Request, call *transport.Call, fn func(ctx context.Context) error) {
	h := a.chain(transport.HandlerFunc(func(ctx context.Context, _ *transport.Call) error {
		return fn(ctx)
	}))
	if err := h.Handle(r.Context(), call); err != nil {
		transport.WriteError(w, err)
	}
}

// handleListServices handles GET /services.
func (a *Adapter) handleListServices(w http.ResponseWriter, r *http.Request) {
	a.run(w, r, &transport.Call{Operation: transport.OpListServices}, func(ctx context.Context) error {
		list, err := a.service.ListServices(ctx)
		if err != nil {
			return err
		}
		transport.WriteJSON(w, list)
		return nil
	})
}

// handleAddEntry handles POST /add_entry. Fields come from the query
// string, overlaid by a JSON object or form body.
func (a *Adapter) handleAddEntry(w http.ResponseWriter, r *http.Request) {
	fields, apiErr, status := a.decodeFields(w, r)
	if apiErr != nil {
		transport.WriteErrorResponse(w, apiErr, status)
		return
	}

	req, apiErr := api.AddEntryRequestFromFields(fields)
	if apiErr != nil {
		transport.WriteAPIError(w, apiErr)
		return
	}

	a.run(w, r, &transport.Call{Operation: transport.OpAddEntry, Service: req.Service}, func(ctx context.Context) error {
		res, err := a.service.AddEntry(ctx, req)
		if err != nil {
			return err
		}
		transport.WriteJSON(w, res)
		return nil
	})
}

// handleGetEntriesQuery handles GET /get_entries with entry_ids given as
// comma-separated and/or repeated query parameters.
func (a *Adapter) handleGetEntriesQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := &api.GetEntriesRequest{
		Service:  q.Get(api.FieldService),
		EntryIDs: splitCommaList(q[api.FieldEntryIDs]),
	}
	a.getEntries(w, r, req)
}

// handleGetEntriesBody handles POST /get_entries. A JSON body carries
// entry_ids as a list or a single string; form and query input use
// repeated entry_ids values.
func (a *Adapter) handleGetEntriesBody(w http.ResponseWriter, r *http.Request) {
	mediaType, apiErr := a.mediaType(r)
	if apiErr != nil {
		transport.WriteErrorResponse(w, apiErr, http.StatusUnsupportedMediaType)
		return
	}

	req := &api.GetEntriesRequest{}
	if mediaType == "application/json" {
		body, apiErr, status := a.readBody(w, r)
		if apiErr != nil {
			transport.WriteErrorResponse(w, apiErr, status)
			return
		}
		if err := json.Unmarshal(body, req); err != nil {
			transport.WriteErrorResponse(w, decodeError(err), http.StatusBadRequest)
			return
		}
	} else {
		if apiErr, status := a.parseForm(w, r); apiErr != nil {
			transport.WriteErrorResponse(w, apiErr, status)
			return
		}
		req.Service = r.Form.Get(api.FieldService)
		req.EntryIDs = r.Form[api.FieldEntryIDs]
	}

	a.getEntries(w, r, req)
}

func (a *Adapter) getEntries(w http.ResponseWriter, r *http.Request, req *api.GetEntriesRequest) {
	a.run(w, r, &transport.Call{Operation: transport.OpGetEntries, Service: req.Service}, func(ctx context.Context) error {
		entries, err := a.service.GetEntries(ctx, req)
		if err != nil {
			return err
		}
		transport.WriteJSON(w, entries)
		return nil
	})
}

// handleHealth handles GET /healthz.
func (a *Adapter) handleHealth(w http.ResponseWriter, r *http.Request) {
	if hc, ok := a.service.(HealthChecker); ok {
		if err := hc.Healthy(r.Context()); err != nil {
			debug.Log(debug.CategoryTransport, "health check failed", "error", err)
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok"))
}

// decodeFields merges query parameters with the request body into the
// flat field map add_entry expects. Body values win over query values.
func (a *Adapter) decodeFields(w http.ResponseWriter, r *http.Request) (map[string]any, *api.APIError, int) {
	mediaType, apiErr := a.mediaType(r)
	if apiErr != nil {
		return nil, apiErr, http.StatusUnsupportedMediaType
	}

	fields := valuesToFields(r.URL.Query())

	if mediaType == "application/json" {
		body, apiErr, status := a.readBody(w, r)
		if apiErr != nil {
			return nil, apiErr, status
		}
		if len(strings.TrimSpace(string(body))) == 0 {
			return fields, nil, 0
		}
		obj, err := api.DecodeObject(body)
		if err != nil {
			return nil, decodeError(err), http.StatusBadRequest
		}
		if obj == nil {
			return nil, api.NewInvalidRequestError("body", "request body must be a JSON object"), http.StatusBadRequest
		}
		for k, v := range obj {
			fields[k] = v
		}
		return fields, nil, 0
	}

	if apiErr, status := a.parseForm(w, r); apiErr != nil {
		return nil, apiErr, status
	}
	for k, v := range valuesToFields(r.PostForm) {
		fields[k] = v
	}
	return fields, nil, 0
}

// mediaType returns the request's media type, accepting JSON, urlencoded
// and multipart forms, or no body at all ("").
func (a *Adapter) mediaType(r *http.Request) (string, *api.APIError) {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return "", nil
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return "", api.NewInvalidRequestError("content_type", "malformed Content-Type")
	}
	switch mediaType {
	case "application/json", "application/x-www-form-urlencoded", "multipart/form-data":
		return mediaType, nil
	}
	return "", api.NewInvalidRequestError("content_type",
		"Content-Type must be application/json, application/x-www-form-urlencoded or multipart/form-data")
}

func (a *Adapter) readBody(w http.ResponseWriter, r *http.Request) ([]byte, *api.APIError, int) {
	r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		apiErr, status := a.bodyError(err)
		return nil, apiErr, status
	}
	debug.Raw(debug.CategoryTransport, string(body))
	return body, nil, 0
}

func (a *Adapter) parseForm(w http.ResponseWriter, r *http.Request) (*api.APIError, int) {
	r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)
	var err error
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		err = r.ParseMultipartForm(a.config.MaxBodySize)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		apiErr, status := a.bodyError(err)
		return apiErr, status
	}
	return nil, 0
}

func (a *Adapter) bodyError(err error) (*api.APIError, int) {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return api.NewInvalidRequestError("body", fmt.Sprintf("request body too large (max %d bytes)", a.config.MaxBodySize)),
			http.StatusRequestEntityTooLarge
	}
	return api.NewInvalidRequestError("body", "reading body: "+err.Error()), http.StatusBadRequest
}

// decodeError keeps field-level validation errors from custom decoders and
// reports anything else as malformed JSON.
func decodeError(err error) *api.APIError {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return api.NewInvalidRequestError("body", "invalid JSON: "+err.Error())
}

// valuesToFields converts url.Values into attribute values: a single value
// stays a string, repeated keys become a list.
func valuesToFields(values map[string][]string) map[string]any {
	fields := make(map[string]any, len(values))
	for k, vs := range values {
		switch len(vs) {
		case 0:
		case 1:
			fields[k] = vs[0]
		default:
			list := make([]any, len(vs))
			for i, v := range vs {
				list[i] = v
			}
			fields[k] = list
		}
	}
	return fields
}

// splitCommaList expands "a,b" style values; repeated parameters are
// concatenated.
func splitCommaList(values []string) []string {
	var out []string
	for _, v := range values {
		out = append(out, strings.Split(v, ",")...)
	}
	return out
}
