package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/goccy/go-json"
	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"

	"github.com/hanpama/shapegen/internal/eventbus"
	"github.com/hanpama/shapegen/internal/events"
	"github.com/hanpama/shapegen/internal/ir"
	"github.com/hanpama/shapegen/internal/language"
	"github.com/hanpama/shapegen/internal/runid"
	"github.com/hanpama/shapegen/internal/schema"
)

// Handler is an http.Handler that compiles GraphQL documents against a fixed
// schema and responds with their shape trees.
type Handler struct {
	schema *schema.Schema
	cache  *lru.Cache
	opt    Options
}

type Options struct {
	// Timeout sets a default timeout if the incoming request context has none.
	// 0 means no default timeout.
	Timeout time.Duration

	// Pretty enables indented JSON responses (useful for dev).
	Pretty bool

	// MaxBodyBytes limits the size of the request body. 0 means unlimited.
	MaxBodyBytes int64

	// CORS configuration. If AllowedOrigins is empty, CORS is disabled.
	CORS CORSOptions

	// CacheSize is the number of compile results kept in memory. 0 disables
	// the cache.
	CacheSize int

	// Concurrency bounds the units compiled in parallel per request. 0 uses
	// the compiler default.
	Concurrency int

	// Validation, when set, runs the standard executable-document rules
	// before compiling.
	Validation *language.Schema

	Logger *zap.Logger
}

type Option func(*Options)

func WithTimeout(d time.Duration) Option { return func(o *Options) { o.Timeout = d } }
func WithPretty() Option                 { return func(o *Options) { o.Pretty = true } }
func WithMaxBodyBytes(n int64) Option    { return func(o *Options) { o.MaxBodyBytes = n } }
func WithCORS(origins ...string) Option {
	return func(o *Options) { o.CORS.AllowedOrigins = origins }
}
func WithCacheSize(n int) Option   { return func(o *Options) { o.CacheSize = n } }
func WithConcurrency(n int) Option { return func(o *Options) { o.Concurrency = n } }
func WithLogger(l *zap.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// WithValidation validates documents against s before compiling them.
func WithValidation(s *language.Schema) Option {
	return func(o *Options) { o.Validation = s }
}

// CORSOptions holds simple CORS settings.
type CORSOptions struct {
	AllowedOrigins []string
}

// New creates a compile handler for s.
func New(s *schema.Schema, opts ...Option) (*Handler, error) {
	if s == nil {
		return nil, errors.New("schema is nil")
	}
	op := Options{Timeout: 10 * time.Second, CacheSize: 256, Logger: zap.NewNop()}
	for _, f := range opts {
		f(&op)
	}
	h := &Handler{schema: s, opt: op}
	if op.CacheSize > 0 {
		cache, err := lru.New(op.CacheSize)
		if err != nil {
			return nil, err
		}
		h.cache = cache
	}
	return h, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := ctx.Deadline(); !ok && h.opt.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opt.Timeout)
		defer cancel()
	}

	ctx, rid := runid.NewContext(ctx)
	status := http.StatusOK
	cacheHit := false
	start := time.Now()
	eventbus.Publish(ctx, events.HTTPStart{Request: r})
	defer func() {
		elapsed := time.Since(start)
		eventbus.Publish(ctx, events.HTTPFinish{Request: r, Status: status, CacheHit: cacheHit, Duration: elapsed})
		h.opt.Logger.Debug("compile request",
			zap.String("run_id", rid),
			zap.Int("status", status),
			zap.Bool("cache_hit", cacheHit),
			zap.Duration("duration", elapsed),
		)
	}()

	if len(h.opt.CORS.AllowedOrigins) > 0 {
		setCORSHeaders(w, r, h.opt.CORS)
	}
	if r.Method == http.MethodOptions {
		status = http.StatusNoContent
		w.WriteHeader(status)
		return
	}
	if r.Method != http.MethodPost {
		status = http.StatusMethodNotAllowed
		writeJSON(w, status, errorResponse(&language.Error{Message: "method not allowed"}), h.opt.Pretty)
		return
	}

	req, rerr := parseRequest(r, h.opt.MaxBodyBytes)
	if rerr != nil {
		status = http.StatusBadRequest
		if rerr.Message == errBodyTooLargeMessage {
			status = http.StatusRequestEntityTooLarge
		}
		writeJSON(w, status, errorResponse(rerr), h.opt.Pretty)
		return
	}

	var res *CompileResponse
	var errs language.ErrorList
	res, errs, cacheHit, status = h.compile(ctx, rid, req)
	if len(errs) > 0 {
		writeJSON(w, status, errorResponse(errs...), h.opt.Pretty)
		return
	}
	writeJSON(w, status, res, h.opt.Pretty)
}

// unitsKey ignores the order and repetition of requested units; results
// always follow document order.
func unitsKey(units []string) string {
	return strings.Join(slices.Compact(slices.Sorted(slices.Values(units))), "\x00")
}

func (h *Handler) compile(ctx context.Context, rid string, req CompileRequest) (*CompileResponse, language.ErrorList, bool, int) {
	doc, err := language.ParseQueryFile(requestSourceName, req.Query)
	if err != nil {
		var ge *language.Error
		if errors.As(err, &ge) {
			return nil, language.ErrorList{ge}, false, http.StatusBadRequest
		}
		return nil, language.ErrorList{{Message: err.Error()}}, false, http.StatusBadRequest
	}
	if h.opt.Validation != nil {
		if errs := language.Validate(h.opt.Validation, req.Query); len(errs) > 0 {
			return nil, errs, false, http.StatusUnprocessableEntity
		}
	}

	key := cacheKey{fingerprint: ir.Fingerprint(doc), units: unitsKey(req.Units)}
	if h.cache != nil {
		if v, ok := h.cache.Get(key); ok {
			res := v.(*ir.Result)
			return &CompileResponse{RunID: rid, Fingerprint: res.Fingerprint, Cached: true, Units: res.Units}, nil, true, http.StatusOK
		}
	}

	opts := []ir.Option{ir.WithLogger(h.opt.Logger)}
	if h.opt.Concurrency > 0 {
		opts = append(opts, ir.WithConcurrency(h.opt.Concurrency))
	}
	if len(req.Units) > 0 {
		opts = append(opts, ir.WithUnits(req.Units...))
	}
	res, err := ir.Compile(ctx, h.schema, doc, opts...)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		h.opt.Logger.Warn("compile failed", zap.String("run_id", rid), zap.Error(err))
		return nil, language.ErrorList{{Message: err.Error()}}, false, status
	}
	if h.cache != nil {
		h.cache.Add(key, res)
	}
	return &CompileResponse{RunID: rid, Fingerprint: res.Fingerprint, Units: res.Units}, nil, false, http.StatusOK
}

const requestSourceName = "request.graphql"

type cacheKey struct {
	fingerprint uint64
	units       string
}

// ------------------ Request parsing ------------------

type CompileRequest struct {
	Query string `json:"query"`
	// Units restricts compilation to the named operations and fragments.
	Units []string `json:"units,omitempty"`
}

type CompileResponse struct {
	RunID       string     `json:"runId"`
	Fingerprint uint64     `json:"fingerprint"`
	Cached      bool       `json:"cached"`
	Units       []*ir.Unit `json:"units"`
}

func parseRequest(r *http.Request, maxBody int64) (CompileRequest, *language.Error) {
	ct := r.Header.Get("Content-Type")
	if ct != "" && ct != "application/json" && !strings.HasPrefix(ct, "application/json;") {
		return CompileRequest{}, &language.Error{Message: "unsupported Content-Type"}
	}
	defer r.Body.Close()
	reader := io.Reader(r.Body)
	if maxBody > 0 {
		reader = io.LimitReader(r.Body, maxBody+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return CompileRequest{}, &language.Error{Message: "failed to read body"}
	}
	if maxBody > 0 && int64(len(body)) > maxBody {
		return CompileRequest{}, &language.Error{Message: errBodyTooLargeMessage}
	}
	var req CompileRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return CompileRequest{}, &language.Error{Message: "invalid JSON"}
	}
	if strings.TrimSpace(req.Query) == "" {
		return CompileRequest{}, &language.Error{Message: "missing 'query'"}
	}
	return req, nil
}

// ------------------ Response formatting ------------------

type errorLocation struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

type responseError struct {
	Message   string          `json:"message"`
	Locations []errorLocation `json:"locations,omitempty"`
	Rule      string          `json:"rule,omitempty"`
}

type errorResult struct {
	Errors []responseError `json:"errors"`
}

func errorResponse(errs ...*language.Error) errorResult {
	out := errorResult{Errors: make([]responseError, len(errs))}
	for i, err := range errs {
		re := responseError{Message: err.Message, Rule: err.Rule}
		for _, loc := range err.Locations {
			re.Locations = append(re.Locations, errorLocation{Line: loc.Line, Column: loc.Column})
		}
		out.Errors[i] = re
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any, pretty bool) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	_ = enc.Encode(v)
}

const errBodyTooLargeMessage = "body too large"

func setCORSHeaders(w http.ResponseWriter, r *http.Request, opts CORSOptions) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}
	wildcard := false
	allowed := false
	for _, o := range opts.AllowedOrigins {
		if o == "*" {
			wildcard = true
		}
		if o == "*" || o == origin {
			allowed = true
		}
	}
	if !allowed {
		return
	}
	if wildcard {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	} else {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Add("Vary", "Origin")
	}
	if r.Method == http.MethodOptions {
		if hdr := r.Header.Get("Access-Control-Request-Headers"); hdr != "" {
			w.Header().Set("Access-Control-Allow-Headers", hdr)
		}
		w.Header().Set("Access-Control-Allow-Methods", "POST,OPTIONS")
	}
}
