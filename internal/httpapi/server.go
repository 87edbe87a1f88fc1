package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"chatd/internal/session"
	"chatd/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	ListModels() []types.Model
	Status() types.StatusResponse
	Ready() bool
	Respond(ctx context.Context, input string) (*session.Stream, error)
	Complete(ctx context.Context, prompt string) (string, session.Result, error)
	Stop()
	Clear() error
	History() []types.Turn
	Output() string
	Switch(ctx context.Context, model string) (string, error)
}

type api struct{ svc Service }

func NewMux(svc Service) http.Handler {
	a := &api{svc: svc}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	// Compression for JSON endpoints; NDJSON is not in the type list
	r.Use(middleware.Compress(5))
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
			MaxAge:         300,
		}))
	}

	r.Get("/models", a.models)
	r.Get("/status", a.status)
	r.Get("/history", a.history)
	r.Get("/output", a.output)
	r.Post("/stop", a.stop)
	r.Post("/clear", a.clear)
	r.Post("/switch", a.switchModel)
	r.Group(func(r chi.Router) {
		r.Use(rateLimit)
		r.Post("/respond", a.respond)
		r.Post("/complete", a.complete)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("loading"))
	})
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	MountSwagger(r)
	return r
}

func rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l := generationLimiter; l != nil && !l.Allow() {
			IncrementBackpressure("rate_limit")
			w.Header().Set("Retry-After", "1")
			writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// decodeJSON enforces the content type and body limit, then decodes into v.
// It writes the error response and returns false on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		// oversized bodies also land here; 400 avoids leaking the limit
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// generationContext joins the server base context with the request context
// and applies the configured timeout.
func generationContext(r *http.Request) (context.Context, context.CancelFunc) {
	joined, cancelJoin := joinContexts(serverBaseCtx, r.Context())
	if d := respondDeadline(); d > 0 {
		ctx, cancel := context.WithTimeout(joined, d)
		return ctx, func() { cancel(); cancelJoin() }
	}
	return joined, cancelJoin
}

// respond godoc
// @Summary      Send the next chat message
// @Description  Streams the reply as NDJSON: one {"token":...} line per fragment, then a final {"done":true,...} line.
// @Tags         chat
// @Accept       json
// @Produce      application/x-ndjson
// @Param        request  body      types.RespondRequest  true  "User input"
// @Success      200      {object}  types.DoneLine
// @Failure      400      {object}  types.ErrorResponse
// @Failure      404      {object}  types.ErrorResponse
// @Failure      415      {object}  types.ErrorResponse
// @Failure      422      {object}  types.ErrorResponse
// @Failure      429      {object}  types.ErrorResponse
// @Failure      503      {object}  types.ErrorResponse
// @Router       /respond [post]
func (a *api) respond(w http.ResponseWriter, r *http.Request) {
	var req types.RespondRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	// Whitespace is a valid turn; only an absent input is rejected.
	if req.Input == "" {
		writeJSONError(w, http.StatusBadRequest, "input is required")
		return
	}
	rl := newRequestLog(r)
	rl.begin(map[string]any{"input_bytes": len(req.Input)})

	ctx, cancel := generationContext(r)
	defer cancel()
	st, err := a.svc.Respond(ctx, req.Input)
	if err != nil {
		code := statusFor(err)
		writeJSONError(w, code, err.Error())
		rl.end(code, err)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	out := io.Writer(w)
	if rl.lvl >= LevelDebug {
		out = io.MultiWriter(w, &loggingLineWriter{rid: rl.rid})
	}
	flush := func() {}
	if f, ok := w.(http.Flusher); ok {
		flush = f.Flush
	}
	enc := json.NewEncoder(out)
	writeOK := true
	for frag := range st.Fragments() {
		if !writeOK {
			continue
		}
		if err := enc.Encode(types.TokenLine{Token: frag}); err != nil {
			// client is gone; keep draining so the worker can finish
			writeOK = false
			cancel()
			continue
		}
		flush()
	}
	res := st.Wait()
	done := types.DoneLine{
		Done:         true,
		Content:      res.Content,
		FinishReason: string(res.FinishReason),
		Usage:        res.Usage.Wire(),
	}
	if res.Err != nil {
		done.Error = res.Err.Error()
	}
	if writeOK {
		_ = enc.Encode(done)
		flush()
	}
	rl.end(http.StatusOK, res.Err)
}

// complete godoc
// @Summary      One-shot completion
// @Description  Feeds the prompt to the model verbatim. The conversation is not changed.
// @Tags         chat
// @Accept       json
// @Produce      json
// @Param        request  body      types.CompleteRequest  true  "Prompt"
// @Success      200      {object}  types.CompleteResponse
// @Failure      400      {object}  types.ErrorResponse
// @Failure      422      {object}  types.ErrorResponse
// @Failure      429      {object}  types.ErrorResponse
// @Failure      503      {object}  types.ErrorResponse
// @Router       /complete [post]
func (a *api) complete(w http.ResponseWriter, r *http.Request) {
	var req types.CompleteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Prompt == "" {
		writeJSONError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	rl := newRequestLog(r)
	rl.begin(map[string]any{"prompt_bytes": len(req.Prompt)})

	ctx, cancel := generationContext(r)
	defer cancel()
	text, res, err := a.svc.Complete(ctx, req.Prompt)
	if err != nil {
		code := statusFor(err)
		writeJSONError(w, code, err.Error())
		rl.end(code, err)
		return
	}
	writeJSON(w, http.StatusOK, types.CompleteResponse{
		Content:      text,
		FinishReason: string(res.FinishReason),
		Usage:        res.Usage.Wire(),
	})
	rl.end(http.StatusOK, nil)
}

// stop godoc
// @Summary      Cancel the generation in flight
// @Description  No-op when idle.
// @Tags         chat
// @Success      204
// @Router       /stop [post]
func (a *api) stop(w http.ResponseWriter, r *http.Request) {
	a.svc.Stop()
	w.WriteHeader(http.StatusNoContent)
}

// clear godoc
// @Summary      Clear the conversation
// @Tags         chat
// @Success      204
// @Failure      503  {object}  types.ErrorResponse
// @Router       /clear [post]
func (a *api) clear(w http.ResponseWriter, r *http.Request) {
	if err := a.svc.Clear(); err != nil {
		writeJSONError(w, statusFor(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// history godoc
// @Summary      Conversation history
// @Tags         chat
// @Produce      json
// @Success      200  {object}  types.HistoryResponse
// @Router       /history [get]
func (a *api) history(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, types.HistoryResponse{Turns: a.svc.History()})
}

// output godoc
// @Summary      Text of the current or last turn
// @Tags         chat
// @Produce      json
// @Success      200  {object}  types.OutputResponse
// @Router       /output [get]
func (a *api) output(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, types.OutputResponse{Output: a.svc.Output()})
}

// models godoc
// @Summary      List available models
// @Tags         models
// @Produce      json
// @Success      200  {object}  types.ModelsResponse
// @Router       /models [get]
func (a *api) models(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, types.ModelsResponse{Models: a.svc.ListModels()})
}

// status godoc
// @Summary      Manager and session status
// @Tags         models
// @Produce      json
// @Success      200  {object}  types.StatusResponse
// @Router       /status [get]
func (a *api) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.svc.Status())
}

// switchModel godoc
// @Summary      Load another model
// @Description  Starts a background load and returns its operation id. Poll /status for progress.
// @Tags         models
// @Accept       json
// @Produce      json
// @Param        request  body      types.SwitchRequest  true  "Model id or path"
// @Success      202      {object}  types.SwitchResponse
// @Failure      400      {object}  types.ErrorResponse
// @Failure      404      {object}  types.ErrorResponse
// @Router       /switch [post]
func (a *api) switchModel(w http.ResponseWriter, r *http.Request) {
	var req types.SwitchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Model) == "" {
		writeJSONError(w, http.StatusBadRequest, "model is required")
		return
	}
	op, err := a.svc.Switch(r.Context(), req.Model)
	if err != nil {
		writeJSONError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, types.SwitchResponse{Op: op})
}
