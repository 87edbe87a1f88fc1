package httpapi

import (
	"bytes"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

var zlog atomic.Pointer[zerolog.Logger]

// SetLogger installs the structured logger used by the HTTP layer.
func SetLogger(l zerolog.Logger) { zlog.Store(&l) }

func logger() *zerolog.Logger {
	if l := zlog.Load(); l != nil {
		return l
	}
	nop := zerolog.Nop()
	return &nop
}

// loggingLineWriter logs complete NDJSON lines at debug level.
type loggingLineWriter struct {
	buf []byte
	rid string
}

func (lw *loggingLineWriter) Write(p []byte) (int, error) {
	lw.buf = append(lw.buf, p...)
	for {
		idx := bytes.IndexByte(lw.buf, '\n')
		if idx < 0 {
			break
		}
		if idx > 0 {
			ev := logger().Debug()
			if lw.rid != "" {
				ev = ev.Str("request_id", lw.rid)
			}
			ev.RawJSON("line", lw.buf[:idx]).Msg("respond>")
		}
		lw.buf = lw.buf[idx+1:]
	}
	return len(p), nil
}

// LogLevel controls per-request logging behavior.
type LogLevel int

const (
	LevelOff LogLevel = iota
	LevelError
	LevelInfo
	LevelDebug
)

func parseLevel(s string) LogLevel {
	switch s {
	case "off", "":
		return LevelOff
	case "error":
		return LevelError
	case "info":
		return LevelInfo
	case "debug":
		return LevelDebug
	default:
		return LevelInfo
	}
}

// global default, read once
var defaultLogLevel = parseLevel(os.Getenv("CHATD_LOG_LEVEL"))

func requestLogLevel(r *http.Request) LogLevel {
	if v := r.URL.Query().Get("log"); v != "" {
		if v == "1" {
			return LevelDebug
		}
		return parseLevel(v)
	}
	if v := r.Header.Get("X-Log-Level"); v != "" {
		return parseLevel(v)
	}
	return defaultLogLevel
}

// requestLog records the start and end of a generation request at the
// request's log level.
type requestLog struct {
	lvl   LogLevel
	rid   string
	path  string
	start time.Time
}

func newRequestLog(r *http.Request) *requestLog {
	return &requestLog{
		lvl:   requestLogLevel(r),
		rid:   middleware.GetReqID(r.Context()),
		path:  r.URL.Path,
		start: time.Now(),
	}
}

func (rl *requestLog) event(lvl LogLevel) *zerolog.Event {
	if rl.lvl < lvl {
		return nil
	}
	var ev *zerolog.Event
	if lvl == LevelError {
		ev = logger().Error()
	} else {
		ev = logger().Info()
	}
	ev = ev.Str("path", rl.path)
	if rl.rid != "" {
		ev = ev.Str("request_id", rl.rid)
	}
	return ev
}

func (rl *requestLog) begin(fields map[string]any) {
	if ev := rl.event(LevelInfo); ev != nil {
		ev.Fields(fields).Msg("generation start")
	}
}

func (rl *requestLog) end(status int, err error) {
	lvl := LevelInfo
	if status >= http.StatusInternalServerError {
		lvl = LevelError
	}
	if ev := rl.event(lvl); ev != nil {
		if err != nil {
			ev = ev.Err(err)
		}
		ev.Int("status", status).Dur("dur", time.Since(rl.start)).Msg("generation end")
	}
}
