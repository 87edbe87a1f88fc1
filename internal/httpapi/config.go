package httpapi

import (
	"time"

	"golang.org/x/time/rate"
)

// maxBodyBytes controls the maximum allowed request body size for JSON endpoints.
var maxBodyBytes int64 = 1 << 20

// SetMaxBodyBytes allows configuring the maximum request body size.
func SetMaxBodyBytes(n int64) {
	if n <= 0 {
		maxBodyBytes = 1 << 20
		return
	}
	maxBodyBytes = n
}

// respondTimeout bounds a single /respond or /complete request.
// Zero means no additional timeout beyond server/connection timeouts.
var respondTimeout = int64(0) // seconds

// SetRespondTimeoutSeconds sets the generation timeout in seconds (0 disables).
func SetRespondTimeoutSeconds(sec int64) {
	if sec < 0 {
		sec = 0
	}
	respondTimeout = sec
}

func respondDeadline() time.Duration { return time.Duration(respondTimeout) * time.Second }

// generationLimiter throttles /respond and /complete. Nil disables it.
var generationLimiter *rate.Limiter

// SetRateLimit allows perSec generations per second with the given burst.
// A non-positive rate disables limiting.
func SetRateLimit(perSec float64, burst int) {
	if perSec <= 0 {
		generationLimiter = nil
		return
	}
	if burst <= 0 {
		burst = 1
	}
	generationLimiter = rate.NewLimiter(rate.Limit(perSec), burst)
}

// CORS configuration (opt-in). If disabled, no CORS middleware is added.
var (
	corsEnabled        bool
	corsAllowedOrigins []string
	corsAllowedMethods []string
	corsAllowedHeaders []string
)

// SetCORSOptions configures CORS behavior for the HTTP server. Empty method
// and header lists fall back to what the API uses.
func SetCORSOptions(enabled bool, origins, methods, headers []string) {
	corsEnabled = enabled
	corsAllowedOrigins = append([]string(nil), origins...)
	corsAllowedMethods = append([]string(nil), methods...)
	corsAllowedHeaders = append([]string(nil), headers...)
	if len(corsAllowedMethods) == 0 {
		corsAllowedMethods = []string{"GET", "POST", "OPTIONS"}
	}
	if len(corsAllowedHeaders) == 0 {
		corsAllowedHeaders = []string{"Content-Type", "X-Log-Level"}
	}
}
