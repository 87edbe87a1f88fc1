package types

// RespondRequest is the payload of POST /respond.
type RespondRequest struct {
	// User input for the next turn.
	// example: Why is the sky blue?
	Input string `json:"input" example:"Why is the sky blue?"`
}

// CompleteRequest is the payload of POST /complete.
type CompleteRequest struct {
	// Raw prompt, fed to the model without any template.
	// example: Once upon a time
	Prompt string `json:"prompt" example:"Once upon a time"`
}

// SwitchRequest is the payload of POST /switch.
type SwitchRequest struct {
	// Model id or path to load.
	// example: olmoe-1b-7b-q4
	Model string `json:"model" example:"olmoe-1b-7b-q4"`
}

// SwitchResponse is returned by POST /switch.
type SwitchResponse struct {
	// Operation id of the background load.
	// example: op-1
	Op string `json:"op" example:"op-1"`
}

// Usage reports inference metrics for one turn.
type Usage struct {
	// Tokens fed during prefill.
	// example: 42
	PromptTokens int `json:"prompt_tokens" example:"42"`
	// Tokens sampled during generation.
	// example: 17
	CompletionTokens int `json:"completion_tokens" example:"17"`
	// Sum of prompt and completion tokens.
	// example: 59
	TotalTokens int `json:"total_tokens" example:"59"`
	// Wall time of the generation in milliseconds.
	// example: 850
	DurationMS int64 `json:"duration_ms" example:"850"`
	// Completion tokens per second.
	// example: 20.0
	TokensPerSecond float64 `json:"tokens_per_second" example:"20.0"`
}

// TokenLine is one NDJSON line streamed by POST /respond.
type TokenLine struct {
	// Text fragment.
	// example: The sky
	Token string `json:"token" example:"The sky"`
}

// DoneLine is the final NDJSON line streamed by POST /respond.
type DoneLine struct {
	// Always true.
	// example: true
	Done bool `json:"done" example:"true"`
	// Full response text.
	Content string `json:"content"`
	// Why generation ended: stop, eos, length, cancelled, full, empty.
	// example: stop
	FinishReason string `json:"finish_reason" example:"stop"`
	// Inference metrics for the turn.
	Usage Usage `json:"usage"`
	// Error message when the turn failed.
	Error string `json:"error,omitempty"`
}

// CompleteResponse is returned by POST /complete.
type CompleteResponse struct {
	// Generated text.
	Content string `json:"content"`
	// Why generation ended.
	// example: eos
	FinishReason string `json:"finish_reason" example:"eos"`
	// Inference metrics.
	Usage Usage `json:"usage"`
}

// ModelsResponse wraps the list of models returned by GET /models.
type ModelsResponse struct {
	// List of available models.
	Models []Model `json:"models"`
}

// HistoryResponse is returned by GET /history.
type HistoryResponse struct {
	// Conversation turns, oldest first.
	Turns []Turn `json:"turns"`
}

// OutputResponse is returned by GET /output.
type OutputResponse struct {
	// Text accumulated for the current or last turn.
	// example: The sky appears blue because
	Output string `json:"output" example:"The sky appears blue because"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Overall manager state (e.g., unloaded, loading, ready, error).
	// example: ready
	State string `json:"state" example:"ready"`
	// Currently loaded model, if any.
	// example: olmoe-1b-7b-q4
	ModelID string `json:"model_id,omitempty" example:"olmoe-1b-7b-q4"`
	// Session state (idle, preparing, generating, finishing, cancelled, full).
	// example: idle
	SessionState string `json:"session_state,omitempty" example:"idle"`
	// Template preset in use.
	// example: olmoe
	Template string `json:"template,omitempty" example:"olmoe"`
	// Tokens resident in the engine.
	// example: 512
	TokenCount int `json:"token_count" example:"512"`
	// Maximum tokens the context window holds.
	// example: 4096
	MaxTokenCount int `json:"max_token_count" example:"4096"`
	// Number of turns in the conversation.
	// example: 6
	HistoryLen int `json:"history_len" example:"6"`
	// Metrics of the last finished turn.
	LastUsage *Usage `json:"last_usage,omitempty"`
	// Last error observed by the manager (if any).
	LastError string `json:"last_error,omitempty"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
	// Total number of model loads.
	// example: 2
	LoadsTotal uint64 `json:"loads_total" example:"2"`
	// Total number of history evictions.
	// example: 4
	EvictionsTotal uint64 `json:"evictions_total" example:"4"`
}
