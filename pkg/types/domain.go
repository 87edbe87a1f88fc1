package types

// Model represents a discoverable or loadable LLM model on disk.
type Model struct {
	// Stable identifier for the model.
	// example: tinyllama-q4
	ID string `json:"id" example:"tinyllama-q4"`
	// Human-friendly name.
	// example: TinyLlama (Q4)
	Name string `json:"name" example:"TinyLlama (Q4)"`
	// Absolute path to the model file on disk.
	// example: /home/user/models/TinyLlama.Q4_K_M.gguf
	Path string `json:"path" example:"/home/user/models/TinyLlama.Q4_K_M.gguf"`
	// Quantization level or variant string.
	// example: Q4_K_M
	Quant string `json:"quant" example:"Q4_K_M"`
	// Optional family (e.g., llama, mistral, phi).
	// example: llama
	Family string `json:"family,omitempty" example:"llama"`
}

// Role identifies who authored a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one immutable entry of a conversation.
type Turn struct {
	// Random identifier assigned when the turn is appended.
	// example: 6f1c3a52-8f0e-4b8e-9d43-2a4f1c8e1b70
	ID string `json:"id" example:"6f1c3a52-8f0e-4b8e-9d43-2a4f1c8e1b70"`
	// Author of the turn.
	// example: user
	Role Role `json:"role" example:"user"`
	// Text of the turn.
	// example: Why is the sky blue?
	Content string `json:"content" example:"Why is the sky blue?"`
}
