// Package manager owns the loaded model and the chat session bound to it. It
// is structured into small files by concern:
//
//   - manager.go: core Manager type, constructor, simple getters.
//   - config.go: Config and package defaults; New applies defaults.
//   - types.go: lifecycle state types (State, ModelInfo, Snapshot).
//   - errors.go: error types and helpers (IsTooBusy, IsModelNotFound, ...).
//   - helpers.go: registry lookup and model loading.
//   - ensure.go: EnsureModel loads a model and restores its conversation.
//   - chat.go: Respond, Complete, Stop, Clear and the read-only views.
//   - persist.go: background checkpointing to the store after every turn.
//   - unload.go: Unload and Close.
//   - status_report.go: Snapshot/Status reporting.
//   - ops.go: background Switch.
//   - events.go, eventpub_*.go: lifecycle event publishing.
//
// Only one model is resident at a time. Loading another one first persists
// and closes the current session.
package manager
