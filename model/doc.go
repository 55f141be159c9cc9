// Package model defines the provider-agnostic abstractions used by the
// assistant host to drive a language model with tool calling.
//
// Core goals:
//   - Unify streaming and non-streaming generation behind one interface
//   - Expose catalog agents to models as function definitions
//   - Keep request/response shapes minimal and transport independent
//   - Facilitate deterministic tests (ScriptedModel)
//
// Providers (model/openai, model/anthropic) implement Model so the host stays
// decoupled from vendor SDKs.
package model
