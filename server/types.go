package server

import "github.com/hupe1980/agentcatalog/core"

type historyMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	UserInput           string           `json:"user_input"`
	ConversationHistory []historyMessage `json:"conversation_history"`
	UserGUID            string           `json:"user_guid"`
	SessionID           string           `json:"session_id"`
}

// history drops system turns; the assistant renders its own prompt.
func (r chatRequest) history() []core.Content {
	out := make([]core.Content, 0, len(r.ConversationHistory))
	for _, m := range r.ConversationHistory {
		if m.Content == "" {
			continue
		}
		switch m.Role {
		case "user", "assistant":
			out = append(out, core.NewTextContent(m.Role, m.Content))
		}
	}
	return out
}

type chatResponse struct {
	AssistantResponse string   `json:"assistant_response"`
	VoiceResponse     string   `json:"voice_response"`
	AgentLogs         []string `json:"agent_logs"`
	UserGUID          string   `json:"user_guid"`
	SessionID         string   `json:"session_id,omitempty"`
}

type performRequest struct {
	SessionID string         `json:"session_id"`
	UserGUID  string         `json:"user_guid"`
	Args      map[string]any `json:"args"`
}

type performResponse struct {
	InvocationID string `json:"invocation_id"`
	Agent        string `json:"agent"`
	Output       string `json:"output"`
	DurationMS   int64  `json:"duration_ms"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
