package assistant

import (
	"text/template"

	"github.com/hupe1980/agentcatalog/core"
	"github.com/hupe1980/agentcatalog/internal/util"
)

// VoiceDelimiter separates the formatted answer from the short spoken reply.
const VoiceDelimiter = "|||VOICE|||"

// DefaultPromptTemplate renders the system prompt. It receives PromptData.
const DefaultPromptTemplate = `You are {{.Name}}{{if .Personality}}, {{.Personality}}{{end}}.
Today is {{.Date}}.
{{- if .SharedMemories}}

Shared memories:
{{- range .SharedMemories}}
- {{.Message}} ({{.Type}}, {{.Date}})
{{- end}}
{{- end}}
{{- if .UserMemories}}

What you remember about this user:
{{- range .UserMemories}}
- {{.Message}} ({{.Type}}, {{.Date}})
{{- end}}
{{- end}}
{{- if .Agents}}

You can call these agents: {{join ", " .Agents}}.
{{- end}}

Store anything the user asks you to remember with ManageMemory and look up earlier
memories with ContextMemory.
Answer in markdown. Then write ` + VoiceDelimiter + ` followed by one or two short
sentences suitable for speech.`

// PromptData is the input of the system prompt template.
type PromptData struct {
	Name           string
	Personality    string
	Date           string
	UserGUID       string
	SharedMemories []core.MemoryEntry
	UserMemories   []core.MemoryEntry
	Agents         []string
}

func parsePrompt(text string) (*template.Template, error) {
	if text == "" {
		text = DefaultPromptTemplate
	}
	return util.ParseTemplate("system", text)
}
