package usecases

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	domain "github.com/entra-mcp/entra-mcp/internal/server-plugins/registration/domain"
)

const systemPromptTemplate = `You parse natural-language commands about Microsoft Entra ID application registrations.
Reply with a single JSON object and nothing else, using exactly these fields:
- "action": one of "create_app_registration", "update_app_registration", "delete_app_registration", or "unknown" when the command is not about creating, updating or deleting an application registration
- "appName": the display name of the application registration
- "description": the purpose of the application registration
- "permissions": an array of Microsoft Graph permission names taken from this list: %s
- "justification": why the permissions are needed, if the command says so
Leave a field empty when the command does not state it. Never invent permission names.`

// PromptSettings are the sampling limits passed to the interpreter.
type PromptSettings struct {
	Temperature float32
	MaxTokens   int
}

// Extractor turns raw command text into a CommandIntent through the interpreter.
type Extractor struct {
	interpreter domain.Interpreter
	prompt      domain.PromptContext
	timeout     time.Duration
	logger      *slog.Logger
}

func NewExtractor(
	interpreter domain.Interpreter,
	catalog *domain.PermissionCatalog,
	settings PromptSettings,
	timeout time.Duration,
	logger *slog.Logger,
) *Extractor {
	return &Extractor{
		interpreter: interpreter,
		prompt: domain.PromptContext{
			SystemPrompt: BuildSystemPrompt(catalog),
			Temperature:  settings.Temperature,
			MaxTokens:    settings.MaxTokens,
		},
		timeout: timeout,
		logger:  logger,
	}
}

// BuildSystemPrompt lists the catalog names so the model stays inside them.
func BuildSystemPrompt(catalog *domain.PermissionCatalog) string {
	return fmt.Sprintf(systemPromptTemplate, strings.Join(catalog.Names(), ", "))
}

// Extract makes exactly one interpreter call; there are no retries.
func (e *Extractor) Extract(ctx context.Context, rawText string) (domain.CommandIntent, error) {
	text := strings.TrimSpace(rawText)
	if text == "" {
		return domain.CommandIntent{}, domain.ErrEmptyCommand
	}

	callCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	started := time.Now()
	reply, err := e.interpreter.Interpret(callCtx, e.prompt, text)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return domain.CommandIntent{}, domain.NewUpstreamUnavailableError("the language model did not answer in time", err)
		}
		return domain.CommandIntent{}, domain.NewUpstreamUnavailableError("the language model call failed", err)
	}
	if strings.TrimSpace(reply) == "" {
		return domain.CommandIntent{}, domain.NewUpstreamUnavailableError("the language model returned an empty reply", nil)
	}

	intent, err := ParseIntentReply(reply)
	if err != nil {
		e.logger.Warn("Unparseable interpreter reply",
			"duration", time.Since(started),
			"reply_length", len(reply),
			"error", err)
		return domain.CommandIntent{}, err
	}

	e.logger.Debug("Command interpreted",
		"duration", time.Since(started),
		"kind", intent.Kind,
		"raw_action", intent.RawAction,
		"permissions", len(intent.RequestedPermissions))
	return intent, nil
}

type intentReply struct {
	Action        *string         `json:"action"`
	AppName       string          `json:"appName"`
	Description   string          `json:"description"`
	Permissions   json.RawMessage `json:"permissions"`
	Justification string          `json:"justification"`
}

// ParseIntentReply decodes the model's reply. Code fences and surrounding
// prose are ignored; the outermost JSON object is the payload.
func ParseIntentReply(reply string) (domain.CommandIntent, error) {
	body, ok := outermostObject(stripCodeFences(reply))
	if !ok {
		return domain.CommandIntent{}, domain.NewMalformedResponseError("the reply contains no JSON object", nil)
	}

	var wire intentReply
	if err := json.Unmarshal([]byte(body), &wire); err != nil {
		return domain.CommandIntent{}, domain.NewMalformedResponseError("the reply does not match the intent shape", err)
	}
	if wire.Action == nil || strings.TrimSpace(*wire.Action) == "" {
		return domain.CommandIntent{}, domain.NewMalformedResponseError("the reply has no action", nil)
	}

	permissions, err := decodePermissions(wire.Permissions)
	if err != nil {
		return domain.CommandIntent{}, domain.NewMalformedResponseError("the permissions field is invalid", err)
	}

	action := strings.TrimSpace(*wire.Action)
	return domain.NewCommandIntent(
		domain.ParseOperationKind(action),
		action,
		strings.TrimSpace(wire.AppName),
		strings.TrimSpace(wire.Description),
		permissions,
		strings.TrimSpace(wire.Justification),
	), nil
}

// decodePermissions accepts an array of strings or one comma-separated string.
func decodePermissions(raw json.RawMessage) ([]string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	switch trimmed[0] {
	case '[':
		var list []string
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, err
		}
		return list, nil
	case '"':
		var joined string
		if err := json.Unmarshal(trimmed, &joined); err != nil {
			return nil, err
		}
		return strings.Split(joined, ","), nil
	default:
		return nil, fmt.Errorf("expected an array or a string, got %s", trimmed)
	}
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	if end := strings.LastIndex(s, "```"); end >= 0 {
		s = s[:end]
	}
	return strings.TrimSpace(s)
}

func outermostObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}
