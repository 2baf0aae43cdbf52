package server

import (
	"encoding/json"
	"log/slog"

	regdomain "github.com/entra-mcp/entra-mcp/internal/server-plugins/registration/domain"
	"github.com/mark3labs/mcp-go/mcp"
)

// ToolStatus represents the high-level status of a tool call
type ToolStatus string

const (
	ToolStatusOK      ToolStatus = "ok"
	ToolStatusError   ToolStatus = "error"
	ToolStatusPartial ToolStatus = "partial"
)

// ToolLink points the client at a follow-up tool call
type ToolLink struct {
	Rel    string         `json:"rel"`
	Tool   string         `json:"tool"`
	Params map[string]any `json:"params,omitempty"`
}

// ToolResponse is the canonical envelope returned by tools
type ToolResponse struct {
	Status    ToolStatus `json:"status"`
	Code      string     `json:"code,omitempty"`
	Message   string     `json:"message,omitempty"`
	RequestID string     `json:"requestId,omitempty"`
	Data      any        `json:"data,omitempty"`
	Links     []ToolLink `json:"links,omitempty"`
	Hint      string     `json:"hint,omitempty"`
}

// marshal pretty JSON for readability in clients
func (r ToolResponse) marshal(logger *slog.Logger) string {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		if logger != nil {
			logger.Error("failed to marshal tool response", "error", err, "code", r.Code)
		}
		fallback := ToolResponse{Status: ToolStatusError, Code: "tool_response_marshal_error", Message: "failed to serialize tool response"}
		fb, _ := json.MarshalIndent(fallback, "", "  ")
		return string(fb)
	}
	return string(b)
}

// NewResult builds an MCP result from a ToolResponse in one line
func NewResult(resp ToolResponse) *mcp.CallToolResult {
	return NewResultWithLogger(resp, nil)
}

// NewResultWithLogger builds an MCP result from a ToolResponse using the provided logger.
// Error envelopes set IsError.
func NewResultWithLogger(resp ToolResponse, logger *slog.Logger) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: resp.marshal(logger)}},
		IsError: resp.Status == ToolStatusError,
	}
}

// OK is a convenience for success responses
func OK(message string, data any) *mcp.CallToolResult {
	return NewResult(ToolResponse{Status: ToolStatusOK, Message: message, Data: data})
}

// Error is a convenience for error responses
func Error(code, message, hint string, data any) *mcp.CallToolResult {
	return NewResult(ToolResponse{Status: ToolStatusError, Code: code, Message: message, Hint: hint, Data: data})
}

// Partial reports a failure that left work behind; data describes what exists.
func Partial(code, message, hint string, data any) *mcp.CallToolResult {
	return NewResult(ToolResponse{Status: ToolStatusPartial, Code: code, Message: message, Hint: hint, Data: data})
}

// CommandResultResponse maps a command outcome onto the envelope. A failure that
// already created directory objects is partial, any other failure is an error.
func CommandResultResponse(result *regdomain.CommandResult) ToolResponse {
	resp := ToolResponse{
		Status:    ToolStatusOK,
		Message:   result.Message(),
		RequestID: result.RunID(),
		Data:      result,
	}
	if result.Success() {
		return resp
	}

	resp.Status = ToolStatusError
	if len(result.Data()) > 0 {
		resp.Status = ToolStatusPartial
	}
	if detail := result.ErrorDetail(); detail != nil {
		resp.Code = detail.Kind
	}
	if next := result.NextSteps(); len(next) > 0 {
		resp.Hint = next[0]
	}
	return resp
}
