package diagnostics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	plugindomain "github.com/entra-mcp/entra-mcp/internal/server-plugin/domain"
	"github.com/entra-mcp/entra-mcp/internal/server-plugin/authorization"
	"github.com/entra-mcp/entra-mcp/internal/server"
	"github.com/entra-mcp/entra-mcp/internal/server/auth"
	"github.com/entra-mcp/entra-mcp/internal/shared/metrics"
	"github.com/entra-mcp/entra-mcp/pkg/logger"
	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/fx"
)

const (
	recentLogsURI   = "entra://logs/recent"
	metricsURI      = "entra://metrics/commands"
	recentLogsLines = 200
	maxRunLogLines  = 500
)

// LogSource is the part of the log ring buffer the plugin reads.
type LogSource interface {
	GetLast(n int) []string
	GetMatching(n int, substr string) []string
}

type MetricsSource interface {
	Snapshot() metrics.Snapshot
}

// DiagnosticsServerPlugin exposes the server's own recent logs, redacted, and its command counters.
type DiagnosticsServerPlugin struct {
	logs        LogSource
	metrics     MetricsSource
	authChecker auth.AuthorizationChecker
	logger      *slog.Logger
}

// NewDiagnosticsServerPlugin builds the plugin; a nil metrics source drops the metrics resource.
func NewDiagnosticsServerPlugin(logs LogSource, source MetricsSource, authChecker auth.AuthorizationChecker, logger *slog.Logger) *DiagnosticsServerPlugin {
	return &DiagnosticsServerPlugin{logs: logs, metrics: source, authChecker: authChecker, logger: logger}
}

func (p *DiagnosticsServerPlugin) ID() string          { return "diagnostics" }
func (p *DiagnosticsServerPlugin) Name() string        { return "Server Diagnostics" }
func (p *DiagnosticsServerPlugin) Description() string { return "Recent server logs with credentials redacted" }
func (p *DiagnosticsServerPlugin) Version() string     { return "0.1.0" }

func (p *DiagnosticsServerPlugin) GetResources(ctx context.Context) ([]plugindomain.Resource, error) {
	resources := []plugindomain.Resource{
		{
			URI:         recentLogsURI,
			Name:        "Recent Logs",
			Description: fmt.Sprintf("The last %d server log lines", recentLogsLines),
			MIMEType:    "text/plain",
			Handler:     p.handleRecentLogs,
		},
	}
	if p.metrics != nil {
		resources = append(resources, plugindomain.Resource{
			URI:         metricsURI,
			Name:        "Command Metrics",
			Description: "Command outcomes and directory step timings since the server started",
			MIMEType:    "application/json",
			Handler:     p.handleMetrics,
		})
	}
	return resources, nil
}

func (p *DiagnosticsServerPlugin) GetTools(ctx context.Context) ([]plugindomain.Tool, error) {
	tool := plugindomain.Tool{
		Name:        "get_run_logs",
		Description: "Return the log lines recorded for one command run",
		Builder: func() mcp.Tool {
			return mcp.NewTool(
				"get_run_logs",
				mcp.WithDescription("Return the redacted log lines recorded for a command run, identified by the runId of its result"),
				mcp.WithString("run_id",
					mcp.Required(),
					mcp.Description("The runId returned by process_command or create_app_registration"),
				),
				mcp.WithNumber("limit",
					mcp.Description(fmt.Sprintf("Maximum number of lines (default and cap %d)", maxRunLogLines)),
				),
			)
		},
		Handler: p.handleRunLogs,
	}
	return []plugindomain.Tool{
		authorization.WrapToolWithAuthorization(tool, "diagnostics", "read", p.authChecker, p.logger),
	}, nil
}

func (p *DiagnosticsServerPlugin) handleRecentLogs(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	lines := server.SanitizeLogLines(p.logs.GetLast(recentLogsLines))
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "text/plain",
			Text:     strings.Join(lines, "\n"),
		},
	}, nil
}

func (p *DiagnosticsServerPlugin) handleMetrics(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	jsonData, err := json.MarshalIndent(p.metrics.Snapshot(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize metrics: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(jsonData),
		},
	}, nil
}

type runLogs struct {
	RunID string   `json:"runId"`
	Lines []string `json:"lines"`
}

func (p *DiagnosticsServerPlugin) handleRunLogs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runID, err := req.RequireString("run_id")
	if err != nil || strings.TrimSpace(runID) == "" {
		return server.Error("invalid_arguments", "run_id is required", "", nil), nil
	}

	limit := req.GetInt("limit", maxRunLogLines)
	if limit <= 0 || limit > maxRunLogLines {
		limit = maxRunLogLines
	}

	lines := server.SanitizeLogLines(p.logs.GetMatching(limit, "run_id="+runID))
	if len(lines) == 0 {
		return server.Error("not_found", fmt.Sprintf("No log lines recorded for run %s", runID),
			"Older runs may have been evicted from the log buffer.", nil), nil
	}
	return server.OK(fmt.Sprintf("%d log lines for run %s", len(lines), runID), runLogs{RunID: runID, Lines: lines}), nil
}

var Module = fx.Module("diagnostics",
	fx.Provide(
		fx.Annotate(
			func(buffer *logger.RingBuffer, collector *metrics.InMemoryCollector, checker auth.AuthorizationChecker, log *slog.Logger) *DiagnosticsServerPlugin {
				return NewDiagnosticsServerPlugin(buffer, collector, checker, log)
			},
			fx.As(new(plugindomain.ServerPlugin)),
			fx.ResultTags(`group:"server_plugins"`),
		),
	),
)
