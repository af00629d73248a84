// Package mcpserver exposes council's run_flow, doctor, and flow_verify
// operations as MCP tools over stdio, for hosts that drive council as a
// Model Context Protocol server rather than through its CLI.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/juniormartinxo/council/internal/auditlog"
	"github.com/juniormartinxo/council/internal/limits"
	"github.com/juniormartinxo/council/internal/signature"
	"github.com/juniormartinxo/council/pkg/executor"
	"github.com/juniormartinxo/council/pkg/flow"
	"github.com/juniormartinxo/council/pkg/orchestrator"
	"github.com/juniormartinxo/council/pkg/state"
	"github.com/juniormartinxo/council/pkg/ui"
)

// Deps wires the components a tool invocation needs. The server holds no
// mutable session state of its own: every tool call builds a fresh State
// and Orchestrator, matching the CLI's non-interactive run mode.
type Deps struct {
	SpoolDir      string
	Audit         *auditlog.AuditLog
	Limits        limits.Limits
	TrustStore    *signature.TrustStore
	SignatureDir  string
	FlowOptions   flow.Options
}

// Server wraps an MCP server exposing council's operations.
type Server struct {
	deps   Deps
	server *server.MCPServer
}

// New builds an MCP server with council's tools registered.
func New(deps Deps) *Server {
	s := &Server{deps: deps}

	mcpServer := server.NewMCPServer(
		"council",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	mcpServer.AddTool(
		mcp.NewTool("run_flow",
			mcp.WithDescription("Run the configured agent council flow against a user prompt and return the final transcript."),
			mcp.WithString("prompt", mcp.Required(), mcp.Description("The user's starting prompt for the run")),
			mcp.WithString("flow_path", mcp.Description("Optional explicit path to a flow.json; falls back to the normal resolution cascade")),
		),
		s.handleRunFlow,
	)

	mcpServer.AddTool(
		mcp.NewTool("doctor",
			mcp.WithDescription("Check that the configured LLM CLI binaries in the active flow are present on PATH."),
		),
		s.handleDoctor,
	)

	mcpServer.AddTool(
		mcp.NewTool("flow_verify",
			mcp.WithDescription("Verify a flow.json's Ed25519 signature sidecar against the trust store."),
			mcp.WithString("flow_path", mcp.Required(), mcp.Description("Path to the flow.json to verify")),
		),
		s.handleFlowVerify,
	)

	s.server = mcpServer
	return s
}

// ServeStdio starts the MCP server on stdio.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.server)
}

func (s *Server) handleRunFlow(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prompt := request.GetString("prompt", "")
	if prompt == "" {
		return mcp.NewToolResultError("prompt parameter is required"), nil
	}

	opts := s.deps.FlowOptions
	if explicit := request.GetString("flow_path", ""); explicit != "" {
		opts.ExplicitPath = explicit
	}

	f, err := flow.Load(opts)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("load flow: %v", err)), nil
	}

	st := state.New(s.deps.Limits.MaxContextChars)
	ex := executor.New(s.deps.SpoolDir, s.deps.Audit)
	o := orchestrator.New(f, st, ex, ui.NullCollaborator{}, s.deps.Audit, orchestrator.GlobalLimits{
		MaxInputChars:  s.deps.Limits.MaxInputChars,
		MaxOutputChars: s.deps.Limits.MaxOutputChars,
	})

	if err := o.RunFlow(ctx, prompt); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("run_flow failed: %v", err)), nil
	}

	turns := st.Turns()
	out := make([]map[string]string, 0, len(turns))
	for _, t := range turns {
		out = append(out, map[string]string{
			"agent":   t.AgentName,
			"role":    string(t.Role),
			"content": t.Content,
		})
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal transcript: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// handleDoctor checks every distinct binary named by the active flow's
// steps against PATH. This is intentionally shallow: the spec scopes
// doctor's deeper diagnostics (CLI version probing, auth checks) to an
// external collaborator.
func (s *Server) handleDoctor(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	f, err := flow.Load(s.deps.FlowOptions)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("load flow: %v", err)), nil
	}

	seen := map[string]bool{}
	type finding struct {
		Binary    string `json:"binary"`
		OnPath    bool   `json:"on_path"`
		ResolvedTo string `json:"resolved_to,omitempty"`
	}
	var findings []finding
	for _, step := range f.Steps {
		tokens, err := flow.Tokenize(step.Command)
		if err != nil || len(tokens) == 0 {
			continue
		}
		bin := tokens[0]
		if seen[bin] {
			continue
		}
		seen[bin] = true

		path, lookErr := exec.LookPath(bin)
		findings = append(findings, finding{Binary: bin, OnPath: lookErr == nil, ResolvedTo: path})
	}

	data, err := json.MarshalIndent(findings, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal findings: %v", err)), nil
	}
	if s.deps.Audit != nil {
		s.deps.Audit.Emit(auditlog.Info, auditlog.EventDoctorInvoked, nil)
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) handleFlowVerify(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := request.GetString("flow_path", "")
	if path == "" {
		return mcp.NewToolResultError("flow_path parameter is required"), nil
	}

	fileBytes, err := os.ReadFile(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("read flow file: %v", err)), nil
	}
	sidecarBytes, err := os.ReadFile(path + ".sig")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("read signature sidecar: %v", err)), nil
	}

	result := signature.Verify(fileBytes, sidecarBytes, s.deps.TrustStore)

	out := map[string]string{"result": result.String(), "flow_path": filepath.Clean(path)}
	data, _ := json.MarshalIndent(out, "", "  ")
	if s.deps.Audit != nil {
		event := auditlog.EventSignatureVerified
		if result != signature.OK {
			event = auditlog.EventSignatureMissing
		}
		s.deps.Audit.Emit(auditlog.Info, event, map[string]interface{}{"flow_path": path, "result": result.String()})
	}
	return mcp.NewToolResultText(string(data)), nil
}
