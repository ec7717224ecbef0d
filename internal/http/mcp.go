package http

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/sjzar/scribe/internal/worker"
)

var TranscribeTool = mcp.NewTool(
	"transcribe",
	mcp.WithDescription(`Transcribe or diarize local audio and video files. task is one of auto-transcribe (speaker attributed transcript), transcribe, translate (transcribe into English) or diarize (speaker turns only). Paths are read on the server host.`),
	mcp.WithString("source", mcp.Required(), mcp.Description("absolute path of the recording")),
	mcp.WithString("task", mcp.Description("auto-transcribe, transcribe, translate or diarize; defaults to auto-transcribe")),
	mcp.WithString("language", mcp.Description("spoken language code, e.g. en or de; empty lets the model detect it")),
	mcp.WithNumber("num_speakers", mcp.Description("expected number of speakers, 0 when unknown")),
	mcp.WithBoolean("translate", mcp.Description("translate the transcript into English")),
)

func (s *Service) initMCPServer() {
	s.mcpServer = server.NewMCPServer("scribe", "0.1.0",
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	s.mcpServer.AddTool(TranscribeTool, s.handleMCPTranscribe)
	s.mcpSSEServer = server.NewSSEServer(s.mcpServer)
	s.mcpStreamableServer = server.NewStreamableHTTPServer(s.mcpServer)
}

func (s *Service) handleMCPTranscribe(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	desc := request.GetArguments()
	if desc == nil {
		desc = map[string]any{}
	}
	if _, ok := desc["task"]; !ok {
		desc["task"] = worker.TaskAutoTranscribe.String()
	}

	req, err := worker.DecodeDescriptor(desc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	resp, err := s.worker.Submit(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(resp.String()), nil
}
