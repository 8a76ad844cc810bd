// Package mcp exposes the Songbird operations to MCP hosts.
//
// [NewServer] registers one tool per operation on a go-sdk server. Every tool
// answers with a single text content block holding the operation's status
// string; operation failures are part of that text, not protocol errors.
// [Serve] runs the server on the configured [Transport].
package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/DrTrintignant/Songbird/internal/songbird"
)

// Tool names as seen by MCP hosts.
const (
	ToolPlaySound    = "songbird_play_sound"
	ToolControl      = "songbird_control"
	ToolBindSound    = "songbird_bind_sound"
	ToolBindMultiple = "songbird_bind_multiple"
	ToolReplayBound  = "songbird_replay_bound"
	ToolListBound    = "songbird_list_bound"
	ToolUnbindSound  = "songbird_unbind_sound"
	ToolUnbindAll    = "songbird_unbind_all"
	ToolListCached   = "songbird_list_cached"
	ToolTest         = "songbird_test"
)

// instructions is sent to hosts during initialization.
const instructions = `Songbird plays sound effects and music on request.
Use songbird_play_sound for any request to hear a sound, including replays such as "play it again".
When the user says a short phrase that was bound with songbird_bind_sound, call songbird_replay_bound immediately.
Call songbird_list_cached before answering any question about which sounds are available.`

// noArgs is the input of tools that take no arguments.
type noArgs struct{}

// NewServer returns an MCP server with every Songbird operation registered as
// a tool.
func NewServer(ops songbird.Operations, name, version string) *mcpsdk.Server {
	s := mcpsdk.NewServer(
		&mcpsdk.Implementation{Name: name, Version: version},
		&mcpsdk.ServerOptions{Instructions: instructions},
	)

	addTool(s, &mcpsdk.Tool{
		Name: ToolPlaySound,
		Description: "Play a sound matching a description. Covers new sounds from Freesound, " +
			"replays ('play it again', 'replay that') and sounds already in the local cache.",
		Annotations: &mcpsdk.ToolAnnotations{Title: "Play sound", OpenWorldHint: ptr(true)},
	}, ops.PlaySound)

	addTool(s, &mcpsdk.Tool{
		Name:        ToolControl,
		Description: "Control playback with a spoken command: stop, pause, resume, mute, unmute, volume up or down, or 'volume to 40%'.",
		Annotations: &mcpsdk.ToolAnnotations{Title: "Playback control", OpenWorldHint: ptr(false)},
	}, ops.Control)

	addTool(s, &mcpsdk.Tool{
		Name: ToolBindSound,
		Description: "Bind the sound played last to a phrase for later replay. Binding another sound " +
			"to the same phrase adds it to the phrase's pool; replays pick one at random.",
		Annotations: &mcpsdk.ToolAnnotations{Title: "Bind sound", OpenWorldHint: ptr(false)},
	}, ops.BindSound)

	addTool(s, &mcpsdk.Tool{
		Name:        ToolBindMultiple,
		Description: "Bind several cached sounds, looked up by name, to one phrase.",
		Annotations: &mcpsdk.ToolAnnotations{Title: "Bind sounds", OpenWorldHint: ptr(false)},
	}, ops.BindMultiple)

	addTool(s, &mcpsdk.Tool{
		Name: ToolReplayBound,
		Description: "Play a sound bound to a phrase. Call this without confirmation as soon as the " +
			"user says a bound phrase. When several sounds share the phrase one is picked at random.",
		Annotations: &mcpsdk.ToolAnnotations{Title: "Replay bound sound", OpenWorldHint: ptr(false)},
	}, ops.ReplayBound)

	addTool(s, &mcpsdk.Tool{
		Name:        ToolListBound,
		Description: "List every phrase with the sounds bound to it.",
		Annotations: &mcpsdk.ToolAnnotations{Title: "List bindings", ReadOnlyHint: true, OpenWorldHint: ptr(false)},
	}, noArg(ops.ListBound))

	addTool(s, &mcpsdk.Tool{
		Name:        ToolUnbindSound,
		Description: "Remove the binding for one phrase.",
		Annotations: &mcpsdk.ToolAnnotations{Title: "Unbind phrase", DestructiveHint: ptr(true), OpenWorldHint: ptr(false)},
	}, ops.UnbindSound)

	addTool(s, &mcpsdk.Tool{
		Name:        ToolUnbindAll,
		Description: "Remove every phrase binding.",
		Annotations: &mcpsdk.ToolAnnotations{Title: "Unbind all", DestructiveHint: ptr(true), OpenWorldHint: ptr(false)},
	}, noArg(ops.UnbindAll))

	addTool(s, &mcpsdk.Tool{
		Name: ToolListCached,
		Description: "List the sound files in the local cache. Always call this for any question " +
			"about which sounds are saved, downloaded or available.",
		Annotations: &mcpsdk.ToolAnnotations{Title: "List cached sounds", ReadOnlyHint: true, OpenWorldHint: ptr(false)},
	}, noArg(ops.ListCached))

	addTool(s, &mcpsdk.Tool{
		Name:        ToolTest,
		Description: "Report the Songbird version and whether a Freesound API key is configured.",
		Annotations: &mcpsdk.ToolAnnotations{Title: "Status", ReadOnlyHint: true, OpenWorldHint: ptr(false)},
	}, noArg(ops.Test))

	return s
}

// addTool registers op as a tool whose input schema is inferred from In.
func addTool[In any](s *mcpsdk.Server, t *mcpsdk.Tool, op func(context.Context, In) string) {
	mcpsdk.AddTool(s, t, func(ctx context.Context, _ *mcpsdk.CallToolRequest, in In) (*mcpsdk.CallToolResult, any, error) {
		status := op(ctx, in)
		slog.Debug("mcp: tool call", "tool", t.Name, "status", status)
		return &mcpsdk.CallToolResult{
			Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: status}},
		}, nil, nil
	})
}

func noArg(op func(context.Context) string) func(context.Context, noArgs) string {
	return func(ctx context.Context, _ noArgs) string { return op(ctx) }
}

func ptr[T any](v T) *T { return &v }

// Serve runs s on transport until ctx is cancelled or the host disconnects.
// For [TransportStreamableHTTP] it only mounts the handler on mux under path;
// the caller owns the listener. [TransportNone] returns immediately.
func Serve(ctx context.Context, s *mcpsdk.Server, transport Transport, mux *http.ServeMux, path string) error {
	switch transport {
	case TransportStdio:
		slog.Info("mcp: serving over stdio")
		err := s.Run(ctx, &mcpsdk.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("mcp: stdio server: %w", err)
		}
		return nil
	case TransportStreamableHTTP:
		if mux == nil {
			return errors.New("mcp: streamable-http transport requires an HTTP listener")
		}
		mux.Handle(path, Handler(s))
		slog.Info("mcp: serving over streamable http", "path", path)
		return nil
	case TransportNone:
		return nil
	default:
		return fmt.Errorf("mcp: unknown transport %q", transport)
	}
}

// Handler returns an HTTP handler serving s over the Streamable HTTP
// transport.
func Handler(s *mcpsdk.Server) http.Handler {
	return mcpsdk.NewStreamableHTTPHandler(func(*http.Request) *mcpsdk.Server { return s }, nil)
}
