package mcp

// Transport selects how the MCP server is reached by its host.
type Transport string

const (
	// TransportStdio serves a single host over stdin/stdout.
	TransportStdio Transport = "stdio"

	// TransportStreamableHTTP serves hosts via the MCP Streamable HTTP
	// protocol, mounted on the health and metrics listener.
	TransportStreamableHTTP Transport = "streamable-http"

	// TransportNone disables the MCP server; only the Discord front end and
	// the one-shot CLI remain.
	TransportNone Transport = "none"
)

// IsValid reports whether t is a recognised transport.
func (t Transport) IsValid() bool {
	switch t {
	case TransportStdio, TransportStreamableHTTP, TransportNone:
		return true
	}
	return false
}
