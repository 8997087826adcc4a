package mcp

import "encoding/json"

// ProtocolVersion is the Model Context Protocol revision this server speaks.
// It is recorded on every session regardless of what the client requests.
const ProtocolVersion = "2025-03-26"

// DispatchNote is returned with every tools/call acknowledgement
const DispatchNote = "Dispatch acknowledged. Tool side effects are performed by the local executor, not by this server."

// Method names
const (
	MethodInitialize             = "initialize"
	MethodPing                   = "ping"
	MethodToolsList              = "tools/list"
	MethodToolsCall              = "tools/call"
	NotificationInitialized      = "notifications/initialized"
	NotificationCancelled        = "notifications/cancelled"
	NotificationToolsListChanged = "notifications/tools/list_changed"
)

// Initialize
type (
	// InitializeParams is the client's side of the handshake. Only the
	// presence of each field is checked.
	InitializeParams struct {
		ProtocolVersion *string         `json:"protocolVersion"`
		Capabilities    json.RawMessage `json:"capabilities"`
		ClientInfo      json.RawMessage `json:"clientInfo"`
	}

	// InitializeResult is the server's reply to initialize
	InitializeResult struct {
		ProtocolVersion string             `json:"protocolVersion"`
		Capabilities    ServerCapabilities `json:"capabilities"`
		ServerInfo      ServerInfo         `json:"serverInfo"`
		Instructions    string             `json:"instructions,omitempty"`
	}

	// ServerCapabilities advertises the features the server supports
	ServerCapabilities struct {
		Tools *ToolsCapability `json:"tools,omitempty"`
	}

	// ToolsCapability describes tool support. The catalog never changes
	// after startup, so ListChanged is always false.
	ToolsCapability struct {
		ListChanged bool `json:"listChanged"`
	}

	// ServerInfo identifies the server implementation
	ServerInfo struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	}
)

// Tools
type (
	// ToolsListParams may carry a pagination cursor. The whole catalog is
	// always returned, so the cursor is ignored.
	ToolsListParams struct {
		Cursor string `json:"cursor,omitempty"`
	}

	// ToolsListResult wraps the encoded catalog. Tools holds the registry's
	// precomputed JSON array.
	ToolsListResult struct {
		Tools json.RawMessage `json:"tools"`
	}

	// ToolCallParams names the tool to invoke. Arguments are accepted
	// verbatim and never inspected.
	ToolCallParams struct {
		Name      *string         `json:"name"`
		Arguments json.RawMessage `json:"arguments,omitempty"`
	}

	// DispatchResult is the fixed acknowledgement for tools/call
	DispatchResult struct {
		Tool   string `json:"tool"`
		Status string `json:"status"`
		Note   string `json:"note"`
	}
)

// StatusDispatched is the only status a DispatchResult carries
const StatusDispatched = "dispatched"

// PingResult is the empty reply to ping
type PingResult struct{}
