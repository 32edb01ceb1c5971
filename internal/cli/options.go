package cli

// Options are shared by every command.
type Options struct {
	ConfigPath string
	Debug      bool
}

// AskOptions configure the ask command.
type AskOptions struct {
	Options
	// Query is answered once. An empty query starts the interactive prompt.
	Query    string
	JSON     bool
	Headless bool
}

// ServeOptions configure the HTTP server.
type ServeOptions struct {
	Options
	// Port overrides the configured port when set.
	Port int
}

// MCPOptions configure the MCP server.
type MCPOptions struct {
	Options
	Transport string
	Port      int
}
