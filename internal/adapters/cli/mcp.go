package cli

import (
	"github.com/spf13/cobra"
)

func newMCPCommand(load Loader) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the search_law tool over MCP stdio",
		Long: `Starts a Model Context Protocol server on stdin/stdout exposing the
search_law tool, for use from MCP-compatible assistants:

  {
    "mcpServers": {
      "legal": {"command": "/path/to/lawctl", "args": ["mcp"]}
    }
  }`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := load(cmd.Context(), true)
			if err != nil {
				return err
			}
			if svc.ServeMCP == nil {
				return errNotConfigured
			}
			return svc.ServeMCP(cmd.Context())
		},
	}
}
