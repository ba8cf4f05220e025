package main

import (
	"github.com/spf13/cobra"

	"github.com/spetersoncode/adkchat/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the conversations to MCP clients over stdio",
	Long: `Mcp runs an MCP server on stdin/stdout. Register it with an MCP client,
for example in claude_desktop_config.json:

  {
      "mcpServers": {
          "cofacts": {
              "command": "adkchat",
              "args": ["mcp"]
          }
      }
  }

Logs go to stderr so they do not corrupt the protocol stream.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newCache()
		defer c.Close()
		return mcp.ServeStdio(c, mcp.WithName("adkchat"), mcp.WithVersion(version))
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
