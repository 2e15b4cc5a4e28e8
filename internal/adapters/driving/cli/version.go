package cli

import (
	"runtime"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/pagewise/internal/adapters/driving/mcp"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Printf("pagewise %s\n", version)
		cmd.Println(mutedStyle.Render("go " + runtime.Version() + "  ·  mcp server " + mcp.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
