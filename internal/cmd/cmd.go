package cmd

import (
	"github.com/spf13/cobra"

	"github.com/nh3bh3/cuthttp/internal/cmd/hash"
	"github.com/nh3bh3/cuthttp/internal/cmd/serve"
	"github.com/nh3bh3/cuthttp/internal/cmd/version"
)

var rootCmd = &cobra.Command{
	Use:   "cuthttp",
	Short: "Serve directories over HTTP and WebDAV",
}

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(serve.ServeCmd)
	rootCmd.AddCommand(version.VersionCmd)
	rootCmd.AddCommand(hash.HashCmd)
}
