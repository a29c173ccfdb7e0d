//go:build unix

package cmd

import (
	reloadserver "github.com/nh3bh3/cuthttp/internal/cmd/reload-server"
)

func init() {
	rootCmd.AddCommand(reloadserver.ReloadConfigCmd)
}
