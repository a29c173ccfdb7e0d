package serve

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/thediveo/enumflag"

	"github.com/nh3bh3/cuthttp/internal/server"
	serverConfig "github.com/nh3bh3/cuthttp/internal/server/config"
	"github.com/nh3bh3/cuthttp/internal/util"
	"github.com/nh3bh3/cuthttp/version"
)

const shutdownTimeout = 10 * time.Second

var (
	configPath string
	noLogTime  bool
	logLevel   zerolog.Level = zerolog.InfoLevel
)

var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start a file-sharing server",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		util.SetupZerolog(noLogTime, logLevel)

		config := findAndDecodeConfig()
		applyLogConfig(cmd, config)

		srv, err := server.NewServer(config)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Init server failed")
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}

		reload := func() {
			if err := srv.Reload(); err != nil {
				log.Error().Err(err).Msg("Reload failed, keeping old config")
			}
		}
		shutdown := func() {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				log.Error().Err(err).Msg("Shutdown failed")
			}
		}

		util.SetupSignalHandlers(util.SignalHandlers{
			Sighup:  reload,
			Sigint:  shutdown,
			Sigterm: shutdown,
			OnHandlerPanic: func(obj any) {
				log.Error().Any("Error", obj).Msg("Panic during signal handling")
			},
		})

		var watcher *serverConfig.Watcher
		if config.HotReload.Enable && config.FilePath() != "" {
			debounce := time.Duration(config.HotReload.DebounceMs) * time.Millisecond
			watcher, err = serverConfig.NewWatcher(config.FilePath(), debounce, reload)
			if err != nil {
				log.Error().Err(err).Msg("Config watcher unavailable, reload by SIGHUP only")
			} else {
				defer watcher.Close()
			}
		}

		if err := srv.Run(config.Listener); err != nil {
			fmt.Fprintln(os.Stderr, "Server stoped for error")
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	},
}

// applyLogConfig lets the config file set logging defaults; explicit
// CLI flags still win.
func applyLogConfig(cmd *cobra.Command, c *serverConfig.Server) {
	if !cmd.Flags().Changed("no-log-time") {
		noLogTime = c.Logging.NoTime
	}
	if !cmd.Flags().Changed("level") {
		for lvl, names := range util.ZerologLevelIds {
			for _, name := range names {
				if name == c.Logging.Level {
					logLevel = lvl
				}
			}
		}
	}
	util.SetupZerolog(noLogTime, logLevel)
}

func init() {
	if version.IsDebug() {
		logLevel = zerolog.DebugLevel // default debug level in debug mode
	}

	ServeCmd.Flags().StringVarP(&configPath, "config", "c", iternalDefaultConfigPath, "Path to config file")
	ServeCmd.Flags().BoolVarP(&noLogTime, "no-log-time", "", false, "Use log format without time")
	ServeCmd.Flags().VarP(
		enumflag.New(&logLevel, "LEVEL", util.ZerologLevelIds, enumflag.EnumCaseInsensitive),
		"level", "l",
		"Sets logging level; can be 'trace', 'debug', 'info', 'warning', 'error', 'fatal', 'panic'")
}
