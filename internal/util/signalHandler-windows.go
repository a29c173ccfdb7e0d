//go:build windows

package util

import (
	"os"
	"os/signal"
	"syscall"
)

// Windows has no SIGHUP; reload is only reachable through the config
// watcher there.
func SetupSignalHandlers(h SignalHandlers) {
	sigch := make(chan os.Signal, 2)
	signal.Notify(sigch, os.Interrupt, syscall.SIGTERM)

	go func() {
		for {
			switch s := <-sigch; s {
			case os.Interrupt:
				go tryCall(h.Sigint, h.OnHandlerPanic)
			case syscall.SIGTERM:
				go tryCall(h.Sigterm, h.OnHandlerPanic)
			}
		}
	}()
}
