package cmd

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/NeapolitanIcecream/openbridge/internal/process"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the proxy server",
	Long:  `Send SIGTERM to a running openbridge serve instance and wait for it to exit.`,
	RunE:  runStop,
}

func runStop(cmd *cobra.Command, _ []string) error {
	color.Yellow("Stopping %s...", AppName)

	procMgr := process.NewManager(baseDir)

	if !procMgr.IsRunning() {
		color.Yellow("service is not running")
		return nil
	}

	if err := procMgr.Stop(); err != nil {
		return err
	}

	color.Green("service stopped successfully")
	return nil
}
