package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/NeapolitanIcecream/openbridge/internal/process"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show proxy server status",
	Long:  `Display whether a openbridge serve instance is running and its configuration.`,
	Run:   runStatus,
}

func runStatus(cmd *cobra.Command, _ []string) {
	procMgr := process.NewManager(baseDir)

	running := procMgr.IsRunning()
	pid := procMgr.ReadPID()

	color.Blue("Status for %s:", AppName)
	fmt.Printf("  %-18s: %v\n", "Running", running)
	fmt.Printf("  %-18s: %d\n", "PID", pid)

	if err := cfgMgr.Load(); err != nil {
		fmt.Printf("  %-18s: %s\n", "Config", err.Error())
	} else if cfg := cfgMgr.Get(); cfg != nil {
		fmt.Printf("  %-18s: %s\n", "Host", cfg.Host)
		fmt.Printf("  %-18s: %d\n", "Port", cfg.Port)
		fmt.Printf("  %-18s: %s\n", "Endpoint", fmt.Sprintf("http://%s:%d", cfg.Host, cfg.Port))
		fmt.Printf("  %-18s: %s\n", "State Backend", cfg.StateBackend)
		fmt.Printf("  %-18s: %s\n", "Upstream", cfg.UpstreamBaseURL)
	}

	fmt.Printf("  %-18s: v%s\n", "Version", Version)
}
