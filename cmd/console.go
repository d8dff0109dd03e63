package cmd

import (
	"errors"

	"github.com/spf13/cobra"
)

var errNoGeocodeJob = errors.New("no geocode job has been submitted")

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Terminal job consoles",
}

func init() {
	rootCmd.AddCommand(consoleCmd)
}
