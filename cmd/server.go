package cmd

import (
	"github.com/cruz-jay/beatbot/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the BeatBot Studio HTTP server",
	Long:  `Start the HTTP server exposing the music generation API and account endpoints.`,
	Run: func(cmd *cobra.Command, args []string) {
		server.Start()
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
