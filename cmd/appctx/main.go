package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "appctx",
	Short:        "Scoped application context demo server",
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		return runServe(cmd.Context(), configPath(cmd), addr)
	},
}

var initdbCmd = &cobra.Command{
	Use:   "initdb",
	Short: "Create the database tables inside an application scope",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInitDB(cmd.Context(), configPath(cmd), cmd.OutOrStdout())
	},
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Print the job listing as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		return printJobs(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "TOML configuration file")
	serveCmd.Flags().String("addr", ":3000", "HTTP listen address")
	rootCmd.AddCommand(serveCmd, initdbCmd, jobsCmd)
}

func configPath(cmd *cobra.Command) string {
	path, _ := cmd.Flags().GetString("config")
	return path
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
