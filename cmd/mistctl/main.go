// Command mistctl is a thin inspector for an existing persistent-backend
// database file. It is demonstration tooling only: it never writes to the
// database, and it is not part of the tested, invariant-bearing core.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var dbPath string

var rootCmd = &cobra.Command{
	Use:   "mistctl",
	Short: "mistctl - inspect a mistfall persistent-backend database",
	Long:  `mistctl opens an existing bbolt-backed database and reports its tables, row counts, and schema metadata without requiring the application's schema.Schema to be available.`,
}

func main() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to the database file (or set MISTCTL_DB)")
	if err := viper.BindPFlag("db", rootCmd.PersistentFlags().Lookup("db")); err != nil {
		fmt.Fprintf(os.Stderr, "mistctl: %v\n", err)
		os.Exit(1)
	}
	viper.SetEnvPrefix("mistctl")
	viper.AutomaticEnv()

	rootCmd.AddCommand(inspectCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveDBPath applies the same priority the teacher gives its own
// flag-vs-config resolution: an explicit flag wins, otherwise fall back to
// whatever viper picked up from the environment.
func resolveDBPath(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return viper.GetString("db")
}
