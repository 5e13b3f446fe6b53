package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Check credentials against the configured endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := connect(cmd.Context(), newPrompter())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Authenticated as %s\n", session.User())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
}

// bindFlag binds a flag to a config key. Binding only fails for a nil flag,
// which is a programming error.
func bindFlag(key string, flag *pflag.Flag) {
	if err := v.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("bind %s: %v", key, err))
	}
}
