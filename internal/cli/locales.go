package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLocalesCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "locales",
		Short: "List the locales available to styles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := root.registry()
			if err != nil {
				return err
			}
			for _, lang := range reg.Langs() {
				fmt.Fprintln(cmd.OutOrStdout(), lang)
			}
			return nil
		},
	}
}
