package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/wkimage/pkg/settings"
)

// settingsCommand creates the settings command, which prints the flattened
// key/value pairs the engine would receive.
func (c *CLI) settingsCommand() *cobra.Command {
	var img imageFlags

	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Print the engine settings for the current configuration",
		Long: `Print the key=value pairs handed to the engine, in the order they are set.

The values combine the built-in defaults, the configuration file and any
image flags given on the command line.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resolved, err := c.effectiveSettings(cmd, &img)
			if err != nil {
				return err
			}
			if err := resolved.Validate(); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, s := range settings.Flatten("", resolved) {
				fmt.Fprintln(out, s.String())
			}
			return nil
		},
	}
	img.register(cmd)

	return cmd
}
