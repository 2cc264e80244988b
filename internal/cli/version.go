package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/wkimage/pkg/buildinfo"
)

// versionCommand creates the version command. Unlike --version it also loads
// the engine and reports its version.
func (c *CLI) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build and engine versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig(cmd)
			if err != nil {
				return err
			}
			info := buildinfo.Current()
			if rt, err := c.runtimeFor(cfg); err != nil {
				c.Logger.Debug("load engine", "error", err)
			} else if v, err := rt.Version(); err != nil {
				c.Logger.Debug("engine version", "error", err)
			} else {
				info = info.WithEngine(v)
			}

			out := cmd.OutOrStdout()
			for _, f := range info.Fields() {
				printKeyValue(out, f[0], f[1])
			}
			return nil
		},
	}
}
