package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/matzehuels/wkimage/pkg/settings"
)

// completionGenerators writes the completion script for each supported shell.
var completionGenerators = map[string]func(root *cobra.Command, w io.Writer) error{
	"bash":       func(root *cobra.Command, w io.Writer) error { return root.GenBashCompletionV2(w, true) },
	"zsh":        func(root *cobra.Command, w io.Writer) error { return root.GenZshCompletion(w) },
	"fish":       func(root *cobra.Command, w io.Writer) error { return root.GenFishCompletion(w, true) },
	"powershell": func(root *cobra.Command, w io.Writer) error { return root.GenPowerShellCompletionWithDesc(w) },
}

// completionCommand creates the completion command for generating shell completions.
func (c *CLI) completionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for wkimage.

  $ source <(wkimage completion bash)
  $ wkimage completion zsh > "${fpath[1]}/_wkimage"
  $ wkimage completion fish > ~/.config/fish/completions/wkimage.fish
  PS> wkimage completion powershell | Out-String | Invoke-Expression

Render completes HTML files for its input and the image formats for --format.`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return completionGenerators[args[0]](cmd.Root(), cmd.OutOrStdout())
		},
	}
}

// registerRenderCompletions completes HTML files for the input argument and
// the image formats for --format.
func registerRenderCompletions(cmd *cobra.Command) {
	cmd.ValidArgsFunction = func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) > 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		return []string{"html", "htm", "xhtml"}, cobra.ShellCompDirectiveFilterFileExt
	}
	_ = cmd.RegisterFlagCompletionFunc("format", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{
			settings.FormatPNG + "\tPortable Network Graphics",
			settings.FormatJPG + "\tJPEG, see --quality",
			settings.FormatBMP + "\tWindows bitmap",
			settings.FormatSVG + "\tScalable Vector Graphics",
		}, cobra.ShellCompDirectiveNoFileComp
	})
}
