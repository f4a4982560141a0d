package cli

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"gitstack.dev/gitstack/internal/cli/helpers"
	"gitstack.dev/gitstack/internal/runtime"
	"gitstack.dev/gitstack/internal/xerrors"
)

// aliasedVerbs are the gitstack subcommands short enough, and common
// enough, to be worth a top-level `git <verb>` alias.
var aliasedVerbs = []string{"next", "prev", "reword", "amend", "sync", "run"}

// newAliasCmd creates the "alias" command: register or unregister
// global git aliases (`git next`, `git prev`, ...) that shell out to
// this binary's own subcommands, or report their current status.
func newAliasCmd() *cobra.Command {
	var (
		register   bool
		unregister bool
	)

	cmd := &cobra.Command{
		Use:   "alias",
		Short: "Manage git aliases for next/prev/reword/amend/sync/run",
		Long: `Without a flag, prints whether each of next, prev, reword, amend,
sync, and run is currently aliased at the git level to this binary.
--register writes global git aliases for each; --unregister removes
them.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return helpers.Run(cmd, func(rc *runtime.Context) error {
				if register && unregister {
					return fmt.Errorf("%w: --register and --unregister are mutually exclusive", xerrors.ErrUsage)
				}
				switch {
				case register:
					return registerAliases(cmd.Context(), cmd)
				case unregister:
					return unregisterAliases(cmd.Context(), cmd)
				default:
					return reportAliases(cmd.Context(), cmd)
				}
			})
		},
	}
	cmd.Flags().BoolVar(&register, "register", false, "Write a global git alias for each verb.")
	cmd.Flags().BoolVar(&unregister, "unregister", false, "Remove the global git alias for each verb.")
	return cmd
}

func registerAliases(ctx context.Context, cmd *cobra.Command) error {
	for _, verb := range aliasedVerbs {
		target := fmt.Sprintf("!gitstack %s", verb)
		if err := gitConfigGlobal(ctx, "--replace-all", "alias."+verb, target); err != nil {
			return fmt.Errorf("%w: %v", xerrors.ErrIO, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "registered: git %s -> %s\n", verb, target)
	}
	return nil
}

func unregisterAliases(ctx context.Context, cmd *cobra.Command) error {
	for _, verb := range aliasedVerbs {
		if err := gitConfigGlobal(ctx, "--unset", "alias."+verb); err != nil {
			continue // nothing registered for this verb; not an error
		}
		fmt.Fprintf(cmd.OutOrStdout(), "unregistered: git %s\n", verb)
	}
	return nil
}

func reportAliases(ctx context.Context, cmd *cobra.Command) error {
	for _, verb := range aliasedVerbs {
		out, err := exec.CommandContext(ctx, "git", "config", "--global", "--get", "alias."+verb).Output()
		target := strings.TrimSpace(string(out))
		if err != nil || target == "" {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: not registered\n", verb)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", verb, target)
	}
	return nil
}

func gitConfigGlobal(ctx context.Context, args ...string) error {
	full := append([]string{"config", "--global"}, args...)
	return exec.CommandContext(ctx, "git", full...).Run()
}
