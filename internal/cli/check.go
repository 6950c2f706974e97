package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"batchgen/internal/emitter"
	"batchgen/internal/sandbox"
)

func newCheckCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check <CT>",
		Short: "Render the script of a CT and check its syntax with bash -n in a container",
		Args:  ctArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runCheck(cmd.Context(), cmd.OutOrStdout(), args[0])
		},
	}
}

func (a *app) runCheck(ctx context.Context, out io.Writer, ct string) error {
	in, assignment, err := a.balance(ctx, ct)
	if err != nil {
		return err
	}
	script := emitter.Build(assignment, in.Start, ct, a.artifactOptions()).Render()

	checker, err := a.newChecker(a.cfg.Sandbox.Image, a.logger)
	if err != nil {
		return err
	}
	defer checker.Close()

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Sandbox.Timeout)
	defer cancel()

	res, err := checker.Check(ctx, script)
	if errors.Is(err, sandbox.ErrSyntax) {
		fmt.Fprint(out, res.Output)
		return fmt.Errorf("script for %s: %w", ct, sandbox.ErrSyntax)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Script for %s passed syntax check.\n", ct)
	return nil
}
