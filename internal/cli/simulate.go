package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"batchgen/internal/emitter"
	"batchgen/pkg/model"
)

func newSimulateCommand(a *app) *cobra.Command {
	var at, answer string
	cmd := &cobra.Command{
		Use:   "simulate <CT>",
		Short: "Walk the script protocol in-process without contacting any NODE",
		Long: `simulate builds the script of a CT and runs its protocol in-process:
the start time gate, the confirmation prompt, one launch per loaded NODE
(printed instead of executed), the join, and the completion message.
The command exits with the code the script would have exited with.`,
		Args: ctArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			input := cmd.InOrStdin()
			if cmd.Flags().Changed("answer") {
				input = strings.NewReader(answer + "\n")
			}
			code, err := a.runSimulate(cmd.Context(), cmd.OutOrStdout(), input, args[0], at)
			if err != nil {
				return err
			}
			if code != 0 {
				cmd.SilenceErrors = true
				cmd.SilenceUsage = true
				return &ExitError{Code: code}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "pretend the current time is HH:MM today in the script's time zone")
	cmd.Flags().StringVar(&answer, "answer", "", "answer to the confirmation prompt (read from stdin when unset)")
	return cmd
}

func (a *app) runSimulate(ctx context.Context, out io.Writer, input io.Reader, ct, at string) (int, error) {
	now := time.Now
	if at != "" {
		st, err := model.ParseStartTime(at)
		if err != nil {
			return 0, fmt.Errorf("--at: %w", err)
		}
		loc, err := time.LoadLocation(a.cfg.Artifact.TimeZone)
		if err != nil {
			return 0, err
		}
		fixed := st.On(time.Now().In(loc), loc)
		now = func() time.Time { return fixed }
	}

	in, assignment, err := a.balance(ctx, ct)
	if err != nil {
		return 0, err
	}
	art := emitter.Build(assignment, in.Start, ct, a.artifactOptions())

	trace, err := art.Simulate(ctx, emitter.Runtime{
		Now:    now,
		Input:  input,
		Output: out,
		Launch: echoLauncher(out, art.Dispatch.RemoteShell),
		Disable: func() error {
			a.logger.Debug("artifact would disable itself", zap.String("ct", ct))
			return nil
		},
		Logger: a.logger,
	})
	if err != nil {
		return 0, err
	}

	states := make([]string, len(trace.States))
	for i, s := range trace.States {
		states[i] = string(s)
	}
	fmt.Fprintf(out, "\nprotocol: %s (exit %d)\n", strings.Join(states, " -> "), trace.ExitCode)
	return trace.ExitCode, nil
}

// echoLauncher 只打印每个节点将要执行的命令
func echoLauncher(out io.Writer, remoteShell string) func(context.Context, emitter.Launch, string) error {
	var mu sync.Mutex
	return func(_ context.Context, l emitter.Launch, command string) error {
		mu.Lock()
		defer mu.Unlock()
		_, err := fmt.Fprintf(out, "%s %s \"%s\"\n", remoteShell, l.Target(), command)
		return err
	}
}
