package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"batchgen/internal/emitter"
	"batchgen/internal/history"
	"batchgen/pkg/model"
)

func newHistoryCommand(a *app) *cobra.Command {
	var (
		limit     int
		published bool
	)
	cmd := &cobra.Command{
		Use:   "history [CT]",
		Short: "List generated scripts, or show the plan published to etcd",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var ct string
			if len(args) == 1 {
				if err := ctArg(cmd, args); err != nil {
					return err
				}
				ct = args[0]
			}
			if published {
				if ct == "" {
					return errors.New("--published requires a CT")
				}
				return a.runPublished(cmd.Context(), cmd.OutOrStdout(), ct)
			}
			return a.runHistory(cmd.Context(), cmd.OutOrStdout(), ct, limit)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of rows")
	cmd.Flags().BoolVar(&published, "published", false, "show the plan published to etcd for the CT")
	return cmd
}

func (a *app) runHistory(ctx context.Context, out io.Writer, ct string, limit int) error {
	if a.cfg.History.Path == "" {
		return errors.New("history.path is not configured")
	}
	ledger, err := history.Open(a.cfg.History.Path)
	if err != nil {
		return err
	}
	defer ledger.Close()

	entries, err := ledger.List(ctx, ct, limit)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CREATED\tCT\tSTART\tHOSTS\tNODES\tIMBALANCE\tSCRIPT")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			e.CreatedAt.Local().Format(time.DateTime), e.CT, e.StartTime,
			e.TotalHosts, e.LoadedNodes, e.Imbalance, e.ArtifactPath)
	}
	return tw.Flush()
}

func (a *app) runPublished(ctx context.Context, out io.Writer, ct string) error {
	em, err := a.openEtcd()
	if err != nil {
		return err
	}
	defer em.Close()

	plan, err := em.GetPlan(ctx, ct)
	if err != nil {
		return err
	}
	printPlan(out, plan)
	return nil
}

func printPlan(out io.Writer, plan *model.Plan) {
	fmt.Fprintf(out, "Plan %s for %s, start %s, created %s\n",
		plan.ID, plan.CT, plan.StartTime, plan.CreatedAt.Local().Format(time.DateTime))
	if plan.Assignment == nil {
		return
	}
	for _, line := range emitter.Summary(plan.Assignment) {
		fmt.Fprintln(out, line)
	}
}
