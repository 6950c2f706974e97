package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"batchgen/pkg/store"
)

func newSeedCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <CT>",
		Short: "Copy the file inputs of a CT into etcd",
		Args:  ctArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSeed(cmd.Context(), cmd.OutOrStdout(), args[0])
		},
	}
}

func (a *app) runSeed(ctx context.Context, out io.Writer, ct string) error {
	// 1. 从文件读取，前置条件与 script 相同
	in, err := store.Resolve(ctx, a.fileSource(), ct)
	if err != nil {
		return err
	}

	// 2. 写入 etcd
	em, err := a.openEtcd()
	if err != nil {
		return err
	}
	defer em.Close()

	if err := em.SaveBatches(ctx, ct, in.Batches); err != nil {
		return err
	}
	if err := em.SaveStartTime(ctx, ct, in.Start); err != nil {
		return err
	}
	if err := em.SaveEnabledNodes(ctx, in.Nodes); err != nil {
		return err
	}
	a.logger.Info("inputs seeded", zap.String("ct", ct), zap.String("prefix", a.cfg.Etcd.Prefix))
	fmt.Fprintf(out, "Seeded %s: %d batches, %d nodes, start %s.\n", ct, len(in.Batches), len(in.Nodes), in.Start)
	return nil
}
