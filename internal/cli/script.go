package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"batchgen/internal/balancer"
	"batchgen/internal/emitter"
	"batchgen/internal/history"
	"batchgen/internal/metrics"
	"batchgen/pkg/model"
	"batchgen/pkg/store"
)

func newScriptCommand(a *app) *cobra.Command {
	var noScript, publish bool
	cmd := &cobra.Command{
		Use:   "script <CT>",
		Short: "Balance the batches of a CT and write start_<CT>.sh",
		Args:  ctArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			if noScript {
				return a.runPlan(cmd.Context(), cmd.OutOrStdout(), args[0])
			}
			return a.runScript(cmd.Context(), cmd.OutOrStdout(), args[0], publish)
		},
	}
	cmd.Flags().BoolVar(&noScript, "no-script", false, "print the NODE assignment without generating the script")
	cmd.Flags().BoolVar(&publish, "publish", false, "publish the plan to etcd after generating the script")
	return cmd
}

func newPlanCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "plan <CT>",
		Short: "Print the NODE assignment of a CT (same as script --no-script)",
		Args:  ctArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runPlan(cmd.Context(), cmd.OutOrStdout(), args[0])
		},
	}
}

// balance 读取输入并分配，不写任何文件
func (a *app) balance(ctx context.Context, ct string) (*store.Inputs, *model.Assignment, error) {
	src, closeSrc, err := a.openSource()
	if err != nil {
		return nil, nil, err
	}
	defer closeSrc()

	in, err := store.Resolve(ctx, src, ct)
	if err != nil {
		return nil, nil, err
	}
	assignment := balancer.Balance(in.Batches, in.Nodes)
	a.logger.Info("batches balanced",
		zap.String("ct", ct),
		zap.Int("batches", len(in.Batches)),
		zap.Int("nodes", len(in.Nodes)),
		zap.Int("hosts", assignment.Total()),
		zap.Int("imbalance", assignment.Imbalance()))
	return in, assignment, nil
}

func (a *app) runPlan(ctx context.Context, out io.Writer, ct string) error {
	_, assignment, err := a.balance(ctx, ct)
	if err != nil {
		return err
	}
	for _, line := range emitter.Summary(assignment) {
		fmt.Fprintln(out, line)
	}
	return nil
}

func (a *app) runScript(ctx context.Context, out io.Writer, ct string, publish bool) error {
	in, assignment, err := a.balance(ctx, ct)
	if err != nil {
		return err
	}

	// 1. 检查输出目录
	dir := a.cfg.Output.Dir
	if err := checkOutputDir(dir); err != nil {
		return err
	}

	// 2. 渲染并写入脚本
	art := emitter.Build(assignment, in.Start, ct, a.artifactOptions())
	path := filepath.Join(dir, "start_"+ct+".sh")
	if err := writeArtifact(path, art.Render()); err != nil {
		return err
	}
	fmt.Fprintf(out, "Script generated as '%s'.\n", path)

	// 3. 台账、指标、发布
	plan := model.NewPlan(ct, in.Start, assignment)
	a.record(ctx, plan, path)
	if publish {
		return a.publish(ctx, plan)
	}
	return nil
}

// checkOutputDir 输出目录必须存在、是目录并且可写
func checkOutputDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("directory '%s' does not exist", dir)
	}
	if err := unix.Access(dir, unix.W_OK); err != nil {
		return fmt.Errorf("directory '%s' is not writable", dir)
	}
	return nil
}

// writeArtifact 先写临时文件再改名，失败时不会留下半个脚本
func writeArtifact(path, script string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".start_*.sh")
	if err != nil {
		return fmt.Errorf("create script: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(script); err != nil {
		tmp.Close()
		return fmt.Errorf("write script: %w", err)
	}
	if err := tmp.Chmod(0o700); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod script: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write script: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write script: %w", err)
	}
	return nil
}

// record 写台账和指标，失败只告警，脚本已经生成
func (a *app) record(ctx context.Context, plan *model.Plan, path string) {
	if p := a.cfg.History.Path; p != "" {
		if err := recordHistory(ctx, p, plan, path); err != nil {
			a.logger.Warn("record history failed", zap.String("path", p), zap.Error(err))
		} else {
			a.logger.Debug("history recorded", zap.String("plan", plan.ID))
		}
	}
	if p := a.cfg.Metrics.Textfile; p != "" {
		m := metrics.New()
		m.Observe(plan.CT, plan.Assignment)
		if err := m.WriteTextfile(p); err != nil {
			a.logger.Warn("write metrics failed", zap.String("path", p), zap.Error(err))
		}
	}
}

func recordHistory(ctx context.Context, dbPath string, plan *model.Plan, artifactPath string) error {
	ledger, err := history.Open(dbPath)
	if err != nil {
		return err
	}
	defer ledger.Close()
	_, err = ledger.Record(ctx, plan, artifactPath)
	return err
}

func (a *app) publish(ctx context.Context, plan *model.Plan) error {
	em, err := a.openEtcd()
	if err != nil {
		return err
	}
	defer em.Close()

	if err := em.SavePlan(ctx, plan); err != nil {
		return fmt.Errorf("publish plan: %w", err)
	}
	a.logger.Info("plan published", zap.String("ct", plan.CT), zap.String("plan", plan.ID))
	return nil
}
