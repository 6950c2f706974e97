// Package cli batchgen 命令行
package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"batchgen/internal/config"
	"batchgen/internal/emitter"
	"batchgen/internal/logging"
	"batchgen/internal/sandbox"
	"batchgen/pkg/model"
	"batchgen/pkg/store"
)

var version = "0.1.0"

const longHelp = `batchgen balances the batches of a change ticket (CT) across the enabled
NODEs and writes a one-shot bash script that starts them at the scheduled time.

Inputs (file source, relative to inputs.dir, /tmp by default):
  numbers_<CT>            batches with host counts, e.g. B001,12
  todays_crq_dates.txt    scheduled start times, e.g. 123456789,18:00
  enable.node             enabled NODEs, one per line, e.g. NODE1

The script is written to output.dir (/tmp/RUN by default) as start_<CT>.sh.`

// ExitError 携带进程退出码，cobra 不再打印
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// scriptChecker 脚本语法检查，默认由 sandbox.Checker 实现
type scriptChecker interface {
	Check(ctx context.Context, script string) (*sandbox.Result, error)
	Close() error
}

type app struct {
	configPath string
	logLevel   string
	source     string

	cfg    *config.Config
	logger *zap.Logger

	newChecker func(image string, logger *zap.Logger) (scriptChecker, error)
	// newEtcd 为空时按配置连接 etcd
	newEtcd func(cfg config.EtcdConfig, logger *zap.Logger) (*store.EtcdManager, error)
}

// NewRootCommand 构建完整的命令树
func NewRootCommand() *cobra.Command {
	return newRootCommand(&app{
		newChecker: func(image string, logger *zap.Logger) (scriptChecker, error) {
			return sandbox.NewChecker(image, logger)
		},
	})
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:               "batchgen",
		Short:             "Balance CT batches across NODEs and generate the start script",
		Long:              longHelp,
		Version:           version,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file (default ./batchgen.yaml or /etc/batchgen/batchgen.yaml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&a.source, "source", "", "input source (file, etcd)")

	root.AddCommand(
		newScriptCommand(a),
		newPlanCommand(a),
		newCheckCommand(a),
		newSimulateCommand(a),
		newSeedCommand(a),
		newHistoryCommand(a),
	)
	return root
}

// Execute 运行命令行并返回退出码
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := NewRootCommand().ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var exit *ExitError
	if errors.As(err, &exit) {
		return exit.Code
	}
	return 1
}

// setup 加载配置并创建 logger，命令行参数优先于配置文件
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = strings.ToLower(a.logLevel)
	}
	if a.source != "" {
		cfg.Source = strings.ToLower(a.source)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	if cfg.Path != "" {
		logger.Debug("config loaded", zap.String("path", cfg.Path))
	}
	return nil
}

// ctArg 要求恰好一个 CT 参数，且可以安全地写入 shell 和文件名
func ctArg(cmd *cobra.Command, args []string) error {
	if err := cobra.ExactArgs(1)(cmd, args); err != nil {
		return err
	}
	if !model.ValidToken(args[0]) {
		return fmt.Errorf("invalid CT '%s': only letters, digits, '.', '_' and '-' are allowed", args[0])
	}
	return nil
}

// openSource 按配置打开输入源，返回的 close 必须调用
func (a *app) openSource() (store.Source, func(), error) {
	switch a.cfg.Source {
	case config.SourceEtcd:
		em, err := a.openEtcd()
		if err != nil {
			return nil, nil, err
		}
		return em, func() { _ = em.Close() }, nil
	default:
		return a.fileSource(), func() {}, nil
	}
}

func (a *app) fileSource() *store.FileSource {
	in := a.cfg.Inputs
	return store.NewFileSource(in.Dir, in.BatchesPattern, in.StartTimes, in.Nodes, a.logger)
}

func (a *app) openEtcd() (*store.EtcdManager, error) {
	if a.newEtcd != nil {
		return a.newEtcd(a.cfg.Etcd, a.logger)
	}
	e := a.cfg.Etcd
	return store.NewEtcdManager(e.Endpoints, e.Prefix, e.DialTimeout, a.logger)
}

func (a *app) artifactOptions() emitter.Options {
	return a.cfg.Artifact.Options()
}
