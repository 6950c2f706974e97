package emitter

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"batchgen/pkg/model"
)

// State 协议阶段
type State string

const (
	StateGate     State = "GATE"
	StateConfirm  State = "CONFIRM"
	StateDispatch State = "DISPATCH"
	StateDone     State = "DONE"
)

// Runtime 在进程内执行协议所需的外部依赖
type Runtime struct {
	Now    func() time.Time
	Input  io.Reader // 确认输入
	Output io.Writer
	// Launch 执行一个节点的复合命令，返回后视为该节点结束
	Launch func(ctx context.Context, l Launch, command string) error
	// Disable 对应脚本里的 chmod -x $0
	Disable func() error
	Logger  *zap.Logger
}

// Trace 一次执行的记录
type Trace struct {
	States    []State
	ExitCode  int
	Remaining time.Duration  // GATE 未通过时距开始的时间
	Launched  []model.NodeID // 发起顺序
}

// Simulate 按脚本协议执行一遍
// 节点命令失败只记日志，不影响 wait 和最终退出码
func (a *Artifact) Simulate(ctx context.Context, rt Runtime) (*Trace, error) {
	if rt.Now == nil {
		rt.Now = time.Now
	}
	if rt.Output == nil {
		rt.Output = io.Discard
	}
	if rt.Input == nil {
		rt.Input = strings.NewReader("")
	}
	if rt.Logger == nil {
		rt.Logger = zap.NewNop()
	}
	if rt.Launch == nil {
		return nil, errors.New("emitter: runtime launcher is required")
	}
	out := &lockedWriter{w: rt.Output}
	trace := &Trace{}

	// 1. GATE
	trace.States = append(trace.States, StateGate)
	loc, err := time.LoadLocation(a.Gate.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("emitter: load time zone %q: %w", a.Gate.TimeZone, err)
	}
	now := rt.Now().In(loc)
	start := a.Gate.Start.On(now, loc)
	if now.Unix() < start.Unix() {
		trace.Remaining = time.Duration(start.Unix()-now.Unix()) * time.Second
		fmt.Fprintf(out, "Scheduled start time: %s.\n", a.Gate.Start)
		fmt.Fprintf(out, "Time until start: %s\n\n", clock(trace.Remaining))
		trace.ExitCode = 1
		return trace, nil
	}

	// 2. CONFIRM
	trace.States = append(trace.States, StateConfirm)
	fmt.Fprintln(out, strings.Repeat("*", bannerWidth))
	fmt.Fprintln(out, center(a.Confirm.Banner))
	fmt.Fprintln(out, strings.Repeat("*", bannerWidth))
	fmt.Fprintf(out, "Executing %s with %d hosts.\n", a.CT, a.Confirm.TotalHosts)
	fmt.Fprintf(out, "\nDo you want to proceed? (%s/no) \n", a.Confirm.Affirmative)
	if readChoice(rt.Input) != a.Confirm.Affirmative {
		fmt.Fprintln(out, "Exiting")
		trace.ExitCode = 1
		return trace, nil
	}

	// 3. DISPATCH：按列表顺序发起，全部结束后才继续
	trace.States = append(trace.States, StateDispatch)
	var g errgroup.Group
	for _, l := range a.Dispatch.Launches {
		l := l
		trace.Launched = append(trace.Launched, l.Node)
		command := l.Command(a.Dispatch.Executor)
		g.Go(func() error {
			if err := rt.Launch(ctx, l, command); err != nil {
				rt.Logger.Warn("node command failed",
					zap.String("node", l.Node.Name()),
					zap.Error(err))
			}
			return nil
		})
	}
	// 失败已在各 goroutine 内记录，Wait 只作为屏障
	g.Wait()

	// 4. DONE
	trace.States = append(trace.States, StateDone)
	if rt.Disable != nil {
		if err := rt.Disable(); err != nil {
			rt.Logger.Warn("disable artifact failed", zap.Error(err))
		}
	}
	fmt.Fprintf(out, "All batches for %s completed!\n", a.CT)
	trace.ExitCode = 0
	return trace, nil
}

// readChoice 读取一行，按默认 IFS 去掉首尾的空格、制表符和换行，与 bash 的 read -r 一致
// \r 不在 IFS 中，会保留下来
func readChoice(r io.Reader) string {
	line, _ := bufio.NewReader(r).ReadString('\n')
	return strings.Trim(line, " \t\n")
}

// clock 格式化为 HH:MM:SS，超过一天时按天取余
func clock(d time.Duration) string {
	secs := int64(d/time.Second) % 86400
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, secs%3600/60, secs%60)
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (lw *lockedWriter) Write(p []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.w.Write(p)
}
