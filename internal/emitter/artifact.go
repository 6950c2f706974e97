// Package emitter 把分配结果渲染成一次性的编排脚本
//
// 脚本的运行协议分四个阶段：
//
//	GATE     未到计划开始时间则打印剩余时间并以 1 退出
//	CONFIRM  打印横幅和主机总数，等待人工输入确认词
//	DISPATCH 每个有负载的节点一个后台 ssh 命令，全部发出后统一 wait
//	DONE     去掉自身执行权限，打印完成信息并以 0 退出
//
// Artifact 是协议的结构化描述，Render 只负责序列化成 bash 文本。
package emitter

import (
	"fmt"
	"strings"
	_ "time/tzdata" // 运行环境可能没有 zoneinfo

	"batchgen/pkg/model"
)

// Options 脚本中固定写入的参数
type Options struct {
	TimeZone    string // 计算开始时间所用的时区
	Executor    string // 远端对每个批次调用的执行器
	RemoteShell string // 远程执行命令，如 ssh
	Affirmative string // 确认词，输入必须完全一致
	Banner      string
}

// DefaultOptions 返回默认参数
func DefaultOptions() Options {
	return Options{
		TimeZone:    "America/Los_Angeles",
		Executor:    "/home/user/aa.sh",
		RemoteShell: "ssh",
		Affirmative: "yes",
		Banner:      "ex uno plures",
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.TimeZone == "" {
		o.TimeZone = d.TimeZone
	}
	if o.Executor == "" {
		o.Executor = d.Executor
	}
	if o.RemoteShell == "" {
		o.RemoteShell = d.RemoteShell
	}
	if o.Affirmative == "" {
		o.Affirmative = d.Affirmative
	}
	if o.Banner == "" {
		o.Banner = d.Banner
	}
	return o
}

const (
	// 写进双引号字符串的值不能包含的字符
	quotedUnsafe = "\"`$\\\n\r"
	// 远程命令不加引号，可以带空格分隔的参数，但不能包含控制符
	commandUnsafe = quotedUnsafe + "';&|<>()"
)

// Validate 检查会原样写入脚本的参数，保证渲染结果总是合法的 bash
// 空值会使用默认值，不算错误
func (o Options) Validate() error {
	checks := []struct {
		name, value, unsafe string
	}{
		{"time_zone", o.TimeZone, quotedUnsafe + "'"},
		{"executor", o.Executor, quotedUnsafe + "'"}, // 节点上会被 shell 再解析一次
		{"banner", o.Banner, quotedUnsafe},
		{"affirmative", o.Affirmative, quotedUnsafe + "' \t"},
		{"remote_shell", o.RemoteShell, commandUnsafe},
	}
	for _, c := range checks {
		if strings.ContainsAny(c.value, c.unsafe) {
			return fmt.Errorf("artifact.%s %q: contains characters that are not allowed in the script", c.name, c.value)
		}
	}
	return nil
}

// Gate 开始时间检查
type Gate struct {
	TimeZone string
	Start    model.StartTime
}

// Confirm 人工确认
type Confirm struct {
	Banner      string
	TotalHosts  int // 仅统计有负载的节点
	Affirmative string
}

// Launch 一个节点的远程命令
type Launch struct {
	Node  model.NodeID
	Jobs  []string // 每个批次一项：CT + 批次标识
	Hosts int
}

// Target 远程目标，由执行环境中的 $NODE<k> 变量解析
func (l Launch) Target() string {
	return "$" + l.Node.Name()
}

// Completion 节点完成时打印的行
func (l Launch) Completion() string {
	return l.Node.Name() + " job completed!"
}

// Command 拼出发给节点的复合命令：按顺序执行每个批次，最后报告完成
func (l Launch) Command(executor string) string {
	parts := make([]string, 0, len(l.Jobs)+1)
	for _, job := range l.Jobs {
		parts = append(parts, executor+" "+job)
	}
	parts = append(parts, "echo '"+l.Completion()+"'")
	return strings.Join(parts, "; ")
}

// Dispatch 并行下发
type Dispatch struct {
	Executor    string
	RemoteShell string
	Launches    []Launch
}

// Artifact 完整的编排脚本
type Artifact struct {
	CT       string
	Gate     Gate
	Confirm  Confirm
	Dispatch Dispatch
}

// Build 根据分配结果构建脚本，主机数为 0 的节点不会出现在下发阶段
func Build(a *model.Assignment, start model.StartTime, ct string, opts Options) *Artifact {
	opts = opts.withDefaults()

	loaded := a.Loaded()
	launches := make([]Launch, 0, len(loaded))
	total := 0
	for _, l := range loaded {
		jobs := make([]string, len(l.Batches))
		for i, id := range l.Batches {
			jobs[i] = ct + id
		}
		launches = append(launches, Launch{Node: l.Node, Jobs: jobs, Hosts: l.Total})
		total += l.Total
	}

	return &Artifact{
		CT: ct,
		Gate: Gate{
			TimeZone: opts.TimeZone,
			Start:    start,
		},
		Confirm: Confirm{
			Banner:      opts.Banner,
			TotalHosts:  total,
			Affirmative: opts.Affirmative,
		},
		Dispatch: Dispatch{
			Executor:    opts.Executor,
			RemoteShell: opts.RemoteShell,
			Launches:    launches,
		},
	}
}
