package emitter

import (
	"fmt"
	"strings"
	"text/template"
)

const bannerWidth = 40

// executorVar 脚本里保存执行器路径的变量
const executorVar = "AA"

var scriptTemplate = template.Must(template.New("artifact").Funcs(template.FuncMap{
	"rule":   func() string { return strings.Repeat("*", bannerWidth) },
	"center": center,
}).Parse(`#!/bin/bash

export TZ='{{.Gate.TimeZone}}'
start_time=$(date -d '{{.Gate.Start}} today' +%s)
current_time=$(date +%s)
if [[ $current_time -lt $start_time ]]; then
    time_until=$(($start_time - $current_time))
    echo 'Scheduled start time: {{.Gate.Start}}.'
    echo -n 'Time until start: '
    echo $(date -u -d @$time_until +%H:%M:%S)
    echo ''
    exit 1
fi

echo "{{rule}}"
echo "{{center .Confirm.Banner}}"
echo "{{rule}}"
echo "Executing {{.CT}} with {{.Confirm.TotalHosts}} hosts."

echo ""
echo "Do you want to proceed? ({{.Confirm.Affirmative}}/no) "
read -r choice
if [[ $choice != "{{.Confirm.Affirmative}}" ]]; then
    echo "Exiting"
    exit 1
fi

{{.ExecutorVar}}="{{.Dispatch.Executor}}"
{{range .Dispatch.Launches}}{{$.Dispatch.RemoteShell}} {{.Target}} "{{.Command $.ExecutorRef}}" &
{{end}}
wait
chmod -x $0
echo "All batches for {{.CT}} completed!"
exit 0
`))

type renderView struct {
	*Artifact
	ExecutorVar string
	ExecutorRef string
}

// Render 把脚本序列化成 bash 文本
func (a *Artifact) Render() string {
	var sb strings.Builder
	view := renderView{Artifact: a, ExecutorVar: executorVar, ExecutorRef: "$" + executorVar}
	if err := scriptTemplate.Execute(&sb, view); err != nil {
		// 模板是静态的，这里出错只可能是代码问题
		panic(fmt.Sprintf("emitter: render artifact: %v", err))
	}
	return sb.String()
}

// center 在两侧边框之间居中
func center(s string) string {
	pad := (bannerWidth - 2 - len(s)) / 2
	if pad <= 0 {
		return s
	}
	return strings.Repeat(" ", pad) + s
}
