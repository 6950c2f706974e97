package emitter

import (
	"fmt"
	"strings"

	"batchgen/pkg/model"
)

// Summary 不生成脚本时的查看格式：NODE<k> @ <批次...> @ <主机数>
// 主机数为 0 的节点不输出
func Summary(a *model.Assignment) []string {
	loaded := a.Loaded()
	lines := make([]string, 0, len(loaded))
	for _, l := range loaded {
		lines = append(lines, fmt.Sprintf("%s @ %s @ %d", l.Node.Name(), strings.Join(l.Batches, " "), l.Total))
	}
	return lines
}
