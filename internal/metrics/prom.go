// Package metrics 把一次分配的负载情况导出为 Prometheus 指标
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"batchgen/pkg/model"
)

const namespace = "batchgen"

// PlanMetrics 单次分配的指标，使用独立的 registry，不污染全局
type PlanMetrics struct {
	registry *prometheus.Registry

	NodeHosts   *prometheus.GaugeVec
	NodeBatches *prometheus.GaugeVec
	TotalHosts  *prometheus.GaugeVec
	Imbalance   *prometheus.GaugeVec
}

// New 创建指标集合
func New() *PlanMetrics {
	m := &PlanMetrics{
		registry: prometheus.NewRegistry(),
		NodeHosts: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "node_assigned_hosts",
			Help:      "Hosts assigned to a node for the job",
		}, []string{"ct", "node"}),
		NodeBatches: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "node_assigned_batches",
			Help:      "Batches assigned to a node for the job",
		}, []string{"ct", "node"}),
		TotalHosts: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "plan_total_hosts",
			Help:      "Total hosts across all nodes for the job",
		}, []string{"ct"}),
		Imbalance: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "plan_imbalance_hosts",
			Help:      "Difference between the heaviest and lightest node",
		}, []string{"ct"}),
	}
	m.registry.MustRegister(m.Collectors()...)
	return m
}

func (m *PlanMetrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.NodeHosts, m.NodeBatches, m.TotalHosts, m.Imbalance}
}

// Gatherer 返回内部 registry
func (m *PlanMetrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// Observe 记录一次分配，所有启用节点都会出现，包括空闲节点
func (m *PlanMetrics) Observe(ct string, a *model.Assignment) {
	for _, l := range a.Loads {
		m.NodeHosts.WithLabelValues(ct, l.Node.Name()).Set(float64(l.Total))
		m.NodeBatches.WithLabelValues(ct, l.Node.Name()).Set(float64(len(l.Batches)))
	}
	m.TotalHosts.WithLabelValues(ct).Set(float64(a.Total()))
	m.Imbalance.WithLabelValues(ct).Set(float64(a.Imbalance()))
}

// WriteTextfile 写出 node_exporter textfile collector 格式的文件
func (m *PlanMetrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("metrics: write %s: %w", path, err)
	}
	return nil
}
