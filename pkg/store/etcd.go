package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"

	"batchgen/pkg/model"
)

// DefaultPrefix etcd 中所有键的默认前缀
const DefaultPrefix = "/batchgen"

// Key 布局 (Schema Design)
//
//	<prefix>/batches/<CT>      [{"id":"B001","hosts":12}, ...]
//	<prefix>/start-times/<CT>  18:00
//	<prefix>/nodes             ["NODE1","NODE2"]
//	<prefix>/plans/<CT>        model.Plan
func batchesKey(prefix, ct string) string   { return prefix + "/batches/" + ct }
func startTimeKey(prefix, ct string) string { return prefix + "/start-times/" + ct }
func nodesKey(prefix string) string         { return prefix + "/nodes" }
func planKey(prefix, ct string) string      { return prefix + "/plans/" + ct }

var (
	_ Source    = (*EtcdManager)(nil)
	_ PlanStore = (*EtcdManager)(nil)
)

type EtcdManager struct {
	client *clientv3.Client // NewEtcdManagerFromKV 创建时为 nil
	kv     clientv3.KV
	prefix string
	logger *zap.Logger
}

// NewEtcdManager 初始化 Etcd 连接
func NewEtcdManager(endpoints []string, prefix string, dialTimeout time.Duration, logger *zap.Logger) (*EtcdManager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: dialTimeout,
		Logger:      logger.Named("etcd-client"),
	})
	if err != nil {
		return nil, fmt.Errorf("connect etcd %v: %w", endpoints, err)
	}
	e := NewEtcdManagerFromKV(cli, prefix, logger)
	e.client = cli
	return e, nil
}

// NewEtcdManagerFromKV 在已有的 KV 上创建，调用方负责 KV 的生命周期
func NewEtcdManagerFromKV(kv clientv3.KV, prefix string, logger *zap.Logger) *EtcdManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EtcdManager{
		kv:     kv,
		prefix: normalizePrefix(prefix),
		logger: logger.With(zap.String("component", "etcd-store")),
	}
}

func normalizePrefix(prefix string) string {
	prefix = strings.TrimRight(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return DefaultPrefix
	}
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	return prefix
}

// Close 关闭连接
func (e *EtcdManager) Close() error {
	if e.client == nil {
		return nil
	}
	return e.client.Close()
}

// ---------------------------------------------------------
// Source 实现
// ---------------------------------------------------------

func (e *EtcdManager) Batches(ctx context.Context, ct string) ([]model.Batch, error) {
	var raw []model.Batch
	if err := e.getValue(ctx, batchesKey(e.prefix, ct), &raw); err != nil {
		return nil, err
	}
	batches := make([]model.Batch, 0, len(raw))
	for _, b := range raw {
		if b.Hosts <= 0 {
			continue
		}
		if !model.ValidToken(b.ID) {
			e.logger.Warn("skip batch with unsafe id", zap.String("ct", ct), zap.String("batch", b.ID))
			continue
		}
		batches = append(batches, b)
	}
	return batches, nil
}

func (e *EtcdManager) StartTime(ctx context.Context, ct string) (model.StartTime, error) {
	key := startTimeKey(e.prefix, ct)
	resp, err := e.kv.Get(ctx, key)
	if err != nil {
		return model.StartTime{}, fmt.Errorf("get %s: %w", key, err)
	}
	if len(resp.Kvs) == 0 {
		return model.StartTime{}, fmt.Errorf("ct %s in etcd %s: %w", ct, key, ErrNotFound)
	}
	return model.ParseStartTime(string(resp.Kvs[0].Value))
}

func (e *EtcdManager) EnabledNodes(ctx context.Context) ([]model.NodeID, error) {
	var names []string
	if err := e.getValue(ctx, nodesKey(e.prefix), &names); err != nil {
		return nil, err
	}
	nodes := make([]model.NodeID, 0, len(names))
	for _, name := range names {
		if id, ok := model.ParseNodeName(name); ok {
			nodes = append(nodes, id)
		}
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("etcd %s: %w", nodesKey(e.prefix), ErrNoNodes)
	}
	return nodes, nil
}

// ---------------------------------------------------------
// 写入输入（从文件导入）
// ---------------------------------------------------------

func (e *EtcdManager) SaveBatches(ctx context.Context, ct string, batches []model.Batch) error {
	return e.putValue(ctx, batchesKey(e.prefix, ct), batches)
}

func (e *EtcdManager) SaveStartTime(ctx context.Context, ct string, start model.StartTime) error {
	key := startTimeKey(e.prefix, ct)
	if _, err := e.kv.Put(ctx, key, start.String()); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func (e *EtcdManager) SaveEnabledNodes(ctx context.Context, nodes []model.NodeID) error {
	names := make([]string, len(nodes))
	for i, id := range nodes {
		names[i] = id.Name()
	}
	return e.putValue(ctx, nodesKey(e.prefix), names)
}

// ---------------------------------------------------------
// PlanStore 实现
// ---------------------------------------------------------

func (e *EtcdManager) SavePlan(ctx context.Context, plan *model.Plan) error {
	return e.putValue(ctx, planKey(e.prefix, plan.CT), plan)
}

func (e *EtcdManager) GetPlan(ctx context.Context, ct string) (*model.Plan, error) {
	var plan model.Plan
	if err := e.getValue(ctx, planKey(e.prefix, ct), &plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

// ---------------------------------------------------------
// 辅助方法 (Helpers)
// ---------------------------------------------------------

// putValue 封装通用的 JSON 序列化 + Put 操作
func (e *EtcdManager) putValue(ctx context.Context, key string, val interface{}) error {
	bytes, err := json.Marshal(val)
	if err != nil {
		return err
	}
	if _, err := e.kv.Put(ctx, key, string(bytes)); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// getValue 读取单个键并反序列化，键不存在返回 ErrNotFound
func (e *EtcdManager) getValue(ctx context.Context, key string, out interface{}) error {
	resp, err := e.kv.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("get %s: %w", key, err)
	}
	if len(resp.Kvs) == 0 {
		return fmt.Errorf("etcd key %s: %w", key, ErrNotFound)
	}
	if err := json.Unmarshal(resp.Kvs[0].Value, out); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}
