// Package storetest 内存版的 etcd KV，供测试使用
package storetest

import (
	"context"
	"errors"
	"sort"
	"sync"

	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// KV 只实现 Get 和 Put（单键），其余方法调用会 panic
type KV struct {
	clientv3.KV

	mu   sync.Mutex
	data map[string]string
}

var _ clientv3.KV = (*KV)(nil)

// ErrUnavailable 模拟集群不可用
var ErrUnavailable = errors.New("etcdserver: unavailable")

func New() *KV {
	return &KV{data: make(map[string]string)}
}

func (m *KV) Put(_ context.Context, key, val string, opts ...clientv3.OpOption) (*clientv3.PutResponse, error) {
	if len(opts) > 0 {
		return nil, errors.New("storetest: put options are not supported")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return nil, ErrUnavailable
	}
	m.data[key] = val
	return &clientv3.PutResponse{}, nil
}

func (m *KV) Get(_ context.Context, key string, opts ...clientv3.OpOption) (*clientv3.GetResponse, error) {
	if len(opts) > 0 {
		return nil, errors.New("storetest: get options are not supported")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return nil, ErrUnavailable
	}
	resp := &clientv3.GetResponse{}
	if v, ok := m.data[key]; ok {
		resp.Kvs = []*mvccpb.KeyValue{{Key: []byte(key), Value: []byte(v)}}
		resp.Count = 1
	}
	return resp, nil
}

// Set 直接写入原始值
func (m *KV) Set(key, val string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = val
}

// Value 读取原始值
func (m *KV) Value(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok
}

// Keys 按字典序返回所有键
func (m *KV) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Fail 之后的所有调用都返回 ErrUnavailable
func (m *KV) Fail() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = nil
}
