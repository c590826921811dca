package devagent

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/ceyewan/consulctl/consul"
)

type instanceKey struct {
	node string
	id   string
}

type registration struct {
	node    string
	address string
	def     consul.ServiceDefinition
}

func (r registration) instance() consul.ServiceInstance {
	tags := r.def.Tags
	if tags == nil {
		tags = []string{}
	}
	return consul.ServiceInstance{
		Node:        r.node,
		Address:     r.address,
		ServiceID:   r.def.EffectiveID(),
		ServiceName: r.def.Name,
		ServicePort: r.def.Port,
		ServiceTags: tags,
	}
}

// store 内存目录与 KV。index 对每次写入单调递增；catalogIndex 只在目录写入时前进。
// 每次写入关闭 changed 并换上新通道，唤醒所有阻塞查询。
type store struct {
	mu           sync.RWMutex
	index        uint64
	catalogIndex uint64
	services     map[instanceKey]registration
	kv           map[string]consul.KeyEntry
	changed      chan struct{}
}

func newStore() *store {
	return &store{
		index:        1,
		catalogIndex: 1,
		services:     map[instanceKey]registration{},
		kv:           map[string]consul.KeyEntry{},
		changed:      make(chan struct{}),
	}
}

// bump 必须持有写锁
func (s *store) bump(catalog bool) uint64 {
	s.index++
	if catalog {
		s.catalogIndex = s.index
	}
	close(s.changed)
	s.changed = make(chan struct{})
	return s.index
}

func (s *store) register(node, address string, def consul.ServiceDefinition) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.services[instanceKey{node: node, id: def.EffectiveID()}] = registration{node: node, address: address, def: def}
	return s.bump(true)
}

// deregister 删除节点上的服务，id 为空时删除节点上的全部服务。返回是否删除了任何实例。
func (s *store) deregister(node, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := false
	for k := range s.services {
		if k.node == node && (id == "" || k.id == id) {
			delete(s.services, k)
			removed = true
		}
	}
	if removed {
		s.bump(true)
	}
	return removed
}

// names 服务名到标签并集的映射，与 /v1/catalog/services 的响应一致
func (s *store) names() (map[string][]string, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := map[string][]string{}
	for _, r := range s.services {
		tags := out[r.def.Name]
		if tags == nil {
			tags = []string{}
		}
		for _, t := range r.def.Tags {
			if !slices.Contains(tags, t) {
				tags = append(tags, t)
			}
		}
		slices.Sort(tags)
		out[r.def.Name] = tags
	}
	return out, s.catalogIndex
}

// instances 返回服务的全部实例，按节点、ID 排序
func (s *store) instances(name string) ([]consul.ServiceInstance, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []consul.ServiceInstance{}
	for _, r := range s.services {
		if r.def.Name == name {
			out = append(out, r.instance())
		}
	}
	slices.SortFunc(out, func(a, b consul.ServiceInstance) int {
		return cmp.Or(cmp.Compare(a.Node, b.Node), cmp.Compare(a.ServiceID, b.ServiceID))
	})
	return out, s.catalogIndex
}

// local 按 ID 查找节点上的服务，找不到时再按服务名查找
func (s *store) local(node, idOrName string) (registration, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if r, ok := s.services[instanceKey{node: node, id: idOrName}]; ok {
		return r, true
	}
	var found []registration
	for k, r := range s.services {
		if k.node == node && r.def.Name == idOrName {
			found = append(found, r)
		}
	}
	if len(found) == 0 {
		return registration{}, false
	}
	slices.SortFunc(found, func(a, b registration) int {
		return cmp.Compare(a.def.EffectiveID(), b.def.EffectiveID())
	})
	return found[0], true
}

func (s *store) putKey(key string, value []byte, flags uint64) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	index := s.bump(false)
	entry, ok := s.kv[key]
	if !ok {
		entry = consul.KeyEntry{Key: key, CreateIndex: index}
	}
	entry.Value = consul.EncodeValue(string(value))
	entry.ModifyIndex = index
	entry.Flags = flags
	s.kv[key] = entry
	return index
}

func (s *store) getKey(key string) (consul.KeyEntry, bool, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.kv[key]
	return e, ok, s.index
}

func (s *store) deleteKey(key string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.kv[key]; !ok {
		return s.index
	}
	delete(s.kv, key)
	return s.bump(false)
}

func (s *store) currentIndex() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index
}

// waitCatalog 阻塞到目录索引超过 since、wait 到期、ctx 取消或 done 关闭。
// since 为 0 时立即返回。
func (s *store) waitCatalog(ctx context.Context, done <-chan struct{}, since uint64, wait time.Duration) {
	if since == 0 {
		return
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		s.mu.RLock()
		current, changed := s.catalogIndex, s.changed
		s.mu.RUnlock()
		if current > since {
			return
		}

		select {
		case <-changed:
		case <-timer.C:
			return
		case <-ctx.Done():
			return
		case <-done:
			return
		}
	}
}
