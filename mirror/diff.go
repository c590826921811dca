package mirror

import (
	"cmp"
	"reflect"
	"slices"
	"time"

	"github.com/ceyewan/consulctl/consul"
)

type instanceKey struct {
	node      string
	serviceID string
	service   string
}

func keyOf(inst consul.ServiceInstance) instanceKey {
	return instanceKey{node: inst.Node, serviceID: inst.ServiceID, service: inst.ServiceName}
}

func indexInstances(instances []consul.ServiceInstance) map[instanceKey]consul.ServiceInstance {
	m := make(map[instanceKey]consul.ServiceInstance, len(instances))
	for _, inst := range instances {
		m[keyOf(inst)] = inst
	}
	return m
}

// Diff 比较两份实例集合。实例以 (node, service, service id) 标识，
// 结果按 service、service id、node 排序。
func Diff(prev, curr []consul.ServiceInstance, index uint64, at time.Time) []ChangeEvent {
	before := indexInstances(prev)
	after := indexInstances(curr)

	var changes []ChangeEvent
	for k, now := range after {
		old, ok := before[k]
		switch {
		case !ok:
			changes = append(changes, newEvent(ChangeAdded, k, index, at, &now, nil))
		case !reflect.DeepEqual(normalizeTags(old), normalizeTags(now)):
			changes = append(changes, newEvent(ChangeUpdated, k, index, at, &now, &old))
		}
	}
	for k, old := range before {
		if _, ok := after[k]; !ok {
			changes = append(changes, newEvent(ChangeRemoved, k, index, at, nil, &old))
		}
	}

	slices.SortFunc(changes, func(a, b ChangeEvent) int {
		return cmp.Or(
			cmp.Compare(a.Service, b.Service),
			cmp.Compare(a.ServiceID, b.ServiceID),
			cmp.Compare(a.Node, b.Node),
		)
	})
	return changes
}

func newEvent(t ChangeType, k instanceKey, index uint64, at time.Time, inst, prev *consul.ServiceInstance) ChangeEvent {
	return ChangeEvent{
		Type:      t,
		Service:   k.service,
		ServiceID: k.serviceID,
		Node:      k.node,
		Index:     index,
		Instance:  inst,
		Previous:  prev,
		At:        at,
	}
}

// normalizeTags nil 与空标签列表视为相同
func normalizeTags(inst consul.ServiceInstance) consul.ServiceInstance {
	if len(inst.ServiceTags) == 0 {
		inst.ServiceTags = nil
	}
	return inst
}
