package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/ceyewan/consulctl/consul"
	"github.com/ceyewan/consulctl/xerrors"
)

// RegistryInstance etcd 中的实例记录，与 etcd 服务发现的注册布局一致
type RegistryInstance struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Version   string            `json:"version"`
	Metadata  map[string]string `json:"metadata"`
	Endpoints []string          `json:"endpoints"`
}

func registryInstance(inst consul.ServiceInstance) RegistryInstance {
	md := map[string]string{"node": inst.Node, "source": "consul"}
	if len(inst.ServiceTags) > 0 {
		md["tags"] = strings.Join(inst.ServiceTags, ",")
	}
	addr := inst.Address
	if a, ok := consul.ParseAddr(addr); ok && a.Is6() {
		addr = "[" + addr + "]"
	}
	return RegistryInstance{
		ID:        inst.ServiceID,
		Name:      inst.ServiceName,
		Metadata:  md,
		Endpoints: []string{"http://" + addr + ":" + strconv.Itoa(inst.ServicePort)},
	}
}

// EtcdSink 把每个实例写到 <namespace>/<service>/<id>，并删除快照中已不存在的 key。
// 同一 ID 出现在多个节点时，以快照中靠后的实例为准。
type EtcdSink struct {
	client    *clientv3.Client
	namespace string
}

// NewEtcdSink 创建 etcd Sink，namespace 为空时使用 DefaultEtcdNamespace
func NewEtcdSink(client *clientv3.Client, namespace string) *EtcdSink {
	if namespace == "" {
		namespace = DefaultEtcdNamespace
	}
	return &EtcdSink{client: client, namespace: strings.TrimSuffix(namespace, "/")}
}

func (s *EtcdSink) Name() string { return "etcd" }

func (s *EtcdSink) buildKey(service, id string) string {
	return fmt.Sprintf("%s/%s/%s", s.namespace, service, id)
}

// Apply 以快照为准对齐 namespace 下的全部 key，不回放变更
func (s *EtcdSink) Apply(ctx context.Context, u Update) error {
	desired := make(map[string]string, len(u.Snapshot.Instances))
	for _, inst := range u.Snapshot.Instances {
		value, err := json.Marshal(registryInstance(inst))
		if err != nil {
			return xerrors.Wrapf(err, "encode instance %s", inst.ServiceID)
		}
		desired[s.buildKey(inst.ServiceName, inst.ServiceID)] = string(value)
	}

	resp, err := s.client.Get(ctx, s.namespace+"/", clientv3.WithPrefix())
	if err != nil {
		return xerrors.Wrap(err, "list registry keys")
	}
	existing := make(map[string]string, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		existing[string(kv.Key)] = string(kv.Value)
	}

	var ops []clientv3.Op
	for key, value := range desired {
		if existing[key] != value {
			ops = append(ops, clientv3.OpPut(key, value))
		}
	}
	for key := range existing {
		if _, ok := desired[key]; !ok {
			ops = append(ops, clientv3.OpDelete(key))
		}
	}
	if len(ops) == 0 {
		return nil
	}

	// 单个事务的操作数受服务端 max-txn-ops（默认 128）限制，分批提交
	for start := 0; start < len(ops); start += maxTxnOps {
		end := min(start+maxTxnOps, len(ops))
		if _, err := s.client.Txn(ctx).Then(ops[start:end]...).Commit(); err != nil {
			return xerrors.Wrap(err, "commit registry changes")
		}
	}
	return nil
}

const maxTxnOps = 128

// List 读取 namespace 下的全部实例
func (s *EtcdSink) List(ctx context.Context) ([]RegistryInstance, error) {
	resp, err := s.client.Get(ctx, s.namespace+"/", clientv3.WithPrefix(), clientv3.WithSort(clientv3.SortByKey, clientv3.SortAscend))
	if err != nil {
		return nil, xerrors.Wrap(err, "list registry keys")
	}
	out := make([]RegistryInstance, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var inst RegistryInstance
		if err := json.Unmarshal(kv.Value, &inst); err != nil {
			return nil, xerrors.Wrapf(err, "decode %s", kv.Key)
		}
		out = append(out, inst)
	}
	return out, nil
}
