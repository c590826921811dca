package consul

// ServiceDefinition 服务注册定义，ID 为空时以 Name 作为有效 ID
type ServiceDefinition struct {
	ID    string       `json:"ID,omitempty"`
	Name  string       `json:"Name"`
	Port  int          `json:"Port"`
	Node  string       `json:"Node,omitempty"`
	Tags  []string     `json:"Tags"`
	Check *HealthCheck `json:"Check,omitempty"`
}

// EffectiveID 返回下游操作使用的服务 ID
func (d ServiceDefinition) EffectiveID() string {
	if d.ID != "" {
		return d.ID
	}
	return d.Name
}

// HealthCheck 健康检查定义。脚本退出码 0 为 passing，1 为 warning，其余为 failing。
type HealthCheck struct {
	ID       string `json:"Id,omitempty"`
	Name     string `json:"Name,omitempty"`
	Script   string `json:"Script,omitempty"`
	Interval string `json:"Interval,omitempty"`
	Notes    string `json:"Notes,omitempty"`
	TTL      string `json:"TTL,omitempty"`
}

// ServiceInstance 目录中的服务实例投影
type ServiceInstance struct {
	Node        string   `json:"Node"`
	Address     string   `json:"Address"`
	ServiceID   string   `json:"ServiceID"`
	ServiceName string   `json:"ServiceName"`
	ServicePort int      `json:"ServicePort"`
	ServiceTags []string `json:"ServiceTags"`
}

// CatalogSnapshot 全量目录快照。对同一目录的连续阻塞读取，Index 单调不减。
//
// 快照由一次名称列表和 N 次按名读取拼接而成，不具备跨服务的原子性：
// 列表与某次按名读取之间发生的变更可能只部分反映在快照中。
type CatalogSnapshot struct {
	Instances []ServiceInstance
	Index     uint64
	// ServerIndex 列表响应头中的原始索引，不经水位截断，可能小于 Index。
	// 0 表示读取方没有提供。
	ServerIndex uint64
}

// KeyEntry KV 条目，Value 为 base64 编码
type KeyEntry struct {
	Key         string `json:"Key"`
	Value       string `json:"Value"`
	CreateIndex uint64 `json:"CreateIndex"`
	ModifyIndex uint64 `json:"ModifyIndex"`
	LockIndex   uint64 `json:"LockIndex"`
	Flags       uint64 `json:"Flags"`
}

// DecodedValue 解码 Value，失败时返回 DecodeError
func (e KeyEntry) DecodedValue() (string, error) {
	v, err := DecodeValue(e.Value)
	if err != nil {
		return "", newError(DecodeError, err, e.Key)
	}
	return v, nil
}

type agentService struct {
	ID      string   `json:"ID"`
	Service string   `json:"Service"`
	Tags    []string `json:"Tags"`
	Port    int      `json:"Port"`
	Address string   `json:"Address"`
}

func (s agentService) instance() ServiceInstance {
	return ServiceInstance{
		Address:     s.Address,
		ServiceID:   s.ID,
		ServiceName: s.Service,
		ServicePort: s.Port,
		ServiceTags: s.Tags,
	}
}

type catalogDeregistration struct {
	Datacenter string `json:"Datacenter,omitempty"`
	Node       string `json:"Node"`
	ServiceID  string `json:"ServiceID,omitempty"`
}
