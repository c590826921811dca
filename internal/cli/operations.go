package cli

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"net/url"
	"os"
	"strings"

	"github.com/ceyewan/consulctl/clog"
	"github.com/ceyewan/consulctl/consul"
)

// operation 已完成输入准备、待执行的 consul 操作
type operation func(ctx context.Context, c consul.Client) Result

// plan 按主选项与动作选项选择操作，并读取操作所需的输入
func (t *Tool) plan(o *Options) (operation, *Result) {
	switch {
	case o.Service != "":
		switch {
		case o.Create:
			return t.planServiceCreate(o)
		case o.Read:
			return t.planServiceRead(o)
		default:
			return t.planServiceDelete(o)
		}
	case o.Key != "":
		if r := validateKey(o.Key); r != nil {
			return nil, r
		}
		switch {
		case o.Create:
			return t.planKeyCreate(o)
		case o.Read:
			return t.keyRead(o.Key), nil
		default:
			return t.keyDelete(o.Key), nil
		}
	default:
		if !o.Delete {
			return nil, fail(GenericError, "")
		}
		return t.nodeDelete(o.Node, o.Datacenter), nil
	}
}

// fromCore 把核心库的结果映射为命令结果。失败时使用 failure 结果码，
// 核心库的消息保留在 Cause 中。
func fromCore[T any](core consul.Result[T], failure ResultCode, subject string) (Result, bool) {
	if core.Success {
		return newResult(Success, ""), true
	}
	r := newResult(failure, subject)
	r.Cause = core.Message
	return r, false
}

func errorField(err error) clog.Field {
	return clog.ErrorWithCode(err, consul.CodeOf(err).String())
}

// validateKey 键必须能拼成合法的 KV 路径，且不能以 "/" 开头
func validateKey(key string) *Result {
	if strings.HasPrefix(key, "/") {
		return fail(InvalidKey, key)
	}
	if _, err := url.Parse("/v1/kv/" + key); err != nil {
		return fail(InvalidKey, key)
	}
	return nil
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// loadServiceDefinition 读取服务定义文件，兼容 {"service": {...}} 包装格式
func loadServiceDefinition(path string) (consul.ServiceDefinition, *Result) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return consul.ServiceDefinition{}, fail(ServiceDefinitionFileNotFound, path)
	}
	if err != nil {
		return consul.ServiceDefinition{}, fail(ServiceDefinitionFileBadFormat, path)
	}

	var wrapped struct {
		Service *consul.ServiceDefinition `json:"service"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return consul.ServiceDefinition{}, fail(ServiceDefinitionFileBadFormat, path)
	}
	def := wrapped.Service
	if def == nil {
		def = &consul.ServiceDefinition{}
		if err := json.Unmarshal(data, def); err != nil {
			return consul.ServiceDefinition{}, fail(ServiceDefinitionFileBadFormat, path)
		}
	}
	if def.Name == "" {
		return consul.ServiceDefinition{}, fail(ServiceDefinitionFileBadFormat, path)
	}
	return *def, nil
}

func (t *Tool) planServiceCreate(o *Options) (operation, *Result) {
	def, r := loadServiceDefinition(o.Service)
	if r != nil {
		return nil, r
	}
	return func(ctx context.Context, c consul.Client) Result {
		err := c.Register(ctx, def)
		r, ok := fromCore(consul.ResultOf(def.EffectiveID(), err), RegisterServiceFailure, def.Name)
		if !ok {
			t.logger.Error("failed to register service", clog.String("service", def.Name), errorField(err))
		}
		return r
	}, nil
}

// planServiceRead 参数是已存在的文件时读取其中的服务名，否则按服务名处理
func (t *Tool) planServiceRead(o *Options) (operation, *Result) {
	name := o.Service
	if isFile(o.Service) {
		def, r := loadServiceDefinition(o.Service)
		if r != nil {
			return nil, r
		}
		name = def.Name
	}
	return func(ctx context.Context, c consul.Client) Result {
		instances, err := c.ReadByName(ctx, name)
		core := consul.ResultOf(instances, err)
		if r, ok := fromCore(core, ReadServiceFailure, name); !ok {
			t.logger.Error("failed to read service", clog.String("service", name), errorField(err))
			return r
		}
		out, err := json.MarshalIndent(core.Value, "", "  ")
		if err != nil {
			return newResult(ReadServiceFailure, name)
		}
		return valueResult(string(out))
	}, nil
}

// planServiceDelete 参数是已存在的文件时使用定义的有效 ID，否则按服务 ID 处理
func (t *Tool) planServiceDelete(o *Options) (operation, *Result) {
	id := o.Service
	if isFile(o.Service) {
		def, r := loadServiceDefinition(o.Service)
		if r != nil {
			return nil, r
		}
		id = def.EffectiveID()
	}
	return func(ctx context.Context, c consul.Client) Result {
		err := c.Deregister(ctx, id)
		r, ok := fromCore(consul.ResultOf(id, err), UnregisterServiceFailure, id)
		if !ok {
			t.logger.Error("failed to deregister service", clog.String("service_id", id), errorField(err))
		}
		return r
	}, nil
}

// planKeyCreate 值是已存在的文件时使用文件内容，否则使用字面值
func (t *Tool) planKeyCreate(o *Options) (operation, *Result) {
	value := o.Value
	if value != "" && isFile(value) {
		data, err := os.ReadFile(value)
		if err != nil {
			return nil, fail(ValueCannotBeNullOrEmpty, "")
		}
		value = string(data)
	}
	if value == "" {
		return nil, fail(ValueCannotBeNullOrEmpty, "")
	}

	key := o.Key
	return func(ctx context.Context, c consul.Client) Result {
		err := c.CreateKey(ctx, key, value)
		r, ok := fromCore(consul.ResultOf(key, err), CreateKeyFailure, key)
		if !ok {
			t.logger.Error("failed to create key", clog.String("key", key), errorField(err))
		}
		return r
	}, nil
}

func (t *Tool) keyRead(key string) operation {
	return func(ctx context.Context, c consul.Client) Result {
		value, found, err := c.ReadValue(ctx, key)
		core := consul.ResultOf(value, err)
		if r, ok := fromCore(core, ReadKeyFailure, key); !ok {
			t.logger.Error("failed to read key", clog.String("key", key), errorField(err))
			return r
		}
		if !found {
			return newResult(KeyNotFound, key)
		}
		return valueResult(core.Value)
	}
}

func (t *Tool) keyDelete(key string) operation {
	return func(ctx context.Context, c consul.Client) Result {
		err := c.DeleteKey(ctx, key)
		r, ok := fromCore(consul.ResultOf(key, err), DeleteKeyFailure, key)
		if !ok {
			t.logger.Error("failed to delete key", clog.String("key", key), errorField(err))
		}
		return r
	}
}

func (t *Tool) nodeDelete(node, datacenter string) operation {
	return func(ctx context.Context, c consul.Client) Result {
		err := c.DeregisterNode(ctx, node, datacenter)
		r, ok := fromCore(consul.ResultOf(node, err), DeleteNodeFailure, node)
		if !ok {
			t.logger.Error("failed to deregister node", clog.String("node", node), errorField(err))
		}
		return r
	}
}
