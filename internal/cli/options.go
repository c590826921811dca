package cli

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"strconv"

	"github.com/spf13/pflag"

	"github.com/ceyewan/consulctl/xerrors"
)

// Options 命令行选项
type Options struct {
	Host       string
	Port       int
	Datacenter string

	// 主选项，恰好指定一个
	Service string
	Key     string
	Node    string

	// 动作选项，恰好指定一个
	Create bool
	Read   bool
	Delete bool

	// Value 第一个位置参数：键值或包含键值的文件路径
	Value string
	Help  bool
}

// HostString 返回 agent 基地址，如 http://localhost:8500
func (o *Options) HostString() string {
	return "http://" + net.JoinHostPort(o.Host, strconv.Itoa(o.Port))
}

func (o *Options) mainOptionCount() int {
	n := 0
	for _, v := range []string{o.Service, o.Key, o.Node} {
		if v != "" {
			n++
		}
	}
	return n
}

func (o *Options) subOptionCount() int {
	n := 0
	for _, v := range []bool{o.Create, o.Read, o.Delete} {
		if v {
			n++
		}
	}
	return n
}

func newFlagSet(o *Options) *pflag.FlagSet {
	fs := pflag.NewFlagSet("consulctl", pflag.ContinueOnError)
	fs.SortFlags = false
	fs.SetOutput(io.Discard)

	fs.StringVarP(&o.Host, "host", "h", "localhost", "The machine name or IP address of the host running consul")
	fs.IntVarP(&o.Port, "port", "p", 8500, "The consul HTTP API port")
	fs.StringVar(&o.Datacenter, "dc", "", "Datacenter used for node and catalog operations")

	fs.StringVarP(&o.Service, "svc", "s", "", "Perform a service-related operation (definition file, name or id)")
	fs.StringVarP(&o.Key, "key", "k", "", "Perform a key-value-related operation")
	fs.StringVarP(&o.Node, "node", "n", "", "Perform a node-related operation")

	fs.BoolVarP(&o.Create, "create", "c", false, "Adds the specified key or service")
	fs.BoolVarP(&o.Read, "read", "r", false, "Reads the specified key or service")
	fs.BoolVarP(&o.Delete, "delete", "d", false, "Removes the specified key, service or node")

	fs.BoolVar(&o.Help, "help", false, "Show this help")
	return fs
}

// ParseOptions 解析参数，第一个位置参数作为 Value，多余的位置参数视为错误
func ParseOptions(args []string) (*Options, error) {
	o := &Options{}
	fs := newFlagSet(o)
	if err := fs.Parse(args); err != nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, err.Error())
	}

	switch rest := fs.Args(); len(rest) {
	case 0:
	case 1:
		o.Value = rest[0]
	default:
		return nil, xerrors.Wrapf(xerrors.ErrInvalidInput, "unexpected arguments: %v", rest[1:])
	}
	if o.Port <= 0 || o.Port > 65535 {
		return nil, xerrors.Wrapf(xerrors.ErrInvalidInput, "port %d out of range", o.Port)
	}
	return o, nil
}

// Usage 返回用法说明
func Usage() string {
	var b bytes.Buffer
	fmt.Fprintln(&b, "\nConsul command line tool")
	fmt.Fprintln(&b, "https://developer.hashicorp.com/consul/api-docs")
	fmt.Fprintln(&b)
	fmt.Fprintln(&b, "Usage: consulctl [options] <-s svc | -k key | -n node> <-c | -r | -d> [value]")
	fmt.Fprintln(&b)
	fmt.Fprint(&b, newFlagSet(&Options{}).FlagUsages())
	fmt.Fprintln(&b)
	fmt.Fprintln(&b, "  [value]    <k-v pair value> | <k-v pair value file path>")
	fmt.Fprintln(&b)
	fmt.Fprintln(&b, "Register a service:                consulctl -c -s service.json")
	fmt.Fprintln(&b, "Register a service on host/port:   consulctl -h consul.example.com -p 8501 -c -s svc.json")
	fmt.Fprintln(&b, "Read the nodes of a service:       consulctl -r -s myService")
	fmt.Fprintln(&b, "Unregister a service:              consulctl -d -s service.json")
	fmt.Fprintln(&b, "Remove a node from the catalog:    consulctl -d -n node-1")
	fmt.Fprintln(&b)
	fmt.Fprintln(&b, "Create a key:                      consulctl -c -k motd hello")
	fmt.Fprintln(&b, "Read a key:                        consulctl -r -k motd")
	fmt.Fprintln(&b, "Delete a key:                      consulctl -d -k motd")
	return b.String()
}
