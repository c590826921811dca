// consulctl 是 Consul agent 的命令行工具：注册、查询与注销服务，删除节点，以及读写 KV。
//
//	consulctl -c -s service.json
//	consulctl -r -k motd
//	consulctl --help
//
// 客户端的超时、熔断与扇出参数来自 consulctl.yaml 或 CONSULCTL_ 前缀的环境变量，
// agent 地址与数据中心由命令行指定。
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ceyewan/consulctl/clog"
	"github.com/ceyewan/consulctl/config"
	"github.com/ceyewan/consulctl/internal/cli"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loader, err := config.New(&config.Config{Name: "consulctl"}, config.WithDefaults(map[string]any{
		"log.level": "warn",
	}))
	if err == nil {
		err = loader.Load(ctx)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		return int(cli.GenericError)
	}
	settings, err := config.LoadSettings(loader)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		return int(cli.GenericError)
	}

	logger, err := clog.New(&settings.Log)
	if err != nil {
		logger = clog.Discard()
	}
	defer logger.Flush()

	tool := cli.New(
		cli.WithLogger(logger),
		cli.WithBaseConfig(&settings.Consul),
	)
	return cli.NewPrinter().Print(tool.Process(ctx, args))
}
