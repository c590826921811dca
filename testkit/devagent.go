package testkit

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/consulctl/devagent"
)

// DevAgent 运行在 httptest 服务器上的内存 agent
type DevAgent struct {
	*devagent.Agent
	Server *httptest.Server
}

// URL agent 的基地址，如 http://127.0.0.1:54321
func (d *DevAgent) URL() string {
	return d.Server.URL
}

// NewDevAgent 启动内存 agent，生命周期由 t.Cleanup 管理
func NewDevAgent(t *testing.T, opts ...devagent.Option) *DevAgent {
	t.Helper()
	gin.SetMode(gin.TestMode)

	opts = append([]devagent.Option{devagent.WithLogger(NewLogger())}, opts...)
	agent, err := devagent.New(&devagent.Config{}, opts...)
	require.NoError(t, err, "failed to create devagent")

	srv := httptest.NewServer(agent.Handler())
	t.Cleanup(func() {
		agent.Close()
		srv.Close()
	})
	return &DevAgent{Agent: agent, Server: srv}
}
