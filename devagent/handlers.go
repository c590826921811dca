package devagent

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ceyewan/consulctl/clog"
	"github.com/ceyewan/consulctl/consul"
)

const headerIndex = "X-Consul-Index"

// catalogRegistration PUT /v1/catalog/register 的请求体
type catalogRegistration struct {
	Datacenter string          `json:"Datacenter"`
	Node       string          `json:"Node"`
	Address    string          `json:"Address"`
	Service    *catalogService `json:"Service"`
}

type catalogService struct {
	ID      string   `json:"ID"`
	Service string   `json:"Service"`
	Tags    []string `json:"Tags"`
	Port    int      `json:"Port"`
}

type catalogDeregistration struct {
	Datacenter string `json:"Datacenter"`
	Node       string `json:"Node"`
	ServiceID  string `json:"ServiceID"`
}

// agentService /v1/agent/service/{id} 的响应体
type agentService struct {
	ID         string   `json:"ID"`
	Service    string   `json:"Service"`
	Tags       []string `json:"Tags"`
	Port       int      `json:"Port"`
	Address    string   `json:"Address"`
	Datacenter string   `json:"Datacenter"`
}

func (a *Agent) routes(r *gin.Engine) {
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "Consul Agent")
	})

	v1 := r.Group("/v1")
	v1.GET("/catalog/services", a.listServices)
	v1.GET("/catalog/service/:name", a.readService)
	v1.PUT("/catalog/register", a.catalogRegister)
	v1.PUT("/catalog/deregister", a.catalogDeregister)

	v1.GET("/agent/self", a.self)
	v1.GET("/agent/service/:name", a.agentService)
	v1.POST("/agent/service/register", a.agentRegister)
	v1.PUT("/agent/service/register", a.agentRegister)
	v1.GET("/agent/service/deregister/:id", a.agentDeregister)
	v1.PUT("/agent/service/deregister/:id", a.agentDeregister)

	v1.GET("/kv/*key", a.getKey)
	v1.PUT("/kv/*key", a.putKey)
	v1.DELETE("/kv/*key", a.deleteKey)
}

// checkDatacenter 只服务本数据中心，其他数据中心返回与 Consul 一致的 500
func (a *Agent) checkDatacenter(c *gin.Context, dc string) bool {
	if dc == "" || dc == a.cfg.Datacenter {
		return true
	}
	c.String(http.StatusInternalServerError, "No path to datacenter")
	return false
}

// blockingParams 解析 index 与 wait，wait 超过 MaxWait 时截断
func (a *Agent) blockingParams(c *gin.Context) (uint64, time.Duration, bool) {
	var since uint64
	if v := c.Query("index"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			c.String(http.StatusBadRequest, "Invalid index: %s", v)
			return 0, 0, false
		}
		since = n
	}

	wait := a.cfg.MaxWait
	if v := c.Query("wait"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			c.String(http.StatusBadRequest, "Invalid wait time: %s", v)
			return 0, 0, false
		}
		wait = min(d, a.cfg.MaxWait)
	}
	return since, wait, true
}

func (a *Agent) listServices(c *gin.Context) {
	if !a.checkDatacenter(c, c.Query("dc")) {
		return
	}
	since, wait, ok := a.blockingParams(c)
	if !ok {
		return
	}
	a.store.waitCatalog(c.Request.Context(), a.done, since, wait)

	names, index := a.store.names()
	c.Header(headerIndex, strconv.FormatUint(index, 10))
	c.JSON(http.StatusOK, names)
}

func (a *Agent) readService(c *gin.Context) {
	if !a.checkDatacenter(c, c.Query("dc")) {
		return
	}
	since, wait, ok := a.blockingParams(c)
	if !ok {
		return
	}
	a.store.waitCatalog(c.Request.Context(), a.done, since, wait)

	instances, index := a.store.instances(c.Param("name"))
	c.Header(headerIndex, strconv.FormatUint(index, 10))
	c.JSON(http.StatusOK, instances)
}

func (a *Agent) catalogRegister(c *gin.Context) {
	var req catalogRegistration
	if err := c.ShouldBindJSON(&req); err != nil {
		c.String(http.StatusBadRequest, "Request decode failed: %v", err)
		return
	}
	if !a.checkDatacenter(c, req.Datacenter) {
		return
	}
	if req.Node == "" || req.Address == "" {
		c.String(http.StatusBadRequest, "Must provide node and address")
		return
	}
	if req.Service == nil || req.Service.Service == "" {
		c.String(http.StatusBadRequest, "Must provide service name")
		return
	}

	index := a.RegisterOnNode(req.Node, req.Address, consul.ServiceDefinition{
		ID:   req.Service.ID,
		Name: req.Service.Service,
		Port: req.Service.Port,
		Tags: req.Service.Tags,
	})
	c.Header(headerIndex, strconv.FormatUint(index, 10))
	c.JSON(http.StatusOK, true)
}

func (a *Agent) catalogDeregister(c *gin.Context) {
	var req catalogDeregistration
	if err := c.ShouldBindJSON(&req); err != nil {
		c.String(http.StatusBadRequest, "Request decode failed: %v", err)
		return
	}
	if !a.checkDatacenter(c, req.Datacenter) {
		return
	}
	if req.Node == "" {
		c.String(http.StatusBadRequest, "Must provide node")
		return
	}

	removed := a.store.deregister(req.Node, req.ServiceID)
	a.logger.Debug("catalog deregister",
		clog.String("node", req.Node),
		clog.String("service_id", req.ServiceID),
		clog.Bool("removed", removed))
	c.JSON(http.StatusOK, true)
}

func (a *Agent) self(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"Config": gin.H{
			"Datacenter": a.cfg.Datacenter,
			"NodeName":   a.cfg.NodeName,
		},
		"Member": gin.H{
			"Name": a.cfg.NodeName,
			"Addr": a.cfg.Address,
		},
	})
}

func (a *Agent) agentService(c *gin.Context) {
	r, ok := a.store.local(a.cfg.NodeName, c.Param("name"))
	if !ok {
		c.String(http.StatusNotFound, "unknown service ID: %s", c.Param("name"))
		return
	}
	inst := r.instance()
	c.JSON(http.StatusOK, agentService{
		ID:         inst.ServiceID,
		Service:    inst.ServiceName,
		Tags:       inst.ServiceTags,
		Port:       inst.ServicePort,
		Address:    inst.Address,
		Datacenter: a.cfg.Datacenter,
	})
}

func (a *Agent) agentRegister(c *gin.Context) {
	var def consul.ServiceDefinition
	if err := c.ShouldBindJSON(&def); err != nil {
		c.String(http.StatusBadRequest, "Request decode failed: %v", err)
		return
	}
	if def.Name == "" {
		c.String(http.StatusBadRequest, "Missing service name")
		return
	}

	a.Register(def)
	c.Status(http.StatusOK)
}

func (a *Agent) agentDeregister(c *gin.Context) {
	id := c.Param("id")
	if !a.store.deregister(a.cfg.NodeName, id) {
		c.String(http.StatusNotFound, "Unknown service ID %q. Ensure that the service ID is passed, not the service name.", id)
		return
	}
	a.logger.Debug("agent deregister", clog.String("service_id", id))
	c.Status(http.StatusOK)
}

// kvKey 去掉通配参数的前导 "/"
func kvKey(c *gin.Context) string {
	return strings.TrimPrefix(c.Param("key"), "/")
}

func (a *Agent) getKey(c *gin.Context) {
	key := kvKey(c)
	entry, ok, index := a.store.getKey(key)
	c.Header(headerIndex, strconv.FormatUint(index, 10))
	if !ok {
		c.Status(http.StatusNotFound)
		return
	}
	c.JSON(http.StatusOK, []consul.KeyEntry{entry})
}

func (a *Agent) putKey(c *gin.Context) {
	key := kvKey(c)
	if key == "" {
		c.String(http.StatusBadRequest, "Missing key name")
		return
	}
	var flags uint64
	if v := c.Query("flags"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			c.String(http.StatusBadRequest, "Invalid flags: %s", v)
			return
		}
		flags = n
	}
	value, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.String(http.StatusBadRequest, "Request body read failed: %v", err)
		return
	}

	index := a.store.putKey(key, value, flags)
	c.Header(headerIndex, strconv.FormatUint(index, 10))
	c.JSON(http.StatusOK, true)
}

func (a *Agent) deleteKey(c *gin.Context) {
	index := a.store.deleteKey(kvKey(c))
	c.Header(headerIndex, strconv.FormatUint(index, 10))
	c.JSON(http.StatusOK, true)
}
