package consul

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ceyewan/consulctl/clog"
	"github.com/ceyewan/consulctl/xerrors"
)

const (
	pathRegister          = "v1/agent/service/register"
	pathAgentDeregister   = "v1/agent/service/deregister/"
	pathCatalogDeregister = "v1/catalog/deregister"

	routeAgentDeregister = "v1/agent/service/deregister/{id}"
)

func (c *httpClient) Register(ctx context.Context, def ServiceDefinition) error {
	if def.Name == "" {
		return newError(UnexpectedError, xerrors.Wrap(xerrors.ErrInvalidInput, "service name is empty"))
	}

	body, err := json.Marshal(def)
	if err != nil {
		return newError(UnexpectedError, err, def.EffectiveID())
	}
	if _, err := c.send(ctx, &Request{
		Method:      http.MethodPost,
		Path:        pathRegister,
		Route:       pathRegister,
		Body:        body,
		ContentType: "application/json",
	}, def.EffectiveID()); err != nil {
		return err
	}

	c.logger.Info("service registered",
		clog.String("service_id", def.EffectiveID()),
		clog.String("service", def.Name),
		clog.Int("port", def.Port))
	return nil
}

func (c *httpClient) Deregister(ctx context.Context, serviceID string) error {
	inst, found, err := c.ResolveServiceByID(ctx, serviceID)
	if err != nil {
		return err
	}
	if !found {
		return newError(ServiceNotFound, xerrors.ErrNotFound, serviceID)
	}

	local, err := c.locality.IsLocal(ctx, inst.Address)
	if err != nil {
		return newError(UnexpectedError, xerrors.Wrap(err, "determine service locality"), serviceID)
	}

	if local {
		// agent 端点只作用于当前连接的节点，且以 GET 完成注销
		_, err = c.send(ctx, &Request{
			Method: http.MethodGet,
			Path:   pathAgentDeregister + serviceID,
			Route:  routeAgentDeregister,
		}, serviceID)
	} else {
		err = c.catalogDeregister(ctx, catalogDeregistration{
			Datacenter: c.cfg.Datacenter,
			Node:       inst.Node,
			ServiceID:  serviceID,
		}, serviceID)
	}
	if err != nil {
		return err
	}

	c.logger.Info("service deregistered",
		clog.String("service_id", serviceID),
		clog.String("node", inst.Node),
		clog.String("address", inst.Address),
		clog.Bool("local", local))
	return nil
}

func (c *httpClient) DeregisterNode(ctx context.Context, node, datacenter string) error {
	if node == "" {
		return newError(UnexpectedError, xerrors.Wrap(xerrors.ErrInvalidInput, "node is empty"))
	}
	if datacenter == "" {
		datacenter = c.cfg.Datacenter
	}
	if err := c.catalogDeregister(ctx, catalogDeregistration{Datacenter: datacenter, Node: node}, node); err != nil {
		return err
	}

	c.logger.Info("node deregistered", clog.String("node", node), clog.String("datacenter", datacenter))
	return nil
}

func (c *httpClient) catalogDeregister(ctx context.Context, payload catalogDeregistration, subject string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return newError(UnexpectedError, err, subject)
	}
	_, err = c.send(ctx, &Request{
		Method:      http.MethodPut,
		Path:        pathCatalogDeregister,
		Route:       pathCatalogDeregister,
		Body:        body,
		ContentType: "application/json",
	}, subject)
	return err
}
