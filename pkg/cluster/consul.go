package cluster

import (
	"fmt"

	"github.com/hashicorp/consul/api"
)

// ConsulRegistry 基于 Consul 的任务实例注册
type ConsulRegistry struct {
	client *api.Client
	config *api.Config
}

// NewConsulRegistry 创建一个新的 Consul 注册器
func NewConsulRegistry(address string) (*ConsulRegistry, error) {
	config := api.DefaultConfig()
	config.Address = address

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create consul client: %w", err)
	}

	return &ConsulRegistry{
		client: client,
		config: config,
	}, nil
}

// RegisterService 注册服务到 Consul
func (c *ConsulRegistry) RegisterService(service *ServiceInfo) error {
	reg := &api.AgentServiceRegistration{
		ID:      service.ID,
		Name:    service.Name,
		Address: service.Address,
		Port:    service.Port,
		Tags:    service.Tags,
		Meta:    service.Meta,
		Check: &api.AgentServiceCheck{
			TCP:                            fmt.Sprintf("%s:%d", service.Address, service.Port),
			Interval:                       "10s",
			Timeout:                        "5s",
			DeregisterCriticalServiceAfter: "30s",
		},
	}

	return c.client.Agent().ServiceRegister(reg)
}

// DeregisterService 从 Consul 注销服务
func (c *ConsulRegistry) DeregisterService(serviceID string) error {
	return c.client.Agent().ServiceDeregister(serviceID)
}

// DiscoverService 发现服务
func (c *ConsulRegistry) DiscoverService(serviceName string) ([]*ServiceInfo, error) {
	services, _, err := c.client.Health().Service(serviceName, "", true, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to discover service: %w", err)
	}

	var result []*ServiceInfo
	for _, service := range services {
		result = append(result, &ServiceInfo{
			ID:      service.Service.ID,
			Name:    service.Service.Service,
			Address: service.Service.Address,
			Port:    service.Service.Port,
			Tags:    service.Service.Tags,
			Meta:    service.Service.Meta,
		})
	}

	return result, nil
}

// Close 关闭注册器
func (c *ConsulRegistry) Close() error {
	return nil
}
