package cluster

import (
	"sync"
)

// MemoryRegistry 内存注册器，用于测试和单机部署
type MemoryRegistry struct {
	mu sync.RWMutex

	services map[string][]*ServiceInfo // name -> services
}

// NewMemoryRegistry 创建一个新的内存注册器
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		services: make(map[string][]*ServiceInfo),
	}
}

// RegisterService 注册服务
func (m *MemoryRegistry) RegisterService(service *ServiceInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.services[service.Name]
	for i, s := range list {
		if s.ID == service.ID {
			list[i] = service
			return nil
		}
	}
	m.services[service.Name] = append(list, service)
	return nil
}

// DeregisterService 注销服务
func (m *MemoryRegistry) DeregisterService(serviceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for name, list := range m.services {
		idx := -1
		for i, s := range list {
			if s.ID == serviceID {
				idx = i
				break
			}
		}
		if idx >= 0 {
			m.services[name] = append(list[:idx], list[idx+1:]...)
		}
	}
	return nil
}

// DiscoverService 发现服务
func (m *MemoryRegistry) DiscoverService(serviceName string) ([]*ServiceInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := m.services[serviceName]
	result := make([]*ServiceInfo, len(list))
	copy(result, list)
	return result, nil
}

// Close 关闭注册器
func (m *MemoryRegistry) Close() error {
	return nil
}
