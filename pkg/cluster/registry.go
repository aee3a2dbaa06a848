package cluster

// ServiceInfo 表示一个归档任务实例的信息
type ServiceInfo struct {
	ID      string            `json:"id"`
	Name    string            `json:"name"`
	Address string            `json:"address"`
	Port    int               `json:"port"`
	Tags    []string          `json:"tags"`
	Meta    map[string]string `json:"meta"`
}

// Registry 定义任务实例注册与发现所需的接口
type Registry interface {
	// 服务注册与发现
	RegisterService(service *ServiceInfo) error
	DeregisterService(serviceID string) error
	DiscoverService(serviceName string) ([]*ServiceInfo, error)

	// 关闭
	Close() error
}
