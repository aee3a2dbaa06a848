package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRegistry(t *testing.T) {
	registry := NewMemoryRegistry()
	defer registry.Close()

	svc1 := &ServiceInfo{ID: "sink-1", Name: "kafka-connect-s3", Address: "127.0.0.1", Port: 9100}
	svc2 := &ServiceInfo{ID: "sink-2", Name: "kafka-connect-s3", Address: "127.0.0.1", Port: 9101}

	require.NoError(t, registry.RegisterService(svc1))
	require.NoError(t, registry.RegisterService(svc2))

	services, err := registry.DiscoverService("kafka-connect-s3")
	if err != nil {
		t.Fatalf("发现服务失败: %v", err)
	}
	assert.Len(t, services, 2)

	// 同 ID 重复注册覆盖旧信息
	svc1Updated := &ServiceInfo{ID: "sink-1", Name: "kafka-connect-s3", Address: "10.0.0.1", Port: 9100}
	require.NoError(t, registry.RegisterService(svc1Updated))

	services, err = registry.DiscoverService("kafka-connect-s3")
	require.NoError(t, err)
	assert.Len(t, services, 2)
	assert.Equal(t, "10.0.0.1", services[0].Address)

	// 注销后不再被发现
	require.NoError(t, registry.DeregisterService("sink-1"))
	services, err = registry.DiscoverService("kafka-connect-s3")
	require.NoError(t, err)
	assert.Len(t, services, 1)
	assert.Equal(t, "sink-2", services[0].ID)

	// 未注册的服务名返回空列表
	services, err = registry.DiscoverService("unknown")
	require.NoError(t, err)
	assert.Empty(t, services)
}
