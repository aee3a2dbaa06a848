package main

import (
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/mikekamornikov/kafka-connect-s3/pkg/cluster"
	"github.com/mikekamornikov/kafka-connect-s3/pkg/metrics"
	"github.com/mikekamornikov/kafka-connect-s3/pkg/network"
	"github.com/mikekamornikov/kafka-connect-s3/pkg/remote"
	"github.com/mikekamornikov/kafka-connect-s3/pkg/sink"
)

func main() {
	addr := getenv("KCS3_ADDR", "0.0.0.0:9100")
	nodeID := getenv("KCS3_NODE_ID", "sink-1")

	cfg := &sink.Config{
		Bucket:    getenv("KCS3_BUCKET", ""),
		Prefix:    getenv("KCS3_PREFIX", ""),
		BufferDir: getenv("KCS3_BUFFER_DIR", ""),
		BlockSize: int64(getenvInt("KCS3_BLOCK_SIZE", 0)),
		Format:    getenv("KCS3_FORMAT", "binary"),
	}

	objects, err := remote.NewMinioStore(&remote.MinioConfig{
		Endpoint:  getenv("KCS3_S3_ENDPOINT", "127.0.0.1:9000"),
		AccessKey: getenv("KCS3_S3_ACCESS_KEY", ""),
		SecretKey: getenv("KCS3_S3_SECRET_KEY", ""),
		Bucket:    cfg.Bucket,
		UseSSL:    getenv("KCS3_S3_USE_SSL", "") == "true",
	})
	if err != nil {
		log.Fatalf("创建对象存储失败: %v", err)
	}

	flushInterval := time.Duration(getenvInt("KCS3_FLUSH_INTERVAL_MS", 30000)) * time.Millisecond
	server, err := network.NewServer(addr, flushInterval)
	if err != nil {
		log.Fatalf("创建服务器失败: %v", err)
	}

	coordinator, err := sink.NewTaskCoordinator(cfg, objects, server)
	if err != nil {
		log.Fatalf("创建任务协调器失败: %v", err)
	}

	// 挂接运行指标
	if metricsAddr := getenv("KCS3_METRICS_ADDR", ""); metricsAddr != "" {
		m := metrics.NewSinkMetrics()
		coordinator.SetMetrics(m)
		go func() {
			http.Handle("/metrics", m.Handler())
			if err := http.ListenAndServe(metricsAddr, nil); err != nil {
				log.Printf("指标服务退出: %v", err)
			}
		}()
	}

	// 注册到 Consul
	if consulAddr := getenv("KCS3_CONSUL_ADDR", ""); consulAddr != "" {
		registry, err := cluster.NewConsulRegistry(consulAddr)
		if err != nil {
			log.Fatalf("连接 consul 失败: %v", err)
		}
		host, port := splitHostPort(server.Addr())
		if err := registry.RegisterService(&cluster.ServiceInfo{
			ID:      nodeID,
			Name:    "kafka-connect-s3",
			Address: host,
			Port:    port,
		}); err != nil {
			log.Fatalf("注册服务失败: %v", err)
		}
		defer registry.DeregisterService(nodeID)
	}

	server.SetCoordinator(coordinator)
	if err := server.Start(); err != nil {
		log.Fatalf("启动服务器失败: %v", err)
	}
	log.Printf("归档任务 %s 已启动，监听 %s", nodeID, server.Addr())

	// 等待退出信号
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Printf("收到退出信号，丢弃本地缓冲")
	if err := server.Stop(); err != nil {
		log.Printf("停止服务器失败: %v", err)
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func splitHostPort(addr string) (string, int) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, 0
	}
	port, _ := strconv.Atoi(portStr)
	return host, port
}
