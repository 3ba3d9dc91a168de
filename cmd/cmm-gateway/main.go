// cmm-gateway 是进程入口：加载配置、装配 C1-C8 各组件、启动 TLS 监听器，
// 并在收到 SIGINT/SIGTERM 时优雅关闭。证书/私钥字节、真实上游主机名/端口、
// 模型映射全部来自 internal/config（部署层注入的外部协作者输出）。
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/joho/godotenv"

	"cmm-gateway/internal/certstore"
	"cmm-gateway/internal/config"
	"cmm-gateway/internal/geminiclient"
	"cmm-gateway/internal/logger"
	"cmm-gateway/internal/passthrough"
	"cmm-gateway/internal/router"
	"cmm-gateway/internal/tlsserver"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "警告: 无法加载.env文件: %v\n", err)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "配置加载失败: %v\n", err)
		os.Exit(1)
	}

	logCfg := logger.ParseConfig()
	if cfg.LogFilePath != "" {
		logCfg.File = cfg.LogFilePath
	}
	logger.Init(logCfg)
	defer logger.Close()

	ips := certstore.New(cfg.IPCachePath)
	if err := ips.Load(); err != nil {
		logger.Warn("加载IP缓存失败", logger.Err(err))
	}
	if ips.Get() == "" {
		seedIPCache(ips, cfg.AnthropicRealHost)
	}

	gemini := geminiclient.NewClient(cfg)
	pt := passthrough.NewClient(cfg, ips)
	r := router.New(cfg, gemini, pt)

	srv, err := tlsserver.New(cfg, r.Engine())
	if err != nil {
		logger.Fatal("初始化TLS监听器失败", logger.Err(err))
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	go func() {
		sigCh <- tlsserver.WaitForSignal()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Fatal("TLS监听器异常退出", logger.Err(err))
		}
	case sig := <-sigCh:
		logger.Info("收到退出信号，开始优雅关闭", logger.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("优雅关闭失败", logger.Err(err))
		}
	}
}

// seedIPCache 在磁盘上没有上一次持久化的 IP 时，用标准库解析一次真实主机名，
// 给直通代理一个可用的起始地址。后续刷新/hosts 劫持由部署层的 DNS 协作者负责，
// 这里只保证冷启动时 C5 不会拿到空地址。
func seedIPCache(ips *certstore.IPCache, host string) {
	addrs, err := net.LookupHost(host)
	if err != nil || len(addrs) == 0 {
		logger.Warn("启动时解析真实上游地址失败，直通代理将使用主机名拨号", logger.String("host", host), logger.Err(err))
		return
	}
	ips.Set(addrs[0])
	logger.Info("已缓存上游IP", logger.String("host", host), logger.String("ip", addrs[0]))
}
