// Package tlsserver 实现 C7：在 127.0.0.1 上用部署层注入的证书/私钥终结 TLS，
// 把每个 HTTP/1.1 请求交给 C6 处理，并支持优雅关闭。
package tlsserver

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"cmm-gateway/internal/config"
	"cmm-gateway/internal/logger"
)

// Server 包装一个配置好超时、最大请求头、TLS 证书的 http.Server。
type Server struct {
	httpServer *http.Server
	listenAddr string
}

// New 从 Config 和已经装配好的 handler（C6 的 gin.Engine）构造监听器。
// cfg.TLSCertPEM/TLSKeyPEM 必须非空——证书字节本身由部署层的外部协作者
// 负责生成和信任链注册（spec §1 out of scope）。
func New(cfg *config.Config, handler http.Handler) (*Server, error) {
	cert, err := tls.X509KeyPair(cfg.TLSCertPEM, cfg.TLSKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("加载TLS证书失败: %w", err)
	}

	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}

	httpServer := &http.Server{
		Addr:           cfg.ListenAddr,
		Handler:        handler,
		TLSConfig:      tlsConfig,
		ReadTimeout:    config.ServerReadTimeout,
		WriteTimeout:   config.ServerWriteTimeout,
		IdleTimeout:    config.ServerIdleTimeout,
		MaxHeaderBytes: config.MaxHeaderBytes,
	}

	return &Server{httpServer: httpServer, listenAddr: cfg.ListenAddr}, nil
}

// ListenAndServe 绑定端口并开始接受连接，阻塞直到 Shutdown 被调用或发生致命错误。
// EACCES/EADDRINUSE 被翻译成操作者能看懂的诊断信息，而不是裸系统调用错误。
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return translateListenError(err, s.httpServer.Addr)
	}
	tlsListener := tls.NewListener(ln, s.httpServer.TLSConfig)

	logger.Info("TLS监听器已启动", logger.String("addr", s.listenAddr))
	err = s.httpServer.Serve(tlsListener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown 停止接受新连接，等待在飞请求完成（或 ctx 超时）后返回。
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Info("TLS监听器开始优雅关闭")
	return s.httpServer.Shutdown(ctx)
}

func translateListenError(err error, addr string) error {
	if errors.Is(err, syscall.EACCES) {
		return fmt.Errorf("绑定 %s 失败: 端口需要 root 权限 (port requires root)", addr)
	}
	if errors.Is(err, syscall.EADDRINUSE) {
		return fmt.Errorf("绑定 %s 失败: 已有实例在运行 (already running)", addr)
	}
	return err
}

// WaitForSignal 阻塞直到收到 SIGINT/SIGTERM，用于 cmd/cmm-gateway/main.go 驱动优雅关闭。
func WaitForSignal() os.Signal {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	return <-ch
}
