// Package certstore 持有进程级的、跨请求共享的直通代理状态：缓存的上游 IP。
// 证书/私钥字节本身由部署层注入（out of scope，见 spec §1），这里只负责
// IP 缓存的原子替换与磁盘持久化，供 C5 在重启后复用上一次解析到的地址。
package certstore

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"cmm-gateway/internal/logger"
)

// IPCache 是一个原子替换的字符串缓存，写者（启动时的 DNS 解析器）与读者
// （C5 的每次拨号）之间不需要锁——atomic.Value 的读写都是无锁的。
type IPCache struct {
	value atomic.Value // string
	path  string
}

// New 创建一个空的 IPCache，path 用于 Load/Save 的磁盘持久化（可为空，表示不持久化）。
func New(path string) *IPCache {
	return &IPCache{path: path}
}

// Load 从磁盘读取上一次持久化的 IP（若存在）。文件不存在不是错误。
func (c *IPCache) Load() error {
	if c.path == "" {
		return nil
	}
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("读取IP缓存文件失败: %w", err)
	}
	ip := strings.TrimSpace(string(data))
	if ip != "" {
		c.value.Store(ip)
	}
	return nil
}

// Set 原子替换当前缓存的 IP，并在配置了路径时落盘（mode 0600）。
// 落盘失败只记录日志，不影响内存中已经生效的 IP——持久化是最佳努力。
func (c *IPCache) Set(ip string) {
	c.value.Store(ip)
	if c.path == "" {
		return
	}
	if err := os.WriteFile(c.path, []byte(ip), 0o600); err != nil {
		logger.Warn("持久化上游IP缓存失败", logger.String("path", c.path), logger.Err(err))
	}
}

// Get 返回当前缓存的 IP，未设置时返回空字符串。
func (c *IPCache) Get() string {
	v, _ := c.value.Load().(string)
	return v
}
