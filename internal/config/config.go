package config

import (
	"fmt"
	"os"
	"strconv"
)

// ModelMapping 描述一次前缀匹配的路由策略：source 命中时转发给 target。
type ModelMapping struct {
	SourceModel string
	TargetModel string
}

// Config 汇总了核心引擎运行所需的全部外部输入。
// 证书/密钥字节、上游地址、鉴权凭据均来自部署环境，核心只负责消费它们。
type Config struct {
	ListenAddr string

	TLSCertPEM []byte
	TLSKeyPEM  []byte

	Mapping ModelMapping

	GeminiEndpoint  string
	GeminiAPIKey    string
	GeminiWrapped   bool // 上游是否用 {response:...} 包装响应
	GeminiHeaderTag string

	AnthropicRealHost string
	AnthropicRealPort string

	IPCachePath string
	LogFilePath string
}

// Load 从环境变量装配 Config。证书/密钥/主机名等敏感输入留给部署层注入，
// 核心引擎从不自己生成或获取它们（out of scope，由外部协作者负责）。
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr: getEnv("CMM_LISTEN_ADDR", "127.0.0.1:443"),
		Mapping: ModelMapping{
			SourceModel: getEnv("CMM_SOURCE_MODEL", "claude-haiku-4-5"),
			TargetModel: getEnv("CMM_TARGET_MODEL", "gemini-2.5-pro"),
		},
		GeminiEndpoint:    getEnv("CMM_GEMINI_ENDPOINT", ""),
		GeminiAPIKey:      os.Getenv("CMM_GEMINI_API_KEY"),
		GeminiWrapped:     getEnvBool("CMM_GEMINI_WRAPPED", false),
		GeminiHeaderTag:   getEnv("CMM_PROVIDER_TAG", "gemini"),
		AnthropicRealHost: getEnv("CMM_ANTHROPIC_HOST", "api.anthropic.com"),
		AnthropicRealPort: getEnv("CMM_ANTHROPIC_PORT", "443"),
		IPCachePath:       getEnv("CMM_IP_CACHE_PATH", ".cmm_upstream_ip"),
		LogFilePath:       os.Getenv("CMM_LOG_FILE"),
	}

	certPath := os.Getenv("CMM_TLS_CERT_FILE")
	keyPath := os.Getenv("CMM_TLS_KEY_FILE")
	if certPath != "" && keyPath != "" {
		cert, err := os.ReadFile(certPath)
		if err != nil {
			return nil, fmt.Errorf("读取 TLS 证书失败: %w", err)
		}
		key, err := os.ReadFile(keyPath)
		if err != nil {
			return nil, fmt.Errorf("读取 TLS 私钥失败: %w", err)
		}
		cfg.TLSCertPEM = cert
		cfg.TLSKeyPEM = key
	}

	if cfg.GeminiEndpoint == "" {
		return nil, fmt.Errorf("CMM_GEMINI_ENDPOINT 未设置")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
