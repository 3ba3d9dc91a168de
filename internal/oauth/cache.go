// Package oauth 提供一个与具体鉴权协议无关的、带刷新合并的 token 缓存。
// C4 用它换取访问令牌：命中缓存直接返回，未命中或过期时调用一次
// authorize()，期间到达的其它 goroutine 排队等待同一次刷新的结果，
// 而不是各自触发一次刷新请求。
package oauth

import (
	"context"
	"sync"
	"time"

	"cmm-gateway/internal/logger"
)

// Token 是 authorize() 换回的访问令牌及其过期时间。
type Token struct {
	AccessToken string
	ExpiresAt   time.Time
}

// Authorize 是具体鉴权协议的换票函数，由部署层注入（例如 Gemini API Key
// 场景下直接返回静态 token 和一个较远的过期时间；OAuth 场景下走 refresh_token
// 换 access_token 的流程）。
type Authorize func(ctx context.Context) (Token, error)

// Cache 缓存单个 Authorize 换回的 token，并把并发的刷新请求合并成一次。
type Cache struct {
	authorize Authorize
	ttl       time.Duration

	mu      sync.Mutex
	current Token
	cachedAt time.Time
	refreshing bool
	waiters    []chan result
}

type result struct {
	token Token
	err   error
}

// New 创建一个 Cache，ttl 是缓存有效期（与 token 自身的 ExpiresAt 取较早者）。
func New(authorize Authorize, ttl time.Duration) *Cache {
	return &Cache{authorize: authorize, ttl: ttl}
}

// Get 返回一个可用的 token，必要时触发一次刷新。
// 并发调用若恰好都撞上未命中，只有一个会真正调用 authorize()，其余排队等待结果。
func (c *Cache) Get(ctx context.Context) (Token, error) {
	c.mu.Lock()
	if c.usableLocked() {
		tok := c.current
		c.mu.Unlock()
		return tok, nil
	}

	if c.refreshing {
		ch := make(chan result, 1)
		c.waiters = append(c.waiters, ch)
		c.mu.Unlock()
		select {
		case r := <-ch:
			return r.token, r.err
		case <-ctx.Done():
			return Token{}, ctx.Err()
		}
	}

	c.refreshing = true
	c.mu.Unlock()

	tok, err := c.authorize(ctx)

	c.mu.Lock()
	c.refreshing = false
	if err == nil {
		c.current = tok
		c.cachedAt = time.Now()
	}
	waiters := c.waiters
	c.waiters = nil
	c.mu.Unlock()

	for _, ch := range waiters {
		ch <- result{token: tok, err: err}
	}

	if err != nil {
		logger.Warn("刷新token失败", logger.Err(err))
		return Token{}, err
	}
	return tok, nil
}

// Invalidate 强制下一次 Get 重新调用 authorize()，供 401 重试路径使用。
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = Token{}
	c.cachedAt = time.Time{}
}

func (c *Cache) usableLocked() bool {
	if c.current.AccessToken == "" {
		return false
	}
	if time.Now().After(c.current.ExpiresAt) {
		return false
	}
	if c.ttl > 0 && time.Since(c.cachedAt) > c.ttl {
		return false
	}
	return true
}
