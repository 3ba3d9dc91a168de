package passthrough

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cmm-gateway/internal/certstore"
)

// newTestClient 构造一个绕过 NewClient 的 Client，把拨号硬编码到测试服务器，
// 并关闭证书校验——测试关心的是 hop-by-hop 处理、400 重试嗅探、反压转发逻辑，
// 不是真实证书链。
func newTestClient(t *testing.T, server *httptest.Server) *Client {
	t.Helper()
	u, err := url.Parse(server.URL)
	require.NoError(t, err)

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		DialContext: func(ctx context.Context, network, _ string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(ctx, network, u.Host)
		},
	}
	return &Client{
		ips:      certstore.New(""),
		realHost: "api.anthropic.com",
		realPort: "443",
		httpClient: &http.Client{
			Transport:     transport,
			CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
		},
	}
}

func TestForward_逐跳头部不被转发(t *testing.T) {
	var gotConnection string
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotConnection = r.Header.Get("Connection")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	c := newTestClient(t, server)
	w := httptest.NewRecorder()
	headers := http.Header{"Connection": []string{"keep-alive"}, "X-Api-Key": []string{"secret"}}

	apiErr := c.Forward(context.Background(), http.MethodPost, "/v1/messages", headers, []byte("{}"), recorderFlusher{w}, nil)

	assert.Nil(t, apiErr)
	assert.Equal(t, "", gotConnection)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestForward_400thinking签名错误触发单次重试(t *testing.T) {
	var calls int32
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte("Invalid `signature` in `thinking` block"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("retried-ok"))
	}))
	defer server.Close()

	c := newTestClient(t, server)
	w := httptest.NewRecorder()
	retried := false
	retryFn := func() []byte {
		retried = true
		return []byte(`{"messages":[]}`)
	}

	apiErr := c.Forward(context.Background(), http.MethodPost, "/v1/messages", http.Header{}, []byte("{}"), recorderFlusher{w}, retryFn)

	assert.Nil(t, apiErr)
	assert.True(t, retried)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "retried-ok", w.Body.String())
}

func TestForward_400无签名错误时原样转发不重试(t *testing.T) {
	var calls int32
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("some other validation error"))
	}))
	defer server.Close()

	c := newTestClient(t, server)
	w := httptest.NewRecorder()
	retryFn := func() []byte { return []byte(`{}`) }

	apiErr := c.Forward(context.Background(), http.MethodPost, "/v1/messages", http.Header{}, []byte("{}"), recorderFlusher{w}, retryFn)

	assert.Nil(t, apiErr)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "some other validation error", w.Body.String())
}

func TestDecodeBody_按ContentEncoding解压(t *testing.T) {
	plain := "Invalid `signature` in `thinking` block"

	text, err := decodeBody([]byte(plain), "")
	require.NoError(t, err)
	assert.Equal(t, plain, text)

	text, err = decodeBody(gzipBytes(t, plain), "gzip")
	require.NoError(t, err)
	assert.Equal(t, plain, text)
}

func gzipBytes(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

// recorderFlusher 把 httptest.ResponseRecorder 适配成 FrameWriter（它本就满足
// http.Flusher，但显式声明类型让测试代码里的意图更清楚）。
type recorderFlusher struct {
	*httptest.ResponseRecorder
}

func (recorderFlusher) Flush() {}
