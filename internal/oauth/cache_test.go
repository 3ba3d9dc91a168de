package oauth

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_命中缓存不重新调用authorize(t *testing.T) {
	var calls int32
	c := New(func(ctx context.Context) (Token, error) {
		atomic.AddInt32(&calls, 1)
		return Token{AccessToken: "t1", ExpiresAt: time.Now().Add(time.Hour)}, nil
	}, time.Minute)

	for i := 0; i < 5; i++ {
		tok, err := c.Get(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "t1", tok.AccessToken)
	}
	assert.EqualValues(t, 1, calls)
}

func TestCache_过期后重新刷新(t *testing.T) {
	var calls int32
	c := New(func(ctx context.Context) (Token, error) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			return Token{AccessToken: "old", ExpiresAt: time.Now().Add(-time.Second)}, nil
		}
		return Token{AccessToken: "new", ExpiresAt: time.Now().Add(time.Hour)}, nil
	}, time.Minute)

	tok, err := c.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "old", tok.AccessToken)

	tok, err = c.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "new", tok.AccessToken)
	assert.EqualValues(t, 2, calls)
}

func TestCache_Invalidate强制下次刷新(t *testing.T) {
	var calls int32
	c := New(func(ctx context.Context) (Token, error) {
		atomic.AddInt32(&calls, 1)
		return Token{AccessToken: "t" + time.Now().String(), ExpiresAt: time.Now().Add(time.Hour)}, nil
	}, time.Minute)

	_, err := c.Get(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, calls)

	c.Invalidate()

	_, err = c.Get(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls)
}

func TestCache_并发未命中只触发一次authorize(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	c := New(func(ctx context.Context) (Token, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return Token{AccessToken: "shared", ExpiresAt: time.Now().Add(time.Hour)}, nil
	}, time.Minute)

	const n = 10
	var wg sync.WaitGroup
	results := make([]Token, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok, err := c.Get(context.Background())
			results[i] = tok
			errs[i] = err
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, calls, "并发撞上同一次未命中应合并为一次authorize调用")
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "shared", results[i].AccessToken)
	}
}

func TestCache_authorize失败时等待者也收到错误(t *testing.T) {
	boom := assert.AnError
	release := make(chan struct{})
	c := New(func(ctx context.Context) (Token, error) {
		<-release
		return Token{}, boom
	}, time.Minute)

	var wg sync.WaitGroup
	errs := make([]error, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := c.Get(context.Background())
			errs[i] = err
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, err := range errs {
		assert.ErrorIs(t, err, boom)
	}
}
