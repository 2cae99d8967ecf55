package enrich

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	sdkhttp "github.com/betbot/celebsentry/pkg/sdk/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescribe(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/coins/elon-coin", r.URL.Path)
		assert.Equal(t, "false", r.URL.Query().Get("market_data"))
		_, _ = w.Write([]byte(`{"id":"elon-coin","description":{"en":"  Dedicated to Elon Musk's vision  "}}`))
	}))
	defer srv.Close()

	d := New(sdkhttp.NewClient(sdkhttp.Options{}), srv.URL+"/", 0)
	require.Equal(t, "Dedicated to Elon Musk's vision", d.Describe(context.Background(), "elon-coin"))
	require.Equal(t, "Dedicated to Elon Musk's vision", d.Describe(context.Background(), "elon-coin"))
	require.Equal(t, int32(2), calls.Load(), "未启用缓存时每次都请求")
}

func TestDescribeCachesNonEmpty(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path == "/coins/empty" {
			_, _ = w.Write([]byte(`{"description":{"en":""}}`))
			return
		}
		_, _ = w.Write([]byte(`{"description":{"en":"text"}}`))
	}))
	defer srv.Close()

	d := New(sdkhttp.NewClient(sdkhttp.Options{}), srv.URL, time.Hour)
	ctx := context.Background()
	require.Equal(t, "text", d.Describe(ctx, "a"))
	require.Equal(t, "text", d.Describe(ctx, "a"))
	require.Equal(t, "", d.Describe(ctx, "empty"))
	require.Equal(t, "", d.Describe(ctx, "empty"))
	require.Equal(t, int32(3), calls.Load())
}

func TestDescribeSoftFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/coins/bad-json" {
			_, _ = w.Write([]byte(`not json`))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	d := New(sdkhttp.NewClient(sdkhttp.Options{}), srv.URL, time.Hour)
	require.Equal(t, "", d.Describe(context.Background(), "missing"))
	require.Equal(t, "", d.Describe(context.Background(), "bad-json"))
}

func TestSweepDropsExpiredDescriptions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"description":{"en":"text"}}`))
	}))
	defer srv.Close()

	d := New(sdkhttp.NewClient(sdkhttp.Options{}), srv.URL, time.Millisecond)
	d.Describe(context.Background(), "a")
	d.Describe(context.Background(), "b")
	time.Sleep(20 * time.Millisecond)
	if n := d.Sweep(); n != 2 {
		t.Errorf("期望清理 2 项过期缓存，实际 %d", n)
	}

	uncached := New(sdkhttp.NewClient(sdkhttp.Options{}), srv.URL, 0)
	if n := uncached.Sweep(); n != 0 {
		t.Errorf("未启用缓存时应返回 0，实际 %d", n)
	}
}
