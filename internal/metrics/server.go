package metrics

import (
	"context"
	"errors"
	"expvar"
	"net"
	"net/http"
	"net/http/pprof"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// Sources 状态接口的数据来源；字段为 nil 时对应接口返回 404
type Sources struct {
	Status func() any
	Alerts func(ctx context.Context, limit int) (any, error)
}

// NewRouter 状态/调试路由：
// - /healthz
// - expvar: /debug/vars
// - pprof:  /debug/pprof/*
// - /api/status, /api/alerts?limit=N
func NewRouter(src Sources) http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/debug/vars", gin.WrapH(expvar.Handler()))
	// 单个通配路由内分发，避免与静态子路径冲突
	r.GET("/debug/pprof/*name", func(c *gin.Context) {
		switch strings.TrimPrefix(c.Param("name"), "/") {
		case "cmdline":
			pprof.Cmdline(c.Writer, c.Request)
		case "profile":
			pprof.Profile(c.Writer, c.Request)
		case "symbol":
			pprof.Symbol(c.Writer, c.Request)
		case "trace":
			pprof.Trace(c.Writer, c.Request)
		default:
			pprof.Index(c.Writer, c.Request)
		}
	})

	api := r.Group("/api")
	api.GET("/status", func(c *gin.Context) {
		if src.Status == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "status not available"})
			return
		}
		c.JSON(http.StatusOK, src.Status())
	})
	api.GET("/alerts", func(c *gin.Context) {
		if src.Alerts == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "journal disabled"})
			return
		}
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		out, err := src.Alerts(c.Request.Context(), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, out)
	})
	return r
}

// StartAsync 启动状态服务（非阻塞），并在 ctx.Done() 时优雅关闭。
// 由调用方控制是否启用（建议仅监听 localhost 或内网）。
func StartAsync(ctx context.Context, listenAddr string, src Sources) (*http.Server, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return nil, err
	}
	s := &http.Server{
		Addr:              ln.Addr().String(),
		Handler:           NewRouter(src),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			// 这里不记录日志：由调用方在需要时自行记录（避免引入 logger 依赖）
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.Shutdown(shutdownCtx)
	}()

	return s, nil
}
