package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/betbot/celebsentry/pkg/ratelimit"
	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
)

// Options 客户端选项。客户端不做自动重试，每次外呼都经过节流器。
type Options struct {
	BaseURL   string
	Timeout   time.Duration    // 单次请求超时
	UserAgent string           // 自定义客户端标识头，空字符串表示使用 resty 默认值
	Pacer     *ratelimit.Pacer // 每次外呼后的节流，nil 表示不节流
}

// Client 带超时、自定义标识头与外呼节流的 HTTP 客户端
type Client struct {
	client    *resty.Client
	userAgent string
	pacer     *ratelimit.Pacer
}

func NewClient(opt Options) *Client {
	timeout := opt.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	// resty 会自动从环境变量读取代理配置（HTTP_PROXY, HTTPS_PROXY）
	client := resty.New().SetTimeout(timeout)
	if host := strings.TrimSuffix(opt.BaseURL, "/"); host != "" {
		client.SetBaseURL(host)
	}

	return &Client{client: client, userAgent: strings.TrimSpace(opt.UserAgent), pacer: opt.Pacer}
}

type RequestOptions struct {
	Headers map[string]string
	Data    any
	Params  map[string]any
}

// 仅设置本次请求的 Header（不要改 client 级 Header）
func (c *Client) newRequest(ctx context.Context) *resty.Request {
	r := c.client.R()
	if ctx != nil {
		r.SetContext(ctx)
	}
	r.SetHeader("Accept", "*/*")
	if c.userAgent != "" {
		r.SetHeader("User-Agent", c.userAgent)
	}
	return r
}

// DoRequest 发起请求；无论成功与否，返回前都会按节流器暂停一次
func (c *Client) DoRequest(ctx context.Context, method, endpoint string, opt *RequestOptions) (*resty.Response, error) {
	rc := c.newRequest(ctx)
	if opt != nil {
		for k, v := range opt.Headers {
			rc.SetHeader(k, v)
		}
		if opt.Params != nil {
			rc.SetQueryParamsFromValues(toValues(opt.Params))
		}
		if opt.Data != nil {
			rc.SetHeader("Content-Type", "application/json")
			rc.SetBody(opt.Data)
		}
	}

	var (
		resp *resty.Response
		err  error
	)
	switch strings.ToUpper(method) {
	case http.MethodGet:
		resp, err = rc.Get(endpoint)
	case http.MethodPost:
		resp, err = rc.Post(endpoint)
	default:
		return nil, fmt.Errorf("unsupported method: %s", method)
	}

	if perr := c.pacer.Pause(ctx); perr != nil && err == nil {
		err = perr
	}
	if err != nil {
		return resp, errors.Wrapf(err, "%s %s", strings.ToUpper(method), endpoint)
	}
	if !resp.IsSuccess() {
		return resp, ParseHTTPError(resp)
	}
	return resp, nil
}

// GetText GET 并返回响应正文
func (c *Client) GetText(ctx context.Context, endpoint string, params map[string]any) (string, error) {
	resp, err := c.DoRequest(ctx, http.MethodGet, endpoint, &RequestOptions{Params: params})
	if err != nil {
		return "", err
	}
	return resp.String(), nil
}

// GetJSON GET 并把响应正文解码到 out
func (c *Client) GetJSON(ctx context.Context, endpoint string, params map[string]any, out any) error {
	resp, err := c.DoRequest(ctx, http.MethodGet, endpoint, &RequestOptions{
		Headers: map[string]string{"Accept": "application/json"},
		Params:  params,
	})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return errors.Wrapf(err, "decode %s", endpoint)
	}
	return nil
}

// PostJSON POST JSON 正文，只关心状态码
func (c *Client) PostJSON(ctx context.Context, endpoint string, body any) error {
	_, err := c.DoRequest(ctx, http.MethodPost, endpoint, &RequestOptions{Data: body})
	return err
}

func toValues(m map[string]any) map[string][]string {
	v := make(map[string][]string, len(m))
	for k, val := range m {
		switch t := val.(type) {
		case []string:
			v[k] = t
		default:
			v[k] = []string{fmt.Sprint(val)}
		}
	}
	return v
}

// ParseHTTPError 把非 2xx 响应转成错误（正文截断到 200 字符）
func ParseHTTPError(resp *resty.Response) error {
	body := strings.TrimSpace(resp.String())
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return errors.Errorf("http non-2xx: %s %s", resp.Status(), body)
}
