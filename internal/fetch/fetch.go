package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
	"unicode/utf8"
)

const (
	defaultTimeout  = 15 * time.Second
	defaultMaxBytes = 4 << 20 // 4 MiB，订阅文档远小于此

	// 与抓取器共用同一个 UA，部分订阅源会拒绝非浏览器请求。
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/108.0.0.0 Safari/537.36"
)

// Options 控制单次拉取的边界参数。零值使用默认值。
type Options struct {
	Timeout  time.Duration
	MaxBytes int64
}

// Text 拉取一份远程文本文档并整体返回。
// 所有传输层失败（URL 不合法、连接失败、非 2xx、超限、非 UTF-8）
// 都在这里变成带可读信息的错误；提取核心不产生这类错误。
func Text(ctx context.Context, rawURL string, opt Options) (string, error) {
	timeout := opt.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxBytes := opt.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("invalid url %q: only http/https is supported", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request for %s: %w", rawURL, err)
	}
	req.Header.Set("User-Agent", userAgent)

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("received non-2xx status code (%d) from %s", resp.StatusCode, rawURL)
	}

	// 多读一个字节以便确定地发现超限。
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("failed to read response from %s: %w", rawURL, err)
	}
	if int64(len(body)) > maxBytes {
		return "", fmt.Errorf("document from %s exceeds %d bytes", rawURL, maxBytes)
	}
	if !utf8.Valid(body) {
		return "", fmt.Errorf("document from %s is not valid UTF-8 text", rawURL)
	}

	return string(body), nil
}
