package utils

import (
	"net/http"
	"time"
)

// NewHTTPClient 上游后端调用共用的 HTTP 客户端，超时由各后端配置决定
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}
