package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// TestPayloadKey returns the cache key for a test's full payload, looked up by code
func (r *CacheKeyStruct) TestPayloadKey(code string) string {
	return fmt.Sprintf("test:%s:payload", code)
}

// SessionAnswersKey returns the hash holding a live session's answer journal
func (r *CacheKeyStruct) SessionAnswersKey(sessionID string) string {
	return fmt.Sprintf("session:%s:answers", sessionID)
}

// RateLimitKey returns the fixed-window counter for a client on a route group
func (r *CacheKeyStruct) RateLimitKey(scope, clientIP string, window int64) string {
	return fmt.Sprintf("ratelimit:%s:%s:%d", scope, clientIP, window)
}

var CacheKey = NewCacheKeyStruct()
