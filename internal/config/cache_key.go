package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// SessionStartKey returns the cache key for a session's start time.
func (r *CacheKeyStruct) SessionStartKey(sessionID string) string {
	return fmt.Sprintf("session:%s:start", sessionID)
}

// SessionOrderKey returns the cache key for a session's question order snapshot.
func (r *CacheKeyStruct) SessionOrderKey(sessionID string) string {
	return fmt.Sprintf("session:%s:question_order", sessionID)
}

// SessionAnswersKey returns the cache key for a session's answer hash.
func (r *CacheKeyStruct) SessionAnswersKey(sessionID string) string {
	return fmt.Sprintf("session:%s:answers", sessionID)
}

// SettingKey returns the cache key for one application setting.
func (r *CacheKeyStruct) SettingKey(key string) string {
	return fmt.Sprintf("setting:%s", key)
}

var CacheKey = NewCacheKeyStruct()
