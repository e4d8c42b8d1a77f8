package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// UserSessionKey returns the cache key for a user's login session
func (r *CacheKeyStruct) UserSessionKey(userID int) string {
	return fmt.Sprintf("login:%d", userID)
}

// SessionStartKey returns the cache key for an exam session's start time
func (r *CacheKeyStruct) SessionStartKey(sessionID string) string {
	return fmt.Sprintf("session:%s:start", sessionID)
}

// SessionMonitorChannel returns the Redis PubSub channel name for live session events
func (r *CacheKeyStruct) SessionMonitorChannel(paperID string) string {
	return fmt.Sprintf("paper:%s:monitor", paperID)
}

var CacheKey = NewCacheKeyStruct()
