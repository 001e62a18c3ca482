package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// AssessmentCompletionKey returns the key that claims a consumed state token.
// digest is the hex SHA-256 of the token, so the key never contains the token itself.
func (r *CacheKeyStruct) AssessmentCompletionKey(digest string) string {
	return fmt.Sprintf("assessment:completed:%s", digest)
}

// LanguageListKey returns the cache key for the public language catalogue.
func (r *CacheKeyStruct) LanguageListKey() string {
	return "languages:all"
}

var CacheKey = NewCacheKeyStruct()
