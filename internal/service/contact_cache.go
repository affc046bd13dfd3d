package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/petlink/petlink/internal/model"
)

// ContactCache is a per-instance LRU of owner contact fields keyed by
// account ID. A nil *ContactCache is valid and caches nothing.
type ContactCache struct {
	lru *expirable.LRU[string, model.Contact]
}

// NewContactCache creates a cache holding up to size entries for ttl.
// size <= 0 disables caching.
func NewContactCache(size int, ttl time.Duration) *ContactCache {
	if size <= 0 {
		return nil
	}
	return &ContactCache{lru: expirable.NewLRU[string, model.Contact](size, nil, ttl)}
}

// Get returns the cached contact for an owner.
func (c *ContactCache) Get(ownerID string) (model.Contact, bool) {
	if c == nil {
		return model.Contact{}, false
	}
	return c.lru.Get(ownerID)
}

// Set stores an owner's contact.
func (c *ContactCache) Set(ownerID string, contact model.Contact) {
	if c == nil {
		return
	}
	c.lru.Add(ownerID, contact)
}

// Invalidate drops an owner's entry after a profile change.
func (c *ContactCache) Invalidate(ownerID string) {
	if c == nil {
		return
	}
	c.lru.Remove(ownerID)
}

// Len returns the number of live entries.
func (c *ContactCache) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}
