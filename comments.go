package ledger

import (
	"crypto/sha256"
	"encoding/hex"
)

// OnExistence decides what Comments.Insert does when the key is taken.
type OnExistence int

const (
	Replace OnExistence = iota
	Skip
	Rename
)

// Comments is an insertion ordered set of annotations. The zero value is
// ready to use.
type Comments struct {
	keys   []string
	values map[string]string
}

// Len returns the number of annotations.
func (c *Comments) Len() int {
	return len(c.keys)
}

// Keys returns the annotation keys in insertion order.
func (c *Comments) Keys() []string {
	return append([]string(nil), c.keys...)
}

// Get returns the value stored under key.
func (c *Comments) Get(key string) (string, bool) {
	v, ok := c.values[key]
	return v, ok
}

// Set stores value under key, keeping the key's position if it already exists.
func (c *Comments) Set(key, value string) {
	if c.values == nil {
		c.values = make(map[string]string)
	}
	if _, ok := c.values[key]; !ok {
		c.keys = append(c.keys, key)
	}
	c.values[key] = value
}

// Insert stores value under key and returns the key that was used. With
// Rename an existing key is never overwritten; the value goes to a key
// suffixed with a short hash of the key instead.
func (c *Comments) Insert(key, value string, onExist OnExistence) string {
	if _, ok := c.values[key]; ok {
		switch onExist {
		case Skip:
			return key
		case Rename:
			for {
				key = renameKey(key)
				if _, taken := c.values[key]; !taken {
					break
				}
			}
		}
	}
	c.Set(key, value)
	return key
}

// Clone returns an independent copy.
func (c *Comments) Clone() Comments {
	out := Comments{keys: c.Keys()}
	if c.values != nil {
		out.values = make(map[string]string, len(c.values))
		for k, v := range c.values {
			out.values[k] = v
		}
	}
	return out
}

// Equal reports whether both hold the same annotations in the same order.
func (c *Comments) Equal(o *Comments) bool {
	if len(c.keys) != len(o.keys) {
		return false
	}
	for i, k := range c.keys {
		if o.keys[i] != k || o.values[k] != c.values[k] {
			return false
		}
	}
	return true
}

func renameKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return key + "_" + hex.EncodeToString(sum[:])[:5]
}
