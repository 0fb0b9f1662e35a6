// Package storage holds the key/value persistence layer that stands in for
// the browser's local storage. Values are opaque strings grouped by namespace;
// one namespace per browser profile plus a shared accounts namespace.
package storage

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// AccountsNamespace is the shared namespace for registered accounts.
const AccountsNamespace = "accounts"

// Adapter reads and writes string values under keys of a single namespace.
// Get reports found=false for a missing key without an error.
type Adapter interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Backend hands out namespace-scoped adapters.
type Backend interface {
	Namespace(ns string) Adapter
}

var ErrEmptyKey = errors.New("storage: key must not be empty")

// Memory is an in-process Backend. It is safe for concurrent use.
type Memory struct {
	mu   sync.RWMutex
	data map[string]map[string]string
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string]map[string]string)}
}

func (m *Memory) Namespace(ns string) Adapter {
	return &memoryNamespace{m: m, ns: ns}
}

type memoryNamespace struct {
	m  *Memory
	ns string
}

func (n *memoryNamespace) Get(_ context.Context, key string) (string, bool, error) {
	if strings.TrimSpace(key) == "" {
		return "", false, ErrEmptyKey
	}
	n.m.mu.RLock()
	defer n.m.mu.RUnlock()
	v, ok := n.m.data[n.ns][key]
	return v, ok, nil
}

func (n *memoryNamespace) Set(_ context.Context, key, value string) error {
	if strings.TrimSpace(key) == "" {
		return ErrEmptyKey
	}
	n.m.mu.Lock()
	defer n.m.mu.Unlock()
	bucket, ok := n.m.data[n.ns]
	if !ok {
		bucket = make(map[string]string)
		n.m.data[n.ns] = bucket
	}
	bucket[key] = value
	return nil
}

func (n *memoryNamespace) Remove(_ context.Context, key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrEmptyKey
	}
	n.m.mu.Lock()
	defer n.m.mu.Unlock()
	delete(n.m.data[n.ns], key)
	return nil
}
