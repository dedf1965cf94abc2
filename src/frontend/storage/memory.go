// Copyright 2024 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package storage

import "sync"

// Memory is an in-process Backend. It survives for the life of the process
// only and is what tests and STATE_DB=memory use.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Get(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

func (m *Memory) Put(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *Memory) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// MemoryPool is a Provider holding one Memory per browsing context.
type MemoryPool struct {
	mu     sync.Mutex
	scopes map[string]*Memory
}

func NewMemoryPool() *MemoryPool {
	return &MemoryPool{scopes: make(map[string]*Memory)}
}

func (p *MemoryPool) Scope(contextID string) Backend {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.scopes[contextID]
	if !ok {
		m = NewMemory()
		p.scopes[contextID] = m
	}
	return m
}
