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

package session

import (
	"fmt"
	"sync"

	"github.com/asaskevich/EventBus"
)

const changedTopic = "session:changed"

// Broadcaster is the change signal shared by every consumer of one browsing
// context. Notify carries no payload; listeners re-read storage themselves.
// Dispatch is synchronous, in subscription order. A listener must not
// subscribe, unsubscribe, or notify from inside its callback.
type Broadcaster struct {
	bus EventBus.Bus

	mu     sync.Mutex
	next   int
	topics []string
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{bus: EventBus.New()}
}

// Subscribe registers fn and returns a function that removes it.
func (b *Broadcaster) Subscribe(fn func()) (unsubscribe func()) {
	b.mu.Lock()
	b.next++
	topic := fmt.Sprintf("%s#%d", changedTopic, b.next)
	b.topics = append(b.topics, topic)
	b.mu.Unlock()

	// The bus identifies handlers by code pointer, so every listener needs
	// its own topic. Subscribe only rejects a handler that is not a func.
	if err := b.bus.Subscribe(topic, fn); err != nil {
		panic(err)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// the topic exists until this runs, and it runs once
			_ = b.bus.Unsubscribe(topic, fn)
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, t := range b.topics {
				if t == topic {
					b.topics = append(b.topics[:i], b.topics[i+1:]...)
					break
				}
			}
		})
	}
}

// Notify tells every listener that the session may have changed.
func (b *Broadcaster) Notify() {
	b.mu.Lock()
	topics := append([]string(nil), b.topics...)
	b.mu.Unlock()
	for _, t := range topics {
		b.bus.Publish(t)
	}
}

// Listeners returns the number of active subscriptions.
func (b *Broadcaster) Listeners() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.topics)
}
