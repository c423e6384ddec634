/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package edit

import (
	"log/slog"
	"sync"

	"godiwan/internal/domain"
	applog "godiwan/internal/log"
)

// Listener receives a snapshot of the poem after each successful command.
// The snapshot is a deep copy; listeners may keep or mutate it freely.
type Listener func(snapshot *domain.Poem)

// Session owns a poem during editing and serializes all mutations to it.
// Commands either apply fully or not at all; listeners only ever see states
// that a sequence of successful commands produced.
type Session struct {
	mu        sync.Mutex
	poem      *domain.Poem
	listeners []Listener
	dirty     bool
	log       *slog.Logger
}

// NewSession starts an editing session over p. The session takes ownership
// of the poem; callers must not mutate it directly afterwards.
func NewSession(p *domain.Poem) *Session {
	if p == nil {
		p = domain.NewPoem()
	}
	return &Session{poem: p, log: applog.WithComponent("edit")}
}

// Poem returns a deep copy of the current state.
func (s *Session) Poem() *domain.Poem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.poem.Clone()
}

// Dirty reports whether any command succeeded since the last MarkSaved.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// MarkSaved clears the dirty flag after the poem was persisted.
func (s *Session) MarkSaved() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirty = false
}

// Subscribe registers a listener for post-command snapshots.
func (s *Session) Subscribe(fn Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Apply runs one command against the poem. On failure the poem is restored
// to its prior state and no listener fires.
func (s *Session) Apply(cmd Command) error {
	s.mu.Lock()
	backup := s.poem.Clone()
	err := cmd.Apply(s.poem)
	if err != nil {
		s.poem = backup
		s.mu.Unlock()
		s.log.Warn("command rejected", slog.String("command", cmd.Name()), slog.Any("error", err))
		return err
	}
	s.dirty = true
	snapshot := s.poem.Clone()
	listeners := make([]Listener, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	s.log.Debug("command applied", slog.String("command", cmd.Name()))
	for _, fn := range listeners {
		fn(snapshot)
	}
	return nil
}
