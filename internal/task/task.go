// Copyright 2026 The CloudBDay Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package task defines deferred work: task kinds, the queue port the sweeps
// enqueue onto, and the dispatcher workers use to execute tasks.
package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind identifies a task handler.
type Kind string

const (
	KindDirectorySync Kind = "sync.directory"
	KindCalendarSync  Kind = "sync.calendar"
	KindCalendarEvent Kind = "calendar.event"
	KindBirthdayMail  Kind = "mail.birthday"
)

// Queue names.
const (
	QueueSync = "sync-queue"
	QueueMail = "mail-queue"
)

var (
	// ErrUnknownKind is returned when no handler is registered for a task kind.
	ErrUnknownKind = errors.New("unknown task kind")
	// ErrInvalidPayload is returned when a task payload cannot be decoded.
	ErrInvalidPayload = errors.New("invalid task payload")
)

// Payload carries the arguments of every task kind. Tasks reference records by
// id only; handlers reload current state when they run.
type Payload struct {
	Namespace string `json:"namespace"`
	PersonID  string `json:"person_id,omitempty"`
}

// Task is a unit of deferred work.
type Task struct {
	ID         string          `json:"id"`
	Kind       Kind            `json:"kind"`
	Queue      string          `json:"queue"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// Handle identifies an enqueued task.
type Handle struct {
	ID    string
	Queue string
}

// Queue accepts tasks for later execution.
type Queue interface {
	Enqueue(ctx context.Context, t Task) (Handle, error)
}

// QueueFor returns the queue a kind is routed to.
func QueueFor(kind Kind) string {
	if kind == KindBirthdayMail {
		return QueueMail
	}
	return QueueSync
}

// New builds a task of the given kind.
func New(kind Kind, p Payload) (Task, error) {
	if p.Namespace == "" {
		return Task{}, fmt.Errorf("%w: namespace is required", ErrInvalidPayload)
	}
	data, err := json.Marshal(p)
	if err != nil {
		return Task{}, fmt.Errorf("encode payload: %w", err)
	}
	id, err := uuid.NewV7()
	if err != nil {
		return Task{}, fmt.Errorf("generate task id: %w", err)
	}
	return Task{
		ID:         id.String(),
		Kind:       kind,
		Queue:      QueueFor(kind),
		Payload:    data,
		EnqueuedAt: time.Now().UTC(),
	}, nil
}

// Decode returns the task payload.
func (t Task) Decode() (Payload, error) {
	var p Payload
	if err := json.Unmarshal(t.Payload, &p); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if p.Namespace == "" {
		return Payload{}, fmt.Errorf("%w: namespace is required", ErrInvalidPayload)
	}
	return p, nil
}

// Enqueue is a convenience wrapper building and enqueueing a task.
func Enqueue(ctx context.Context, q Queue, kind Kind, p Payload) (Handle, error) {
	t, err := New(kind, p)
	if err != nil {
		return Handle{}, err
	}
	return q.Enqueue(ctx, t)
}
