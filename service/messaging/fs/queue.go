// Package fs implements a filesystem-backed journal queue on top of afs.  It
// is used for pool event streams that must survive the process: published
// messages land as JSON files under pending/, move to consumed/ on Ack and to
// failed/ on Nack, which leaves an inspectable on-disk trail.
package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/storage"
	"github.com/viant/taskpool/internal/clock"
	"github.com/viant/taskpool/internal/idgen"
	"github.com/viant/taskpool/service/messaging"
)

// Message implements messaging.Message for the filesystem journal.
type Message[T any] struct {
	ID        string    `json:"id"`
	Data      T         `json:"data"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	queue     *Queue[T]
	processed bool
	mu        sync.Mutex
}

// T returns the message payload.
func (m *Message[T]) T() *T {
	return &m.Data
}

// Ack journals the message under consumed/.
func (m *Message[T]) Ack() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processed {
		return fmt.Errorf("message already processed")
	}
	m.processed = true
	m.UpdatedAt = clock.Now()
	return m.queue.journal(context.Background(), m, m.queue.consumedDir)
}

// Nack journals the message under failed/ together with the error.
func (m *Message[T]) Nack(err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processed {
		return fmt.Errorf("message already processed")
	}
	m.processed = true
	if err != nil {
		m.Error = err.Error()
	}
	m.UpdatedAt = clock.Now()
	return m.queue.journal(context.Background(), m, m.queue.failedDir)
}

// Config holds the journal location.
type Config struct {
	// BaseURL is the afs location holding the journal, e.g. a local path or
	// any scheme afs supports.
	BaseURL string
}

// Queue implements a filesystem-based messaging.Queue.
type Queue[T any] struct {
	fs          afs.Service
	config      Config
	pendingDir  string
	consumedDir string
	failedDir   string
	mu          sync.Mutex
}

// NewQueue creates a journal queue rooted at config.BaseURL.
func NewQueue[T any](fs afs.Service, config Config) (*Queue[T], error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}
	q := &Queue[T]{
		fs:          fs,
		config:      config,
		pendingDir:  path.Join(config.BaseURL, "pending"),
		consumedDir: path.Join(config.BaseURL, "consumed"),
		failedDir:   path.Join(config.BaseURL, "failed"),
	}

	ctx := context.Background()
	for _, dir := range []string{q.pendingDir, q.consumedDir, q.failedDir} {
		exists, _ := fs.Exists(ctx, dir)
		if !exists {
			if err := fs.Create(ctx, dir, file.DefaultDirOsMode, true); err != nil {
				return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
			}
		}
	}
	return q, nil
}

// Publish journals a new message under pending/.
func (q *Queue[T]) Publish(ctx context.Context, t *T) error {
	now := clock.Now()
	message := &Message[T]{
		ID:        idgen.New(),
		Data:      *t,
		CreatedAt: now,
		UpdatedAt: now,
		queue:     q,
	}
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	// Prefix with the creation timestamp so listing order matches publish
	// order.
	filename := fmt.Sprintf("%d-%s.json", now.UnixNano(), message.ID)
	return q.upload(ctx, path.Join(q.pendingDir, filename), data)
}

// Consume retrieves the oldest pending message, or nil when none is pending.
func (q *Queue[T]) Consume(ctx context.Context) (messaging.Message[T], error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	objects, err := q.fs.List(ctx, q.pendingDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending messages: %w", err)
	}
	var oldest storage.Object
	for _, obj := range objects {
		if obj.IsDir() || !strings.HasSuffix(obj.Name(), ".json") {
			continue
		}
		if oldest == nil || obj.Name() < oldest.Name() {
			oldest = obj
		}
	}
	if oldest == nil {
		return nil, nil
	}

	data, err := q.fs.DownloadWithURL(ctx, oldest.URL())
	if err != nil {
		return nil, fmt.Errorf("failed to read message %s: %w", oldest.URL(), err)
	}
	var message Message[T]
	if err := json.Unmarshal(data, &message); err != nil {
		// Park the unreadable file so it does not wedge the queue.
		_ = q.fs.Move(ctx, oldest.URL(), path.Join(q.failedDir, "invalid-"+oldest.Name()))
		return nil, fmt.Errorf("failed to unmarshal message %s: %w", oldest.URL(), err)
	}
	message.queue = q

	if err := q.fs.Delete(ctx, oldest.URL()); err != nil {
		return nil, fmt.Errorf("failed to remove pending message: %w", err)
	}
	return &message, nil
}

// Size returns the number of pending messages.
func (q *Queue[T]) Size(ctx context.Context) int {
	objects, err := q.fs.List(ctx, q.pendingDir)
	if err != nil {
		return 0
	}
	count := 0
	for _, obj := range objects {
		if !obj.IsDir() && strings.HasSuffix(obj.Name(), ".json") {
			count++
		}
	}
	return count
}

func (q *Queue[T]) journal(ctx context.Context, m *Message[T], dir string) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return q.upload(ctx, path.Join(dir, m.ID+".json"), data)
}

func (q *Queue[T]) upload(ctx context.Context, location string, data []byte) error {
	return q.fs.Upload(ctx, location, file.DefaultFileOsMode, bytes.NewBuffer(data))
}

// ensure Queue implements messaging.Queue interface
var _ messaging.Queue[any] = (*Queue[any])(nil)
