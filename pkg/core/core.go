package core

import (
	"hash/fnv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/oscied/orchestra/pkg/blobstore"
	"github.com/oscied/orchestra/pkg/broker"
	"github.com/oscied/orchestra/pkg/cluster"
	"github.com/oscied/orchestra/pkg/config"
	"github.com/oscied/orchestra/pkg/events"
	"github.com/oscied/orchestra/pkg/log"
	"github.com/oscied/orchestra/pkg/storage"
	"github.com/oscied/orchestra/pkg/types"
)

// Notifier mails task outcomes to their owners. A nil Notifier disables
// notifications.
type Notifier interface {
	NotifyTask(user *types.User, kind, taskID string, status types.TaskStatus, details string) error
}

// Core implements the orchestrator operations on top of the store, the job
// queue, the blob store and the environment adapters. The REST layer and
// the control loops both drive it.
type Core struct {
	cfg    *config.Config
	store  storage.Store
	queue  broker.JobQueue
	blobs  blobstore.BlobStore
	envs   *cluster.Registry
	events *events.Broker
	mailer Notifier

	locks  stripedLocks
	logger zerolog.Logger
}

// New wires a core from its collaborators
func New(cfg *config.Config, store storage.Store, queue broker.JobQueue,
	blobs blobstore.BlobStore, envs *cluster.Registry, evs *events.Broker, mailer Notifier) *Core {
	return &Core{
		cfg:    cfg,
		store:  store,
		queue:  queue,
		blobs:  blobs,
		envs:   envs,
		events: evs,
		mailer: mailer,
		logger: log.WithComponent("core"),
	}
}

// Store exposes the underlying store to the control loops.
func (c *Core) Store() storage.Store { return c.store }

// Config exposes the active configuration.
func (c *Core) Config() *config.Config { return c.cfg }

// Environments exposes the adapter registry.
func (c *Core) Environments() *cluster.Registry { return c.envs }

// About describes the running orchestrator.
func (c *Core) About() map[string]any {
	return map[string]any{
		"name":    "orchestra",
		"about":   "media-processing cluster control plane",
		"api_url": c.cfg.APIURL,
	}
}

// Flush wipes every collection. Root only, enforced by the caller.
func (c *Core) Flush() error {
	if err := c.store.Flush(); err != nil {
		return err
	}
	c.logger.Warn().Msg("database flushed")
	return nil
}

func (c *Core) publish(eventType events.EventType, message string, metadata map[string]string) {
	if c.events == nil {
		return
	}
	c.events.Publish(&events.Event{
		ID:       types.NewID(),
		Type:     eventType,
		Message:  message,
		Metadata: metadata,
	})
}

// notify mails a task outcome without blocking the callback path.
func (c *Core) notify(user *types.User, kind, taskID string, status types.TaskStatus, details string) {
	if c.mailer == nil || user == nil {
		return
	}
	go func() {
		if err := c.mailer.NotifyTask(user, kind, taskID, status, details); err != nil {
			c.logger.Warn().Err(err).Str("task_id", taskID).Msg("notification mail failed")
		}
	}()
}

// stripedLocks serializes callback transitions per task id so duplicate
// deliveries cannot interleave.
type stripedLocks struct {
	stripes [64]sync.Mutex
}

func (l *stripedLocks) lock(taskID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(taskID))
	m := &l.stripes[h.Sum32()%uint32(len(l.stripes))]
	m.Lock()
	return m
}
