package core

import (
	"github.com/oscied/orchestra/pkg/broker"
	"github.com/oscied/orchestra/pkg/events"
	"github.com/oscied/orchestra/pkg/metrics"
	"github.com/oscied/orchestra/pkg/storage"
	"github.com/oscied/orchestra/pkg/types"
)

// PublisherQueues lists the worker queues accepting publication jobs.
func (c *Core) PublisherQueues() []string {
	return append([]string{}, c.cfg.PublisherQueues...)
}

func (c *Core) validPublisherQueue(name string) bool {
	for _, q := range c.cfg.PublisherQueues {
		if q == name {
			return true
		}
	}
	return false
}

// LaunchPublisherTask validates the request and submits a publication job.
// The media must be ready, unpublished, and free of other live publication
// tasks.
func (c *Core) LaunchPublisherTask(userID, mediaID string, sendEmail bool,
	queue, callbackURL string) (*types.PublisherTask, error) {

	user, err := c.mustUser(userID)
	if err != nil {
		return nil, err
	}
	media, err := c.mustMedia(mediaID)
	if err != nil {
		return nil, err
	}
	if !c.validPublisherQueue(queue) {
		return nil, types.E(types.ErrNotFound, "no publication queue with that name")
	}

	if media.Status != types.MediaReady {
		return nil, types.E(types.ErrInvalid, "media asset must be ready to be published")
	}
	if media.Published() {
		return nil, types.E(types.ErrInvalid, "media asset is already published")
	}
	live, err := c.livePublisherTask(mediaID)
	if err != nil {
		return nil, err
	}
	if live != nil {
		return nil, types.E(types.ErrInvalid, "another publication task is already handling this media asset")
	}

	payload := map[string]any{
		"media": media,
		"callback": broker.Callback{
			URL:      callbackURL,
			Username: "node",
			Password: c.cfg.NodeSecret,
		},
	}
	taskID, err := c.queue.Submit(queue, broker.JobPublish, payload)
	if err != nil {
		return nil, types.Wrap(types.ErrTransient, "unable to transmit the task to the broker", err)
	}

	task := &types.PublisherTask{
		ID:        taskID,
		UserID:    userID,
		MediaID:   mediaID,
		SendEmail: sendEmail,
		Status:    types.TaskPending,
	}
	task.AddStatistic("add_date", types.DatetimeNow(), true)
	if err := c.store.SavePublisherTask(task); err != nil {
		return nil, err
	}

	metrics.TasksLaunched.WithLabelValues("publisher").Inc()
	c.publish(events.EventTaskLaunched, "publication task launched", map[string]string{
		"task_id": task.ID, "user_id": user.ID, "media_id": mediaID,
	})
	c.logger.Info().Str("task_id", task.ID).Str("queue", queue).Msg("publication task launched")
	return task, nil
}

// livePublisherTask returns a non-terminal publication task targeting the
// media, nil when none exists.
func (c *Core) livePublisherTask(mediaID string) (*types.PublisherTask, error) {
	tasks, err := c.store.ListPublisherTasks(storage.Query{Spec: storage.Spec{"media_id": mediaID}})
	if err != nil {
		return nil, err
	}
	for _, t := range tasks {
		if t.Status.InProgress() || t.Status == types.TaskRevoking {
			return t, nil
		}
	}
	return nil, nil
}

// GetPublisherTask returns a task, resolving related entities when asked.
func (c *Core) GetPublisherTask(spec storage.Spec, loadFields bool) (*types.PublisherTask, error) {
	task, err := c.store.GetPublisherTask(spec)
	if err != nil || task == nil {
		return nil, err
	}
	if loadFields {
		if err := c.loadPublisherFields(task); err != nil {
			return nil, err
		}
	}
	return task, nil
}

// ListPublisherTasks lists tasks, newest first by default.
func (c *Core) ListPublisherTasks(q storage.Query, loadFields bool) ([]*types.PublisherTask, error) {
	if len(q.Sort) == 0 {
		q.Sort = storage.SortTasksByDate
	}
	tasks, err := c.store.ListPublisherTasks(q)
	if err != nil {
		return nil, err
	}
	if loadFields {
		for _, t := range tasks {
			if err := c.loadPublisherFields(t); err != nil {
				return nil, err
			}
		}
	}
	return tasks, nil
}

// CountPublisherTasks counts tasks matching a filter.
func (c *Core) CountPublisherTasks(spec storage.Spec) (int64, error) {
	return c.store.CountPublisherTasks(spec)
}

// RevokePublisherTask cancels a task. A successful publication is undone by
// an unpublish job routed to the worker that served the copy; the task waits
// in REVOKING until that job reports back. Unstarted publications revoke
// immediately.
func (c *Core) RevokePublisherTask(taskID, callbackURL string, terminate, remove bool) error {
	task, err := c.store.GetPublisherTask(storage.ByID(taskID))
	if err != nil {
		return err
	}
	if task == nil {
		return types.E(types.ErrNotFound, "no publication task with that id")
	}
	if task.Status == types.TaskRevoking || task.Status == types.TaskRevoked {
		return types.E(types.ErrInvalid, "publication task is already revoked")
	}
	if task.Status == types.TaskFailure {
		return types.E(types.ErrInvalid, "publication task is already finished")
	}

	if task.Status == types.TaskSuccess {
		media, err := c.mustMedia(task.MediaID)
		if err != nil {
			return err
		}
		queue := task.PublishHostname()
		if queue == "" {
			return types.E(types.ErrInvalid, "publication task has no usable publish_uri")
		}
		payload := map[string]any{
			"media":       media,
			"publish_uri": task.PublishURI,
			"callback": broker.Callback{
				URL:      callbackURL,
				Username: "node",
				Password: c.cfg.NodeSecret,
			},
		}
		revokeID, err := c.queue.Submit(queue, broker.JobUnpublish, payload)
		if err != nil {
			return types.Wrap(types.ErrTransient, "unable to transmit the task to the broker", err)
		}
		task.Status = types.TaskRevoking
		task.RevokeTaskID = revokeID
	} else {
		if terminate {
			if err := c.queue.Revoke(task.ID); err != nil {
				c.logger.Warn().Err(err).Str("task_id", task.ID).Msg("broker revoke failed")
			}
		}
		task.Status = types.TaskRevoked
	}

	task.Revoked = true
	if err := c.store.SavePublisherTask(task); err != nil {
		return err
	}
	if remove && task.Status == types.TaskRevoked {
		if err := c.store.DeletePublisherTask(task.ID); err != nil {
			return err
		}
	}

	c.publish(events.EventTaskRevoked, "publication task revoked", map[string]string{"task_id": task.ID})
	return nil
}

func (c *Core) loadPublisherFields(task *types.PublisherTask) error {
	user, err := c.store.GetUser(storage.ByID(task.UserID))
	if err != nil {
		return err
	}
	if user != nil {
		task.User = user.Sanitized()
	}
	if task.Media, err = c.store.GetMedia(storage.ByID(task.MediaID)); err != nil {
		return err
	}
	return nil
}
