package core

import (
	"github.com/oscied/orchestra/pkg/broker"
	"github.com/oscied/orchestra/pkg/events"
	"github.com/oscied/orchestra/pkg/metrics"
	"github.com/oscied/orchestra/pkg/storage"
	"github.com/oscied/orchestra/pkg/types"
)

// TransformQueues lists the worker queues accepting transformation jobs.
func (c *Core) TransformQueues() []string {
	return append([]string{}, c.cfg.TransformQueues...)
}

func (c *Core) validTransformQueue(name string) bool {
	for _, q := range c.cfg.TransformQueues {
		if q == name {
			return true
		}
	}
	return false
}

// LaunchTransformTask validates the request, creates the pending output
// media, submits the job and persists the task under the broker-assigned id.
// The output media is persisted before the job is enqueued so a duplicate
// output location aborts the launch with nothing submitted.
func (c *Core) LaunchTransformTask(userID, mediaInID, profileID, filename string,
	metadata map[string]any, sendEmail bool, queue, callbackURL string) (*types.TransformTask, error) {

	user, err := c.mustUser(userID)
	if err != nil {
		return nil, err
	}
	mediaIn, err := c.mustMedia(mediaInID)
	if err != nil {
		return nil, err
	}
	profile, err := c.mustProfile(profileID)
	if err != nil {
		return nil, err
	}
	if !c.validTransformQueue(queue) {
		return nil, types.E(types.ErrNotFound, "no transformation queue with that name")
	}

	if mediaIn.Status == types.MediaDeleted {
		return nil, types.E(types.ErrInvalid, "input media asset is marked as deleted")
	}
	if filename == "" {
		return nil, types.E(types.ErrInvalid, "output filename is required")
	}
	if profile.IsDash() {
		if _, ok := mediaIn.Metadata["duration"]; !ok {
			return nil, types.E(types.ErrInvalid, "input media asset must have a duration to be dashcast")
		}
	}

	mediaOut := &types.Media{
		ID:       types.NewID(),
		UserID:   userID,
		ParentID: mediaInID,
		Filename: profile.OutputFilename(filename, ""),
		Metadata: metadata,
		Status:   types.MediaPending,
	}
	mediaOut.URI = c.blobs.MediaURI(mediaOut.UserID, mediaOut.ID, mediaOut.Filename)
	if err := mediaOut.Validate(); err != nil {
		return nil, err
	}
	if err := c.store.SaveMedia(mediaOut); err != nil {
		return nil, err
	}

	payload := map[string]any{
		"media_in":  mediaIn,
		"media_out": mediaOut,
		"profile":   profile,
		"callback": broker.Callback{
			URL:      callbackURL,
			Username: "node",
			Password: c.cfg.NodeSecret,
		},
	}
	taskID, err := c.queue.Submit(queue, broker.JobTransform, payload)
	if err != nil {
		// Nothing was submitted, remove the placeholder output.
		if derr := c.store.DeleteMedia(mediaOut.ID); derr != nil {
			c.logger.Warn().Err(derr).Str("media_id", mediaOut.ID).Msg("orphan output media removal failed")
		}
		return nil, types.Wrap(types.ErrTransient, "unable to transmit the task to the broker", err)
	}

	task := &types.TransformTask{
		ID:         taskID,
		UserID:     userID,
		MediaInID:  mediaInID,
		MediaOutID: mediaOut.ID,
		ProfileID:  profileID,
		SendEmail:  sendEmail,
		Status:     types.TaskPending,
	}
	task.AddStatistic("add_date", types.DatetimeNow(), true)
	if err := c.store.SaveTransformTask(task); err != nil {
		return nil, err
	}

	metrics.TasksLaunched.WithLabelValues("transform").Inc()
	c.publish(events.EventTaskLaunched, "transformation task launched", map[string]string{
		"task_id": task.ID, "user_id": user.ID, "media_in_id": mediaInID,
	})
	c.logger.Info().Str("task_id", task.ID).Str("queue", queue).Msg("transformation task launched")
	return task, nil
}

// GetTransformTask returns a task, resolving related entities when asked.
func (c *Core) GetTransformTask(spec storage.Spec, loadFields bool) (*types.TransformTask, error) {
	task, err := c.store.GetTransformTask(spec)
	if err != nil || task == nil {
		return nil, err
	}
	if loadFields {
		if err := c.loadTransformFields(task); err != nil {
			return nil, err
		}
	}
	return task, nil
}

// ListTransformTasks lists tasks, newest first by default.
func (c *Core) ListTransformTasks(q storage.Query, loadFields bool) ([]*types.TransformTask, error) {
	if len(q.Sort) == 0 {
		q.Sort = storage.SortTasksByDate
	}
	tasks, err := c.store.ListTransformTasks(q)
	if err != nil {
		return nil, err
	}
	if loadFields {
		for _, t := range tasks {
			if err := c.loadTransformFields(t); err != nil {
				return nil, err
			}
		}
	}
	return tasks, nil
}

// CountTransformTasks counts tasks matching a filter.
func (c *Core) CountTransformTasks(spec storage.Spec) (int64, error) {
	return c.store.CountTransformTasks(spec)
}

// RevokeTransformTask cancels a task. terminate also signals the worker,
// deleteMedia removes the pending output, remove drops the task row.
func (c *Core) RevokeTransformTask(taskID string, terminate, remove, deleteMedia bool) error {
	task, err := c.store.GetTransformTask(storage.ByID(taskID))
	if err != nil {
		return err
	}
	if task == nil {
		return types.E(types.ErrNotFound, "no transformation task with that id")
	}
	if task.Revoked || task.Status.Terminal() {
		return types.E(types.ErrInvalid, "transformation task is already revoked or finished")
	}

	if terminate {
		if err := c.queue.Revoke(task.ID); err != nil {
			c.logger.Warn().Err(err).Str("task_id", task.ID).Msg("broker revoke failed")
		}
	}

	task.Status = types.TaskRevoked
	task.Revoked = true
	if err := c.store.SaveTransformTask(task); err != nil {
		return err
	}

	if deleteMedia && task.MediaOutID != "" {
		media, err := c.store.GetMedia(storage.ByID(task.MediaOutID))
		if err == nil && media != nil {
			if err := c.deleteMediaUnchecked(media); err != nil {
				c.logger.Warn().Err(err).Str("media_id", media.ID).Msg("output media cleanup failed")
			}
		}
	}
	if remove {
		if err := c.store.DeleteTransformTask(task.ID); err != nil {
			return err
		}
	}

	c.publish(events.EventTaskRevoked, "transformation task revoked", map[string]string{"task_id": task.ID})
	return nil
}

func (c *Core) loadTransformFields(task *types.TransformTask) error {
	user, err := c.store.GetUser(storage.ByID(task.UserID))
	if err != nil {
		return err
	}
	if user != nil {
		task.User = user.Sanitized()
	}
	if task.MediaIn, err = c.store.GetMedia(storage.ByID(task.MediaInID)); err != nil {
		return err
	}
	if task.MediaOut, err = c.store.GetMedia(storage.ByID(task.MediaOutID)); err != nil {
		return err
	}
	if task.Profile, err = c.store.GetProfile(storage.ByID(task.ProfileID)); err != nil {
		return err
	}
	return nil
}
