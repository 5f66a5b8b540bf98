package core

import (
	"strings"

	"github.com/oscied/orchestra/pkg/events"
	"github.com/oscied/orchestra/pkg/metrics"
	"github.com/oscied/orchestra/pkg/storage"
	"github.com/oscied/orchestra/pkg/types"
)

// Worker status strings. Anything else received as a final status is an
// error message from the worker.
const (
	CallbackSuccess  = "SUCCESS"
	CallbackProgress = "PROGRESS"
)

// Statistic keys reported by workers during progress.
var progressKeys = []string{
	"percent", "eta_time", "elapsed_time", "hostname", "start_date",
	"media_in_size", "media_in_duration", "media_out_size", "media_out_duration",
}

// TransformCallback applies a worker report to a transformation task.
// Reports on terminal tasks are acknowledged without effect, so duplicate
// and late deliveries are harmless.
func (c *Core) TransformCallback(taskID, status string, details map[string]any) error {
	lock := c.locks.lock(taskID)
	defer lock.Unlock()

	task, err := c.store.GetTransformTask(storage.ByID(taskID))
	if err != nil {
		return err
	}
	if task == nil {
		return types.E(types.ErrNotFound, "no transformation task with that id")
	}
	if task.Status.Terminal() {
		c.logger.Debug().Str("task_id", taskID).Str("status", status).Msg("callback on finished task ignored")
		metrics.CallbacksTotal.WithLabelValues("transform", "duplicate").Inc()
		return nil
	}

	switch status {
	case CallbackProgress:
		if task.Status == types.TaskPending {
			task.Status = types.TaskProgress
		}
		// The first progress report stamps start_date, a worker-supplied
		// value overrides it through the merge below.
		task.AddStatistic("start_date", types.DatetimeNow(), false)
		mergeProgress(task.Statistic, details, func(k string, v any) { task.AddStatistic(k, v, true) })
		metrics.CallbacksTotal.WithLabelValues("transform", "progress").Inc()
		c.publish(events.EventTaskProgress, "transformation task progressing", map[string]string{"task_id": task.ID})

	case CallbackSuccess:
		task.Status = types.TaskSuccess
		mergeProgress(task.Statistic, details, func(k string, v any) { task.AddStatistic(k, v, true) })
		if err := c.finishTransformOutput(task); err != nil {
			return err
		}
		metrics.CallbacksTotal.WithLabelValues("transform", "success").Inc()
		c.publish(events.EventTaskCompleted, "transformation task succeeded", map[string]string{"task_id": task.ID})

	default:
		task.Status = types.TaskFailure
		task.AddStatistic("error_details", strings.ReplaceAll(status, "\n", `\n`), true)
		if err := c.failTransformOutput(task); err != nil {
			return err
		}
		metrics.CallbacksTotal.WithLabelValues("transform", "failure").Inc()
		metrics.TasksFailed.WithLabelValues("transform").Inc()
		c.publish(events.EventTaskFailed, "transformation task failed", map[string]string{"task_id": task.ID})
	}

	if err := c.store.SaveTransformTask(task); err != nil {
		return err
	}
	if task.Status.Terminal() && task.SendEmail {
		if user, uerr := c.store.GetUser(storage.ByID(task.UserID)); uerr == nil {
			details, _ := task.Statistic["error_details"].(string)
			c.notify(user, "transformation", task.ID, task.Status, details)
		}
	}
	return nil
}

// finishTransformOutput marks the output media READY and records its
// probed size and duration.
func (c *Core) finishTransformOutput(task *types.TransformTask) error {
	media, err := c.store.GetMedia(storage.ByID(task.MediaOutID))
	if err != nil {
		return err
	}
	if media == nil {
		c.logger.Warn().Str("task_id", task.ID).Msg("output media vanished before completion")
		return nil
	}
	media.Status = types.MediaReady
	size, duration, err := c.blobs.AddMedia(media)
	if err != nil {
		c.logger.Warn().Err(err).Str("media_id", media.ID).Msg("output media probe failed")
	} else {
		media.AddMetadata("size", size, true)
		task.AddStatistic("media_out_size", size, false)
		if duration != "" {
			media.AddMetadata("duration", duration, true)
			task.AddStatistic("media_out_duration", duration, false)
		}
	}
	media.AddMetadata("add_date", types.DatetimeNow(), false)
	if err := c.store.SaveMedia(media); err != nil {
		return err
	}
	c.publish(events.EventMediaReady, media.Title(), map[string]string{"media_id": media.ID})
	return nil
}

// failTransformOutput discards the half-written output media.
func (c *Core) failTransformOutput(task *types.TransformTask) error {
	media, err := c.store.GetMedia(storage.ByID(task.MediaOutID))
	if err != nil || media == nil {
		return err
	}
	return c.deleteMediaUnchecked(media)
}

// PublisherCallback applies a worker report to a publication task.
func (c *Core) PublisherCallback(taskID, publishURI, status string) error {
	lock := c.locks.lock(taskID)
	defer lock.Unlock()

	task, err := c.store.GetPublisherTask(storage.ByID(taskID))
	if err != nil {
		return err
	}
	if task == nil {
		return types.E(types.ErrNotFound, "no publication task with that id")
	}
	if !task.Status.InProgress() {
		c.logger.Debug().Str("task_id", taskID).Str("status", status).Msg("callback on finished task ignored")
		metrics.CallbacksTotal.WithLabelValues("publisher", "duplicate").Inc()
		return nil
	}

	switch status {
	case CallbackProgress:
		task.Status = types.TaskProgress
		metrics.CallbacksTotal.WithLabelValues("publisher", "progress").Inc()

	case CallbackSuccess:
		task.Status = types.TaskSuccess
		task.PublishURI = publishURI
		media, err := c.mustMedia(task.MediaID)
		if err != nil {
			return err
		}
		// A concurrent publication may have won between launch and now.
		// The media keeps the first URI, the conflict is only logged.
		if media.Published() {
			c.logger.Error().Str("task_id", task.ID).Str("media_id", media.ID).
				Msg("media already published by another task, keeping first uri")
		} else {
			if media.PublicURIs == nil {
				media.PublicURIs = map[string]string{}
			}
			media.PublicURIs[task.ID] = publishURI
			if err := c.store.SaveMedia(media); err != nil {
				return err
			}
			c.publish(events.EventMediaPublished, media.Title(), map[string]string{
				"media_id": media.ID, "public_uri": publishURI,
			})
		}
		metrics.CallbacksTotal.WithLabelValues("publisher", "success").Inc()

	default:
		task.Status = types.TaskFailure
		task.AddStatistic("error_details", strings.ReplaceAll(status, "\n", `\n`), true)
		metrics.CallbacksTotal.WithLabelValues("publisher", "failure").Inc()
		metrics.TasksFailed.WithLabelValues("publisher").Inc()
		c.publish(events.EventTaskFailed, "publication task failed", map[string]string{"task_id": task.ID})
	}

	if err := c.store.SavePublisherTask(task); err != nil {
		return err
	}
	if task.Status.Terminal() && task.SendEmail {
		if user, uerr := c.store.GetUser(storage.ByID(task.UserID)); uerr == nil {
			details, _ := task.Statistic["error_details"].(string)
			c.notify(user, "publication", task.ID, task.Status, details)
		}
	}
	return nil
}

// PublisherRevokeCallback applies an unpublish report, looked up by the
// revoke job id the worker was handed.
func (c *Core) PublisherRevokeCallback(revokeTaskID, status string) error {
	task, err := c.store.GetPublisherTask(storage.Spec{"revoke_task_id": revokeTaskID})
	if err != nil {
		return err
	}
	if task == nil {
		return types.E(types.ErrNotFound, "no publication task with that revoke id")
	}

	lock := c.locks.lock(task.ID)
	defer lock.Unlock()

	// Reload under the lock, the first read raced other callbacks.
	task, err = c.store.GetPublisherTask(storage.ByID(task.ID))
	if err != nil || task == nil {
		return err
	}
	if task.Status == types.TaskRevoked {
		metrics.CallbacksTotal.WithLabelValues("publisher_revoke", "duplicate").Inc()
		return nil
	}

	if status == CallbackSuccess {
		media, err := c.store.GetMedia(storage.ByID(task.MediaID))
		if err != nil {
			return err
		}
		if media != nil && media.PublicURIs != nil {
			delete(media.PublicURIs, task.ID)
			if err := c.store.SaveMedia(media); err != nil {
				return err
			}
			c.publish(events.EventMediaUnpublish, media.Title(), map[string]string{"media_id": media.ID})
		}
		task.Status = types.TaskRevoked
		metrics.CallbacksTotal.WithLabelValues("publisher_revoke", "success").Inc()
	} else {
		task.AddStatistic("revoke_error_details", strings.ReplaceAll(status, "\n", `\n`), true)
		metrics.CallbacksTotal.WithLabelValues("publisher_revoke", "failure").Inc()
	}

	return c.store.SavePublisherTask(task)
}

// mergeProgress copies the recognized worker-reported keys.
func mergeProgress(_ map[string]any, details map[string]any, set func(string, any)) {
	if details == nil {
		return
	}
	for _, k := range progressKeys {
		if v, ok := details[k]; ok {
			set(k, v)
		}
	}
}
