package janitor

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/oscied/orchestra/pkg/core"
	"github.com/oscied/orchestra/pkg/log"
	"github.com/oscied/orchestra/pkg/metrics"
	"github.com/oscied/orchestra/pkg/storage"
	"github.com/oscied/orchestra/pkg/types"
)

// Janitor cleans up after misbehaving workers: it revokes transformation
// tasks whose progress stalled, deletes output medias orphaned by vanished
// tasks, and optionally bounds the number of kept transformation outputs.
type Janitor struct {
	core     *core.Core
	interval time.Duration

	// progressStall is how long an unchanged eta_time marks a task stalled.
	progressStall time.Duration
	// pendingGrace is how long a pending media may stay without a live task.
	pendingGrace time.Duration
	// maxOutputs bounds kept transformation outputs, 0 disables.
	maxOutputs int

	// etaSeen remembers when each task's eta_time last changed.
	etaSeen map[string]etaRecord
	// orphanSeen remembers when a pending media was first seen orphaned.
	orphanSeen map[string]time.Time

	stopCh  chan struct{}
	stopped sync.WaitGroup
	logger  zerolog.Logger
}

type etaRecord struct {
	eta  string
	seen time.Time
}

// New creates a janitor
func New(c *core.Core, interval, progressStall, pendingGrace time.Duration, maxOutputs int) *Janitor {
	return &Janitor{
		core:          c,
		interval:      interval,
		progressStall: progressStall,
		pendingGrace:  pendingGrace,
		maxOutputs:    maxOutputs,
		etaSeen:       map[string]etaRecord{},
		orphanSeen:    map[string]time.Time{},
		stopCh:        make(chan struct{}),
		logger:        log.WithComponent("janitor"),
	}
}

// Start begins the cleanup loop
func (j *Janitor) Start() {
	j.stopped.Add(1)
	go j.run()
	j.logger.Info().Msg("janitor started")
}

// Stop halts the loop
func (j *Janitor) Stop() {
	close(j.stopCh)
	j.stopped.Wait()
	j.logger.Info().Msg("janitor stopped")
}

func (j *Janitor) run() {
	defer j.stopped.Done()
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.CleanupOnce()
		case <-j.stopCh:
			return
		}
	}
}

// CleanupOnce runs a single cleanup pass. Exported for tests.
func (j *Janitor) CleanupOnce() {
	start := time.Now()
	defer func() {
		metrics.LoopDuration.WithLabelValues("janitor").Observe(time.Since(start).Seconds())
	}()

	if err := j.revokeStalledTasks(); err != nil {
		j.logger.Error().Err(err).Msg("stalled task cleanup failed")
	}
	if err := j.deleteOrphanMedias(); err != nil {
		j.logger.Error().Err(err).Msg("orphan media cleanup failed")
	}
	if j.maxOutputs > 0 {
		if err := j.boundOutputMedias(); err != nil {
			j.logger.Error().Err(err).Msg("output media bound failed")
		}
	}
}

// revokeStalledTasks revokes tasks whose worker stopped updating eta_time.
func (j *Janitor) revokeStalledTasks() error {
	tasks, err := j.core.ListTransformTasks(storage.Query{
		Spec: storage.Spec{"status": string(types.TaskProgress)},
	}, false)
	if err != nil {
		return err
	}

	live := map[string]bool{}
	now := time.Now()
	for _, task := range tasks {
		live[task.ID] = true
		eta, _ := task.Statistic["eta_time"].(string)
		record, ok := j.etaSeen[task.ID]
		if !ok || record.eta != eta {
			j.etaSeen[task.ID] = etaRecord{eta: eta, seen: now}
			continue
		}
		if now.Sub(record.seen) < j.progressStall {
			continue
		}
		j.logger.Warn().Str("task_id", task.ID).Msg("task progress stalled, revoking")
		if err := j.core.RevokeTransformTask(task.ID, true, false, true); err != nil {
			j.logger.Warn().Err(err).Str("task_id", task.ID).Msg("stalled task revoke failed")
		}
		delete(j.etaSeen, task.ID)
	}

	for id := range j.etaSeen {
		if !live[id] {
			delete(j.etaSeen, id)
		}
	}
	return nil
}

// deleteOrphanMedias removes pending output medias whose task vanished or
// finished without cleaning up, after a grace period.
func (j *Janitor) deleteOrphanMedias() error {
	medias, err := j.core.ListMedias(storage.Query{
		Spec: storage.Spec{"status": string(types.MediaPending)},
	}, false)
	if err != nil {
		return err
	}

	live := map[string]bool{}
	now := time.Now()
	for _, media := range medias {
		if media.ParentID == "" {
			// Uploads in flight are not the janitor's to judge.
			continue
		}
		orphan, err := j.mediaOrphaned(media.ID)
		if err != nil {
			return err
		}
		if !orphan {
			delete(j.orphanSeen, media.ID)
			continue
		}
		live[media.ID] = true
		first, ok := j.orphanSeen[media.ID]
		if !ok {
			j.orphanSeen[media.ID] = now
			continue
		}
		if now.Sub(first) < j.pendingGrace {
			continue
		}
		j.logger.Warn().Str("media_id", media.ID).Msg("orphaned pending media, deleting")
		if err := j.core.DeleteMedia(media.ID); err != nil {
			j.logger.Warn().Err(err).Str("media_id", media.ID).Msg("orphan media delete failed")
		}
		delete(j.orphanSeen, media.ID)
	}

	for id := range j.orphanSeen {
		if !live[id] {
			delete(j.orphanSeen, id)
		}
	}
	return nil
}

// mediaOrphaned reports whether no live task will ever complete the media.
func (j *Janitor) mediaOrphaned(mediaID string) (bool, error) {
	tasks, err := j.core.ListTransformTasks(storage.Query{
		Spec: storage.Spec{"media_out_id": mediaID},
	}, false)
	if err != nil {
		return false, err
	}
	for _, t := range tasks {
		if t.Status.InProgress() {
			return false, nil
		}
	}
	return true, nil
}

// boundOutputMedias deletes the oldest ready transformation outputs beyond
// the configured bound.
func (j *Janitor) boundOutputMedias() error {
	medias, err := j.core.ListMedias(storage.Query{
		Spec: storage.Spec{"status": string(types.MediaReady)},
		Sort: []storage.SortKey{{Field: "metadata.add_date"}},
	}, false)
	if err != nil {
		return err
	}

	outputs := make([]*types.Media, 0, len(medias))
	for _, m := range medias {
		if m.ParentID != "" {
			outputs = append(outputs, m)
		}
	}
	for len(outputs) > j.maxOutputs {
		oldest := outputs[0]
		outputs = outputs[1:]
		j.logger.Info().Str("media_id", oldest.ID).Msg("output media over bound, deleting")
		if err := j.core.DeleteMedia(oldest.ID); err != nil {
			j.logger.Warn().Err(err).Str("media_id", oldest.ID).Msg("bounded media delete failed")
		}
	}
	return nil
}
