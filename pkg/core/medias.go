package core

import (
	"github.com/oscied/orchestra/pkg/events"
	"github.com/oscied/orchestra/pkg/storage"
	"github.com/oscied/orchestra/pkg/types"
)

// SaveMedia validates a media asset, moves it to its canonical storage
// location, probes it, and persists it. The uri unique constraint is
// enforced by the store.
func (c *Core) SaveMedia(media *types.Media) (*types.Media, error) {
	if media.ID == "" {
		media.ID = types.NewID()
	}
	if media.Status == "" {
		media.Status = types.MediaPending
	}
	if media.URI == "" {
		media.URI = c.blobs.MediaURI(media.UserID, media.ID, media.Filename)
	}
	if err := media.Validate(); err != nil {
		return nil, err
	}
	if _, err := c.mustUser(media.UserID); err != nil {
		return nil, err
	}

	if media.Status != types.MediaDeleted {
		size, duration, err := c.blobs.AddMedia(media)
		if err != nil {
			return nil, err
		}
		media.AddMetadata("size", size, true)
		if duration != "" {
			media.AddMetadata("duration", duration, true)
		}
		media.AddMetadata("add_date", types.DatetimeNow(), false)
		media.URI = c.blobs.MediaURI(media.UserID, media.ID, media.Filename)
	}

	if err := c.store.SaveMedia(media); err != nil {
		return nil, err
	}
	c.publish(events.EventMediaCreated, media.Title(), map[string]string{"media_id": media.ID})
	return media, nil
}

// GetMedia returns a media asset, resolving its user and parent when asked.
func (c *Core) GetMedia(spec storage.Spec, loadFields bool) (*types.Media, error) {
	media, err := c.store.GetMedia(spec)
	if err != nil || media == nil {
		return nil, err
	}
	if loadFields {
		if err := c.loadMediaFields(media); err != nil {
			return nil, err
		}
	}
	return media, nil
}

// ListMedias lists media assets, sorted by title when no sort is given.
func (c *Core) ListMedias(q storage.Query, loadFields bool) ([]*types.Media, error) {
	if len(q.Sort) == 0 {
		q.Sort = storage.SortMediasByTitle
	}
	medias, err := c.store.ListMedias(q)
	if err != nil {
		return nil, err
	}
	if loadFields {
		for _, m := range medias {
			if err := c.loadMediaFields(m); err != nil {
				return nil, err
			}
		}
	}
	return medias, nil
}

// CountMedias counts media assets matching a filter.
func (c *Core) CountMedias(spec storage.Spec) (int64, error) {
	return c.store.CountMedias(spec)
}

// DeleteMedia marks a media asset DELETED and removes its files. Deletion
// is refused while a non-terminal task references the asset.
func (c *Core) DeleteMedia(id string) error {
	media, err := c.store.GetMedia(storage.ByID(id))
	if err != nil {
		return err
	}
	if media == nil {
		return types.E(types.ErrNotFound, "no media asset with that id")
	}
	inUse, err := c.mediaInUse(id)
	if err != nil {
		return err
	}
	if inUse {
		return types.E(types.ErrInvalid, "media asset is referenced by a task in progress")
	}
	return c.deleteMediaUnchecked(media)
}

// deleteMediaUnchecked performs the deletion without the reference check,
// for callers cleaning up after their own task.
func (c *Core) deleteMediaUnchecked(media *types.Media) error {
	if err := c.blobs.DeleteMedia(media); err != nil {
		c.logger.Warn().Err(err).Str("media_id", media.ID).Msg("media files removal failed")
	}
	media.Status = types.MediaDeleted
	media.PublicURIs = nil
	if err := c.store.SaveMedia(media); err != nil {
		return err
	}
	c.publish(events.EventMediaDeleted, media.Title(), map[string]string{"media_id": media.ID})
	return nil
}

// mediaInUse reports whether any non-terminal task references the media.
func (c *Core) mediaInUse(id string) (bool, error) {
	transforms, err := c.store.ListTransformTasks(storage.Query{})
	if err != nil {
		return false, err
	}
	for _, t := range transforms {
		if (t.MediaInID == id || t.MediaOutID == id) && t.Status.InProgress() {
			return true, nil
		}
	}
	publishers, err := c.store.ListPublisherTasks(storage.Query{})
	if err != nil {
		return false, err
	}
	for _, t := range publishers {
		if t.MediaID == id && (t.Status.InProgress() || t.Status == types.TaskRevoking) {
			return true, nil
		}
	}
	return false, nil
}

func (c *Core) loadMediaFields(media *types.Media) error {
	user, err := c.store.GetUser(storage.ByID(media.UserID))
	if err != nil {
		return err
	}
	if user != nil {
		media.User = user.Sanitized()
	}
	if media.ParentID != "" {
		parent, err := c.store.GetMedia(storage.ByID(media.ParentID))
		if err != nil {
			return err
		}
		media.Parent = parent
	}
	return nil
}

// mustMedia resolves a referenced media asset, ErrNotFound when absent.
func (c *Core) mustMedia(id string) (*types.Media, error) {
	media, err := c.store.GetMedia(storage.ByID(id))
	if err != nil {
		return nil, err
	}
	if media == nil {
		return nil, types.E(types.ErrNotFound, "no media asset with that id")
	}
	return media, nil
}
