package core

import (
	"github.com/oscied/orchestra/pkg/events"
	"github.com/oscied/orchestra/pkg/storage"
	"github.com/oscied/orchestra/pkg/types"
)

// ListEncoders returns the encoder names profiles may use.
func (c *Core) ListEncoders() []string {
	return types.EncoderNames
}

// SaveProfile validates and persists a transformation profile. The title
// unique constraint is enforced by the store.
func (c *Core) SaveProfile(profile *types.TransformProfile) (*types.TransformProfile, error) {
	if profile.ID == "" {
		profile.ID = types.NewID()
	}
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	if err := c.store.SaveProfile(profile); err != nil {
		return nil, err
	}
	c.publish(events.EventProfileCreated, profile.Title, map[string]string{"profile_id": profile.ID})
	return profile, nil
}

// GetProfile returns a profile, nil when absent.
func (c *Core) GetProfile(spec storage.Spec) (*types.TransformProfile, error) {
	return c.store.GetProfile(spec)
}

// ListProfiles lists profiles grouped by encoder then title by default.
func (c *Core) ListProfiles(q storage.Query) ([]*types.TransformProfile, error) {
	if len(q.Sort) == 0 {
		q.Sort = []storage.SortKey{{Field: "encoder_name"}, {Field: "title"}}
	}
	return c.store.ListProfiles(q)
}

// CountProfiles counts profiles matching a filter.
func (c *Core) CountProfiles(spec storage.Spec) (int64, error) {
	return c.store.CountProfiles(spec)
}

// DeleteProfile removes a profile. Deletion is refused while a non-terminal
// transformation task references it.
func (c *Core) DeleteProfile(id string) error {
	profile, err := c.store.GetProfile(storage.ByID(id))
	if err != nil {
		return err
	}
	if profile == nil {
		return types.E(types.ErrNotFound, "no transformation profile with that id")
	}

	tasks, err := c.store.ListTransformTasks(storage.Query{Spec: storage.Spec{"profile_id": id}})
	if err != nil {
		return err
	}
	for _, t := range tasks {
		if t.Status.InProgress() {
			return types.E(types.ErrInvalid, "profile is referenced by a task in progress")
		}
	}

	if err := c.store.DeleteProfile(id); err != nil {
		return err
	}
	c.publish(events.EventProfileDeleted, profile.Title, map[string]string{"profile_id": id})
	return nil
}

// mustProfile resolves a referenced profile, ErrNotFound when absent.
func (c *Core) mustProfile(id string) (*types.TransformProfile, error) {
	profile, err := c.store.GetProfile(storage.ByID(id))
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, types.E(types.ErrNotFound, "no transformation profile with that id")
	}
	return profile, nil
}
