package core

import (
	"github.com/oscied/orchestra/pkg/auth"
	"github.com/oscied/orchestra/pkg/events"
	"github.com/oscied/orchestra/pkg/storage"
	"github.com/oscied/orchestra/pkg/types"
)

// SaveUser validates and persists a user. hashSecret must be set when the
// secret field carries a fresh plain-text secret.
func (c *Core) SaveUser(user *types.User, hashSecret bool) (*types.User, error) {
	if user.ID == "" {
		user.ID = types.NewID()
	}
	user.Mail = types.NormalizeMail(user.Mail)
	if err := user.Validate(); err != nil {
		return nil, err
	}
	if hashSecret {
		if user.Secret == "" {
			return nil, types.E(types.ErrInvalid, "user secret is required")
		}
		hashed, err := auth.HashSecret(user.Secret)
		if err != nil {
			return nil, err
		}
		user.Secret = hashed
	}
	if err := c.store.SaveUser(user); err != nil {
		return nil, err
	}
	c.publish(events.EventUserCreated, user.Mail, map[string]string{"user_id": user.ID})
	return user.Sanitized(), nil
}

// GetUser returns a sanitized user, nil when absent.
func (c *Core) GetUser(spec storage.Spec) (*types.User, error) {
	user, err := c.store.GetUser(spec)
	if err != nil || user == nil {
		return nil, err
	}
	return user.Sanitized(), nil
}

// ListUsers returns sanitized users, sorted by name when no sort is given.
func (c *Core) ListUsers(q storage.Query) ([]*types.User, error) {
	if len(q.Sort) == 0 {
		q.Sort = storage.SortUsersByName
	}
	users, err := c.store.ListUsers(q)
	if err != nil {
		return nil, err
	}
	out := make([]*types.User, 0, len(users))
	for _, u := range users {
		out = append(out, u.Sanitized())
	}
	return out, nil
}

// CountUsers counts users matching a filter.
func (c *Core) CountUsers(spec storage.Spec) (int64, error) {
	return c.store.CountUsers(spec)
}

// DeleteUser removes a user, ErrNotFound when absent.
func (c *Core) DeleteUser(id string) error {
	user, err := c.store.GetUser(storage.ByID(id))
	if err != nil {
		return err
	}
	if user == nil {
		return types.E(types.ErrNotFound, "no user with that id")
	}
	if err := c.store.DeleteUser(id); err != nil {
		return err
	}
	c.publish(events.EventUserDeleted, user.Mail, map[string]string{"user_id": id})
	return nil
}

// mustUser resolves a referenced user, ErrNotFound when absent.
func (c *Core) mustUser(id string) (*types.User, error) {
	user, err := c.store.GetUser(storage.ByID(id))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, types.E(types.ErrNotFound, "no user with that id")
	}
	return user, nil
}
