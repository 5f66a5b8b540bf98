package storage

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/oscied/orchestra/pkg/types"
)

const mongoTimeout = 10 * time.Second

// Collection names.
const (
	colUsers          = "users"
	colMedias         = "medias"
	colProfiles       = "transform_profiles"
	colTransformTasks = "transform_tasks"
	colPublisherTasks = "publisher_tasks"
	colEnvironments   = "environments"
)

// MongoStore implements Store on a MongoDB database.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoStore connects to the database named by the DSN and ensures the
// unique indexes the data model relies on.
func NewMongoStore(dsn, database string) (*MongoStore, error) {
	ctx, cancel := opCtx()
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(dsn))
	if err != nil {
		return nil, types.Wrap(types.ErrTransient, "connect to database", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, types.Wrap(types.ErrTransient, "ping database", err)
	}

	s := &MongoStore{client: client, db: client.Database(database)}
	if err := s.ensureIndexes(); err != nil {
		return nil, err
	}
	return s, nil
}

func opCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), mongoTimeout)
}

func (s *MongoStore) ensureIndexes() error {
	unique := func(col, field string) error {
		ctx, cancel := opCtx()
		defer cancel()
		_, err := s.db.Collection(col).Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys:    bson.D{{Key: field, Value: 1}},
			Options: options.Index().SetUnique(true),
		})
		return err
	}
	if err := unique(colUsers, "mail"); err != nil {
		return types.Wrap(types.ErrTransient, "create users.mail index", err)
	}
	if err := unique(colMedias, "uri"); err != nil {
		return types.Wrap(types.ErrTransient, "create medias.uri index", err)
	}
	if err := unique(colProfiles, "title"); err != nil {
		return types.Wrap(types.ErrTransient, "create transform_profiles.title index", err)
	}
	return nil
}

// toFilter converts a Spec into a driver filter, preserving $ne clauses.
func toFilter(spec Spec) bson.M {
	filter := bson.M{}
	for field, v := range spec {
		if ne, ok := neClause(v); ok {
			filter[field] = bson.M{"$ne": ne}
			continue
		}
		filter[field] = v
	}
	return filter
}

func toSort(keys []SortKey) bson.D {
	sort := bson.D{}
	for _, k := range keys {
		dir := 1
		if k.Desc {
			dir = -1
		}
		sort = append(sort, bson.E{Key: k.Field, Value: dir})
	}
	return sort
}

func saveOne[T any](s *MongoStore, col, id, duplicateMsg string, v *T) error {
	ctx, cancel := opCtx()
	defer cancel()
	_, err := s.db.Collection(col).ReplaceOne(ctx, bson.M{"_id": id}, v, options.Replace().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		return types.E(types.ErrInvalid, duplicateMsg)
	}
	if err != nil {
		return types.Wrap(types.ErrTransient, "save "+col+" document", err)
	}
	return nil
}

func getOne[T any](s *MongoStore, col string, spec Spec) (*T, error) {
	ctx, cancel := opCtx()
	defer cancel()
	out := new(T)
	err := s.db.Collection(col).FindOne(ctx, toFilter(spec)).Decode(out)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, types.Wrap(types.ErrTransient, "read "+col+" document", err)
	}
	return out, nil
}

func listMany[T any](s *MongoStore, col string, q Query) ([]*T, error) {
	ctx, cancel := opCtx()
	defer cancel()

	opts := options.Find()
	if len(q.Sort) > 0 {
		opts.SetSort(toSort(q.Sort))
	}
	if q.Skip > 0 {
		opts.SetSkip(int64(q.Skip))
	}
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	filter := bson.M{}
	if q.Spec != nil {
		filter = toFilter(q.Spec)
	}
	cur, err := s.db.Collection(col).Find(ctx, filter, opts)
	if err != nil {
		return nil, types.Wrap(types.ErrTransient, "list "+col, err)
	}
	defer cur.Close(ctx)

	out := make([]*T, 0)
	for cur.Next(ctx) {
		item := new(T)
		if err := cur.Decode(item); err != nil {
			return nil, types.Wrap(types.ErrTransient, "decode "+col+" document", err)
		}
		out = append(out, item)
	}
	if err := cur.Err(); err != nil {
		return nil, types.Wrap(types.ErrTransient, "iterate "+col, err)
	}
	return out, nil
}

func deleteOne(s *MongoStore, col, id string) error {
	ctx, cancel := opCtx()
	defer cancel()
	_, err := s.db.Collection(col).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return types.Wrap(types.ErrTransient, "delete "+col+" document", err)
	}
	return nil
}

func countMany(s *MongoStore, col string, spec Spec) (int64, error) {
	ctx, cancel := opCtx()
	defer cancel()
	filter := bson.M{}
	if spec != nil {
		filter = toFilter(spec)
	}
	n, err := s.db.Collection(col).CountDocuments(ctx, filter)
	if err != nil {
		return 0, types.Wrap(types.ErrTransient, "count "+col, err)
	}
	return n, nil
}

// Users

func (s *MongoStore) SaveUser(user *types.User) error {
	user.Mail = types.NormalizeMail(user.Mail)
	return saveOne(s, colUsers, user.ID, "a user with that mail already exists", user)
}

func (s *MongoStore) GetUser(spec Spec) (*types.User, error) {
	return getOne[types.User](s, colUsers, spec)
}

func (s *MongoStore) ListUsers(q Query) ([]*types.User, error) {
	return listMany[types.User](s, colUsers, q)
}

func (s *MongoStore) DeleteUser(id string) error {
	return deleteOne(s, colUsers, id)
}

func (s *MongoStore) CountUsers(spec Spec) (int64, error) {
	return countMany(s, colUsers, spec)
}

// Medias

func (s *MongoStore) SaveMedia(media *types.Media) error {
	return saveOne(s, colMedias, media.ID, "a media asset with that uri already exists", media)
}

func (s *MongoStore) GetMedia(spec Spec) (*types.Media, error) {
	return getOne[types.Media](s, colMedias, spec)
}

func (s *MongoStore) ListMedias(q Query) ([]*types.Media, error) {
	return listMany[types.Media](s, colMedias, q)
}

func (s *MongoStore) DeleteMedia(id string) error {
	return deleteOne(s, colMedias, id)
}

func (s *MongoStore) CountMedias(spec Spec) (int64, error) {
	return countMany(s, colMedias, spec)
}

// Transformation profiles

func (s *MongoStore) SaveProfile(profile *types.TransformProfile) error {
	return saveOne(s, colProfiles, profile.ID, "a transformation profile with that title already exists", profile)
}

func (s *MongoStore) GetProfile(spec Spec) (*types.TransformProfile, error) {
	return getOne[types.TransformProfile](s, colProfiles, spec)
}

func (s *MongoStore) ListProfiles(q Query) ([]*types.TransformProfile, error) {
	return listMany[types.TransformProfile](s, colProfiles, q)
}

func (s *MongoStore) DeleteProfile(id string) error {
	return deleteOne(s, colProfiles, id)
}

func (s *MongoStore) CountProfiles(spec Spec) (int64, error) {
	return countMany(s, colProfiles, spec)
}

// Transformation tasks

func (s *MongoStore) SaveTransformTask(task *types.TransformTask) error {
	return saveOne(s, colTransformTasks, task.ID, "a task with that id already exists", task)
}

func (s *MongoStore) GetTransformTask(spec Spec) (*types.TransformTask, error) {
	return getOne[types.TransformTask](s, colTransformTasks, spec)
}

func (s *MongoStore) ListTransformTasks(q Query) ([]*types.TransformTask, error) {
	return listMany[types.TransformTask](s, colTransformTasks, q)
}

func (s *MongoStore) DeleteTransformTask(id string) error {
	return deleteOne(s, colTransformTasks, id)
}

func (s *MongoStore) CountTransformTasks(spec Spec) (int64, error) {
	return countMany(s, colTransformTasks, spec)
}

// Publication tasks

func (s *MongoStore) SavePublisherTask(task *types.PublisherTask) error {
	return saveOne(s, colPublisherTasks, task.ID, "a task with that id already exists", task)
}

func (s *MongoStore) GetPublisherTask(spec Spec) (*types.PublisherTask, error) {
	return getOne[types.PublisherTask](s, colPublisherTasks, spec)
}

func (s *MongoStore) ListPublisherTasks(q Query) ([]*types.PublisherTask, error) {
	return listMany[types.PublisherTask](s, colPublisherTasks, q)
}

func (s *MongoStore) DeletePublisherTask(id string) error {
	return deleteOne(s, colPublisherTasks, id)
}

func (s *MongoStore) CountPublisherTasks(spec Spec) (int64, error) {
	return countMany(s, colPublisherTasks, spec)
}

// Environments

func (s *MongoStore) SaveEnvironment(env *types.Environment) error {
	return saveOne(s, colEnvironments, env.Name, "an environment with that name already exists", env)
}

func (s *MongoStore) GetEnvironment(spec Spec) (*types.Environment, error) {
	return getOne[types.Environment](s, colEnvironments, spec)
}

func (s *MongoStore) ListEnvironments(q Query) ([]*types.Environment, error) {
	return listMany[types.Environment](s, colEnvironments, q)
}

func (s *MongoStore) DeleteEnvironment(name string) error {
	return deleteOne(s, colEnvironments, name)
}

// Flush drops every collection
func (s *MongoStore) Flush() error {
	for _, col := range []string{colUsers, colMedias, colProfiles, colTransformTasks, colPublisherTasks, colEnvironments} {
		ctx, cancel := opCtx()
		err := s.db.Collection(col).Drop(ctx)
		cancel()
		if err != nil {
			return types.Wrap(types.ErrTransient, "drop "+col, err)
		}
	}
	return s.ensureIndexes()
}

// Close disconnects from the database
func (s *MongoStore) Close() error {
	ctx, cancel := opCtx()
	defer cancel()
	return s.client.Disconnect(ctx)
}
