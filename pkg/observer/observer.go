package observer

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	bolt "go.etcd.io/bbolt"

	"github.com/oscied/orchestra/pkg/capacity"
	"github.com/oscied/orchestra/pkg/cluster"
	"github.com/oscied/orchestra/pkg/log"
	"github.com/oscied/orchestra/pkg/metrics"
	"github.com/oscied/orchestra/pkg/storage"
	"github.com/oscied/orchestra/pkg/types"
)

const observeTimeout = 10 * time.Second

// Observer samples one environment's planned capacity, unit states and task
// counts on every tick, independently from the capacity controller. Rings
// survive restarts through the statistics database.
type Observer struct {
	environment   string
	adapter       cluster.Adapter
	table         *capacity.EventsTable
	store         storage.Store
	db            *bolt.DB
	checksPerHour int

	stats   map[string]*ServiceStatistics
	stopCh  chan struct{}
	stopped sync.WaitGroup
	logger  zerolog.Logger
}

// New creates an observer with one ring per managed service
func New(environment string, adapter cluster.Adapter, table *capacity.EventsTable,
	store storage.Store, db *bolt.DB, checksPerHour, maxlen int) *Observer {

	o := &Observer{
		environment:   environment,
		adapter:       adapter,
		table:         table,
		store:         store,
		db:            db,
		checksPerHour: checksPerHour,
		stats:         map[string]*ServiceStatistics{},
		stopCh:        make(chan struct{}),
		logger:        log.WithComponent("observer").With().Str("environment", environment).Logger(),
	}
	for _, service := range types.ManagedServices {
		ring := NewServiceStatistics(environment, service, maxlen)
		if db != nil {
			if err := ring.Restore(db); err != nil {
				o.logger.Warn().Err(err).Str("service", service).Msg("statistics restore failed")
			}
		}
		o.stats[service] = ring
	}
	return o
}

// Statistics returns the ring of a service, nil for unmanaged names.
func (o *Observer) Statistics(service string) *ServiceStatistics {
	return o.stats[service]
}

// Start begins the sampling loop
func (o *Observer) Start() {
	o.stopped.Add(1)
	go o.run()
	o.logger.Info().Msg("observer started")
}

// Stop halts the loop
func (o *Observer) Stop() {
	close(o.stopCh)
	o.stopped.Wait()
	o.logger.Info().Msg("observer stopped")
}

func (o *Observer) run() {
	defer o.stopped.Done()
	ticker := time.NewTicker(o.table.TickInterval(o.checksPerHour))
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			o.SampleOnce()
		case <-o.stopCh:
			return
		}
	}
}

// SampleOnce takes one sample per managed service. Exported for tests.
func (o *Observer) SampleOnce() {
	start := time.Now()
	defer func() {
		metrics.LoopDuration.WithLabelValues("observer").Observe(time.Since(start).Seconds())
	}()

	now := time.Now()
	for _, service := range types.ManagedServices {
		if err := o.sampleService(now, service); err != nil {
			o.logger.Error().Err(err).Str("service", service).Msg("sampling failed")
		}
	}
	if err := o.sampleEntities(); err != nil {
		o.logger.Error().Err(err).Msg("entity gauge refresh failed")
	}
}

// sampleEntities refreshes the store-wide entity gauges.
func (o *Observer) sampleEntities() error {
	users, err := o.store.CountUsers(nil)
	if err != nil {
		return err
	}
	metrics.UsersTotal.Set(float64(users))

	profiles, err := o.store.CountProfiles(nil)
	if err != nil {
		return err
	}
	metrics.ProfilesTotal.Set(float64(profiles))

	for _, status := range []types.MediaStatus{types.MediaPending, types.MediaReady, types.MediaDeleted} {
		n, err := o.store.CountMedias(storage.Spec{"status": string(status)})
		if err != nil {
			return err
		}
		metrics.MediasTotal.WithLabelValues(string(status)).Set(float64(n))
	}
	return nil
}

func (o *Observer) sampleService(now time.Time, service string) error {
	ctx, cancel := context.WithTimeout(context.Background(), observeTimeout)
	defer cancel()

	sample := Sample{
		Time:    now.UTC().Format(types.TimestampFormat),
		Planned: o.table.Lookup(now, service),
		Units:   map[string]int{},
		Tasks:   map[string]int{},
	}

	units, err := o.adapter.Units(ctx, service)
	if err != nil {
		return err
	}
	for _, unit := range units {
		state := string(unit.State)
		switch unit.State {
		case types.UnitStarted, types.UnitPending, types.UnitError:
		default:
			state = string(types.UnitUnknown)
		}
		sample.Units[state]++
	}

	tasks, err := o.taskCounts(service)
	if err != nil {
		return err
	}
	sample.Tasks = tasks

	ring := o.stats[service]
	ring.Append(sample)
	if o.db != nil {
		if err := ring.Persist(o.db); err != nil {
			o.logger.Warn().Err(err).Str("service", service).Msg("statistics persistence failed")
		}
	}

	for state, n := range sample.Units {
		metrics.UnitsCurrent.WithLabelValues(o.environment, service, state).Set(float64(n))
	}
	for status, n := range sample.Tasks {
		metrics.TasksTotal.WithLabelValues(service, status).Set(float64(n))
	}
	return nil
}

// taskCounts tallies the live task statuses feeding a service's queue.
func (o *Observer) taskCounts(service string) (map[string]int, error) {
	statuses := []types.TaskStatus{types.TaskPending, types.TaskProgress, types.TaskSuccess}
	counts := map[string]int{}
	for _, status := range statuses {
		var (
			n   int64
			err error
		)
		spec := storage.Spec{"status": string(status)}
		if service == types.ServiceTransform {
			n, err = o.store.CountTransformTasks(spec)
		} else {
			n, err = o.store.CountPublisherTasks(spec)
		}
		if err != nil {
			return nil, err
		}
		counts[string(status)] = int(n)
	}
	return counts, nil
}
