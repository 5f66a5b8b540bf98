package capacity

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/oscied/orchestra/pkg/cluster"
	"github.com/oscied/orchestra/pkg/events"
	"github.com/oscied/orchestra/pkg/log"
	"github.com/oscied/orchestra/pkg/metrics"
	"github.com/oscied/orchestra/pkg/types"
)

const reconcileTimeout = 10 * time.Second

// Controller reconciles one environment's worker capacity against its
// events table. At most one reconciliation runs at a time; a tick arriving
// while the previous one still works is skipped.
type Controller struct {
	environment   string
	adapter       cluster.Adapter
	table         *EventsTable
	checksPerHour int
	events        *events.Broker

	// resolved remembers which errored units already got their one hint,
	// re-armed when the unit leaves the error state.
	resolved map[string]bool

	mu      sync.Mutex
	stopCh  chan struct{}
	stopped sync.WaitGroup
	logger  zerolog.Logger
}

// NewController creates a controller for one environment. A nil broker
// disables event publication.
func NewController(environment string, adapter cluster.Adapter, table *EventsTable,
	checksPerHour int, evs *events.Broker) *Controller {

	return &Controller{
		environment:   environment,
		adapter:       adapter,
		table:         table,
		checksPerHour: checksPerHour,
		events:        evs,
		resolved:      map[string]bool{},
		stopCh:        make(chan struct{}),
		logger:        log.WithComponent("capacity").With().Str("environment", environment).Logger(),
	}
}

// Start begins the reconciliation loop
func (c *Controller) Start() {
	c.stopped.Add(1)
	go c.run()
	c.logger.Info().Msg("capacity controller started")
}

// Stop halts the loop and waits for the current reconciliation
func (c *Controller) Stop() {
	close(c.stopCh)
	c.stopped.Wait()
	c.logger.Info().Msg("capacity controller stopped")
}

func (c *Controller) run() {
	defer c.stopped.Done()
	ticker := time.NewTicker(c.table.TickInterval(c.checksPerHour))
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.ReconcileOnce()
		case <-c.stopCh:
			return
		}
	}
}

// ReconcileOnce runs a single reconciliation pass. Exported for the tests
// and for the serve command's initial convergence.
func (c *Controller) ReconcileOnce() {
	if !c.mu.TryLock() {
		c.logger.Debug().Msg("previous reconciliation still running, tick skipped")
		return
	}
	defer c.mu.Unlock()

	start := time.Now()
	defer func() {
		metrics.LoopDuration.WithLabelValues("capacity").Observe(time.Since(start).Seconds())
	}()

	now := time.Now()
	for _, service := range types.ManagedServices {
		if err := c.reconcileService(now, service); err != nil {
			c.logger.Error().Err(err).Str("service", service).Msg("reconciliation failed")
		}
	}
}

func (c *Controller) reconcileService(now time.Time, service string) error {
	desired := c.table.Lookup(now, service)
	metrics.UnitsPlanned.WithLabelValues(c.environment, service).Set(float64(desired))

	ctx, cancel := context.WithTimeout(context.Background(), reconcileTimeout)
	defer cancel()

	units, err := c.adapter.Units(ctx, service)
	if err != nil {
		return err
	}

	if len(units) != desired {
		c.logger.Info().Str("service", service).
			Int("current", len(units)).Int("desired", desired).Msg("scaling service")
		if err := c.adapter.EnsureNumUnits(ctx, service, desired); err != nil {
			return err
		}
		c.publishEvent(events.EventUnitsScaled, "service capacity scaled", map[string]string{
			"environment": c.environment,
			"service":     service,
			"desired":     strconv.Itoa(desired),
		})
	}

	for number, unit := range units {
		key := fmt.Sprintf("%s/%d", service, number)
		if unit.State.Errored() {
			if !c.resolved[key] {
				if err := c.adapter.Resolved(ctx, service, number); err != nil {
					c.logger.Warn().Err(err).Str("unit", key).Msg("resolved hint failed")
					continue
				}
				c.resolved[key] = true
				metrics.UnitsResolved.WithLabelValues(c.environment, service).Inc()
				c.logger.Info().Str("unit", key).Msg("resolved hint sent to errored unit")
				c.publishEvent(events.EventUnitResolved, "resolved hint sent to errored unit", map[string]string{
					"environment": c.environment,
					"unit":        key,
				})
			}
		} else {
			delete(c.resolved, key)
		}
	}
	return nil
}

func (c *Controller) publishEvent(eventType events.EventType, message string, metadata map[string]string) {
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
