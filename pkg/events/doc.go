// Package events provides in-process publish/subscribe for orchestrator
// events. Delivery is best effort: a subscriber that stops draining its
// channel loses events instead of blocking the publisher.
package events
