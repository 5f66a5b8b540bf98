package observer

import (
	"encoding/json"

	bolt "go.etcd.io/bbolt"

	"github.com/oscied/orchestra/pkg/types"
)

// Sample is one observation of a service in an environment.
type Sample struct {
	Time    string         `json:"time"`
	Planned int            `json:"planned"`
	Units   map[string]int `json:"units"`
	Tasks   map[string]int `json:"tasks"`
}

// ServiceStatistics is a bounded ring of samples for one (environment,
// service) pair. Appending past the limit drops the oldest samples.
type ServiceStatistics struct {
	Environment string   `json:"environment"`
	Service     string   `json:"service"`
	Maxlen      int      `json:"maxlen"`
	Samples     []Sample `json:"samples"`
}

// NewServiceStatistics creates an empty ring
func NewServiceStatistics(environment, service string, maxlen int) *ServiceStatistics {
	if maxlen <= 0 {
		maxlen = 1
	}
	return &ServiceStatistics{Environment: environment, Service: service, Maxlen: maxlen}
}

// Append adds a sample, truncating the ring to its limit.
func (s *ServiceStatistics) Append(sample Sample) {
	s.Samples = append(s.Samples, sample)
	if len(s.Samples) > s.Maxlen {
		s.Samples = s.Samples[len(s.Samples)-s.Maxlen:]
	}
}

// Latest returns the newest sample, nil when empty.
func (s *ServiceStatistics) Latest() *Sample {
	if len(s.Samples) == 0 {
		return nil
	}
	return &s.Samples[len(s.Samples)-1]
}

func (s *ServiceStatistics) bucket() []byte {
	return []byte(s.Environment + "/" + s.Service)
}

var samplesKey = []byte("samples")

// Persist writes the ring into its bucket of the statistics database.
func (s *ServiceStatistics) Persist(db *bolt.DB) error {
	raw, err := json.Marshal(s.Samples)
	if err != nil {
		return types.Wrap(types.ErrTransient, "encode statistics", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(s.bucket())
		if err != nil {
			return err
		}
		return bucket.Put(samplesKey, raw)
	})
	if err != nil {
		return types.Wrap(types.ErrTransient, "persist statistics", err)
	}
	return nil
}

// Restore loads the ring from the statistics database, keeping the ring
// empty when nothing was persisted yet.
func (s *ServiceStatistics) Restore(db *bolt.DB) error {
	err := db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(s.bucket())
		if bucket == nil {
			return nil
		}
		raw := bucket.Get(samplesKey)
		if raw == nil {
			return nil
		}
		return json.Unmarshal(raw, &s.Samples)
	})
	if err != nil {
		return types.Wrap(types.ErrTransient, "restore statistics", err)
	}
	if len(s.Samples) > s.Maxlen {
		s.Samples = s.Samples[len(s.Samples)-s.Maxlen:]
	}
	return nil
}
