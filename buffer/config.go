package buffer

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"
)

// Config retrieves the config values used by Buffer. If these values are
// constant, NewConstantConfig can be used to create an implementation
// of the interface.
//
// Buffer calls Get on every Receive and Tick, so an implementation that
// changes its values at runtime takes effect on the next call.
type Config interface {
	// Get returns the values for configuration.
	//
	// If the config values may be modified while the buffer is in use, Get
	// must properly handle concurrency issues.
	Get() ConfigValues
}

// ConfigValues is a struct that contains the Buffer config values.
type ConfigValues struct {
	// Capacity is the maximum number of items held by the buffer. Receive
	// blocks while the buffer holds Capacity items.
	//
	// If the capacity is lowered below the current number of buffered
	// items, the size trigger fires on the next Tick.
	Capacity int `json:"capacity" mapstructure:"capacity"`

	// MaxWait is the longest an item waits before the batch holding it is
	// flushed. The clock starts when the first item enters an empty buffer.
	MaxWait time.Duration `json:"maxWait" mapstructure:"max_wait"`

	// FlushFraction is the fraction of Capacity which, once only that many
	// slots remain free, triggers a flush. It must be in (0, 1].
	FlushFraction float64 `json:"flushFraction" mapstructure:"flush_fraction"`

	// ReceiveTimeout bounds how long Receive waits for space in a full
	// buffer. Zero means wait until space is available.
	ReceiveTimeout time.Duration `json:"receiveTimeout" mapstructure:"receive_timeout"`
}

// Validate reports whether the values are usable. Zero values are valid and
// mean "use the default".
func (c ConfigValues) Validate() error {
	switch {
	case c.Capacity < 0:
		return errors.New("capacity cannot be negative")
	case c.MaxWait < 0:
		return errors.New("max wait cannot be negative")
	case c.FlushFraction < 0 || c.FlushFraction > 1:
		return fmt.Errorf("flush fraction must be within [0, 1], got %v", c.FlushFraction)
	case c.ReceiveTimeout < 0:
		return errors.New("receive timeout cannot be negative")
	}
	return nil
}

// flushThreshold returns the number of free slots at or below which the size
// trigger fires. The small epsilon keeps products such as 0.07*100 from
// rounding up past the intended integer.
func (c ConfigValues) flushThreshold() int {
	return int(math.Ceil(c.FlushFraction*float64(c.Capacity) - 1e-9))
}

// fixConfig replaces zero or out-of-range values with the defaults.
func fixConfig(c ConfigValues) ConfigValues {
	if c.Capacity <= 0 {
		c.Capacity = DefaultCapacity
	}
	if c.MaxWait <= 0 {
		c.MaxWait = DefaultMaxWait
	}
	if c.FlushFraction <= 0 || c.FlushFraction > 1 {
		c.FlushFraction = DefaultFlushFraction
	}
	if c.ReceiveTimeout < 0 {
		c.ReceiveTimeout = 0
	}
	return c
}

// NewConstantConfig returns a Config with constant values. If values
// is nil, the default values are used.
func NewConstantConfig(values *ConfigValues) *ConstantConfig {
	if values == nil {
		return &ConstantConfig{}
	}

	return &ConstantConfig{
		values: *values,
	}
}

// ConstantConfig is a Config with constant values. Create one with
// NewConstantConfig.
type ConstantConfig struct {
	values ConfigValues
}

// Get implements the Config interface.
func (b *ConstantConfig) Get() ConfigValues {
	return b.values
}

// NewDynamicConfig creates a configuration that can be adjusted at runtime.
// It is thread-safe. If values is nil, the default values are used.
//
// This is useful for services that tune the flush window or capacity in
// response to sink latency.
func NewDynamicConfig(values *ConfigValues) *DynamicConfig {
	if values == nil {
		return &DynamicConfig{}
	}

	return &DynamicConfig{
		values: *values,
	}
}

// DynamicConfig implements the Config interface with values that can be
// modified at runtime.
type DynamicConfig struct {
	mu     sync.RWMutex
	values ConfigValues
}

// Get implements the Config interface.
func (c *DynamicConfig) Get() ConfigValues {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.values
}

// UpdateCapacity updates the capacity and flush fraction.
//
// Buffered items are never evicted. If capacity is lowered below the number
// of items already buffered, the buffer holds more than capacity until the
// next Tick flushes it, and Receive blocks until then.
func (c *DynamicConfig) UpdateCapacity(capacity int, flushFraction float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values.Capacity = capacity
	c.values.FlushFraction = flushFraction
}

// UpdateTiming updates the flush deadline and the receive timeout.
func (c *DynamicConfig) UpdateTiming(maxWait, receiveTimeout time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values.MaxWait = maxWait
	c.values.ReceiveTimeout = receiveTimeout
}

// Update replaces all configuration values at once.
func (c *DynamicConfig) Update(values ConfigValues) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values = values
}
