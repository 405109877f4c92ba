package logger

import (
	"context"
	"fmt"
	"hash/fnv"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Publisher ships a batch of collected logs, e.g. to a Kafka topic.
type Publisher interface {
	PublishMessage(ctx context.Context, topic string, payload interface{}) error
}

type CollectionConfig struct {
	TimeInterval   time.Duration // flush interval
	CountThreshold int           // flush once this many distinct entries are pending
	MinLevel       string        // lowest collected level, default "warn"
	Topic          string
	Service        string // stamped on every batch
	Publisher      Publisher
	OnError        func(error) // called when a batch cannot be published
}

// LogBatch is the payload published on every flush.
type LogBatch struct {
	Service string               `json:"service"`
	SentAt  time.Time            `json:"sent_at"`
	Entries []AggregatedLogEntry `json:"entries"`
}

// AggregatedLogEntry is one distinct (level, message, caller, fields) tuple
// and how often it was seen since the last flush.
type AggregatedLogEntry struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	Caller    string                 `json:"caller"`
	Count     int                    `json:"count"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
}

// LogCollector deduplicates warn and error logs and publishes them in
// batches, so a flapping dependency produces one entry with a count instead
// of thousands of messages.
type LogCollector struct {
	config  *CollectionConfig
	level   zerolog.Level
	mu      sync.Mutex
	pending map[uint64]*AggregatedLogEntry
	now     func() time.Time
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewLogCollector(config *CollectionConfig) *LogCollector {
	level, err := zerolog.ParseLevel(config.MinLevel)
	if err != nil || config.MinLevel == "" {
		level = zerolog.WarnLevel
	}
	interval := config.TimeInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &LogCollector{
		config:  config,
		level:   level,
		pending: make(map[uint64]*AggregatedLogEntry),
		now:     time.Now,
		cancel:  cancel,
	}
	c.wg.Add(1)
	go c.run(ctx, interval)
	return c
}

func (c *LogCollector) minLevel() zerolog.Level { return c.level }

func (c *LogCollector) collect(level, msg string, fields []Field, skip int) {
	caller := "unknown"
	if _, file, line, ok := runtime.Caller(skip); ok {
		caller = fmt.Sprintf("%s/%s:%d", filepath.Base(filepath.Dir(file)), filepath.Base(file), line)
	}
	var fm map[string]interface{}
	if len(fields) > 0 {
		fm = make(map[string]interface{}, len(fields))
		for _, f := range fields {
			fm[f.Key] = f.Value
		}
	}
	c.AddLog(level, msg, fm, caller)
}

// AddLog records one occurrence.
func (c *LogCollector) AddLog(level, message string, fields map[string]interface{}, caller string) {
	now := c.now()
	key := entryKey(level, message, fields, caller)

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.pending[key]; ok {
		e.Count++
		e.LastSeen = now
	} else {
		c.pending[key] = &AggregatedLogEntry{
			Level:     level,
			Message:   message,
			Fields:    fields,
			Caller:    caller,
			Count:     1,
			FirstSeen: now,
			LastSeen:  now,
		}
	}
	if c.config.CountThreshold > 0 && len(c.pending) >= c.config.CountThreshold {
		c.flushLocked()
	}
}

// entryKey hashes the fields in key order so map iteration order does not matter.
func entryKey(level, message string, fields map[string]interface{}, caller string) uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s\x00%s\x00%s", level, message, caller)
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(h, "\x00%s=%v", k, fields[k])
	}
	return h.Sum64()
}

func (c *LogCollector) run(ctx context.Context, interval time.Duration) {
	defer c.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.Flush()
		case <-ctx.Done():
			c.Flush()
			return
		}
	}
}

// Flush publishes whatever is pending.
func (c *LogCollector) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushLocked()
}

func (c *LogCollector) flushLocked() {
	if len(c.pending) == 0 {
		return
	}
	entries := make([]AggregatedLogEntry, 0, len(c.pending))
	for _, e := range c.pending {
		entries = append(entries, *e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].FirstSeen.Before(entries[j].FirstSeen) })
	c.pending = make(map[uint64]*AggregatedLogEntry)

	if c.config.Publisher == nil {
		return
	}
	batch := LogBatch{Service: c.config.Service, SentAt: c.now().UTC(), Entries: entries}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.config.Publisher.PublishMessage(ctx, c.config.Topic, batch); err != nil && c.config.OnError != nil {
			c.config.OnError(fmt.Errorf("publish aggregated logs: %w", err))
		}
	}()
}

// Close flushes pending entries and waits for in-flight publishes.
func (c *LogCollector) Close() {
	c.cancel()
	c.wg.Wait()
}
