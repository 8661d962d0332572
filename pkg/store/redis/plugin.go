package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/osvaldoandrade/agentq/pkg/domain"
	"github.com/osvaldoandrade/agentq/pkg/store"

	"github.com/go-redis/redis/v8"
)

const keyPrefix = "agentq:job:"

// Config holds Redis-specific configuration
type Config struct {
	Addr     string `json:"addr"`
	Password string `json:"password,omitempty"`
	// TTLSeconds bounds how long terminal job records are retained; 0 keeps
	// them until the key space is flushed.
	TTLSeconds int `json:"ttlSeconds,omitempty"`
}

// Plugin implements JobStore on Redis/KVRocks. Job records are stored as one
// JSON blob per id; the single-writer model makes read-modify-write cycles
// unnecessary on the server side.
type Plugin struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPlugin creates a new Redis job store
func NewPlugin(config store.PluginConfig) (store.JobStore, error) {
	var cfg Config
	if err := json.Unmarshal(config.Config, &cfg); err != nil {
		return nil, err
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
	})

	return &Plugin{
		client: client,
		ttl:    time.Duration(cfg.TTLSeconds) * time.Second,
	}, nil
}

func init() {
	store.RegisterProvider("redis", NewPlugin)
}

func (p *Plugin) Create(ctx context.Context, job *domain.Job) error {
	b, err := json.Marshal(job)
	if err != nil {
		return err
	}
	ok, err := p.client.SetNX(ctx, keyPrefix+job.ID, b, p.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return store.ErrAlreadyExists
	}
	return nil
}

func (p *Plugin) Get(ctx context.Context, id string) (*domain.Job, error) {
	b, err := p.client.Get(ctx, keyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var job domain.Job
	if err := json.Unmarshal(b, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (p *Plugin) Update(ctx context.Context, job *domain.Job) error {
	b, err := json.Marshal(job)
	if err != nil {
		return err
	}
	ok, err := p.client.SetXX(ctx, keyPrefix+job.ID, b, p.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return store.ErrNotFound
	}
	return nil
}

// Health checks if Redis is healthy
func (p *Plugin) Health(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// Close releases the Redis connection
func (p *Plugin) Close() error {
	return p.client.Close()
}
