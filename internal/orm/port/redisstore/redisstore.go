// Package redisstore implements the persistence port on Redis. Each table is
// a hash of primary key to JSON row. Writes are queued in a MULTI/EXEC
// pipeline and mirrored in a local overlay so reads see them before Commit.
package redisstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/conduit-lang/recordkit/internal/orm/port"
	"github.com/conduit-lang/recordkit/internal/orm/schema"
)

// Config holds Redis connection settings
type Config struct {
	// Addr is the Redis server address (host:port)
	Addr string
	// Password is the Redis password (optional)
	Password string
	// DB is the Redis database number
	DB int
	// Prefix is prepended to every key the store writes
	Prefix string
}

// DefaultConfig returns a default Redis configuration
func DefaultConfig() Config {
	return Config{
		Addr:   "localhost:6379",
		Prefix: "recordkit:",
	}
}

// Store is a Redis backed port.Store
type Store struct {
	client *redis.Client
	prefix string
	logger *zap.Logger

	mu      sync.Mutex
	pipe    redis.Pipeliner
	overlay map[string]map[string]*string
}

// NewWithConfig connects to Redis and verifies the connection
func NewWithConfig(config Config, logger *zap.Logger) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", config.Addr, err)
	}
	return NewWithClient(client, config.Prefix, logger), nil
}

// NewWithClient creates a store on an existing client
func NewWithClient(client *redis.Client, prefix string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		client:  client,
		prefix:  prefix,
		logger:  logger,
		overlay: make(map[string]map[string]*string),
	}
}

// Close discards pending writes and closes the client
func (s *Store) Close() error {
	s.discard()
	return s.client.Close()
}

// Port returns the port for rs
func (s *Store) Port(rs *schema.RecordSchema) port.Port {
	return &Port{store: s, schema: rs, key: s.prefix + rs.Table}
}

// pending returns the overlay value of field in hash key
func (s *Store) pending(key, field string) (*string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fields, ok := s.overlay[key]
	if !ok {
		return nil, false
	}
	v, ok := fields[field]
	return v, ok
}

// stage queues a write. A nil value deletes the field.
func (s *Store) stage(ctx context.Context, key, field string, value *string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pipe == nil {
		s.pipe = s.client.TxPipeline()
	}
	if value == nil {
		s.pipe.HDel(ctx, key, field)
	} else {
		s.pipe.HSet(ctx, key, field, *value)
	}

	fields, ok := s.overlay[key]
	if !ok {
		fields = make(map[string]*string)
		s.overlay[key] = fields
	}
	fields[field] = value
}

func (s *Store) exec(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pipe := s.pipe
	s.pipe = nil
	s.overlay = make(map[string]map[string]*string)
	if pipe == nil || pipe.Len() == 0 {
		return nil
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis commit failed: %w", err)
	}
	return nil
}

func (s *Store) discard() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pipe != nil {
		s.pipe.Discard()
	}
	s.pipe = nil
	s.overlay = make(map[string]map[string]*string)
}

// Port is the per record type view of a Store
type Port struct {
	store  *Store
	schema *schema.RecordSchema
	key    string
}

func (p *Port) decode(data string) (port.Row, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.UseNumber()
	var row port.Row
	if err := dec.Decode(&row); err != nil {
		return nil, fmt.Errorf("decode %s row: %w", p.schema.Table, err)
	}
	return port.Clean(p.schema, row), nil
}

// load returns the raw JSON of the row with key field
func (p *Port) load(ctx context.Context, field string) (string, bool, error) {
	if v, ok := p.store.pending(p.key, field); ok {
		if v == nil {
			return "", false, nil
		}
		return *v, true, nil
	}

	data, err := p.store.client.HGet(ctx, p.key, field).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return data, true, nil
}

// Select returns the row with primary key id
func (p *Port) Select(ctx context.Context, id interface{}) ([]port.Row, error) {
	data, ok, err := p.load(ctx, port.Key(id))
	if err != nil || !ok {
		return nil, err
	}
	row, err := p.decode(data)
	if err != nil {
		return nil, err
	}
	return []port.Row{row}, nil
}

// Query returns the rows matching the filter of q ordered by q.OrderBy, then
// by primary key
func (p *Port) Query(ctx context.Context, q port.Query) ([]port.Row, error) {
	if q.IsRaw() {
		return nil, fmt.Errorf("%w: redisstore cannot run SQL", port.ErrUnsupportedQuery)
	}
	if err := q.Check(p.schema); err != nil {
		return nil, err
	}

	all, err := p.store.client.HGetAll(ctx, p.key).Result()
	if err != nil {
		return nil, err
	}

	p.store.mu.Lock()
	for field, v := range p.store.overlay[p.key] {
		if v == nil {
			delete(all, field)
		} else {
			all[field] = *v
		}
	}
	p.store.mu.Unlock()

	rows := make([]port.Row, 0, len(all))
	for _, data := range all {
		row, err := p.decode(data)
		if err != nil {
			return nil, err
		}
		if port.Match(row, q.Filter) {
			rows = append(rows, row)
		}
	}
	order := append(append([]string(nil), q.OrderBy...), p.schema.PrimaryKey)
	port.SortRows(rows, order)
	return rows, nil
}

// Insert stores row. Rows without a primary key get the next value of the
// table's INCR sequence.
func (p *Port) Insert(ctx context.Context, row port.Row) (interface{}, error) {
	r := row.Copy()
	pk := p.schema.PrimaryKey

	id, ok := r[pk]
	if !ok || id == nil {
		n, err := p.store.client.Incr(ctx, p.key+":seq").Result()
		if err != nil {
			return nil, fmt.Errorf("insert %s: %w", p.schema.Table, err)
		}
		id = n
		r[pk] = id
	} else {
		_, exists, err := p.load(ctx, port.Key(id))
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, fmt.Errorf("insert into %s: duplicate primary key %v", p.schema.Table, id)
		}
	}

	if err := p.write(ctx, r); err != nil {
		return nil, err
	}
	p.store.logger.Debug("insert", zap.String("table", p.schema.Table), zap.Any("id", id))
	return id, nil
}

// Update merges row into the row identified by id
func (p *Port) Update(ctx context.Context, row port.Row, id interface{}) error {
	rows, err := p.Select(ctx, id)
	if err != nil || len(rows) == 0 {
		return err
	}
	existing := rows[0]
	for k, v := range row {
		existing[k] = v
	}
	p.store.logger.Debug("update", zap.String("table", p.schema.Table), zap.Any("id", id))
	return p.write(ctx, existing)
}

// Delete removes the row identified by id
func (p *Port) Delete(ctx context.Context, id interface{}) error {
	p.store.stage(ctx, p.key, port.Key(id), nil)
	p.store.logger.Debug("delete", zap.String("table", p.schema.Table), zap.Any("id", id))
	return nil
}

func (p *Port) write(ctx context.Context, row port.Row) error {
	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("encode %s row: %w", p.schema.Table, err)
	}
	s := string(data)
	p.store.stage(ctx, p.key, port.Key(row[p.schema.PrimaryKey]), &s)
	return nil
}

// Commit runs the queued writes in one MULTI/EXEC block
func (p *Port) Commit(ctx context.Context) error {
	return p.store.exec(ctx)
}

// Rollback discards the queued writes
func (p *Port) Rollback(ctx context.Context) error {
	p.store.discard()
	return nil
}
