package commands

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"go.uber.org/zap"

	// database/sql drivers selectable through store.driver
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/conduit-lang/recordkit/internal/auth"
	"github.com/conduit-lang/recordkit/internal/cli/config"
	"github.com/conduit-lang/recordkit/internal/cli/ui"
	"github.com/conduit-lang/recordkit/internal/logging"
	"github.com/conduit-lang/recordkit/internal/orm/port"
	"github.com/conduit-lang/recordkit/internal/orm/port/memstore"
	"github.com/conduit-lang/recordkit/internal/orm/port/redisstore"
	"github.com/conduit-lang/recordkit/internal/orm/port/sqlstore"
	"github.com/conduit-lang/recordkit/internal/orm/record"
	"github.com/conduit-lang/recordkit/internal/orm/schema"
)

// unknownRecordError is returned for a record name the schema does not declare
type unknownRecordError struct {
	name        string
	suggestions []string
}

func (e *unknownRecordError) Error() string {
	return fmt.Sprintf("unknown record %q", e.name)
}

// notFoundError is returned when no row has the requested id
type notFoundError struct {
	record string
	id     interface{}
}

func (e *notFoundError) Error() string {
	return fmt.Sprintf("%s %v not found", e.record, e.id)
}

// configError wraps failures to load the configuration
type configError struct {
	err error
}

func (e *configError) Error() string { return e.err.Error() }
func (e *configError) Unwrap() error { return e.err }

// session is everything a record command needs: the loaded schema, an open
// store and a logger
type session struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *schema.Registry
	store    port.Store
	closer   func() error
}

func loadConfig(g *globalOptions) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if g.configFile != "" {
		cfg, err = config.LoadFile(g.configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, &configError{err}
	}
	if g.schemaFile != "" {
		cfg.Schema = g.schemaFile
		cfg.File = ""
	}
	return cfg, nil
}

// openSchema loads the configuration and the schema without touching a store
func openSchema(g *globalOptions) (*config.Config, *schema.Registry, error) {
	cfg, err := loadConfig(g)
	if err != nil {
		return nil, nil, err
	}
	registry, err := schema.LoadFile(cfg.SchemaPath())
	if err != nil {
		return nil, nil, err
	}
	return cfg, registry, nil
}

func openSession(g *globalOptions) (*session, error) {
	cfg, registry, err := openSchema(g)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Logging())
	if err != nil {
		return nil, &configError{err}
	}

	store, closer, err := openStore(cfg, logger)
	if err != nil {
		return nil, err
	}
	logger.Debug("session opened",
		zap.String("driver", cfg.Store.Driver),
		zap.String("schema", cfg.SchemaPath()),
		zap.Int("records", registry.Count()),
	)
	return &session{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		store:    store,
		closer:   closer,
	}, nil
}

func openStore(cfg *config.Config, logger *zap.Logger) (port.Store, func() error, error) {
	switch cfg.Store.Driver {
	case "memory":
		return memstore.New(logger), func() error { return nil }, nil
	case "redis":
		st, err := redisstore.NewWithConfig(cfg.RedisOptions(), logger)
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil
	default:
		st, err := sqlstore.Open(cfg.Store.Driver, cfg.Store.URL, sqlstore.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil
	}
}

// Close releases the store
func (s *session) Close() error {
	_ = s.logger.Sync()
	return s.closer()
}

// options returns the record options binding new records to the session
func (s *session) options() []record.Option {
	return []record.Option{
		record.WithStore(s.store),
		record.WithLogger(s.logger),
		record.WithHasher(auth.HashPassword),
	}
}

// lookup resolves a record name, suggesting close matches when it is unknown
func lookup(registry *schema.Registry, name string) (*schema.RecordSchema, error) {
	rs, ok := registry.Get(name)
	if !ok {
		return nil, &unknownRecordError{
			name:        name,
			suggestions: ui.Suggest(name, registry.List(), 2),
		}
	}
	return rs, nil
}

// parseID converts a command-line id to the type of the primary key
func parseID(rs *schema.RecordSchema, arg string) (interface{}, error) {
	pk := rs.PrimaryKeyField()
	switch pk.Kind {
	case schema.KindInteger:
		n, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s.%s is an integer, got %q", rs.Name, pk.Name, arg)
		}
		return n, nil
	case schema.KindNumber:
		f, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return nil, fmt.Errorf("%s.%s is a number, got %q", rs.Name, pk.Name, arg)
		}
		return f, nil
	default:
		return port.Normalize(pk, arg), nil
	}
}

// readInput reads a file argument, "-" meaning stdin
func readInput(stdin io.Reader, arg string) ([]byte, error) {
	if arg == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(arg)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return data, nil
}
