package record

import (
	"go.uber.org/zap"

	"github.com/conduit-lang/recordkit/internal/orm/port"
	"github.com/conduit-lang/recordkit/internal/orm/validation"
)

type options struct {
	store     port.Store
	id        interface{}
	logger    *zap.Logger
	validator *validation.Validator
}

func buildOptions(opts []Option) options {
	o := options{
		logger:    zap.NewNop(),
		validator: validation.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Option configures a Record or Collection
type Option func(*options)

// WithStore binds the record to a persistence store
func WithStore(store port.Store) Option {
	return func(o *options) { o.store = store }
}

// WithID sets the primary key of a record that already exists in the store.
// Collections ignore it.
func WithID(id interface{}) Option {
	return func(o *options) { o.id = id }
}

// WithLogger sets the logger for store operations
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithValidator replaces the default validator
func WithValidator(v *validation.Validator) Option {
	return func(o *options) {
		if v != nil {
			o.validator = v
		}
	}
}

// WithHasher sets the function that hashes plain text passwords
func WithHasher(hash validation.HashFunc) Option {
	return func(o *options) { o.validator = validation.New(hash) }
}
