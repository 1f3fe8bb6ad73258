// Package core translates relational statements against a catalog of
// mapped entities into MongoDB command documents.
//
// An Engine is built once from a Config. It binds and validates the
// catalog up front, so every mapping problem is reported by NewEngine,
// and is then safe for concurrent use.
package core

import (
	"context"
	"fmt"

	"github.com/mitchellh/hashstructure/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/qbloq/mongobridge/core/internal/qcode"
	"github.com/qbloq/mongobridge/core/internal/sdata"
	"github.com/qbloq/mongobridge/core/internal/translate"
)

// Engine is an immutable translator bound to one catalog
type Engine struct {
	conf        *Config
	log         *zap.Logger
	catalog     *sdata.Catalog
	tr          *translate.Translator
	names       NameRenderer
	cache       Cache
	group       singleflight.Group
	fingerprint uint64
}

type Option func(*Engine) error

// OptionSetLogger sets the logger, the default discards everything
func OptionSetLogger(log *zap.Logger) Option {
	return func(e *Engine) error {
		if log == nil {
			return fmt.Errorf("logger is nil")
		}
		e.log = log
		return nil
	}
}

// OptionSetNameRenderer replaces the renderer producing collection and
// field names
func OptionSetNameRenderer(r NameRenderer) Option {
	return func(e *Engine) error {
		if r == nil {
			return fmt.Errorf("name renderer is nil")
		}
		e.names = r
		return nil
	}
}

// NewEngine binds the catalog described by conf. Mapping problems are
// returned as *MappingViolation.
func NewEngine(conf *Config, options ...Option) (*Engine, error) {
	if conf == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{conf: conf, log: zap.NewNop()}
	for _, op := range options {
		if err := op(e); err != nil {
			return nil, err
		}
	}

	cat, err := sdata.NewCatalog(conf.Entities, conf.Embeddables, conf.catalogOptions())
	if err != nil {
		e.log.Debug("catalog rejected", zap.Error(err))
		return nil, err
	}
	e.catalog = cat

	opts := []translate.Option{translate.WithFindCommand(conf.UseFindCommand)}
	if e.names != nil {
		opts = append(opts, translate.WithNameRenderer(e.names))
	}
	e.tr = translate.New(cat, opts...)

	if err := e.initCache(); err != nil {
		return nil, err
	}

	e.fingerprint, err = hashstructure.Hash(struct {
		Entities    []EntityConfig
		Embeddables []EmbeddableConfig
		Structured  bool
	}{conf.Entities, conf.Embeddables, !conf.DisableStructuredArrays}, hashstructure.FormatV2, nil)
	if err != nil {
		return nil, err
	}

	e.log.Debug("catalog bound",
		zap.Strings("entities", cat.EntityNames()),
		zap.Uint64("fingerprint", e.fingerprint),
		zap.Bool("find_command", conf.UseFindCommand))
	return e, nil
}

// Fingerprint identifies the bound catalog. Engines built from equal
// mapping configuration share the same fingerprint.
func (e *Engine) Fingerprint() uint64 {
	return e.fingerprint
}

// Entities returns the mapped entity names in definition order
func (e *Engine) Entities() []string {
	return e.catalog.EntityNames()
}

// Entity looks up a bound entity by its name or collection
func (e *Engine) Entity(name string) (*Entity, bool) {
	return e.catalog.Entity(name)
}

// Prepare parses a YAML or JSON statement. Parsed statements are cached
// by their text and shared, callers must not modify them.
func (e *Engine) Prepare(query string) (*Statement, error) {
	if st, ok := e.cache.Get(query); ok {
		return st, nil
	}

	v, err, _ := e.group.Do(query, func() (any, error) {
		st, err := qcode.ParseStatement([]byte(query))
		if err != nil {
			return nil, err
		}
		e.cache.Set(query, st)
		e.log.Debug("statement prepared",
			zap.Stringer("type", st.Type),
			zap.String("table", st.Table))
		return st, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Statement), nil
}

// Translate builds the command for st, args binding its parameters in
// order: $1 is args[0]. A select with aggregates always yields exactly one
// row, counts are 0 and other aggregates null when nothing matches; its
// pipeline uses $documents inside $unionWith and needs MongoDB 6.0.
func (e *Engine) Translate(st *Statement, args ...any) (*Command, error) {
	cmd, outs, err := e.tr.TranslateWithOutputs(st, args)
	if err != nil {
		return nil, err
	}
	return newCommand(cmd, outs), nil
}

// TranslateQuery prepares and translates a statement text
func (e *Engine) TranslateQuery(query string, args ...any) (*Command, error) {
	st, err := e.Prepare(query)
	if err != nil {
		return nil, err
	}
	return e.Translate(st, args...)
}

// BatchItem is a single statement of a batch, given either as a parsed
// statement or as text.
type BatchItem struct {
	Statement *Statement
	Query     string
	Args      []any
}

// TranslateBatch translates items in parallel. The result keeps the order
// of items; the first error cancels the batch.
func (e *Engine) TranslateBatch(ctx context.Context, items []BatchItem) ([]*Command, error) {
	out := make([]*Command, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.conf.batchConcurrency())

	for i, item := range items {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			st := item.Statement
			if st == nil {
				var err error
				if st, err = e.Prepare(item.Query); err != nil {
					return fmt.Errorf("batch item %d: %w", i, err)
				}
			}
			cmd, err := e.Translate(st, item.Args...)
			if err != nil {
				return fmt.Errorf("batch item %d: %w", i, err)
			}
			out[i] = cmd
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
