// Package mongodriver exposes a core.Engine through database/sql. Each
// statement text is a YAML or JSON relational statement; it is translated
// to a MongoDB command and run with RunCommand or RunCommandCursor.
package mongodriver

import (
	"context"
	"database/sql/driver"
	"errors"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/qbloq/mongobridge/core"
)

const tracerName = "github.com/qbloq/mongobridge/mongodriver"

// Connector implements driver.Connector over a shared mongo.Client.
type Connector struct {
	client *mongo.Client
	db     *mongo.Database
	engine *core.Engine
	log    *zap.Logger
	tracer trace.Tracer
}

type Option func(*Connector)

// WithLogger sets the logger used for command execution.
func WithLogger(log *zap.Logger) Option {
	return func(c *Connector) {
		if log != nil {
			c.log = log
		}
	}
}

// WithTracerProvider sets the provider spans are started from, the
// global provider by default.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Connector) {
		if tp != nil {
			c.tracer = tp.Tracer(tracerName)
		}
	}
}

// NewConnector returns a connector running translated commands against
// database dbName. Use it with sql.OpenDB.
func NewConnector(client *mongo.Client, dbName string, engine *core.Engine, opts ...Option) (*Connector, error) {
	if client == nil {
		return nil, errors.New("mongodriver: client is nil")
	}
	if engine == nil {
		return nil, errors.New("mongodriver: engine is nil")
	}
	if dbName == "" {
		return nil, errors.New("mongodriver: database name is required")
	}

	c := &Connector{
		client: client,
		db:     client.Database(dbName),
		engine: engine,
		log:    zap.NewNop(),
		tracer: otel.Tracer(tracerName),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Connect returns a connection. Connections share the client pool.
func (c *Connector) Connect(ctx context.Context) (driver.Conn, error) {
	return &Conn{connector: c, db: c.db, client: c.client}, nil
}

// Driver returns the driver.
func (c *Connector) Driver() driver.Driver {
	return Driver{}
}

// Driver implements driver.Driver. Connections can only be made
// through a Connector, opening by name is not supported.
type Driver struct{}

func (Driver) Open(name string) (driver.Conn, error) {
	return nil, errors.New("mongodriver: use sql.OpenDB with a Connector")
}
