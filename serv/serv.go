// Package serv wires a mongobridge engine to a MongoDB deployment from a
// config file: logging, tracing, connection setup and config reloads.
package serv

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/spf13/afero"
	"go.mongodb.org/mongo-driver/v2/mongo"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/qbloq/mongobridge/core"
	"github.com/qbloq/mongobridge/serv/internal/util"
)

var version string

const serverName = "mongobridge"

// Service holds the running service state. Reloads swap the state as a
// whole, readers always see a consistent engine and database handle.
type Service struct {
	atomic.Value
	opts []Option
}

type mbService struct {
	conf   *Config
	log    *zap.SugaredLogger
	zlog   *zap.Logger
	root   *zap.Logger
	level  zap.AtomicLevel
	fs     afero.Fs
	engine *core.Engine
	client *mongo.Client
	db     *sql.DB
	tp     *sdktrace.TracerProvider

	ownClient bool
}

type Option func(*mbService) error

// OptionSetFS sets the filesystem certificates are read from
func OptionSetFS(fs afero.Fs) Option {
	return func(s *mbService) error {
		if fs == nil {
			return fmt.Errorf("filesystem is nil")
		}
		s.fs = fs
		return nil
	}
}

// OptionSetLogger replaces the logger built from the config
func OptionSetLogger(log *zap.Logger) Option {
	return func(s *mbService) error {
		if log == nil {
			return fmt.Errorf("logger is nil")
		}
		s.zlog = log
		s.log = log.Sugar()
		return nil
	}
}

// OptionSetClient uses an already connected client instead of dialing
// the configured database. The client is not disconnected on Close.
func OptionSetClient(client *mongo.Client) Option {
	return func(s *mbService) error {
		if client == nil {
			return fmt.Errorf("client is nil")
		}
		s.client = client
		return nil
	}
}

// NewService builds the engine described by conf. The database is not
// contacted until Connect is called.
func NewService(conf *Config, options ...Option) (*Service, error) {
	s, err := newService(conf, options...)
	if err != nil {
		return nil, err
	}

	s1 := &Service{opts: options}
	s1.Store(s)
	return s1, nil
}

func newService(conf *Config, options ...Option) (*mbService, error) {
	if conf == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	s := &mbService{
		conf:  conf,
		fs:    afero.NewOsFs(),
		level: zap.NewAtomicLevelAt(util.ParseLevel(conf.LogLevel)),
	}

	for _, op := range options {
		if err := op(s); err != nil {
			return nil, err
		}
	}

	if s.zlog == nil {
		s.zlog = util.NewLoggerWithLevel(conf.ShouldUseJSONLogs(), s.level)
	}
	s.root = s.zlog
	s.zlog = s.zlog.Named(conf.AppName)
	s.log = s.zlog.Sugar()

	if conf.EnableTracing {
		s.tp = newTracerProvider(conf, s.zlog)
	}

	opts := []core.Option{core.OptionSetLogger(s.zlog)}
	if conf.CollectionNaming == "plural" {
		opts = append(opts, core.OptionSetNameRenderer(pluralNames{}))
	}

	var err error
	if s.engine, err = core.NewEngine(&conf.Core, opts...); err != nil {
		return nil, err
	}
	return s, nil
}

func (s1 *Service) load() *mbService {
	return s1.Load().(*mbService)
}

// Engine returns the current engine
func (s1 *Service) Engine() *core.Engine {
	return s1.load().engine
}

// Config returns the current config
func (s1 *Service) Config() *Config {
	return s1.load().conf
}

// Logger returns the service logger
func (s1 *Service) Logger() *zap.SugaredLogger {
	return s1.load().log
}

// DB returns the database handle, nil before Connect
func (s1 *Service) DB() *sql.DB {
	return s1.load().db
}

// Connect dials the configured database, unless a client was passed with
// OptionSetClient, and opens the database/sql handle
func (s1 *Service) Connect(ctx context.Context) error {
	var s2 mbService
	for {
		s := s1.load()
		if s.db != nil {
			return nil
		}

		// the published state is never written, a connected copy replaces it
		s2 = *s
		if err := s2.connect(ctx); err != nil {
			return err
		}
		if s1.CompareAndSwap(s, &s2) {
			break
		}
		s2.release(ctx, s)
	}

	ver := version
	if ver == "" {
		ver = "not-set"
	}
	s2.zlog.Info(serverName+" connected",
		zap.String("version", ver),
		zap.String("app-name", s2.conf.AppName),
		zap.String("database", s2.conf.DB.DBName),
		zap.String("env", os.Getenv("GO_ENV")),
		zap.Bool("production", s2.conf.Production),
		zap.Uint64("catalog", s2.engine.Fingerprint()))
	return nil
}

// release closes what s opened beyond the state of prev, after another
// Connect or Reload won the swap
func (s *mbService) release(ctx context.Context, prev *mbService) {
	if s.db != nil {
		s.db.Close() //nolint:errcheck
	}
	if s.ownClient && s.client != prev.client {
		s.client.Disconnect(ctx) //nolint:errcheck
	}
	if s.tp != prev.tp {
		s.shutdownTracing(ctx)
	}
}

func (s *mbService) connect(ctx context.Context) error {
	if s.client == nil {
		client, err := newClient(ctx, s.conf, s.log, s.fs)
		if err != nil {
			return err
		}
		s.client = client
		s.ownClient = true
	}

	// a nil *TracerProvider must not reach the interface
	var tp trace.TracerProvider
	if s.tp != nil {
		tp = s.tp
	}
	db, err := newDB(s.conf, s.client, s.engine, s.zlog, tp)
	if err != nil {
		return err
	}
	s.db = db
	return nil
}

// SetLogLevel changes the log level of the running service
func (s1 *Service) SetLogLevel(level string) {
	s1.load().level.SetLevel(util.ParseLevel(level))
}

// Close closes the database handle, the client when the service dialed
// it, and flushes pending spans
func (s1 *Service) Close(ctx context.Context) error {
	s := s1.load()
	var firstErr error

	if s.db != nil {
		if err := s.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.client != nil && s.ownClient {
		if err := s.client.Disconnect(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.tp != nil {
		if err := s.tp.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.zlog.Sync() //nolint:errcheck
	return firstErr
}
