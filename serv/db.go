package serv

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/qbloq/mongobridge/core"
	"github.com/qbloq/mongobridge/mongodriver"
)

const (
	pemSig = "--BEGIN "
)

// connString returns the configured connection string or builds one from
// the host settings
func connString(conf *Config) string {
	if cs := conf.DB.ConnString; cs != "" {
		return cs
	}
	port := conf.DB.Port
	if port == 0 {
		port = 27017
	}
	u := url.URL{
		Scheme: "mongodb",
		Host:   fmt.Sprintf("%s:%d", conf.DB.Host, port),
	}
	if conf.DB.User != "" {
		u.User = url.UserPassword(conf.DB.User, conf.DB.Password)
	}
	return u.String()
}

// clientOptions maps the database config onto mongo client options
func clientOptions(conf *Config, fs afero.Fs) (*options.ClientOptions, error) {
	opts := options.Client().ApplyURI(connString(conf))

	if conf.AppName != "" {
		opts.SetAppName(conf.AppName)
	}
	if conf.DB.PoolSize > 0 {
		opts.SetMinPoolSize(uint64(conf.DB.PoolSize))
	}
	if conf.DB.MaxConnections > 0 {
		opts.SetMaxPoolSize(uint64(conf.DB.MaxConnections))
	}
	if conf.DB.MaxConnIdleTime > 0 {
		opts.SetMaxConnIdleTime(conf.DB.MaxConnIdleTime)
	}
	if conf.DB.PingTimeout > 0 {
		opts.SetServerSelectionTimeout(conf.DB.PingTimeout)
	}

	if conf.DB.EnableTLS {
		tc, err := tlsConfig(conf, fs)
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tc)
	}
	return opts, nil
}

func tlsConfig(conf *Config, fs afero.Fs) (*tls.Config, error) {
	tc := &tls.Config{ServerName: conf.DB.ServerName, MinVersion: tls.VersionTLS12}

	if conf.DB.ServerCert != "" {
		pem, err := readPEM(conf, fs, conf.DB.ServerCert)
		if err != nil {
			return nil, errors.Wrap(err, "server certificate")
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("server certificate: no certificates found")
		}
		tc.RootCAs = pool
	}

	if conf.DB.ClientCert != "" {
		certPEM, err := readPEM(conf, fs, conf.DB.ClientCert)
		if err != nil {
			return nil, errors.Wrap(err, "client certificate")
		}
		keyPEM, err := readPEM(conf, fs, conf.DB.ClientKey)
		if err != nil {
			return nil, errors.Wrap(err, "client key")
		}
		cert, err := tls.X509KeyPair(certPEM, keyPEM)
		if err != nil {
			return nil, errors.Wrap(err, "client key pair")
		}
		tc.Certificates = []tls.Certificate{cert}
	}
	return tc, nil
}

// readPEM returns v when it holds PEM data, otherwise reads the file it
// names relative to the config path
func readPEM(conf *Config, fs afero.Fs, v string) ([]byte, error) {
	if strings.Contains(v, pemSig) {
		return []byte(v), nil
	}
	return afero.ReadFile(fs, conf.AbsolutePath(v))
}

// newClient connects to MongoDB, retrying until the server answers a ping
func newClient(ctx context.Context, conf *Config, log *zap.SugaredLogger, fs afero.Fs) (*mongo.Client, error) {
	opts, err := clientOptions(conf, fs)
	if err != nil {
		return nil, errors.Wrap(err, "database init")
	}

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, errors.Wrap(err, "database connect")
	}

	attempts := conf.DB.ConnectRetries
	if attempts == 0 {
		attempts = 1
	}

	err = retry.Do(
		func() error {
			pctx := ctx
			if conf.DB.PingTimeout > 0 {
				var cancel context.CancelFunc
				pctx, cancel = context.WithTimeout(ctx, conf.DB.PingTimeout)
				defer cancel()
			}
			return client.Ping(pctx, readpref.Primary())
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(100*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Warnf("database ping (attempt %d): %s", n+1, err)
		}),
	)
	if err != nil {
		client.Disconnect(context.Background()) //nolint:errcheck
		return nil, errors.Wrap(err, "database ping")
	}
	return client, nil
}

// newDB opens a database/sql handle that translates statements with
// engine and runs them on client
func newDB(
	conf *Config,
	client *mongo.Client,
	engine *core.Engine,
	log *zap.Logger,
	tp trace.TracerProvider,
) (*sql.DB, error) {
	opts := []mongodriver.Option{mongodriver.WithLogger(log)}
	if tp != nil {
		opts = append(opts, mongodriver.WithTracerProvider(tp))
	}

	connector, err := mongodriver.NewConnector(client, conf.DB.DBName, engine, opts...)
	if err != nil {
		return nil, err
	}

	db := sql.OpenDB(connector)
	if conf.DB.PoolSize > 0 {
		db.SetMaxIdleConns(conf.DB.PoolSize)
	}
	if conf.DB.MaxConnections > 0 {
		db.SetMaxOpenConns(conf.DB.MaxConnections)
	}
	db.SetConnMaxIdleTime(conf.DB.MaxConnIdleTime)
	db.SetConnMaxLifetime(conf.DB.MaxConnLifeTime)
	return db, nil
}
