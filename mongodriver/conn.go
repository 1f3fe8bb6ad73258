package mongodriver

import (
	"context"
	"database/sql/driver"
	"fmt"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/qbloq/mongobridge/core"
)

// Conn implements driver.Conn for MongoDB.
type Conn struct {
	connector *Connector
	db        *mongo.Database
	client    *mongo.Client
	tx        *Tx
}

var (
	_ driver.ConnPrepareContext = (*Conn)(nil)
	_ driver.ConnBeginTx        = (*Conn)(nil)
	_ driver.ExecerContext      = (*Conn)(nil)
	_ driver.QueryerContext     = (*Conn)(nil)
	_ driver.NamedValueChecker  = (*Conn)(nil)
)

// Prepare returns a prepared statement.
func (c *Conn) Prepare(query string) (driver.Stmt, error) {
	return c.PrepareContext(context.Background(), query)
}

// PrepareContext parses the statement text, parse errors are reported
// here rather than on execution.
func (c *Conn) PrepareContext(ctx context.Context, query string) (driver.Stmt, error) {
	st, err := c.connector.engine.Prepare(query)
	if err != nil {
		return nil, errors.Wrap(err, "mongodriver: prepare")
	}
	return &Stmt{conn: c, st: st}, nil
}

// Close closes the connection.
func (c *Conn) Close() error {
	// Connections are managed by the mongo.Client pool
	return nil
}

// Begin starts a transaction. MongoDB transactions require replica sets.
func (c *Conn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

// BeginTx starts a transaction in a new session. Statements on the
// connection run inside it until it is committed or rolled back.
func (c *Conn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	if c.tx != nil {
		return nil, fmt.Errorf("mongodriver: transaction already in progress")
	}
	if opts.ReadOnly {
		return nil, fmt.Errorf("mongodriver: read-only transactions are not supported")
	}
	session, err := c.client.StartSession()
	if err != nil {
		return nil, fmt.Errorf("mongodriver: start session: %w", err)
	}
	if err := session.StartTransaction(); err != nil {
		session.EndSession(ctx)
		return nil, fmt.Errorf("mongodriver: start transaction: %w", err)
	}
	c.tx = &Tx{conn: c, session: session, ctx: ctx}
	return c.tx, nil
}

// CheckNamedValue accepts every argument as is, the engine converts it
// according to the column it is bound to. Arrays are unwrapped into
// their elements.
func (c *Conn) CheckNamedValue(nv *driver.NamedValue) error {
	if a, ok := nv.Value.(*Array); ok {
		nv.Value = a.Elements()
	}
	return nil
}

// QueryContext executes a select and returns its rows.
func (c *Conn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	st, err := c.connector.engine.Prepare(query)
	if err != nil {
		return nil, errors.Wrap(err, "mongodriver: prepare")
	}
	return c.query(ctx, st, args)
}

// ExecContext executes an insert, update or delete.
func (c *Conn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	st, err := c.connector.engine.Prepare(query)
	if err != nil {
		return nil, errors.Wrap(err, "mongodriver: prepare")
	}
	return c.exec(ctx, st, args)
}

func (c *Conn) translate(st *core.Statement, args []driver.NamedValue) (*core.Command, error) {
	// Convert NamedValue to positional args
	positionalArgs := make([]any, len(args))
	for _, arg := range args {
		if arg.Name != "" {
			return nil, fmt.Errorf("mongodriver: named argument %q is not supported", arg.Name)
		}
		if arg.Ordinal > 0 {
			positionalArgs[arg.Ordinal-1] = arg.Value
		}
	}
	return c.connector.engine.Translate(st, positionalArgs...)
}

// sessionContext attaches the open transaction, if any, to ctx.
func (c *Conn) sessionContext(ctx context.Context) context.Context {
	if c.tx == nil {
		return ctx
	}
	return mongo.NewSessionContext(ctx, c.tx.session)
}

func (c *Conn) startSpan(ctx context.Context, cmd *core.Command) (context.Context, trace.Span) {
	return c.connector.tracer.Start(ctx, "mongodb."+cmd.Name(),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "mongodb"),
			attribute.String("db.name", c.db.Name()),
			attribute.String("db.operation", cmd.Name()),
			attribute.String("db.mongodb.collection", cmd.Collection()),
		))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (c *Conn) exec(ctx context.Context, st *core.Statement, args []driver.NamedValue) (_ driver.Result, err error) {
	cmd, err := c.translate(st, args)
	if err != nil {
		return nil, err
	}
	if cmd.IsQuery() {
		return nil, fmt.Errorf("mongodriver: %s returns rows, use Query", cmd.Name())
	}

	ctx, span := c.startSpan(ctx, cmd)
	defer func() { endSpan(span, err) }()

	c.connector.log.Debug("exec",
		zap.String("command", cmd.Name()),
		zap.String("collection", cmd.Collection()))

	var reply bson.D
	if err = c.db.RunCommand(c.sessionContext(ctx), cmd.Document()).Decode(&reply); err != nil {
		return nil, errors.Wrapf(err, "mongodriver: %s %s", cmd.Name(), cmd.Collection())
	}
	res, err := newResult(cmd.Name(), reply)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int64("db.rows_affected", res.rowsAffected))
	return res, nil
}

func (c *Conn) query(ctx context.Context, st *core.Statement, args []driver.NamedValue) (_ driver.Rows, err error) {
	cmd, err := c.translate(st, args)
	if err != nil {
		return nil, err
	}
	if !cmd.IsQuery() {
		return nil, fmt.Errorf("mongodriver: %s returns no rows, use Exec", cmd.Name())
	}

	ctx, span := c.startSpan(ctx, cmd)
	defer func() { endSpan(span, err) }()

	c.connector.log.Debug("query",
		zap.String("command", cmd.Name()),
		zap.String("collection", cmd.Collection()))

	cursor, err := c.db.RunCommandCursor(c.sessionContext(ctx), cmd.Document())
	if err != nil {
		return nil, errors.Wrapf(err, "mongodriver: %s %s", cmd.Name(), cmd.Collection())
	}
	return newRows(ctx, cursor, cmd.Columns()), nil
}

// Tx implements driver.Tx for MongoDB transactions.
type Tx struct {
	conn    *Conn
	session *mongo.Session
	ctx     context.Context
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	defer t.end()
	return t.session.CommitTransaction(t.ctx)
}

// Rollback aborts the transaction.
func (t *Tx) Rollback() error {
	defer t.end()
	return t.session.AbortTransaction(t.ctx)
}

func (t *Tx) end() {
	t.session.EndSession(t.ctx)
	t.conn.tx = nil
}

// Stmt implements driver.Stmt for a prepared statement.
type Stmt struct {
	conn *Conn
	st   *core.Statement
}

var (
	_ driver.StmtExecContext  = (*Stmt)(nil)
	_ driver.StmtQueryContext = (*Stmt)(nil)
)

// Close closes the statement.
func (s *Stmt) Close() error {
	return nil
}

// NumInput returns the number of placeholder parameters.
func (s *Stmt) NumInput() int {
	return -1 // Unknown number of parameters
}

// Exec executes a query that doesn't return rows.
func (s *Stmt) Exec(args []driver.Value) (driver.Result, error) {
	return s.ExecContext(context.Background(), named(args))
}

// Query executes a query that returns rows.
func (s *Stmt) Query(args []driver.Value) (driver.Rows, error) {
	return s.QueryContext(context.Background(), named(args))
}

func (s *Stmt) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	return s.conn.exec(ctx, s.st, args)
}

func (s *Stmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	return s.conn.query(ctx, s.st, args)
}

func named(args []driver.Value) []driver.NamedValue {
	namedArgs := make([]driver.NamedValue, len(args))
	for i, arg := range args {
		namedArgs[i] = driver.NamedValue{Ordinal: i + 1, Value: arg}
	}
	return namedArgs
}
