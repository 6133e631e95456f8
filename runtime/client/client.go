// Package client provides the entity-level runtime API on top of the query
// builder.
package client

import (
	"context"
	"database/sql"
	"fmt"
	"slices"

	"github.com/go-sql-driver/mysql"

	"github.com/expreql/expreql/query"
	"github.com/expreql/expreql/query/ast"
	"github.com/expreql/expreql/query/builder"
	"github.com/expreql/expreql/query/executor"
	"github.com/expreql/expreql/query/mapper"
	"github.com/expreql/expreql/schema"
)

// Client is the main database client
type Client struct {
	db       *sql.DB
	exec     *executor.Executor
	registry *schema.Registry
}

// Open connects to MySQL with cfg. The connection is established lazily;
// call Connect to verify it.
func Open(cfg *mysql.Config, registry *schema.Registry) (*Client, error) {
	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("mysql connector: %w", err)
	}
	return NewFromDB(sql.OpenDB(connector), registry), nil
}

// OpenDSN connects to MySQL with a DSN such as
// "user:pass@tcp(localhost:3306)/shop?charset=utf8mb4".
func OpenDSN(dsn string, registry *schema.Registry) (*Client, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	return Open(cfg, registry)
}

// NewFromDB creates a client from an existing database handle. The caller
// keeps ownership of the handle's lifecycle when not calling Close.
func NewFromDB(db *sql.DB, registry *schema.Registry) *Client {
	return &Client{
		db:       db,
		exec:     executor.NewExecutor(db),
		registry: registry,
	}
}

// Use adds middlewares around every statement the client runs
func (c *Client) Use(middleware ...executor.Middleware) {
	c.exec.Use(middleware...)
}

// Connect verifies the database connection
func (c *Client) Connect(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Close closes the database connection
func (c *Client) Close() error {
	return c.db.Close()
}

// DB returns the underlying database connection
func (c *Client) DB() *sql.DB {
	return c.db
}

// Registry returns the entity registry
func (c *Client) Registry() *schema.Registry {
	return c.registry
}

// Query starts an empty builder
func (c *Client) Query() *builder.QueryBuilder {
	return builder.New(c.exec, c.registry)
}

// Table starts a builder on a table without a registered entity
func (c *Client) Table(name string) *builder.QueryBuilder {
	return c.Query().Table(name)
}

// Select starts a SELECT on et, projecting fields when given
func (c *Client) Select(et *schema.EntityType, fields ...string) *builder.QueryBuilder {
	q := c.Query().Entity(et)
	if len(fields) > 0 {
		q = q.Fields(fields...)
	}
	return q
}

// Insert writes one row and returns it as read back from the database
func (c *Client) Insert(ctx context.Context, et *schema.EntityType, values ...ast.Assignment) (*mapper.Entity, error) {
	res, err := c.Query().Entity(et).Insert().Values(values...).Execute(ctx)
	if err != nil {
		return nil, err
	}
	if res.Entity == nil {
		return nil, query.NewQueryError("insert", et.Table(), query.ErrNotFound)
	}
	return res.Entity, nil
}

// FindByPK loads the entity whose primary key equals pk, projecting its
// declared fields
func (c *Client) FindByPK(ctx context.Context, et *schema.EntityType, pk any) (*mapper.Entity, error) {
	res, err := c.Select(et, et.Fields()...).
		WhereEquals(et.Field(et.PrimaryKey()), pk).
		Execute(ctx)
	if err != nil {
		return nil, err
	}
	if len(res.Entities) == 0 {
		return nil, query.NewQueryError("find", et.Table(), query.ErrNotFound)
	}
	return res.Entities[0], nil
}

// Update starts an UPDATE of et; add filters before executing
func (c *Client) Update(et *schema.EntityType, values ...ast.Assignment) *builder.QueryBuilder {
	return c.Query().Entity(et).Update().Values(values...)
}

// Delete starts a DELETE on et; add filters before executing
func (c *Client) Delete(et *schema.EntityType) *builder.QueryBuilder {
	return c.Query().Entity(et).Delete()
}

// Save inserts the declared fields that are set on ent, then copies the
// stored row back into it.
func (c *Client) Save(ctx context.Context, ent *mapper.Entity) error {
	if ent == nil || ent.Type == nil {
		return fmt.Errorf("save: %w", query.ErrUnknownEntity)
	}

	var values []ast.Assignment
	for _, f := range ent.Type.Fields() {
		if !slices.Contains(ent.Fields(), f) {
			continue
		}
		v, _ := ent.Get(f)
		values = append(values, ast.Assignment{Column: f, Value: v})
	}

	stored, err := c.Insert(ctx, ent.Type, values...)
	if err != nil {
		return err
	}
	for _, f := range stored.Fields() {
		v, _ := stored.Get(f)
		ent.Set(f, v)
	}
	return nil
}
