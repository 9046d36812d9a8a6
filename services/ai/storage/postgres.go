package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	_ "github.com/lib/pq"
	config "github.com/xilidan/signposting/config/ai"
	"github.com/xilidan/signposting/pkg/logger"
	"github.com/xilidan/signposting/services/ai/consts"
	"go.mongodb.org/mongo-driver/bson"
)

// Postgres stores each collection as a table of jsonb documents:
// (id bigserial, doc jsonb).
type Postgres struct {
	driver       *entsql.Driver
	schema       string
	profileField string
}

func NewPostgres(ctx context.Context, cfg *config.DatabaseConfig) (*Postgres, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s dbname=%s password=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Name,
		cfg.Password,
		cfg.SSLMode,
	)
	drv, err := entsql.Open(dialect.Postgres, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	if err := drv.DB().PingContext(ctx); err != nil {
		drv.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	p := &Postgres{driver: drv, schema: cfg.Schema, profileField: cfg.ProfileField}
	if err := p.migrate(ctx); err != nil {
		drv.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) migrate(ctx context.Context) error {
	for _, table := range []string{consts.CollectionMessages, consts.CollectionFlowHistory, consts.CollectionContacts} {
		if _, err := p.driver.DB().ExecContext(ctx, createTableQuery(p.schema, table)); err != nil {
			return fmt.Errorf("failed to create table %s: %w", table, err)
		}
	}
	return nil
}

func createTableQuery(schema, table string) string {
	return entsql.Dialect(dialect.Postgres).String(func(b *entsql.Builder) {
		b.WriteString("CREATE TABLE IF NOT EXISTS ")
		if schema != "" {
			b.Ident(schema).WriteByte('.')
		}
		b.Ident(table).WriteString(" (id bigserial PRIMARY KEY, doc jsonb NOT NULL)")
	})
}

// Acquire pins one pooled connection for the request.
func (p *Postgres) Acquire(ctx context.Context) (Records, error) {
	conn, err := p.driver.DB().Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire postgres connection: %w", err)
	}
	return &postgresRecords{conn: conn, schema: p.schema, profileField: p.profileField}, nil
}

func (p *Postgres) Close(context.Context) error {
	return p.driver.Close()
}

type postgresRecords struct {
	conn         *sql.Conn
	schema       string
	profileField string
}

func (r *postgresRecords) UpdateMessage(ctx context.Context, messageID, transcript, uri string) (bool, error) {
	return r.patchFirst(ctx, consts.CollectionMessages, messagePredicate(messageID), func(doc bson.D) (bson.D, bool) {
		return PatchMessage(doc, transcript, uri), true
	})
}

func (r *postgresRecords) UpdateFlowResponse(ctx context.Context, messageID, transcript, uri string) (bool, error) {
	where, err := flowResponsePredicate(messageID)
	if err != nil {
		return false, err
	}
	return r.patchFirst(ctx, consts.CollectionFlowHistory, where, func(doc bson.D) (bson.D, bool) {
		return PatchFlowResponse(doc, messageID, transcript, uri)
	})
}

func (r *postgresRecords) UpdateContactProfile(ctx context.Context, messageID, transcript string) (bool, error) {
	where := contactPredicate(r.profileField, messageID)
	return r.patchFirst(ctx, consts.CollectionContacts, where, func(doc bson.D) (bson.D, bool) {
		return PatchContactProfile(doc, r.profileField, messageID, transcript)
	})
}

func (r *postgresRecords) Release() {
	r.conn.Close()
}

// patchFirst locks the first row matching where, applies fn to its document
// and writes it back in the same transaction.
func (r *postgresRecords) patchFirst(ctx context.Context, table string, where *entsql.Predicate, fn func(bson.D) (bson.D, bool)) (bool, error) {
	log := logger.FromContext(ctx).With("table", table)

	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query, args := selectFirstQuery(r.schema, table, where)
	var (
		id  int64
		raw string
	)
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&id, &raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		log.Error("failed to select document", "error", err)
		return false, fmt.Errorf("failed to select from %s: %w", table, err)
	}

	out, ok, err := patchDocument(raw, fn)
	if err != nil {
		return false, fmt.Errorf("document %d: %w", id, err)
	}
	if !ok {
		return false, nil
	}

	query, args = updateDocQuery(r.schema, table, id, out)
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		log.Error("failed to update document", "error", err)
		return false, fmt.Errorf("failed to update %s: %w", table, err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit: %w", err)
	}
	log.Debug("document patched", "id", id)
	return true, nil
}

// patchDocument decodes a jsonb document into ordered bson, applies fn and
// encodes the result as relaxed extended JSON.
func patchDocument(raw string, fn func(bson.D) (bson.D, bool)) (string, bool, error) {
	var doc bson.D
	if err := bson.UnmarshalExtJSON([]byte(raw), false, &doc); err != nil {
		return "", false, fmt.Errorf("failed to decode document: %w", err)
	}
	patched, ok := fn(doc)
	if !ok {
		return "", false, nil
	}
	out, err := bson.MarshalExtJSON(patched, false, false)
	if err != nil {
		return "", false, fmt.Errorf("failed to encode document: %w", err)
	}
	return string(out), true, nil
}

func selectFirstQuery(schema, table string, where *entsql.Predicate) (string, []any) {
	return entsql.Dialect(dialect.Postgres).
		Select("id", "doc").
		From(entsql.Table(table).Schema(schema)).
		Where(where).
		Limit(1).
		ForUpdate().
		Query()
}

func updateDocQuery(schema, table string, id int64, doc string) (string, []any) {
	return entsql.Dialect(dialect.Postgres).
		Update(table).
		Schema(schema).
		Set("doc", entsql.ExprFunc(func(b *entsql.Builder) {
			b.Arg(doc).WriteString("::jsonb")
		})).
		Where(entsql.EQ("id", id)).
		Query()
}

func messagePredicate(messageID string) *entsql.Predicate {
	return entsql.P(func(b *entsql.Builder) {
		b.WriteString("doc ->> ").Arg(consts.FieldMessageSid).WriteString(" = ").Arg(messageID)
	})
}

func flowResponsePredicate(messageID string) (*entsql.Predicate, error) {
	filter, err := bson.MarshalExtJSON(bson.D{{Key: consts.FieldFlowResponses, Value: bson.A{
		bson.D{{Key: consts.FieldOriginalMessageSid, Value: messageID}},
	}}}, false, false)
	if err != nil {
		return nil, fmt.Errorf("failed to encode flow history filter: %w", err)
	}
	return entsql.P(func(b *entsql.Builder) {
		b.WriteString("doc @> ").Arg(string(filter)).WriteString("::jsonb")
	}), nil
}

// contactPredicate matches a profile field holding messageID either as a
// single object or in a list. [*] wraps single objects in lax mode.
func contactPredicate(profileField, messageID string) *entsql.Predicate {
	path := fmt.Sprintf("$.%s.*[*] ? (@.%s == $id)", strconv.Quote(profileField), consts.FieldOriginalMessageSid)
	return entsql.P(func(b *entsql.Builder) {
		b.WriteString("jsonb_path_exists(doc, ").Arg(path).
			WriteString("::jsonpath, jsonb_build_object('id', ").Arg(messageID).WriteString("::text))")
	})
}
