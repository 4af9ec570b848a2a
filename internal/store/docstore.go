package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"github.com/google/uuid"
)

// DocStore implements Store on per-collection tables with a JSONB data
// column. Writes are read-modify-write transactions serialised by mu, since
// SQLite admits a single writer anyway.
type DocStore struct {
	db       *sql.DB
	notifier Notifier
	logger   *slog.Logger
	mu       sync.Mutex
}

var _ Store = (*DocStore)(nil)

// NewDocStore expects the tables created by the migrations package. A nil
// notifier means an in-process Broker.
func NewDocStore(db *sql.DB, notifier Notifier, logger *slog.Logger) *DocStore {
	if notifier == nil {
		notifier = NewBroker()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &DocStore{db: db, notifier: notifier, logger: logger}
}

func table(collection string) (string, error) {
	if !collections[collection] {
		return "", fmt.Errorf("unknown collection %q", collection)
	}
	return collection, nil
}

func (s *DocStore) Get(ctx context.Context, collection, id string, dest any) error {
	tbl, err := table(collection)
	if err != nil {
		return err
	}
	var data string
	err = s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT json(data) FROM %s WHERE id = ?`, tbl), id,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(data), dest)
}

// List loads the whole collection and filters in memory.
func (s *DocStore) List(ctx context.Context, collection string, filter *Filter, dest any) error {
	tbl, err := table(collection)
	if err != nil {
		return err
	}
	if rv := reflect.ValueOf(dest); rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("list destination must be a pointer to a slice, got %T", dest)
	}

	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT json(data) FROM %s ORDER BY seq`, tbl),
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	docs := []json.RawMessage{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return err
		}
		if filter != nil {
			var doc document
			if err := json.Unmarshal([]byte(data), &doc); err != nil {
				return err
			}
			ok, err := matches(doc, filter.Field, filter.Equals)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
		}
		docs = append(docs, json.RawMessage(data))
	}
	if err := rows.Err(); err != nil {
		return err
	}

	all, err := json.Marshal(docs)
	if err != nil {
		return err
	}
	return json.Unmarshal(all, dest)
}

func (s *DocStore) Create(ctx context.Context, collection, id string, doc any) (string, error) {
	tbl, err := table(collection)
	if err != nil {
		return "", err
	}
	if id == "" {
		id = uuid.NewString()
	}
	d, err := toDocument(doc)
	if err != nil {
		return "", err
	}
	d["id"] = id
	data, err := json.Marshal(d)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (id, version, data) VALUES (?, 1, jsonb(?)) ON CONFLICT(id) DO NOTHING`, tbl),
		id, string(data),
	)
	if err != nil {
		return "", err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return "", ErrExists
	}
	s.notify(ctx, Snapshot{Collection: collection, ID: id, Version: 1, Data: data})
	return id, nil
}

func (s *DocStore) Put(ctx context.Context, collection, id string, doc any) error {
	d, err := toDocument(doc)
	if err != nil {
		return err
	}
	_, err = s.modify(ctx, collection, id, true, func(cur document) (document, error) {
		d["id"] = id
		return d, nil
	})
	return err
}

func (s *DocStore) Update(ctx context.Context, collection, id string, fields map[string]any, opts UpdateOptions) error {
	patch, err := expand(fields)
	if err != nil {
		return err
	}
	_, err = s.modify(ctx, collection, id, false, func(cur document) (document, error) {
		if opts.Merge {
			mergeInto(cur, patch)
		} else {
			for k, v := range patch {
				cur[k] = v
			}
		}
		return cur, nil
	})
	return err
}

func (s *DocStore) UpdateIf(ctx context.Context, collection, id string, cond Condition, fields map[string]any) error {
	patch, err := expand(fields)
	if err != nil {
		return err
	}
	_, err = s.modify(ctx, collection, id, false, func(cur document) (document, error) {
		ok, err := matches(cur, cond.Field, cond.Equals)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrPrecondition
		}
		mergeInto(cur, patch)
		return cur, nil
	})
	return err
}

func (s *DocStore) AppendToSet(ctx context.Context, collection, id, field string, values ...string) (int, error) {
	var added int
	_, err := s.modify(ctx, collection, id, false, func(cur document) (document, error) {
		n, err := appendSet(cur, field, values)
		if err != nil {
			return nil, err
		}
		added = n
		if n == 0 {
			return nil, nil
		}
		return cur, nil
	})
	return added, err
}

func (s *DocStore) Increment(ctx context.Context, collection, id, field string, delta int) (int, error) {
	var next int
	_, err := s.modify(ctx, collection, id, false, func(cur document) (document, error) {
		n, err := increment(cur, field, delta)
		if err != nil {
			return nil, err
		}
		next = n
		return cur, nil
	})
	return next, err
}

func (s *DocStore) Delete(ctx context.Context, collection, id string) error {
	tbl, err := table(collection)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, tbl), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	s.notify(ctx, Snapshot{Collection: collection, ID: id, Deleted: true})
	return nil
}

func (s *DocStore) Subscribe(collection, id string) (<-chan Snapshot, func()) {
	return s.notifier.Subscribe(collection, id)
}

// modify loads a document, applies fn and saves the result in one
// transaction. When upsert is set a missing document starts out empty;
// otherwise it is ErrNotFound. fn returning a nil document means no change.
func (s *DocStore) modify(ctx context.Context, collection, id string, upsert bool, fn func(document) (document, error)) (Snapshot, error) {
	tbl, err := table(collection)
	if err != nil {
		return Snapshot{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return Snapshot{}, err
	}
	defer tx.Rollback()

	var (
		data    string
		version int64
		exists  = true
	)
	err = tx.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT json(data), version FROM %s WHERE id = ?`, tbl), id,
	).Scan(&data, &version)
	switch {
	case errors.Is(err, sql.ErrNoRows) && upsert:
		exists = false
		data = "{}"
	case errors.Is(err, sql.ErrNoRows):
		return Snapshot{}, ErrNotFound
	case err != nil:
		return Snapshot{}, err
	}

	var cur document
	if err := json.Unmarshal([]byte(data), &cur); err != nil {
		return Snapshot{}, fmt.Errorf("decoding %s/%s: %w", collection, id, err)
	}
	if cur == nil {
		cur = document{}
	}

	next, err := fn(cur)
	if err != nil {
		return Snapshot{}, err
	}
	if next == nil {
		return Snapshot{Collection: collection, ID: id, Version: version, Data: json.RawMessage(data)}, nil
	}

	out, err := json.Marshal(next)
	if err != nil {
		return Snapshot{}, err
	}
	version++
	if exists {
		_, err = tx.ExecContext(ctx,
			fmt.Sprintf(`UPDATE %s SET version = ?, data = jsonb(?) WHERE id = ?`, tbl),
			version, string(out), id,
		)
	} else {
		_, err = tx.ExecContext(ctx,
			fmt.Sprintf(`INSERT INTO %s (id, version, data) VALUES (?, ?, jsonb(?))`, tbl),
			id, version, string(out),
		)
	}
	if err != nil {
		return Snapshot{}, err
	}
	if err := tx.Commit(); err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{Collection: collection, ID: id, Version: version, Data: out}
	s.notify(ctx, snap)
	return snap, nil
}

// notify runs after commit; a failed publish does not undo the write.
func (s *DocStore) notify(ctx context.Context, snap Snapshot) {
	if err := s.notifier.Publish(ctx, snap); err != nil {
		s.logger.WarnContext(ctx, "publishing snapshot",
			"collection", snap.Collection,
			"id", snap.ID,
			"error", err,
		)
	}
}
