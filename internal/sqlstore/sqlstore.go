// Package sqlstore keeps quads in a SQLite table and resolves whole basic
// graph patterns server-side with a single self-join.
package sqlstore

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/aleksaelezovic/trigoql/internal/logging"
	sperrors "github.com/aleksaelezovic/trigoql/pkg/errors"
	"github.com/aleksaelezovic/trigoql/pkg/rdf"
	"github.com/aleksaelezovic/trigoql/pkg/store"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Terms are stored in N-Triples syntax; the default graph is ''.
const schema = `
	CREATE TABLE IF NOT EXISTS quads (
		s TEXT NOT NULL,
		p TEXT NOT NULL,
		o TEXT NOT NULL,
		g TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (s, p, o, g)
	);
	CREATE INDEX IF NOT EXISTS quads_pos ON quads (p, o, s);
	CREATE INDEX IF NOT EXISTS quads_osp ON quads (o, s, p);
	CREATE INDEX IF NOT EXISTS quads_gspo ON quads (g, s, p, o);
`

var columns = [4]string{"s", "p", "o", "g"}

// Store is a SQLite-backed quad store.
type Store struct {
	db  *sql.DB
	log *logrus.Entry
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	dsn := path
	if path != MemoryPath {
		dsn = path + "?_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, sperrors.Wrap(err, sperrors.CodeStoreOpenFailure, "open sqlite store", sperrors.FieldBackend("sqlite"))
	}
	if path == MemoryPath {
		// every connection would see its own empty database
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, sperrors.Wrap(err, sperrors.CodeStoreOpenFailure, "create sqlite schema", sperrors.FieldBackend("sqlite"))
	}

	s := &Store{
		db:  db,
		log: logging.Component("sqlstore").WithField("path", path),
	}
	s.log.Debug("sqlite store opened")
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func graphText(g rdf.Term) string {
	if store.IsDefaultGraph(g) {
		return ""
	}
	return g.String()
}

func parseGraph(text string) (rdf.Term, error) {
	if text == "" {
		return rdf.NewDefaultGraph(), nil
	}
	return rdf.ParseTerm(text)
}

// InsertQuadsBatch inserts quads in one transaction. Duplicates are ignored.
func (s *Store) InsertQuadsBatch(quads []*rdf.Quad) error {
	tx, err := s.db.Begin()
	if err != nil {
		return sperrors.Wrap(err, sperrors.CodeStoreDatabaseFailure, "begin insert")
	}
	defer tx.Rollback() // #nosec G104 - no-op after commit

	stmt, err := tx.Prepare(`INSERT OR IGNORE INTO quads (s, p, o, g) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return sperrors.Wrap(err, sperrors.CodeStoreDatabaseFailure, "prepare insert")
	}
	defer stmt.Close()

	for _, q := range quads {
		if !q.Triple().IsValid() {
			return fmt.Errorf("invalid quad: %s", q)
		}
		if _, err := stmt.Exec(q.Subject.String(), q.Predicate.String(), q.Object.String(), graphText(q.Graph)); err != nil {
			return sperrors.Wrap(err, sperrors.CodeStoreDatabaseFailure, "insert quad")
		}
	}
	if err := tx.Commit(); err != nil {
		return sperrors.Wrap(err, sperrors.CodeStoreDatabaseFailure, "commit insert")
	}
	return nil
}

// InsertQuad inserts a single quad.
func (s *Store) InsertQuad(q *rdf.Quad) error {
	return s.InsertQuadsBatch([]*rdf.Quad{q})
}

// Count returns the number of stored quads.
func (s *Store) Count() (int64, error) {
	var n int64
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM quads`).Scan(&n); err != nil {
		return 0, sperrors.Wrap(err, sperrors.CodeStoreDatabaseFailure, "count quads")
	}
	return n, nil
}

// NamedGraphs lists the distinct named graphs.
func (s *Store) NamedGraphs() ([]rdf.Term, error) {
	rows, err := s.db.Query(`SELECT DISTINCT g FROM quads WHERE g <> '' ORDER BY g`)
	if err != nil {
		return nil, sperrors.Wrap(err, sperrors.CodeStoreDatabaseFailure, "list graphs")
	}
	defer rows.Close()

	var graphs []rdf.Term
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, err
		}
		g, err := rdf.ParseTerm(text)
		if err != nil {
			return nil, err
		}
		graphs = append(graphs, g)
	}
	return graphs, rows.Err()
}

// Match returns the quads matching pattern. Results are read eagerly so
// that no connection stays busy while the caller recurses.
func (s *Store) Match(pattern *store.Pattern) (store.QuadIterator, error) {
	var where []string
	var args []any
	for i, t := range []rdf.Term{pattern.Subject, pattern.Predicate, pattern.Object} {
		if store.IsWildcard(t) {
			continue
		}
		where = append(where, columns[i]+" = ?")
		args = append(args, t.String())
	}
	switch {
	case store.IsDefaultGraph(pattern.Graph):
		where = append(where, "g = ''")
	case rdf.IsVariable(pattern.Graph):
		where = append(where, "g <> ''")
	default:
		where = append(where, "g = ?")
		args = append(args, pattern.Graph.String())
	}

	query := `SELECT s, p, o, g FROM quads WHERE ` + strings.Join(where, " AND ")
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, sperrors.Wrap(err, sperrors.CodeStoreDatabaseFailure, "match quads")
	}
	defer rows.Close()

	var quads []*rdf.Quad
	for rows.Next() {
		var text [4]string
		if err := rows.Scan(&text[0], &text[1], &text[2], &text[3]); err != nil {
			return nil, err
		}
		q, err := decodeRow(text)
		if err != nil {
			return nil, sperrors.Wrap(err, sperrors.CodeStoreEncodingFailure, "decode quad row")
		}
		quads = append(quads, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return store.NewSliceQuadIterator(quads), nil
}

func decodeRow(text [4]string) (*rdf.Quad, error) {
	var terms [3]rdf.Term
	for i := range terms {
		t, err := rdf.ParseTerm(text[i])
		if err != nil {
			return nil, err
		}
		terms[i] = t
	}
	g, err := parseGraph(text[3])
	if err != nil {
		return nil, err
	}
	return rdf.NewQuad(terms[0], terms[1], terms[2], g), nil
}
