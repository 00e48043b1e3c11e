package sqlstore

import (
	"fmt"
	"strings"

	sperrors "github.com/aleksaelezovic/trigoql/pkg/errors"
	"github.com/aleksaelezovic/trigoql/pkg/rdf"
	"github.com/aleksaelezovic/trigoql/pkg/store"
)

// SupportsBatchUnify advertises server-side resolution of pattern lists.
func (s *Store) SupportsBatchUnify() bool {
	return true
}

// BatchUnify resolves all patterns at once. Each pattern becomes one alias
// of the quads table; shared variables become equality joins. One binding
// is produced per combination of matching rows, which is the same multiset
// a pattern-by-pattern expansion yields.
func (s *Store) BatchUnify(patterns []*store.Pattern) (store.BindingIterator, error) {
	query, args, vars := compileBatch(patterns)
	s.log.WithField("patterns", len(patterns)).Debug("batch unify")

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, sperrors.Wrap(err, sperrors.CodeStoreDatabaseFailure, "batch unify")
	}
	defer rows.Close()

	var bindings []*store.Binding
	for rows.Next() {
		text := make([]string, len(vars))
		dest := make([]any, len(vars))
		for i := range text {
			dest[i] = &text[i]
		}
		if len(vars) == 0 {
			var one int
			dest = []any{&one}
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}

		b := store.NewBinding()
		for i, v := range vars {
			var term rdf.Term
			if v.graph {
				term, err = parseGraph(text[i])
			} else {
				term, err = rdf.ParseTerm(text[i])
			}
			if err != nil {
				return nil, sperrors.Wrap(err, sperrors.CodeStoreEncodingFailure, "decode batch row")
			}
			b.Vars[v.name] = term
		}
		bindings = append(bindings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &bindingIterator{bindings: bindings, pos: -1}, nil
}

type selectedVar struct {
	name  string
	graph bool
}

// compileBatch builds the self-join for patterns. Variables are selected
// in order of first appearance.
func compileBatch(patterns []*store.Pattern) (string, []any, []selectedVar) {
	var (
		from   []string
		where  []string
		args   []any
		vars   []selectedVar
		cols   []string
		seenAt = make(map[string]string)
	)

	if len(patterns) == 0 {
		return `SELECT 1`, nil, nil
	}

	for i, p := range patterns {
		alias := fmt.Sprintf("t%d", i)
		from = append(from, "quads AS "+alias)

		terms := [4]rdf.Term{p.Subject, p.Predicate, p.Object, p.Graph}
		for pos, term := range terms {
			col := alias + "." + columns[pos]
			isGraph := pos == 3

			if isGraph {
				switch {
				case store.IsDefaultGraph(term):
					where = append(where, col+" = ''")
					continue
				case rdf.IsVariable(term):
					where = append(where, col+" <> ''")
				default:
					where = append(where, col+" = ?")
					args = append(args, term.String())
					continue
				}
			}

			switch t := term.(type) {
			case nil:
			case *rdf.Variable:
				if first, ok := seenAt[t.Name]; ok {
					where = append(where, col+" = "+first)
					continue
				}
				seenAt[t.Name] = col
				cols = append(cols, col)
				vars = append(vars, selectedVar{name: t.Name, graph: isGraph})
			default:
				where = append(where, col+" = ?")
				args = append(args, t.String())
			}
		}
	}

	if len(cols) == 0 {
		cols = []string{"1"}
	}
	query := "SELECT " + strings.Join(cols, ", ") + " FROM " + strings.Join(from, ", ")
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	return query, args, vars
}

type bindingIterator struct {
	bindings []*store.Binding
	pos      int
}

func (it *bindingIterator) Next() bool {
	it.pos++
	return it.pos < len(it.bindings)
}

func (it *bindingIterator) Binding() *store.Binding {
	return it.bindings[it.pos]
}

func (it *bindingIterator) Err() error {
	return nil
}

func (it *bindingIterator) Close() error {
	return nil
}
