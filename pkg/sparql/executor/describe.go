package executor

import (
	"context"
	"sync"

	sperrors "github.com/aleksaelezovic/trigoql/pkg/errors"
	"github.com/aleksaelezovic/trigoql/pkg/rdf"
	"github.com/aleksaelezovic/trigoql/pkg/store"
)

// DescribeSubject is the default describe extension: the default graph
// triples whose subject is a described resource.
const DescribeSubject = "urn:trigo:describe:subject"

// DescribeFunc builds the description of resources from s.
type DescribeFunc func(ctx context.Context, s TripleStoreAdapter, resources []rdf.Term) (*rdf.Graph, error)

var (
	describeMu       sync.RWMutex
	describeRegistry = map[string]DescribeFunc{
		DescribeSubject: describeSubject,
	}
)

// RegisterDescribe makes fn available under uri for WithDescribe.
func RegisterDescribe(uri string, fn DescribeFunc) {
	describeMu.Lock()
	defer describeMu.Unlock()
	describeRegistry[uri] = fn
}

func lookupDescribe(uri string) (DescribeFunc, error) {
	describeMu.RLock()
	defer describeMu.RUnlock()
	fn, ok := describeRegistry[uri]
	if !ok {
		return nil, sperrors.New(sperrors.CodeQueryDescribeNotFound, "no describe extension registered",
			sperrors.Field("uri", uri))
	}
	return fn, nil
}

func describeSubject(ctx context.Context, s TripleStoreAdapter, resources []rdf.Term) (*rdf.Graph, error) {
	g := rdf.NewGraph()
	for _, r := range resources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		switch r.(type) {
		case *rdf.NamedNode, *rdf.BlankNode:
		default:
			continue
		}
		quads, err := matchAll(s, &store.Pattern{Subject: r})
		if err != nil {
			return nil, err
		}
		for _, q := range quads {
			g.Add(q.Triple())
		}
	}
	return g, nil
}
