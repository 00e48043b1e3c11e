package executor

import (
	"github.com/aleksaelezovic/trigoql/pkg/sparql/optimizer"
)

// closure extends sols with the transitive closure of a RECUR clause: each
// new value of From seeds To in the recursive plan, and the solutions found
// are added until no unseen From value remains. Values are visited once,
// so cycles terminate.
func (ev *evaluation) closure(rp *optimizer.RecurPlan, sols []BindingSet, sc scope) ([]BindingSet, error) {
	visited := make(map[string]bool)
	var frontier []BindingSet
	enqueue := func(found []BindingSet) {
		for _, sol := range found {
			v, ok := sol.Get(rp.From)
			if !ok || visited[v.String()] {
				continue
			}
			visited[v.String()] = true
			frontier = append(frontier, BindingSet{rp.To: v})
		}
	}
	enqueue(sols)

	for len(frontier) > 0 {
		seed := frontier[0]
		frontier = frontier[1:]

		res, err := ev.evaluate(rp.Plan, seed, sc)
		if err != nil {
			return nil, err
		}
		found := ev.solutions(res)
		sols = append(sols, found...)
		enqueue(found)
	}
	return sols, nil
}
