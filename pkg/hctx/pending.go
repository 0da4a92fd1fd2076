package hctx

import (
	"github.com/hctx-dev/hctx/internal/orderedset"
)

// pendingTable stages cross-context subscriptions whose target context has
// no instance yet, keyed by context key then action name.
type pendingTable map[string]map[string]*orderedset.Set[*subscriber]

func (p pendingTable) add(key, action string, s *subscriber) {
	byAction, ok := p[key]
	if !ok {
		byAction = make(map[string]*orderedset.Set[*subscriber])
		p[key] = byAction
	}
	subscribeTo(byAction, action, s)
}

func (p pendingTable) remove(key, action string, s *subscriber) {
	byAction, ok := p[key]
	if !ok {
		return
	}
	unsubscribeFrom(byAction, action, s)
	if len(byAction) == 0 {
		delete(p, key)
	}
}

// merge moves staged subscriptions onto targets that now exist. A staged
// reference to an action the target does not define is dropped and
// returned as a bind error.
func (p pendingTable) merge(instances map[string]*instance) []error {
	var errs []error
	for key, byAction := range p {
		inst, ok := instances[key]
		if !ok {
			continue
		}
		for action, set := range byAction {
			if _, ok := inst.tmpl.Actions[action]; !ok {
				for _, s := range set.Values() {
					errs = append(errs, &BindError{
						Node: s.node,
						Attr: s.attr,
						Err:  &ResolutionError{Kind: UnknownAction, Name: action, Context: key},
					})
				}
				continue
			}
			for _, s := range set.Values() {
				subscribeTo(inst.subscribers, action, s)
			}
		}
		delete(p, key)
	}
	return errs
}

// len returns the number of staged subscriptions.
func (p pendingTable) len() int {
	n := 0
	for _, byAction := range p {
		for _, set := range byAction {
			n += set.Len()
		}
	}
	return n
}
