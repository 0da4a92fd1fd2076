package hctx

// mergeMiddleware joins middleware lists in order, dropping repeats. The
// result never aliases the inputs.
func mergeMiddleware(handler string, lists ...[]*Middleware) ([]*Middleware, bool, error) {
	var (
		out   []*Middleware
		seen  = make(map[*Middleware]bool)
		async bool
		index int
	)
	for _, list := range lists {
		for _, m := range list {
			if !m.valid() {
				return nil, false, &MiddlewareTypeError{Handler: handler, Index: index}
			}
			index++
			if seen[m] {
				continue
			}
			seen[m] = true
			out = append(out, m)
			async = async || m.Async()
		}
	}
	return out, async, nil
}
