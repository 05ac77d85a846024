package transport

// Middleware wraps a Handler around an EntryService call. The HTTP adapter
// builds one Handler per request and runs it through the chain.
type Middleware func(Handler) Handler

// Chain composes middleware so that Chain(a, b, c)(h) runs a, then b, then
// c before h. Nil entries are skipped, which lets callers build the list
// conditionally.
func Chain(middlewares ...Middleware) Middleware {
	return func(next Handler) Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			if middlewares[i] == nil {
				continue
			}
			next = middlewares[i](next)
		}
		return next
	}
}
