package request

// Instance returns the request-scoped instance that is associated with
// the given key, and builds it with newFunc on first access. Subsequent
// calls with the same key in the same request return the same instance.
//
// Keys are typically unique per handler registration, so each registered
// handler is built at most once per request, and only if it's needed.
func Instance[T any](rc *Context, key any, newFunc func(rc *Context) T) T {
	rc.mu.Lock()
	if v, ok := rc.instances[key]; ok {
		rc.mu.Unlock()
		return v.(T)
	}
	rc.mu.Unlock()

	// Build outside the lock, since constructors may use the request too.
	v := newFunc(rc)

	rc.mu.Lock()
	defer rc.mu.Unlock()

	// Another goroutine may have built the same instance concurrently.
	if existing, ok := rc.instances[key]; ok {
		return existing.(T)
	}
	rc.instances[key] = v
	return v
}
