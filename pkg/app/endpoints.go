package app

// Endpoint records the path of a named endpoint so pages and redirects can
// address it by name, e.g. a.Endpoint("auth.login", "/auth/login").
// Re-registering a name replaces its path.
func (a *Application) Endpoint(name, path string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.endpoints[name] = path
}

// URLFor returns the path recorded for name, or "" when the name is unknown.
func (a *Application) URLFor(name string) string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.endpoints[name]
}
