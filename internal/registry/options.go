package registry

import "time"

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(logger Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithCallTimeout bounds every handler call. Zero disables the bound.
func WithCallTimeout(d time.Duration) Option {
	return func(r *Registry) {
		r.callTimeout = d
	}
}

// WithObserver adds an observer. Observers are notified in the order added.
func WithObserver(o Observer) Option {
	return func(r *Registry) {
		if o != nil {
			r.observers = append(r.observers, o)
		}
	}
}

// WithFactory replaces Load as the handler factory.
func WithFactory(f Factory) Option {
	return func(r *Registry) {
		if f != nil {
			r.factory = f
		}
	}
}
