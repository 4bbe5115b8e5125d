package internal

import "github.com/starford/gebo/internal/merge"

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config  *Config
	confirm merge.ConfirmFunc
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithConfirm installs a hook that is asked before each backlink rewrite
// during a whole-file merge. Without it rewrites proceed unprompted.
func WithConfirm(fn merge.ConfirmFunc) Option {
	return func(a *application) {
		a.confirm = fn
	}
}
