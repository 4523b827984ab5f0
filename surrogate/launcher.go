package surrogate

import (
	"go.uber.org/zap"
)

// DefaultPath is where the surrogate executable is looked for when no path
// is configured.
const DefaultPath = "./process"

// OSLauncher launches surrogates as child OS processes. The child is started
// as `Path name` with its stdin and stdout connected to the handle.
type OSLauncher struct {
	Path   string
	Env    []string
	Logger *zap.Logger
}

// Launch returns the handle of a surrogate that is not spawned yet.
func (l *OSLauncher) Launch(name string) Surrogate {
	path := l.Path
	if path == "" {
		path = DefaultPath
	}

	ctl := &osControl{
		path: path,
		args: []string{name},
		env:  l.Env,
	}

	return newHandle(name, ctl, l.Logger)
}
