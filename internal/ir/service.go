package ir

// ServiceDefinition describes how the host service manager runs the
// inference server.
type ServiceDefinition struct {
	Name        string
	Description string
	After       []string
	WorkDir     string
	Environment [][2]string // ordered key/value pairs
	ExecStart   []string
	Restart     string
	RestartSec  int
	WantedBy    string
}
