package plugins

// Plugin describes one feature group of the request processor. A plugin owns
// a set of request paths and can be switched off in the plugin document.
type Plugin interface {
	Name() string
	Routes() []string
}
