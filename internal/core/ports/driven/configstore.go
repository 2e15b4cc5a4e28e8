package driven

// ConfigStore is the file layer of configuration. Keys are dotted paths
// into nested tables, such as "embedding.provider".
type ConfigStore interface {
	// Lookup returns the scalar at key rendered as a string. Tables are not values.
	Lookup(key string) (string, bool)

	// Set stores value at key, creating tables as needed, and persists the file.
	Set(key, value string) error

	// Keys returns every key holding a value, sorted.
	Keys() []string

	// Path returns the backing file.
	Path() string
}
