// Package file keeps user-editable state in the data directory.
//
// ConfigStore reads and writes config.toml. PromptStore loads system
// prompt overrides from the prompts/ directory.
package file
