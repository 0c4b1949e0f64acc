// Package file provides file-based implementations of driven port interfaces.
//
// Adapters:
//   - ConfigStore: config.toml with dotted keys ("llm.provider") mapped onto TOML tables
//   - PromptStore: user-editable prompt templates with built-in fallbacks
package file
