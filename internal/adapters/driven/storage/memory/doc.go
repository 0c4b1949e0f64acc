// Package memory provides in-memory storage adapters for ephemeral runs and tests.
package memory
