// Package policy collects the configuration records consumed by the rest of
// the client core.
//
// Every policy type here is a value type, immutable once handed to a
// command: callers build one with its NewXPolicy constructor, tweak fields
// on the returned copy, and pass it by value into the operation. There is no
// process-wide default registry — ClientPolicy
// itself is just another value the caller constructs and owns.
package policy
