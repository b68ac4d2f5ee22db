// Package logx wraps zerolog behind a small Logger/Field API so call sites
// don't depend on zerolog directly and output sinks can be swapped at runtime
// via Service.Apply().
package logx
