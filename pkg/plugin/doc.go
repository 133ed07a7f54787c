// Package plugin is the extensibility surface of the analysis engine.
//
// Plugins contribute three kinds of capabilities, each resolved by name only:
//
//   - Facts: data producers evaluated against a file or the whole repository.
//   - Operators: predicates comparing a fact value to a configured value.
//   - Error actions: recovery hooks keyed "plugin:function", invoked when a
//     fact or operator fails during evaluation.
//
// Built-in capabilities register from init() functions in internal/facts.
// External code registers through the same calls at startup. The engine has
// no compile-time knowledge of plugin internals; a lookup for an absent name
// returns a typed error instead of a runtime import failure.
//
// Plugins that need asynchronous initialization run it via Registry.Go; the
// engine awaits Registry.Wait before any rule evaluation begins, so partial
// registration never silently proceeds.
package plugin
