/*
Package observability binds chain lifecycle events to Prometheus metrics and
structured audit logs. Both are exposed as domain.LifecycleHooks, so they can be
merged and handed to the engine.
*/
package observability
