/*
Package session runs many independent reasoning chains side by side.

The Manager starts each chain in its own goroutine, keeps the latest snapshot of
every chain in a ports.ChainStore, fans snapshot updates out through a
ports.Broadcaster and lets callers cancel or wait for a chain. Chains share nothing
but the Reasoner's configuration.
*/
package session
