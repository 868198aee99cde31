// Package collector defines the domain model for the odds collector:
// entities, snapshots, the in-memory entity stores, and the
// reconciliation that turns one snapshot into a change set.
package collector
