// package repositories provides the persistence layer for cached profiles.
//
// The profile cache is a key-value style store (get by id, upsert) over
// SQLite. Writes are last-write-wins: concurrent requests touching the same
// user race by design, and each statement is individually atomic.
package repositories
