// package query is the aggregation layer: one entry point per logical query,
// each composing one or more upstream calls through the resilient invoker.
//
// Credentials live in a per-request [Session], never in process-wide state.
// The invoker refreshes an expired access token at most once per session, and
// concurrent sibling calls share that refresh instead of issuing their own.
package query
