// Package loop drives one bounded working session: it pulls eligible tasks
// from the resolver, dispatches them to the external executor one at a
// time, updates the graph and budget tracker after each task, and decides
// when the session must stop and checkpoint.
//
// The control loop is cooperative and single-threaded. Exactly one task is
// in flight at a time, stop requests are honored at dispatch boundaries,
// and the progress record is persisted after every task transition so the
// durable state is never more than one transition stale.
package loop
