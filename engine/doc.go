package engine

// Design overview.
//
// Engine owns three hash-bucketed indices (published records, cached
// records, active queries) backed by small arenas with free-list recycling
// (arena.go, hash.go), and a five-queue send scheduler (scheduler.go) that
// drains them in the strict priority order RFC 6762's timing discipline
// requires: unicast replies, then immediate multicast, then publish
// retries, then paused (jittered) shared-record answers, then probing,
// then query retries, then opportunistic cache GC.
//
// The package never touches a socket or the wall clock directly — Clock
// and Jitter (types.go) are the only collaborators it calls out to. Clock
// is read each time the current time is needed, which can be several times
// within one Input or Output invocation; Jitter is asked once each time a
// shared-record answer is paused.
