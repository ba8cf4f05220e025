// Package cache keeps the in-memory state of every conversation the process
// has touched and is the entry point for sending messages.
//
// A [Cache] owns one [adkchat.IDGenerator], one [session.Reducer] and one
// [stream.Controller]. Conversations loaded from the backend and
// conversations streamed live are built by the same reducer, so a reload
// produces the transcript the live stream showed.
//
// Reads return deep copies. Subscribers get the latest state of a
// conversation on a buffered channel; intermediate states may be skipped
// when a subscriber falls behind.
package cache
