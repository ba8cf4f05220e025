// Package session folds ADK events into conversation state.
//
// [Reducer.Apply] is the only way a conversation's transcript changes. It
// takes the current [adkchat.State] and one [event.Event] and returns the
// next state without modifying its input. Each event is dispatched by a
// fixed priority:
//
//  1. Partial text from the writer goes to the draft buffer.
//  2. User text is appended once; replays of the same text are ignored.
//  3. Tool calls attach to the open agent message or open a new one.
//  4. Agent text merges into the open message of the same author or opens
//     a new message.
//
// Grounding citations are collected after every step, deduplicated by URL.
//
// At most one message is open (streaming) at a time and it is always the
// last. Opening a message closes its predecessor.
package session
