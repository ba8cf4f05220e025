// Package adkchat holds the conversation model shared by every layer that
// talks to an ADK agent backend over server-sent events.
//
// A conversation is represented by an immutable [State]: the ordered
// transcript of [Message] values, the writer's draft text, the collected
// [Citation] list and the streaming/error flags. Layers never mutate a
// published State; the reducer in the session package derives a new one
// for each backend event.
//
// # Packages
//
//   - sse: splits a byte stream into "data:" frame payloads
//   - event: decodes ADK event JSON into [github.com/spetersoncode/adkchat/event.Event]
//   - session: the pure reducer folding events into State
//   - stream: one cancelable run per conversation, with supersession
//   - cache: per-conversation states, subscriptions and session loading
//   - client: HTTP client for the ADK session and run_sse endpoints
//   - agui, mcp, relay: outward surfaces built on the cache
//
// # Errors
//
// Backend failures are reported as categorized [Error] values. Use
// [IsTransient], [IsPermanent] and [IsUserInput] to decide how to react,
// and [IsCanceled] to recognize a stream that was stopped or superseded.
// Cancellation is never recorded as a conversation error.
//
// # Message IDs
//
// Messages are identified client-side by an [IDGenerator]. IDs look like
// "msg-7-1718000000000" and are unique for the lifetime of the process.
package adkchat
