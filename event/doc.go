// Package event decodes the JSON events an ADK backend emits on its
// run_sse endpoint and in stored session histories.
//
// ADK serializes events with camelCase aliases ("invocationId",
// "groundingMetadata"); some relays and older backends forward the Python
// field names instead ("invocation_id", "grounding_metadata"). [Decode]
// accepts both spellings and normalizes them into one [Event] whose content
// and grounding payloads use the google.golang.org/genai types.
//
// Accessors such as [Event.Text], [Event.ToolCalls] and [Event.Citations]
// flatten the nested payloads into the shapes the session reducer works with.
package event
