// Package agui serves conversations to AG-UI compatible frontends.
//
// AG-UI (Agent-User Interface) is an open, event-based protocol that
// standardizes how AI agents connect to user-facing applications. The
// conversation state already holds the whole transcript, so the bridge
// publishes snapshots rather than deltas:
//
//   - MESSAGES_SNAPSHOT carries the transcript after every change
//   - STATE_SNAPSHOT carries the draft, the sources, the error and the
//     streaming flag
//   - RUN_STARTED, RUN_FINISHED and RUN_ERROR bracket each turn
//
// # Endpoints
//
// [Handler] exposes:
//
//	GET  /api/conversations               list sessions with titles
//	POST /api/conversations               {text} start a conversation
//	GET  /api/conversations/{id}          current state as JSON
//	GET  /api/conversations/{id}/events   AG-UI event feed (SSE)
//	POST /api/conversations/{id}/messages {text} send a message
//	POST /api/conversations/{id}/resume   {invocation_id} resume a turn
//	POST /api/conversations/{id}/stop     stop the live turn
//	POST /api/agent                       AG-UI RunAgentInput, streams one turn
//
// Turns started over HTTP outlive the request that started them; stop them
// with the stop endpoint.
//
// # Thread Safety
//
// The Mapper is NOT safe for concurrent use; each feed has its own. The
// Handler is safe for concurrent use.
package agui
