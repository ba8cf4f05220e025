// Package mcp exposes conversations to MCP (Model Context Protocol) clients.
//
// MCP lets AI assistants call external tools. [NewServer] registers tools
// that drive the fact-checking conversations of an ADK backend:
//
//   - list_sessions: sessions with their titles, newest first
//   - get_transcript: the transcript of a session as text or JSON
//   - send_message: send a message, starting a session if none is given,
//     and by default wait for the reply
//   - resume_turn: resume an interrupted turn by invocation id
//   - stop_generation: stop the live turn of a session
//
// Serve over stdio for subprocess-based MCP clients:
//
//	if err := mcp.ServeStdio(conversations); err != nil {
//	    log.Fatal(err)
//	}
//
// [Remote] is the other side: it connects to such a server and calls its
// tools by name.
package mcp
