// Package sse extracts data payloads from a server-sent event stream.
//
// A [Parser] is fed raw chunks as they arrive from the network and returns
// the payload of every frame a chunk completes. Frames are separated by a
// blank line; each "data:" line contributes to the frame's payload and
// multiple data lines are joined in order. Partial frames are buffered until
// their terminator arrives, so chunk boundaries may fall anywhere, including
// inside a line or between "\r" and "\n".
//
// Parsers hold no global state. Use one per stream.
package sse
