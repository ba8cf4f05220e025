// Package stream runs agent turns and applies their events to conversation state.
//
// A [Controller] allows one live run per conversation. Starting a run for a
// conversation that already has one revokes the old run first: its state is
// finalized immediately and anything it receives afterwards is discarded.
// The revocation, the installation of the new run and every state update a
// run makes are serialized by one mutex, so a stale run can never write
// after its successor has been installed.
//
// Each run moves through these phases:
//
//	idle → starting → streaming → completing | cancelled | failed
//
// Starting inserts an empty, open agent message before any network traffic
// so consumers can show progress at once. When the run ends every open
// message is closed; the placeholder is removed if nothing ever filled it.
// Transport failures are recorded on the state's Error field. Cancellation,
// whether by Stop, by a superseding Start or by the caller's context, is
// never recorded as an error.
//
// Frames that fail to decode are logged and skipped; the run continues.
package stream
