// Package relay forwards browser requests to the ADK server.
//
// The relay is a reverse proxy that passes every path through unchanged and
// flushes each write, so text/event-stream responses reach the client as
// the backend produces them. Upstream statuses are passed through; an
// unreachable backend answers 502. Responses carry permissive CORS headers
// and every request is logged.
//
//	r, err := relay.New("http://localhost:8000")
//	if err != nil {
//		return err
//	}
//	http.ListenAndServe(":3000", r)
package relay
