package client

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/spetersoncode/adkchat"
	"github.com/spetersoncode/adkchat/event"
)

// titleRunes is the maximum length of a derived session title.
const titleRunes = 40

// Session is an ADK session with its stored event history.
type Session struct {
	ID             string         `json:"id"`
	AppName        string         `json:"appName"`
	UserID         string         `json:"userId"`
	State          map[string]any `json:"state,omitempty"`
	Events         []event.Event  `json:"events"`
	LastUpdateTime time.Time      `json:"-"`
}

// UnmarshalJSON accepts both the camelCase and snake_case field spellings.
func (s *Session) UnmarshalJSON(data []byte) error {
	var w struct {
		ID                  string         `json:"id"`
		AppName             string         `json:"appName"`
		AppNameSnake        string         `json:"app_name"`
		UserID              string         `json:"userId"`
		UserIDSnake         string         `json:"user_id"`
		State               map[string]any `json:"state"`
		Events              []event.Event  `json:"events"`
		LastUpdateTime      float64        `json:"lastUpdateTime"`
		LastUpdateTimeSnake float64        `json:"last_update_time"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	*s = Session{
		ID:      w.ID,
		AppName: orDefault(w.AppName, w.AppNameSnake),
		UserID:  orDefault(w.UserID, w.UserIDSnake),
		State:   w.State,
		Events:  w.Events,
	}
	ts := w.LastUpdateTime
	if ts == 0 {
		ts = w.LastUpdateTimeSnake
	}
	if ts > 0 {
		s.LastUpdateTime = event.TimeFromSeconds(ts)
	}
	return nil
}

// Title derives a display title from the first user message, truncated to
// 40 runes. Sessions without user text are titled by their id.
func (s Session) Title() string {
	for _, ev := range s.Events {
		if ev.Role() != event.RoleUser || ev.Content == nil || len(ev.Content.Parts) == 0 {
			continue
		}
		first := ev.Content.Parts[0]
		if first == nil || first.Text == "" {
			continue
		}
		r := []rune(first.Text)
		if len(r) > titleRunes {
			r = r[:titleRunes]
		}
		return string(r)
	}
	return s.ID
}

// CreateSession registers a session with the given id.
// A session that already exists is not an error.
func (c *Client) CreateSession(ctx context.Context, id string) error {
	if id == "" {
		return adkchat.NewUserInputError("session id is required", 0, adkchat.ErrEmptyInput)
	}
	alreadyExists := func(resp *http.Response) (bool, error) {
		return resp.StatusCode == http.StatusConflict, nil
	}
	return c.call(ctx, "create_session", id, http.MethodPost, c.sessionPath(id), struct{}{}, nil, alreadyExists)
}

// ListSessions returns every session of the configured app and user.
func (c *Client) ListSessions(ctx context.Context) ([]Session, error) {
	var sessions []Session
	if err := c.call(ctx, "list_sessions", "", http.MethodGet, c.sessionsPath(), nil, &sessions, nil); err != nil {
		return nil, err
	}
	return sessions, nil
}

// GetSession fetches one session with its full history.
// A missing session yields an error matching adkchat.ErrSessionNotFound.
func (c *Client) GetSession(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, adkchat.NewUserInputError("session id is required", 0, adkchat.ErrEmptyInput)
	}
	notFound := func(resp *http.Response) (bool, error) {
		if resp.StatusCode != http.StatusNotFound {
			return false, nil
		}
		return true, adkchat.NewPermanentError("Endpoint returned 404: Not Found", http.StatusNotFound, adkchat.ErrSessionNotFound)
	}

	var s Session
	if err := c.call(ctx, "get_session", id, http.MethodGet, c.sessionPath(id), nil, &s, notFound); err != nil {
		return nil, err
	}
	return &s, nil
}
