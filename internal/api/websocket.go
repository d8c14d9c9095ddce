package api

import (
	"context"
	"encoding/json"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/coder/websocket"
)

func accept(w http.ResponseWriter, r *http.Request) (*websocket.Conn, context.Context, error) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		return nil, nil, err
	}
	return c, r.Context(), nil
}

// StreamStateEvents subscribes the websocket client to the stack's
// state tap: a snapshot of every socket's current state, then live
// transitions until either side closes.
func StreamStateEvents(s *Service, w http.ResponseWriter, r *http.Request) {
	c, ctx, err := accept(w, r)
	if err != nil {
		log.WithError(err).Error("Failed to accept websocket client")
		return
	}
	defer c.Close(websocket.StatusNormalClosure, "closing")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ch, unsub := s.stack.Subscribe()
	defer unsub()

	// Drain client reads so we notice a close.
	go func() {
		for {
			if _, _, err := c.Read(ctx); err != nil {
				cancel()
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			info := StateEventInfo{
				SocketID: ev.SocketID.String(),
				Device:   ev.Device,
				Events:   ev.Events.String(),
				Flags:    ev.Flags.String(),
			}
			b, err := json.Marshal(info)
			if err != nil {
				log.WithError(err).Error("Failed to encode state event")
				return
			}
			if err := c.Write(ctx, websocket.MessageText, b); err != nil {
				return
			}
		}
	}
}
