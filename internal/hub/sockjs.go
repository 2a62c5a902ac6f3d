package hub

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/igm/sockjs-go/sockjs"
)

const clientBuffer = 16

// Handler serves display boards over SockJS under prefix. Boards send
// {"action":"subscribe","service_id":"..."} to narrow the stream.
func (h *Hub) Handler(prefix string) http.Handler {
	return sockjs.NewHandler(prefix, sockjs.DefaultOptions, h.serveSession)
}

func (h *Hub) serveSession(session sockjs.Session) {
	client := &Client{ID: uuid.NewString(), Send: make(chan []byte, clientBuffer)}
	if req := session.Request(); req != nil {
		client.Subscription.ServiceID = req.URL.Query().Get("service_id")
	}
	h.Register(client)
	defer h.Unregister(client)
	h.logger.Debug("realtime client connected", "client_id", client.ID, "service_id", client.Subscription.ServiceID, "clients", h.Len())

	go func() {
		for msg := range client.Send {
			if err := session.Send(string(msg)); err != nil {
				return
			}
		}
	}()

	for {
		msg, err := session.Recv()
		if err != nil {
			return
		}
		parsed, ok := ParseSubscribe([]byte(msg))
		if !ok {
			continue
		}
		if parsed.Action == "unsubscribe" {
			h.UpdateSubscription(client, Subscription{})
			continue
		}
		h.UpdateSubscription(client, Subscription{ServiceID: parsed.ServiceID})
	}
}
