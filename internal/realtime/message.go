package realtime

import "time"

// Channel every submission is published on.
const ChannelReports = "reports"

// Inbound message tags.
const (
	msgSubscribe = "subscribe"
)

// Outbound message tags.
const (
	msgConnected  = "connected"
	msgSubscribed = "subscribed"
	msgNewReport  = "new-report"
)

// inboundMessage is the tagged union of everything a client may send.
// Unknown tags are ignored; unparseable payloads are logged and dropped
// without closing the connection.
type inboundMessage struct {
	Type     string   `json:"type"`
	Channels []string `json:"channels,omitempty"`
}

// connectedMessage acknowledges the transport handshake. It does not imply
// a subscription.
type connectedMessage struct {
	Type     string    `json:"type"`
	ClientID string    `json:"clientId"`
	Message  string    `json:"message,omitempty"`
	Time     time.Time `json:"time"`
}

// subscribedMessage confirms the effective channel set.
type subscribedMessage struct {
	Type     string   `json:"type"`
	Channels []string `json:"channels"`
}

// eventMessage wraps a published payload for one channel.
type eventMessage struct {
	Type    string      `json:"type"`
	Channel string      `json:"channel"`
	Data    interface{} `json:"data"`
	Time    time.Time   `json:"time"`
}
