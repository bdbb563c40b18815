package session

// CloseReason is the human-readable text carried in the close frame when a
// session terminates.
type CloseReason string

const (
	// ReasonNone means the peer ended the stream cleanly; no close frame is sent.
	ReasonNone CloseReason = ""
	// ReasonTimeout fires when the idle timer wins the session race.
	ReasonTimeout CloseReason = "Timeout"
	// ReasonAbnormalPayload fires on an inbound frame over the byte ceiling.
	ReasonAbnormalPayload CloseReason = "Abnormal Payload"
	// ReasonInvalidColor fires on an inbound frame that is not a known color.
	ReasonInvalidColor CloseReason = "Invalid Color"
	// ReasonReadError fires on a transport-level read failure.
	ReasonReadError CloseReason = "Websocket Error"
	// ReasonWriteError fires when relaying a broadcast to the peer fails.
	ReasonWriteError CloseReason = "Websocket Sending Error"
)
