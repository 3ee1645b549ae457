package websocket

// Message is the frame pushed to clients: an action discriminator plus
// its payload. Services marshal it before handing it to the hub.
type Message struct {
	Action  string      `json:"action"`
	Payload interface{} `json:"payload"`
}
