package types

// SSEFrame 是 StreamTranslator 产出的一帧，对应 "event: ...\ndata: ...\n\n"。
type SSEFrame struct {
	Event string
	Data  map[string]any
}
