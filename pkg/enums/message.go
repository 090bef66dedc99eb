package enums

// MessageType is the coarse topic of a realtime envelope.
type MessageType string

const (
	MessageTypeOrder MessageType = "order"
)

// MessageAction narrows a MessageType to a concrete event.
type MessageAction string

const (
	MessageActionNewOrder      MessageAction = "new_order"
	MessageActionCreateMessage MessageAction = "create_message"
	MessageActionUpdateStatus  MessageAction = "update_status"
)

// NewOrderEventName is the label used for new-order pushes in logs and metrics.
const NewOrderEventName = "NEW_ORDER"
