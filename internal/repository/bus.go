package repository

// EventsTopic carries every appended account event.
const EventsTopic = "accounts.events"

type MessageBus interface {
	Publish(topic string, data []byte) error
}
