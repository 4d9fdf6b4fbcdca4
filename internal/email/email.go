// Package email holds the normalized message types shared between the
// parser, the ingestion loop, and the queue contract.
package email

// Address is a sender on a message: an optional display name plus the
// mandatory mailbox@host form.
type Address struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

// EmailMessage is the normalized representation of a fetched message,
// ready to be handed to the queue.
type EmailMessage struct {
	Account string    `json:"account"`
	Senders []Address `json:"senders"`
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
	SeqID   uint32    `json:"seq_id"`
}

// QueueMessage wraps exactly one EmailMessage; it is the sole contract
// with the downstream consumer.
type QueueMessage struct {
	EmailMessage EmailMessage `json:"email_message"`
}
