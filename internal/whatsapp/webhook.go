package whatsapp

// InboundPayload is the webhook body the Cloud API posts for inbound
// messages. Only the parts the reply pipeline needs are mapped.
type InboundPayload struct {
	Object string `json:"object"`
	Entry  []struct {
		ID      string `json:"id"`
		Changes []struct {
			Value struct {
				MessagingProduct string `json:"messaging_product"`
				Metadata         struct {
					DisplayPhoneNumber string `json:"display_phone_number"`
					PhoneNumberID      string `json:"phone_number_id"`
				} `json:"metadata"`
				Messages []InboundMessage `json:"messages,omitempty"`
			} `json:"value"`
			Field string `json:"field"`
		} `json:"changes"`
	} `json:"entry"`
}

// InboundMessage is one message inside an inbound webhook delivery.
type InboundMessage struct {
	From      string `json:"from"`
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      struct {
		Body string `json:"body"`
	} `json:"text,omitempty"`
}

// FirstTextMessage returns the first text message in the payload, if any.
func (p *InboundPayload) FirstTextMessage() (InboundMessage, bool) {
	for _, entry := range p.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				if msg.Type == "text" {
					return msg, true
				}
			}
		}
	}
	return InboundMessage{}, false
}
