package whatsapp

const messagingProduct = "whatsapp"

// OutboundMessage is the JSON body of a send-message call.
// Exactly one of Template or Text is set, matching Type.
type OutboundMessage struct {
	MessagingProduct string    `json:"messaging_product"`
	RecipientType    string    `json:"recipient_type,omitempty"`
	To               string    `json:"to"`
	Type             string    `json:"type"`
	Template         *Template `json:"template,omitempty"`
	Text             *Text     `json:"text,omitempty"`
}

type Template struct {
	Name     string   `json:"name"`
	Language Language `json:"language"`
}

type Language struct {
	Code string `json:"code"`
}

type Text struct {
	Body       string `json:"body"`
	PreviewURL bool   `json:"preview_url,omitempty"`
}

// NewTemplateMessage addresses a pre-approved template to a recipient.
func NewTemplateMessage(to, name, lang string) OutboundMessage {
	return OutboundMessage{
		MessagingProduct: messagingProduct,
		RecipientType:    "individual",
		To:               to,
		Type:             "template",
		Template:         &Template{Name: name, Language: Language{Code: lang}},
	}
}

// NewTextMessage addresses literal text to a recipient.
func NewTextMessage(to, body string) OutboundMessage {
	return OutboundMessage{
		MessagingProduct: messagingProduct,
		RecipientType:    "individual",
		To:               to,
		Type:             "text",
		Text:             &Text{Body: body},
	}
}

// SendResult holds the identifiers the provider assigned to a sent message.
type SendResult struct {
	MessageID string `json:"message_id,omitempty"`
	WAID      string `json:"wa_id,omitempty"`
}

type sendResponse struct {
	Contacts []struct {
		Input string `json:"input"`
		WAID  string `json:"wa_id"`
	} `json:"contacts"`
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}
