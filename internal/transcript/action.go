package transcript

import "encoding/json"

// ActionCard is a structured message payload rendered as a clickable card,
// e.g. the "continue on WhatsApp" handoff the admin can send.
type ActionCard struct {
	Type   string `json:"type"`
	Action string `json:"action"`
	Label  string `json:"label"`
	URL    string `json:"url"`
}

const actionCardType = "action_card"

// ParseActionCard reports whether text encodes an action card and returns it.
func ParseActionCard(text string) (ActionCard, bool) {
	var card ActionCard
	if err := json.Unmarshal([]byte(text), &card); err != nil {
		return ActionCard{}, false
	}
	if card.Type != actionCardType || card.URL == "" {
		return ActionCard{}, false
	}
	return card, true
}

// NewActionCard serializes an action card into message text.
func NewActionCard(action, label, url string) (string, error) {
	b, err := json.Marshal(ActionCard{
		Type:   actionCardType,
		Action: action,
		Label:  label,
		URL:    url,
	})
	if err != nil {
		return "", err
	}
	return string(b), nil
}
