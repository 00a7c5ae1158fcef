package models

// Message — единица переписки. Сообщение либо адресовано конкретному
// получателю (RecipientID задан), либо является широковещательным.
//
// Идентификатор — метка времени в миллисекундах; при коллизии внутри одной
// миллисекунды сервис сдвигает её вверх, так что id строго монотонны.
type Message struct {
	ID          int64  `json:"id"`
	SenderID    int64  `json:"senderId"`
	RecipientID *int64 `json:"recipientId,omitempty"`
	Username    string `json:"username"`
	Roles       []Role `json:"roles"`
	Text        string `json:"text"`
	Image       string `json:"image,omitempty"`
	Timestamp   int64  `json:"timestamp"`
	IsSystem    bool   `json:"isSystem,omitempty"`
}

// IsBroadcast сообщает, является ли сообщение широковещательным.
func (m *Message) IsBroadcast() bool {
	return m.RecipientID == nil
}

// InvolvesPair проверяет, принадлежит ли личное сообщение переписке
// между парой пользователей a и b.
func (m *Message) InvolvesPair(a, b int64) bool {
	if m.RecipientID == nil {
		return false
	}
	return (m.SenderID == a && *m.RecipientID == b) ||
		(m.SenderID == b && *m.RecipientID == a)
}
