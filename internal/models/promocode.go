package models

import "time"

// Promocode — административный код, выдающий дни подписки при активации.
// Код хранится в верхнем регистре, сравнение при активации нечувствительно
// к регистру ввода.
type Promocode struct {
	ID                 string    `json:"id"`
	Code               string    `json:"code"`
	Days               int       `json:"days"`
	MaxActivations     int       `json:"maxActivations"`
	CurrentActivations int       `json:"currentActivations"`
	CreatedBy          int64     `json:"createdBy"`
	CreatedAt          time.Time `json:"createdAt"`
}

// Exhausted сообщает, исчерпан ли лимит активаций кода.
func (p *Promocode) Exhausted() bool {
	return p.CurrentActivations >= p.MaxActivations
}

// Remaining возвращает остаток активаций, не опускаясь ниже нуля.
func (p *Promocode) Remaining() int {
	if rest := p.MaxActivations - p.CurrentActivations; rest > 0 {
		return rest
	}
	return 0
}
