package models

// DTO входных данных сервисов. Проверяются validator'ом на границе сервиса,
// бизнес-правила (резерв имён, лимиты активаций) проверяются уже после.

// DummyRegister — данные регистрации нового пользователя.
type DummyRegister struct {
	Username string `json:"username" validate:"required,min=3,max=32"`
	Password string `json:"password" validate:"required,min=8"`
}

// DummyLogin — данные входа.
type DummyLogin struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// DummyProfileUpdate — редактируемая часть профиля.
type DummyProfileUpdate struct {
	Bio       string `json:"bio" validate:"max=500"`
	AvatarURL string `json:"avatarUrl" validate:"omitempty,max=2097152"`
}

// DummySecurityUpdate — смена контакта восстановления и пароля.
// Поля пароля опциональны: пустой NewPassword означает смену только контакта.
type DummySecurityUpdate struct {
	TelegramID      string `json:"telegramId" validate:"max=64"`
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword" validate:"omitempty,min=8"`
	ConfirmPassword string `json:"confirmPassword"`
}

// DummySend — отправка сообщения. Nil RecipientID означает широковещание.
type DummySend struct {
	RecipientID *int64 `json:"recipientId" validate:"omitempty,gte=0"`
	Text        string `json:"text"`
	Image       string `json:"image" validate:"omitempty,max=2097152"`
}

// DummyPromocode — создание промокода модератором.
type DummyPromocode struct {
	Code           string `json:"code" validate:"required,max=32"`
	Days           int    `json:"days" validate:"required,gt=0"`
	MaxActivations int    `json:"maxActivations" validate:"required,gt=0"`
}

// DummyReport — подача жалобы.
type DummyReport struct {
	ReportedID  int64  `json:"reportedId" validate:"gte=0"`
	Reason      string `json:"reason" validate:"required,oneof=spam insult scam other"`
	Description string `json:"description" validate:"max=1000"`
}

// DummyMute — наложение мута на пользователя.
type DummyMute struct {
	TargetID        int64 `json:"targetId" validate:"gte=0"`
	DurationMinutes int   `json:"durationMinutes" validate:"required,gt=0"`
}

// DummyLocks — установка блокировок профиля. Нулевой срок при взведённом
// флаге означает бессрочную блокировку.
type DummyLocks struct {
	TargetID       int64 `json:"targetId" validate:"gte=0"`
	InfoLocked     bool  `json:"infoLocked"`
	InfoLockUntil  int64 `json:"infoLockUntil" validate:"gte=0"`
	PhotoLocked    bool  `json:"photoLocked"`
	PhotoLockUntil int64 `json:"photoLockUntil" validate:"gte=0"`
}
