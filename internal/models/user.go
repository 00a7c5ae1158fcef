package models

import "time"

// SystemSenderID — зарезервированный идентификатор системного отправителя
// сообщений. Настоящие пользователи получают идентификаторы начиная с 0.
const SystemSenderID int64 = -1

// User представляет зарегистрированного пользователя системы.
//
// Пароль хранится в открытом виде: защита учётных данных — явная
// не-цель эмулируемого сервиса, вход проверяется точным совпадением.
type User struct {
	ID               int64     `json:"id"`                         // Монотонный идентификатор (max + 1, первый — 0)
	Username         string    `json:"username"`                   // Уникальное имя, сравнение с учётом регистра
	Password         string    `json:"password"`                   // Общий секрет в открытом виде
	CreatedAt        time.Time `json:"createdAt"`                  // Момент регистрации
	Bio              string    `json:"bio,omitempty"`              // Поле "о себе"
	TelegramID       string    `json:"telegramId,omitempty"`       // Контакт для восстановления доступа
	AvatarURL        string    `json:"avatarUrl,omitempty"`        // Ссылка либо data-URL аватара
	Roles            []Role    `json:"roles"`                      // Упорядоченный непустой набор ролей
	SubscriptionDays int       `json:"subscriptionDays"`           // Остаток дней лицензии, >= 0
	ReferralCode     string    `json:"referralCode"`               // Уникальный 6-символьный код, неизменяемый
	ReferralCount    int       `json:"referralCount"`              // Количество завершённых приглашений
	ActiveContactIDs []int64   `json:"activeContactIds,omitempty"` // Контакты, открывающие диалог в списке
	BlockedUserIDs   []int64   `json:"blockedUserIds,omitempty"`   // Отправители, скрытые из выдачи
	IsMuted          bool      `json:"isMuted,omitempty"`          // Флаг запрета отправки сообщений
	MuteUntil        int64     `json:"muteUntil,omitempty"`        // Конец мута, epoch ms
	IsInfoLocked     bool      `json:"isInfoLocked,omitempty"`     // Запрет редактирования профиля
	InfoLockUntil    int64     `json:"infoLockUntil,omitempty"`    // Конец запрета, epoch ms (0 — бессрочно)
	IsPhotoLocked    bool      `json:"isPhotoLocked,omitempty"`    // Запрет смены аватара
	PhotoLockUntil   int64     `json:"photoLockUntil,omitempty"`   // Конец запрета, epoch ms (0 — бессрочно)
}

// PrimaryRole возвращает основную роль (первый элемент набора).
func (u *User) PrimaryRole() Role {
	if len(u.Roles) == 0 {
		return RoleUser
	}
	return u.Roles[0]
}

// HasRole проверяет принадлежность роли к набору пользователя.
func (u *User) HasRole(role Role) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsModerator сообщает, держит ли пользователь хотя бы одну роль
// с доступом к модерации.
func (u *User) IsModerator() bool {
	for _, r := range u.Roles {
		if r.IsModeration() {
			return true
		}
	}
	return false
}

// HasActiveSubscription: лицензия активна, пока остаток дней больше нуля.
func (u *User) HasActiveSubscription() bool {
	return u.SubscriptionDays > 0
}

// IsMutedAt проверяет действие мута на момент nowMs (epoch ms).
func (u *User) IsMutedAt(nowMs int64) bool {
	return u.IsMuted && u.MuteUntil > nowMs
}

// InfoLockedAt проверяет запрет редактирования профиля на момент nowMs.
// Нулевой срок означает бессрочный запрет.
func (u *User) InfoLockedAt(nowMs int64) bool {
	return u.IsInfoLocked && (u.InfoLockUntil == 0 || u.InfoLockUntil > nowMs)
}

// PhotoLockedAt проверяет запрет смены аватара на момент nowMs.
func (u *User) PhotoLockedAt(nowMs int64) bool {
	return u.IsPhotoLocked && (u.PhotoLockUntil == 0 || u.PhotoLockUntil > nowMs)
}

// HasContact проверяет наличие id в списке активных контактов.
func (u *User) HasContact(id int64) bool {
	for _, c := range u.ActiveContactIDs {
		if c == id {
			return true
		}
	}
	return false
}

// AddContact идемпотентно добавляет контакт, возвращая true при изменении.
func (u *User) AddContact(id int64) bool {
	if u.HasContact(id) {
		return false
	}
	u.ActiveContactIDs = append(u.ActiveContactIDs, id)
	return true
}

// RemoveContact убирает контакт из списка, возвращая true при изменении.
func (u *User) RemoveContact(id int64) bool {
	for i, c := range u.ActiveContactIDs {
		if c == id {
			u.ActiveContactIDs = append(u.ActiveContactIDs[:i], u.ActiveContactIDs[i+1:]...)
			return true
		}
	}
	return false
}

// HasBlocked проверяет, скрыт ли отправитель с данным id.
func (u *User) HasBlocked(id int64) bool {
	for _, b := range u.BlockedUserIDs {
		if b == id {
			return true
		}
	}
	return false
}

// Block добавляет id в чёрный список и убирает его из контактов:
// блокировка и активный контакт взаимоисключающи.
func (u *User) Block(id int64) bool {
	changed := u.RemoveContact(id)
	if !u.HasBlocked(id) {
		u.BlockedUserIDs = append(u.BlockedUserIDs, id)
		changed = true
	}
	return changed
}
