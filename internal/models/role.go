// Package models содержит доменные записи эмулируемого бэкенда:
// пользователей, промокоды, сообщения и жалобы, а также DTO для приёма
// входных данных и общие ошибки бизнес-уровня.
package models

// Role — тег роли пользователя. Роли хранятся упорядоченным непустым
// набором, первый элемент набора считается основной ролью для отображения.
type Role string

// Известные роли. Проверки прав выполняются по принадлежности к набору,
// а не по точному равенству всего набора.
const (
	RoleOwner     Role = "OWNER"
	RoleAdmin     Role = "ADMIN"
	RoleDeveloper Role = "DEVELOPER"
	RoleHelper    Role = "HELPER"
	RoleUser      Role = "USER"
	RoleVerified  Role = "VERIFIED"
	RoleWasted    Role = "WASTED"
)

// moderationRoles — плоский набор ролей с доступом к модерации.
// Ни одна роль не подразумевает другую.
var moderationRoles = map[Role]struct{}{
	RoleOwner:     {},
	RoleAdmin:     {},
	RoleDeveloper: {},
	RoleHelper:    {},
}

// IsModeration сообщает, даёт ли роль доступ к операциям модерации.
func (r Role) IsModeration() bool {
	_, ok := moderationRoles[r]
	return ok
}
