package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUser_RoleHelpers(t *testing.T) {
	u := User{Roles: []Role{RoleHelper, RoleVerified}}

	assert.Equal(t, RoleHelper, u.PrimaryRole())
	assert.True(t, u.HasRole(RoleVerified))
	assert.False(t, u.HasRole(RoleAdmin))
	assert.True(t, u.IsModerator())

	plain := User{Roles: []Role{RoleUser}}
	assert.False(t, plain.IsModerator())

	empty := User{}
	assert.Equal(t, RoleUser, empty.PrimaryRole())
}

func TestUser_MuteWindow(t *testing.T) {
	u := User{IsMuted: true, MuteUntil: 1000}

	assert.True(t, u.IsMutedAt(999))
	assert.False(t, u.IsMutedAt(1000))

	// флаг без срока не действует
	assert.False(t, (&User{IsMuted: true}).IsMutedAt(0))
}

func TestUser_Locks(t *testing.T) {
	// нулевой срок означает бессрочную блокировку
	forever := User{IsInfoLocked: true}
	assert.True(t, forever.InfoLockedAt(1))

	timed := User{IsPhotoLocked: true, PhotoLockUntil: 500}
	assert.True(t, timed.PhotoLockedAt(499))
	assert.False(t, timed.PhotoLockedAt(500))

	var unlocked User
	assert.False(t, unlocked.InfoLockedAt(0))
}

func TestUser_ContactsAndBlocks(t *testing.T) {
	u := User{}

	assert.True(t, u.AddContact(5))
	assert.False(t, u.AddContact(5))
	assert.True(t, u.HasContact(5))

	assert.True(t, u.Block(5))
	assert.False(t, u.HasContact(5))
	assert.True(t, u.HasBlocked(5))

	// повторная блокировка ничего не меняет
	assert.False(t, u.Block(5))

	assert.False(t, u.RemoveContact(5))
}
