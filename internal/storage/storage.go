// Package storage реализует хранилище именованных коллекций: каждая
// коллекция читается и пишется целиком как JSON-массив. Повреждённое
// содержимое не считается ошибкой чтения: Load возвращает пустой срез,
// чтобы вызывающий код мог переинициализировать коллекцию обычным Save.
//
// Хранилище рассылает уведомления об изменениях. Доставка носит
// рекомендательный характер: без гарантий порядка и без гарантии
// доставки каждому подписчику.
package storage

import (
	"context"
	"encoding/json"
	"reflect"
)

// Имена коллекций.
const (
	CollectionUsers        = "users"
	CollectionPromocodes   = "promocodes"
	CollectionChatMessages = "chat_messages"
	CollectionReports      = "reports"
)

// Collections перечисляет все известные коллекции.
var Collections = []string{
	CollectionUsers,
	CollectionPromocodes,
	CollectionChatMessages,
	CollectionReports,
}

// Event — уведомление об изменении коллекции. Содержимое изменения не
// передаётся, подписчик перечитывает коллекцию сам.
type Event struct {
	Collection string `json:"collection"`
}

// Store — контракт бэкенда хранения. dest в Load и value в Save — указатель
// на срез доменных записей и срез соответственно. Subscribe без аргументов
// подписывает на все коллекции.
type Store interface {
	Load(ctx context.Context, collection string, dest any) error
	Save(ctx context.Context, collection string, value any) error
	Subscribe(collections ...string) (<-chan Event, func())
	Close() error
}

// decodePayload разбирает полезную нагрузку коллекции. Пустое или
// повреждённое содержимое приводит dest к пустому срезу без ошибки;
// возвращает признак повреждения для журнала вызывающей стороны.
func decodePayload(collection string, payload []byte, dest any) (corrupt bool) {
	if len(payload) == 0 {
		clearDest(dest)
		return false
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		corruptPayloads.WithLabelValues(collection).Inc()
		clearDest(dest)
		return true
	}
	return false
}

// clearDest приводит значение за указателем к пустому срезу. Незнакомые
// формы назначения обнуляются.
func clearDest(dest any) {
	v := reflect.ValueOf(dest)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return
	}
	elem := v.Elem()
	if elem.Kind() == reflect.Slice {
		elem.Set(reflect.MakeSlice(elem.Type(), 0, 0))
		return
	}
	elem.Set(reflect.Zero(elem.Type()))
}
