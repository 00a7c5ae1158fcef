// Package randcode генерирует короткие коды из заглавных букв и цифр,
// пригодные для ручного ввода (реферальные коды).
package randcode

import (
	"crypto/rand"
	"fmt"
)

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// byteLimit — наибольшее кратное длины алфавита, помещающееся в байт.
// Байты выше отбрасываются, иначе остаток от деления перекашивает
// распределение в пользу начала алфавита.
const byteLimit = 256 - 256%len(alphabet)

// ReferralLength — длина реферального кода.
const ReferralLength = 6

// Generate возвращает случайный код заданной длины с равномерным
// распределением символов.
func Generate(length int) (string, error) {
	const op = "randcode.Generate"

	out := make([]byte, 0, length)
	buf := make([]byte, length)
	for len(out) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		for _, b := range buf {
			if int(b) >= byteLimit {
				continue
			}
			out = append(out, alphabet[int(b)%len(alphabet)])
			if len(out) == length {
				break
			}
		}
	}
	return string(out), nil
}
