// Package members хранит известных боту пользователей: id, @username и имя.
// Нужен, чтобы находить пользователя по @username в командах, подписывать
// рейтинг ответов и проверять существование пользователя в HTTP API.
package members

import (
	"strconv"
	"time"
)

// Member — пользователь, которого бот видел хотя бы раз.
type Member struct {
	ID        int64     `db:"id"`
	UserID    int64     `db:"user_id"`    // Telegram user ID
	Username  string    `db:"username"`   // без @, может быть пустым
	FirstName string    `db:"first_name"`
	LastName  string    `db:"last_name"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// DisplayName возвращает @username, иначе имя и фамилию, иначе числовой id.
func (m *Member) DisplayName() string {
	if m.Username != "" {
		return "@" + m.Username
	}
	name := m.FirstName
	if m.LastName != "" {
		if name != "" {
			name += " "
		}
		name += m.LastName
	}
	if name == "" {
		return strconv.FormatInt(m.UserID, 10)
	}
	return name
}

// signature — всё, что может поменяться у пользователя между сообщениями.
func (m *Member) signature() string {
	return m.Username + "\x00" + m.FirstName + "\x00" + m.LastName
}
