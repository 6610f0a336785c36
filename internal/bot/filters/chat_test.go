package filters

import (
	"testing"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/assert"
)

func TestCheckAccess(t *testing.T) {
	f := NewChatFilter(func(id int64) bool { return id == -100 })
	user := &telego.User{ID: 1}

	assert.True(t, f.CheckAccess(telego.Chat{ID: -100, Type: "supergroup"}, user))
	assert.False(t, f.CheckAccess(telego.Chat{ID: -200, Type: "supergroup"}, user), "чужой чат")
	assert.False(t, f.CheckAccess(telego.Chat{ID: 1, Type: "private"}, user), "личка")
	assert.False(t, f.CheckAccess(telego.Chat{ID: -100, Type: "supergroup"}, nil))
	assert.False(t, f.CheckAccess(telego.Chat{ID: -100, Type: "group"}, &telego.User{ID: 2, IsBot: true}))

	open := NewChatFilter(nil)
	assert.True(t, open.CheckAccess(telego.Chat{ID: -300, Type: "group"}, user))
}
