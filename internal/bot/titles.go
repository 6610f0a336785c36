package bot

import (
	"context"
	"fmt"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

// ChatGetter — метод getChat Bot API.
type ChatGetter interface {
	GetChat(ctx context.Context, params *telego.GetChatParams) (*telego.ChatFullInfo, error)
}

// ChatTitles спрашивает название чата у Telegram, когда его нет в базе.
type ChatTitles struct {
	api ChatGetter
}

func NewChatTitles(api ChatGetter) *ChatTitles {
	return &ChatTitles{api: api}
}

func (t *ChatTitles) ChatTitle(ctx context.Context, chatID int64) (string, error) {
	chat, err := t.api.GetChat(ctx, &telego.GetChatParams{ChatID: tu.ID(chatID)})
	if err != nil {
		return "", fmt.Errorf("getChat %d: %w", chatID, err)
	}
	return chat.Title, nil
}
