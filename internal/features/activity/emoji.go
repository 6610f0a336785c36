package activity

import (
	"fmt"
	"strings"

	"serotonyl.ru/score-bot/internal/features/questions"
)

// emojiByCode — коды эмодзи, которые можно указать в REACTION_LIKE_CODES
// и REACTION_DISLIKE_CODES. Только реакции, доступные в Telegram.
var emojiByCode = map[string]string{
	"thumbs_up":                     "👍",
	"thumbs_down":                   "👎",
	"red_heart":                     "❤",
	"fire":                          "🔥",
	"clapping_hands":                "👏",
	"beaming_face":                  "😁",
	"thinking_face":                 "🤔",
	"party_popper":                  "🎉",
	"star_struck":                   "🤩",
	"folded_hands":                  "🙏",
	"ok_hand":                       "👌",
	"heart_eyes":                    "😍",
	"hundred_points":                "💯",
	"rolling_on_the_floor_laughing": "🤣",
	"high_voltage":                  "⚡",
	"trophy":                        "🏆",
	"broken_heart":                  "💔",
	"raised_eyebrow":                "🤨",
	"neutral_face":                  "😐",
	"pile_of_poo":                   "💩",
	"clown_face":                    "🤡",
	"yawning_face":                  "🥱",
	"nauseated_face":                "🤮",
	"crying_face":                   "😢",
	"handshake":                     "🤝",
	"eyes":                          "👀",
	"moai":                          "🗿",
	"cool_button":                   "🆒",
	"smiling_face_with_sunglasses":  "😎",
	"enraged_face":                  "😡",
}

// Classifier решает, считается ли эмодзи лайком или дизлайком.
type Classifier struct {
	kinds map[string]questions.Reaction
}

// NewClassifier строит классификатор по кодам эмодзи. Неизвестный код — ошибка.
func NewClassifier(likeCodes, dislikeCodes []string) (*Classifier, error) {
	c := &Classifier{kinds: make(map[string]questions.Reaction)}
	add := func(codes []string, kind questions.Reaction) error {
		for _, code := range codes {
			code = strings.ToLower(strings.TrimSpace(code))
			if code == "" {
				continue
			}
			e, ok := emojiByCode[code]
			if !ok {
				return fmt.Errorf("неизвестный код эмодзи %q", code)
			}
			if prev, dup := c.kinds[e]; dup && prev != kind {
				return fmt.Errorf("эмодзи %q указан и как лайк, и как дизлайк", code)
			}
			c.kinds[e] = kind
		}
		return nil
	}
	if err := add(likeCodes, questions.ReactionLike); err != nil {
		return nil, err
	}
	if err := add(dislikeCodes, questions.ReactionDislike); err != nil {
		return nil, err
	}
	return c, nil
}

// Classify возвращает вид реакции или 0, если эмодзи не учитывается.
func (c *Classifier) Classify(emoji string) questions.Reaction {
	// Telegram присылает эмодзи то с вариационным селектором, то без
	return c.kinds[strings.TrimSuffix(emoji, "\ufe0f")]
}
