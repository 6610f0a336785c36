// Package commands описывает таблицу команд бота: имя команды,
// обработчик, нужны ли права администратора, минимум аргументов и подсказку.
// Пакеты фич отдают свои команды через Commands(), бот собирает их в одну Table.
package commands

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"serotonyl.ru/score-bot/internal/common"
)

// Request — разобранная команда из сообщения.
type Request struct {
	ChatID    int64
	ThreadID  int64 // 0 — General или чат без тем
	UserID    int64
	MessageID int64
	Name      string
	Args      []string
	// RawArgs — всё после имени команды как есть (для /answer с текстом)
	RawArgs string
	// ReplyToUserID — автор сообщения, на которое ответили; 0, если ответа нет
	ReplyToUserID int64
}

// Handler выполняет команду и возвращает текст ответа.
// Пустая строка — ничего не отправлять.
type Handler func(ctx context.Context, req Request) (string, error)

// Spec — описание одной команды.
type Spec struct {
	Name    string
	Usage   string
	Help    string
	Admin   bool
	MinArgs int
	Handler Handler
}

// Table — набор команд по имени.
type Table struct {
	specs map[string]Spec
}

// NewTable проверяет и собирает команды. Повторное имя, пустое имя или
// отсутствующий обработчик — ошибка конфигурации.
func NewTable(specs ...Spec) (*Table, error) {
	t := &Table{specs: make(map[string]Spec, len(specs))}
	for _, s := range specs {
		if s.Name == "" || strings.ContainsAny(s.Name, " \t\n") {
			return nil, fmt.Errorf("некорректное имя команды %q", s.Name)
		}
		if s.Handler == nil {
			return nil, fmt.Errorf("у команды %q нет обработчика", s.Name)
		}
		if s.MinArgs < 0 {
			return nil, fmt.Errorf("у команды %q отрицательный MinArgs", s.Name)
		}
		if _, dup := t.specs[s.Name]; dup {
			return nil, fmt.Errorf("команда %q зарегистрирована дважды", s.Name)
		}
		t.specs[s.Name] = s
	}
	return t, nil
}

// Lookup ищет команду по имени без учёта регистра.
func (t *Table) Lookup(name string) (Spec, bool) {
	s, ok := t.specs[strings.ToLower(name)]
	return s, ok
}

// Names возвращает имена команд по алфавиту.
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.specs))
	for name := range t.specs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Help собирает справку. Админские команды показываются только админам.
func (t *Table) Help(admin bool) string {
	var b strings.Builder
	b.WriteString("📖 Команды:\n")
	for _, name := range t.Names() {
		s := t.specs[name]
		if s.Admin && !admin {
			continue
		}
		b.WriteString("\n/")
		b.WriteString(s.Name)
		if s.Usage != "" {
			b.WriteString(" ")
			b.WriteString(s.Usage)
		}
		if s.Help != "" {
			b.WriteString(" — ")
			b.WriteString(s.Help)
		}
	}
	return b.String()
}

// UsageError — ошибка «не хватает аргументов» с подсказкой.
func UsageError(s Spec) error {
	return fmt.Errorf("%w, использование: /%s %s", common.ErrInvalidArgument, s.Name, s.Usage)
}

// Prefixes — символы, с которых может начинаться команда.
const Prefixes = "!./"

// Parse разбирает текст сообщения в имя команды и аргументы.
// Суффикс @botname у имени отбрасывается. ok == false, если это не команда.
func Parse(text string) (name string, args []string, raw string, ok bool) {
	text = strings.TrimSpace(text)
	if text == "" || !strings.ContainsRune(Prefixes, rune(text[0])) {
		return "", nil, "", false
	}
	body := text[1:]
	head, rest := body, ""
	if i := strings.IndexFunc(body, unicode.IsSpace); i >= 0 {
		head, rest = body[:i], body[i:]
	}
	head, _, _ = strings.Cut(head, "@")
	if head == "" {
		return "", nil, "", false
	}
	raw = strings.TrimSpace(rest)
	return strings.ToLower(head), strings.Fields(raw), raw, true
}

// ThreadArg берёт необязательный номер темы из args[idx],
// по умолчанию — тему, в которой вызвана команда.
func ThreadArg(req Request, idx int) (int64, error) {
	if len(req.Args) <= idx {
		return req.ThreadID, nil
	}
	id, err := strconv.ParseInt(req.Args[idx], 10, 64)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("%w: номер темы %q", common.ErrInvalidArgument, req.Args[idx])
	}
	return id, nil
}
