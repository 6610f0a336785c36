// Package common — errors.go определяет пользовательские ошибки,
// которые используются во всех модулях бота.
// Эти ошибки позволяют обработчикам различать типы проблем
// и отправлять пользователю понятные сообщения.
package common

import "errors"

// Ошибки валидации аргументов команд
var (
	// ErrInvalidArgument — не хватает аргументов или аргумент не разбирается
	ErrInvalidArgument = errors.New("некорректные аргументы команды")
	// ErrInvalidTimeString — строка времени не в формате 1h30m45s
	ErrInvalidTimeString = errors.New("некорректная строка времени, пример: 1h30m, 45s, 2h")
	// ErrUnknownScoreType — тип очков не post/question/chat
	ErrUnknownScoreType = errors.New("неизвестный тип очков (post, question, chat)")
	// ErrUnknownSource — неизвестный источник очков
	ErrUnknownSource = errors.New("неизвестный источник очков (post, post_reaction, question, answer, answer_reaction, chat, chat_reaction)")
	// ErrUnknownChannelType — тип канала не post/question/chat
	ErrUnknownChannelType = errors.New("неизвестный тип канала (post, question, chat)")
	// ErrInvalidAmount — число не разбирается или не конечное
	ErrInvalidAmount = errors.New("некорректное число")
)

// Ошибки каналов
var (
	// ErrChannelAlreadyBound — у канала уже есть тип
	ErrChannelAlreadyBound = errors.New("у этого канала уже есть тип, сначала снимите его")
	// ErrChannelTypeNotFound — у канала нет такого типа
	ErrChannelTypeNotFound = errors.New("у канала нет такого типа")
)

// Ошибки вопросов
var (
	// ErrQuestionStillOpen — предыдущий вопрос ещё не закрыт
	ErrQuestionStillOpen = errors.New("прошлый вопрос ещё не закрыт, сначала закройте его")
	// ErrNoQuestion — вопросов в канале ещё не было
	ErrNoQuestion = errors.New("вопрос не найден")
	// ErrQuestionAlreadyClosed — последний вопрос уже закрыт
	ErrQuestionAlreadyClosed = errors.New("вопрос уже закрыт")
	// ErrNotQuestionChannel — команда вызвана не в канале вопросов
	ErrNotQuestionChannel = errors.New("эта команда работает только в канале вопросов")
)

// Ошибки доступа и поиска
var (
	// ErrNotAdmin — пользователь не является администратором
	ErrNotAdmin = errors.New("у вас нет прав администратора")
	// ErrUserNotFound — пользователь не найден в базе
	ErrUserNotFound = errors.New("пользователь не найден")
)

// userFacing — ошибки, текст которых можно показывать пользователю как есть.
var userFacing = []error{
	ErrInvalidArgument, ErrInvalidTimeString, ErrUnknownScoreType, ErrUnknownSource,
	ErrUnknownChannelType, ErrInvalidAmount,
	ErrChannelAlreadyBound, ErrChannelTypeNotFound,
	ErrQuestionStillOpen, ErrNoQuestion, ErrQuestionAlreadyClosed, ErrNotQuestionChannel,
	ErrNotAdmin, ErrUserNotFound,
}

// UserMessage превращает ошибку в текст для пользователя.
// Инфраструктурные ошибки (БД, Telegram API) наружу не показываем.
func UserMessage(err error) string {
	if IsUserFacing(err) {
		return "❌ " + err.Error()
	}
	return "❌ Что-то пошло не так, попробуйте позже"
}

// IsUserFacing сообщает, относится ли ошибка к валидации или состоянию домена.
func IsUserFacing(err error) bool {
	for _, known := range userFacing {
		if errors.Is(err, known) {
			return true
		}
	}
	return false
}
