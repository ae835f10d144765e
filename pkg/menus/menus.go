package menus

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

var (
	buttonBackTo = "Back to"
)

// ApplicationMenu places an app inside the bot's menu tree: its own
// name, the menu it was opened from, and the keyboard to restore when
// the user backs out.
type ApplicationMenu struct {
	Name     string
	From     string
	PrevMenu tgbotapi.ReplyKeyboardMarkup
}

func NewApplicationMenu(name, from string, prevMenu tgbotapi.ReplyKeyboardMarkup) ApplicationMenu {
	return ApplicationMenu{
		Name:     name,
		From:     from,
		PrevMenu: prevMenu,
	}
}

func (am *ApplicationMenu) ButtonBackTo() string {
	return buttonBackTo + " " + am.From
}
