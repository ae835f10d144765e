package apps

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"openf1companion/pkg/menus"
	"openf1companion/pkg/openf1"
)

const (
	commandRadio = "/radio"
	buttonRadio  = "Radio"

	// most recent messages shown per driver
	radioMessages = 5
)

// RadioApp lists the latest team-radio recordings for the tracked
// drivers, newest last, as plain links.
type RadioApp struct {
	bot        *tgbotapi.BotAPI
	appMenu    menus.ApplicationMenu
	api        *openf1.Client
	sessionKey string
	sessions   []DriverSession

	menuKeyboard tgbotapi.ReplyKeyboardMarkup
}

func NewRadioApp(bot *tgbotapi.BotAPI, appMenu menus.ApplicationMenu, api *openf1.Client, sessionKey string, sessions []DriverSession) *RadioApp {
	menuKeyboard := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(buttonRadio),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(appMenu.ButtonBackTo()),
		),
	)

	return &RadioApp{
		bot:          bot,
		appMenu:      appMenu,
		api:          api,
		sessionKey:   sessionKey,
		sessions:     sessions,
		menuKeyboard: menuKeyboard,
	}
}

func (ra *RadioApp) Menu() tgbotapi.ReplyKeyboardMarkup {
	return ra.menuKeyboard
}

func (ra *RadioApp) AcceptCommand(command string) (bool, func(ctx context.Context, chatId int64) error) {
	if command == commandRadio {
		return true, ra.renderRadio()
	}
	return false, nil
}

func (ra *RadioApp) AcceptCallback(query *tgbotapi.CallbackQuery) (bool, func(ctx context.Context, query *tgbotapi.CallbackQuery) error) {
	return false, nil
}

func (ra *RadioApp) AcceptButton(button string) (bool, func(ctx context.Context, chatId int64) error) {
	switch button {
	case buttonRadio:
		return true, ra.renderRadio()
	case ra.appMenu.ButtonBackTo():
		return true, func(ctx context.Context, chatId int64) error {
			msg := tgbotapi.NewMessage(chatId, "OK")
			msg.ReplyMarkup = ra.appMenu.PrevMenu
			_, err := ra.bot.Send(msg)
			return err
		}
	}
	return false, nil
}

func (ra *RadioApp) renderRadio() func(ctx context.Context, chatId int64) error {
	return func(ctx context.Context, chatId int64) error {
		sections := make([]string, 0, len(ra.sessions))
		for _, session := range ra.sessions {
			snap := session.Snapshot()
			recordings, err := ra.api.TeamRadio(ctx, ra.sessionKey, snap.DriverNumber)
			if err != nil {
				sections = append(sections, fmt.Sprintf("%s: team radio unavailable", driverLabel(snap)))
				continue
			}
			if len(recordings) == 0 {
				sections = append(sections, fmt.Sprintf("%s: no radio messages yet", driverLabel(snap)))
				continue
			}
			if len(recordings) > radioMessages {
				recordings = recordings[len(recordings)-radioMessages:]
			}
			lines := make([]string, 0, len(recordings))
			for _, r := range recordings {
				lines = append(lines, fmt.Sprintf("%s %s",
					r.Date.Format("15:04:05"), r.RecordingURL))
			}
			sections = append(sections, driverLabel(snap)+"\n"+strings.Join(lines, "\n"))
		}

		msg := tgbotapi.NewMessage(chatId, strings.Join(sections, "\n\n"))
		msg.ReplyMarkup = ra.menuKeyboard
		msg.DisableWebPagePreview = true
		_, err := ra.bot.Send(msg)
		return err
	}
}
