package apps

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"openf1companion/pkg/commentary"
	"openf1companion/pkg/menus"
	"openf1companion/pkg/openf1"
	"openf1companion/pkg/settings"
)

const (
	menuStart = "/start"
	menuMenu  = "/menu"
	appName   = "menu"
)

var (
	menuKeyboard = tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(buttonGaps),
			tgbotapi.NewKeyboardButton(buttonStints),
			tgbotapi.NewKeyboardButton(buttonBests),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(buttonAnalysis),
			tgbotapi.NewKeyboardButton(buttonRadio),
			tgbotapi.NewKeyboardButton(buttonAlerts),
		),
	)
)

// MainApp is the bot entry point: it owns the root menu and fans every
// update out to the race, analysis, radio and alert apps.
type MainApp struct {
	bot       *tgbotapi.BotAPI
	accepters []Accepter
}

func NewMainApp(bot *tgbotapi.BotAPI, api *openf1.Client, ai *commentary.Client,
	sm *settings.Manager, sessionKey string, sessions []DriverSession) *MainApp {
	raceMenu := menus.NewApplicationMenu(buttonGaps, appName, menuKeyboard)
	raceApp := NewRaceApp(bot, raceMenu, sessions)

	analysisMenu := menus.NewApplicationMenu(buttonAnalysis, appName, menuKeyboard)
	analysisApp := NewAnalysisApp(bot, analysisMenu, ai, sessions)

	radioMenu := menus.NewApplicationMenu(buttonRadio, appName, menuKeyboard)
	radioApp := NewRadioApp(bot, radioMenu, api, sessionKey, sessions)

	alertsMenu := menus.NewApplicationMenu(buttonAlerts, appName, menuKeyboard)
	alertsApp := NewAlertsApp(bot, alertsMenu, sm)

	accepters := []Accepter{raceApp, analysisApp, radioApp, alertsApp}

	return &MainApp{
		bot:       bot,
		accepters: accepters,
	}
}

func (m *MainApp) AcceptCommand(command string) (bool, func(ctx context.Context, chatId int64) error) {
	if command == menuStart {
		return true, m.renderStart()
	} else if command == menuMenu {
		return true, m.renderMenu()
	}
	for _, accepter := range m.accepters {
		accept, handler := accepter.AcceptCommand(command)
		if accept {
			return true, handler
		}
	}

	return false, nil
}

func (m *MainApp) AcceptCallback(query *tgbotapi.CallbackQuery) (bool, func(ctx context.Context, query *tgbotapi.CallbackQuery) error) {
	for _, accepter := range m.accepters {
		accept, handler := accepter.AcceptCallback(query)
		if accept {
			return true, handler
		}
	}

	return false, nil
}

func (m *MainApp) AcceptButton(button string) (bool, func(ctx context.Context, chatId int64) error) {
	for _, accepter := range m.accepters {
		accept, handler := accepter.AcceptButton(button)
		if accept {
			return true, handler
		}
	}

	return false, nil
}

func (m *MainApp) renderStart() func(ctx context.Context, chatId int64) error {
	return func(ctx context.Context, chatId int64) error {
		message := "Welcome to the OpenF1 race companion.\nUse the menu buttons or /gaps, /stints, /bests, /radio, /analysis and /strategy."
		msg := tgbotapi.NewMessage(chatId, message)
		msg.ReplyMarkup = menuKeyboard
		_, err := m.bot.Send(msg)
		return err
	}
}

func (m *MainApp) renderMenu() func(ctx context.Context, chatId int64) error {
	return func(ctx context.Context, chatId int64) error {
		msg := tgbotapi.NewMessage(chatId, "Main menu")
		msg.ReplyMarkup = menuKeyboard
		_, err := m.bot.Send(msg)
		return err
	}
}
