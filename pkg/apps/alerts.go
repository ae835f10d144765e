package apps

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"openf1companion/pkg/menus"
	"openf1companion/pkg/settings"
)

type ContextUser string
type ContextChatID string

const (
	UserContextKey ContextUser   = "user"
	ChatContextKey ContextChatID = "chat"

	buttonAlerts     = "Alerts"
	subcommandAlerts = "alerts"

	inlineKeyboardOvertakes    = settings.Overtakes
	inlineKeyboardSessionBests = settings.SessionBests
	inlineKeyboardPitStops     = settings.PitStops
	inlineKeyboardWeather      = settings.Weather
)

// AlertsApp lets a chat toggle which push alerts it receives.
type AlertsApp struct {
	bot     *tgbotapi.BotAPI
	appMenu menus.ApplicationMenu
	sm      *settings.Manager
	mu      sync.Mutex
}

func NewAlertsApp(bot *tgbotapi.BotAPI, appMenu menus.ApplicationMenu, sm *settings.Manager) *AlertsApp {
	return &AlertsApp{
		bot:     bot,
		sm:      sm,
		appMenu: appMenu,
	}
}

func (aa *AlertsApp) AcceptCommand(command string) (bool, func(ctx context.Context, chatId int64) error) {
	return false, nil
}

func (aa *AlertsApp) AcceptCallback(query *tgbotapi.CallbackQuery) (bool, func(ctx context.Context, query *tgbotapi.CallbackQuery) error) {
	data := strings.Split(query.Data, ":")
	if data[0] == subcommandAlerts {
		aa.mu.Lock()
		defer aa.mu.Unlock()
		return true, func(ctx context.Context, query *tgbotapi.CallbackQuery) error {
			userID := data[1]
			category := data[2]

			userCtxValue := ctx.Value(UserContextKey)
			chatCtxValue := ctx.Value(ChatContextKey)
			if userCtxValue == nil || chatCtxValue == nil {
				msg := tgbotapi.NewMessage(query.Message.Chat.ID, "Could not read the chat information")
				msg.ReplyMarkup = aa.appMenu.PrevMenu
				_, err := aa.bot.Send(msg)
				return err
			}
			user := userCtxValue.(*tgbotapi.User)
			chat := chatCtxValue.(*tgbotapi.Chat)
			chatID := fmt.Sprintf("%d", chat.ID)

			if err := aa.sm.ToggleAlert(userID, user.FirstName, chatID, category); err != nil {
				msg := tgbotapi.NewMessage(query.Message.Chat.ID, "Could not change the alert state")
				msg.ReplyMarkup = aa.appMenu.PrevMenu
				_, err := aa.bot.Send(msg)
				return err
			}
			return aa.renderAlerts(&query.Message.MessageID)(ctx, query.Message.Chat.ID)
		}
	}
	return false, nil
}

func (aa *AlertsApp) AcceptButton(button string) (bool, func(ctx context.Context, chatId int64) error) {
	aa.mu.Lock()
	defer aa.mu.Unlock()

	if button == buttonAlerts {
		return true, aa.renderAlerts(nil)
	} else if button == aa.appMenu.ButtonBackTo() {
		return true, func(ctx context.Context, chatId int64) error {
			msg := tgbotapi.NewMessage(chatId, "OK")
			msg.ReplyMarkup = aa.appMenu.PrevMenu
			_, err := aa.bot.Send(msg)
			return err
		}
	}
	return false, nil
}

func (aa *AlertsApp) renderAlerts(messageID *int) func(ctx context.Context, chatId int64) error {
	return func(ctx context.Context, chatId int64) error {
		userCtxValue := ctx.Value(UserContextKey)
		if userCtxValue == nil {
			msg := tgbotapi.NewMessage(chatId, "Could not read the user")
			msg.ReplyMarkup = aa.appMenu.PrevMenu
			_, err := aa.bot.Send(msg)
			return err
		}
		user := userCtxValue.(*tgbotapi.User)
		userID := fmt.Sprintf("%d", user.ID)
		alertStatus, err := aa.sm.ListAlerts(userID)
		if err != nil {
			log.Println(err)
			msg := tgbotapi.NewMessage(chatId, "Could not read the alert settings for this user")
			msg.ReplyMarkup = aa.appMenu.PrevMenu
			_, err := aa.bot.Send(msg)
			return err
		}
		keyboard := getAlertsInlineKeyboard(userID, alertStatus)
		var cfg tgbotapi.Chattable
		text := "Alert settings\n(applies to this chat)"
		if messageID == nil {
			msg := tgbotapi.NewMessage(chatId, text)
			msg.ReplyMarkup = keyboard
			cfg = msg
		} else {
			msg := tgbotapi.NewEditMessageText(chatId, *messageID, text)
			msg.ReplyMarkup = &keyboard
			cfg = msg
		}
		_, err = aa.bot.Send(cfg)
		return err
	}
}

func getAlertsInlineKeyboard(userID string, a settings.Alerts) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(inlineKeyboardOvertakes+" "+a.OvertakesSymbol(), fmt.Sprintf("%s:%s:%s", subcommandAlerts, userID, inlineKeyboardOvertakes)),
			tgbotapi.NewInlineKeyboardButtonData(inlineKeyboardSessionBests+" "+a.SessionBestsSymbol(), fmt.Sprintf("%s:%s:%s", subcommandAlerts, userID, inlineKeyboardSessionBests)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(inlineKeyboardPitStops+" "+a.PitStopsSymbol(), fmt.Sprintf("%s:%s:%s", subcommandAlerts, userID, inlineKeyboardPitStops)),
			tgbotapi.NewInlineKeyboardButtonData(inlineKeyboardWeather+" "+a.WeatherSymbol(), fmt.Sprintf("%s:%s:%s", subcommandAlerts, userID, inlineKeyboardWeather)),
		),
	)
}
