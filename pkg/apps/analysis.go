package apps

import (
	"context"
	"fmt"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"openf1companion/pkg/commentary"
	"openf1companion/pkg/gaps"
	"openf1companion/pkg/menus"
)

const (
	commandAnalysis = "/analysis"
	commandStrategy = "/strategy"

	buttonAnalysis = "Analysis"
	buttonStrategy = "Strategy"

	// bullets accumulated per driver across requests
	maxBullets = 6
)

var tierSymbols = map[gaps.Tier]string{
	gaps.Monitoring: "👀",
	gaps.Building:   "📈",
	gaps.DRSZone:    "⚡",
	gaps.Imminent:   "🔥",
}

// AnalysisApp proxies the AI commentary pipelines: battle analysis from
// the gap history and a strategy brief from the stint state. Pipeline
// failures degrade to a fixed fallback line, never an error message.
type AnalysisApp struct {
	bot      *tgbotapi.BotAPI
	appMenu  menus.ApplicationMenu
	ai       *commentary.Client
	sessions []DriverSession

	mu      sync.Mutex
	bullets map[int][]string

	menuKeyboard tgbotapi.ReplyKeyboardMarkup
}

func NewAnalysisApp(bot *tgbotapi.BotAPI, appMenu menus.ApplicationMenu, ai *commentary.Client, sessions []DriverSession) *AnalysisApp {
	menuKeyboard := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(buttonAnalysis),
			tgbotapi.NewKeyboardButton(buttonStrategy),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(appMenu.ButtonBackTo()),
		),
	)

	return &AnalysisApp{
		bot:          bot,
		appMenu:      appMenu,
		ai:           ai,
		sessions:     sessions,
		bullets:      make(map[int][]string),
		menuKeyboard: menuKeyboard,
	}
}

func (aa *AnalysisApp) Menu() tgbotapi.ReplyKeyboardMarkup {
	return aa.menuKeyboard
}

func (aa *AnalysisApp) AcceptCommand(command string) (bool, func(ctx context.Context, chatId int64) error) {
	switch command {
	case commandAnalysis:
		return true, aa.renderBattleAnalysis()
	case commandStrategy:
		return true, aa.renderStrategyBrief()
	}
	return false, nil
}

func (aa *AnalysisApp) AcceptCallback(query *tgbotapi.CallbackQuery) (bool, func(ctx context.Context, query *tgbotapi.CallbackQuery) error) {
	return false, nil
}

func (aa *AnalysisApp) AcceptButton(button string) (bool, func(ctx context.Context, chatId int64) error) {
	switch button {
	case buttonAnalysis:
		return true, aa.renderBattleAnalysis()
	case buttonStrategy:
		return true, aa.renderStrategyBrief()
	case aa.appMenu.ButtonBackTo():
		return true, func(ctx context.Context, chatId int64) error {
			msg := tgbotapi.NewMessage(chatId, "OK")
			msg.ReplyMarkup = aa.appMenu.PrevMenu
			_, err := aa.bot.Send(msg)
			return err
		}
	}
	return false, nil
}

func (aa *AnalysisApp) renderBattleAnalysis() func(ctx context.Context, chatId int64) error {
	return func(ctx context.Context, chatId int64) error {
		sections := make([]string, 0, len(aa.sessions))
		for _, session := range aa.sessions {
			snap := session.Snapshot()
			prompt := commentary.BuildBattlePrompt(
				snap.DriverName, snap.DriverNumber, snap.CurrentLap, snap.Gaps, session.Events())

			text := commentary.OrFallback(aa.ai.Generate(ctx, commentary.PipelineBattle, prompt))
			tier := gaps.ClassifyTier(text)

			merged := aa.mergeBullets(snap.DriverNumber, commentary.SplitBullets(text))
			lines := make([]string, 0, len(merged))
			for _, b := range merged {
				lines = append(lines, "• "+b)
			}

			sections = append(sections, fmt.Sprintf("%s %s %s\n%s",
				tierSymbols[tier], tier, driverLabel(snap), strings.Join(lines, "\n")))
		}

		return aa.send(chatId, strings.Join(sections, "\n\n"))
	}
}

func (aa *AnalysisApp) renderStrategyBrief() func(ctx context.Context, chatId int64) error {
	return func(ctx context.Context, chatId int64) error {
		sections := make([]string, 0, len(aa.sessions))
		for _, session := range aa.sessions {
			snap := session.Snapshot()
			prompt := commentary.BuildStrategyPrompt(
				snap.DriverName, snap.DriverNumber, snap.CurrentLap, snap.Stints)

			text := commentary.OrFallback(aa.ai.Generate(ctx, commentary.PipelineStrategy, prompt))
			lines := make([]string, 0)
			for _, b := range commentary.SplitBullets(text) {
				lines = append(lines, "• "+b)
			}

			sections = append(sections, fmt.Sprintf("%s\n%s",
				driverLabel(snap), strings.Join(lines, "\n")))
		}

		return aa.send(chatId, strings.Join(sections, "\n\n"))
	}
}

func (aa *AnalysisApp) mergeBullets(driver int, incoming []string) []string {
	aa.mu.Lock()
	defer aa.mu.Unlock()
	aa.bullets[driver] = commentary.MergeBullets(aa.bullets[driver], incoming, maxBullets)
	return aa.bullets[driver]
}

func (aa *AnalysisApp) send(chatId int64, text string) error {
	msg := tgbotapi.NewMessage(chatId, text)
	msg.ReplyMarkup = aa.menuKeyboard
	_, err := aa.bot.Send(msg)
	return err
}
