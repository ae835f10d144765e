package apps

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jedib0t/go-pretty/v6/table"

	"openf1companion/pkg/bests"
	"openf1companion/pkg/gaps"
	"openf1companion/pkg/helper"
	"openf1companion/pkg/menus"
	"openf1companion/pkg/tracker"
)

const (
	commandGaps   = "/gaps"
	commandStints = "/stints"
	commandBests  = "/bests"

	buttonGaps   = "Gaps"
	buttonStints = "Stints"
	buttonBests  = "Bests"

	tableIdx  = "#"
	tableGap  = "GAP"
	tableRate = "RATE"
	tableDRS  = "DRS"
)

// DriverSession is the per-driver state the app renders from. Satisfied
// by tracker.Session.
type DriverSession interface {
	Snapshot() tracker.Snapshot
	Events() []gaps.Event
	SessionBest(key bests.SectorKey) (float64, bool)
}

// RaceApp renders the derived race state of the tracked drivers: gap
// history, stints and tyre age, and session bests.
type RaceApp struct {
	bot      *tgbotapi.BotAPI
	appMenu  menus.ApplicationMenu
	sessions []DriverSession

	menuKeyboard tgbotapi.ReplyKeyboardMarkup
}

func NewRaceApp(bot *tgbotapi.BotAPI, appMenu menus.ApplicationMenu, sessions []DriverSession) *RaceApp {
	menuKeyboard := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(buttonGaps),
			tgbotapi.NewKeyboardButton(buttonStints),
			tgbotapi.NewKeyboardButton(buttonBests),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(appMenu.ButtonBackTo()),
		),
	)

	return &RaceApp{
		bot:          bot,
		appMenu:      appMenu,
		sessions:     sessions,
		menuKeyboard: menuKeyboard,
	}
}

func (ra *RaceApp) Menu() tgbotapi.ReplyKeyboardMarkup {
	return ra.menuKeyboard
}

func (ra *RaceApp) AcceptCommand(command string) (bool, func(ctx context.Context, chatId int64) error) {
	switch command {
	case commandGaps:
		return true, ra.renderGaps()
	case commandStints:
		return true, ra.renderStints()
	case commandBests:
		return true, ra.renderBests()
	}
	return false, nil
}

func (ra *RaceApp) AcceptCallback(query *tgbotapi.CallbackQuery) (bool, func(ctx context.Context, query *tgbotapi.CallbackQuery) error) {
	return false, nil
}

func (ra *RaceApp) AcceptButton(button string) (bool, func(ctx context.Context, chatId int64) error) {
	switch button {
	case buttonGaps:
		return true, ra.renderGaps()
	case buttonStints:
		return true, ra.renderStints()
	case buttonBests:
		return true, ra.renderBests()
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

func (ra *RaceApp) renderGaps() func(ctx context.Context, chatId int64) error {
	return func(ctx context.Context, chatId int64) error {
		sections := make([]string, 0, len(ra.sessions))
		for _, session := range ra.sessions {
			snap := session.Snapshot()
			if len(snap.Gaps) == 0 {
				sections = append(sections, fmt.Sprintf("%s: no gap data yet", driverLabel(snap)))
				continue
			}

			var b bytes.Buffer
			t := table.NewWriter()
			t.SetOutputMirror(&b)
			style := table.StyleRounded
			style.Options.DrawBorder = false
			t.SetStyle(style)
			t.AppendHeader(table.Row{tableIdx, tableGap, tableRate, tableDRS})
			for _, g := range snap.Gaps {
				drs := ""
				if g.DRSActive {
					drs = "⚡"
				}
				t.AppendRow(table.Row{
					fmt.Sprintf("%d", g.Index),
					helper.GapSeconds(g.Gap, true),
					helper.ClosingRate(g.ClosingRate),
					drs,
				})
			}
			t.Render()

			section := fmt.Sprintf("%s, lap %d\n%s", driverLabel(snap), snap.CurrentLap, b.String())
			if events := session.Events(); len(events) > 0 {
				lines := make([]string, 0, len(events))
				for _, e := range events {
					lines = append(lines, "• "+e.Description)
				}
				section += "\n" + strings.Join(lines, "\n")
			}
			sections = append(sections, section)
		}

		return ra.sendPreformatted(chatId, strings.Join(sections, "\n\n"))
	}
}

func (ra *RaceApp) renderStints() func(ctx context.Context, chatId int64) error {
	return func(ctx context.Context, chatId int64) error {
		sections := make([]string, 0, len(ra.sessions))
		for _, session := range ra.sessions {
			snap := session.Snapshot()

			var b bytes.Buffer
			t := table.NewWriter()
			t.SetOutputMirror(&b)
			style := table.StyleRounded
			style.Options.DrawBorder = false
			t.SetStyle(style)
			t.AppendHeader(table.Row{"STINT", "TYRE", "LAPS", "AGE"})
			for _, stint := range snap.Stints.Completed {
				lapsStr := "-"
				if stint.Laps > 0 {
					lapsStr = fmt.Sprintf("%d", stint.Laps)
				}
				t.AppendRow(table.Row{
					fmt.Sprintf("%d", stint.StintNumber),
					helper.CompoundSymbol(string(stint.Compound)),
					lapsStr,
					"-",
				})
			}
			if active := snap.Stints.Active; active != nil {
				t.AppendRow(table.Row{
					fmt.Sprintf("%d*", active.StintNumber),
					helper.CompoundSymbol(string(active.Compound)),
					"-",
					fmt.Sprintf("%d", active.TyreAge),
				})
			}
			t.Render()

			section := fmt.Sprintf("%s, lap %d\n%s", driverLabel(snap), snap.CurrentLap, b.String())
			if snap.Stints.Active == nil && len(snap.Stints.Completed) == 0 {
				section = fmt.Sprintf("%s: no stint data yet", driverLabel(snap))
			}
			sections = append(sections, section)
		}

		return ra.sendPreformatted(chatId, strings.Join(sections, "\n\n"))
	}
}

func (ra *RaceApp) renderBests() func(ctx context.Context, chatId int64) error {
	return func(ctx context.Context, chatId int64) error {
		var b bytes.Buffer
		t := table.NewWriter()
		t.SetOutputMirror(&b)
		style := table.StyleRounded
		style.Options.DrawBorder = false
		t.SetStyle(style)
		t.AppendHeader(table.Row{"SECTOR", "TIME"})

		// all sessions share one baseline; read the first that has data
		rendered := false
		for _, session := range ra.sessions {
			hasAny := false
			for _, key := range bests.Keys {
				if v, ok := session.SessionBest(key); ok {
					t.AppendRow(table.Row{string(key), helper.ToSectorTime(v)})
					hasAny = true
				}
			}
			if hasAny {
				rendered = true
				break
			}
		}
		if !rendered {
			return ra.sendPreformatted(chatId, "No session bests recorded yet")
		}
		t.Render()

		return ra.sendPreformatted(chatId, "Session bests\n"+b.String())
	}
}

func (ra *RaceApp) sendPreformatted(chatId int64, text string) error {
	msg := tgbotapi.NewMessage(chatId, fmt.Sprintf("```\n%s```", text))
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	msg.ReplyMarkup = ra.menuKeyboard
	_, err := ra.bot.Send(msg)
	return err
}

func driverLabel(snap tracker.Snapshot) string {
	if snap.DriverName != "" {
		return fmt.Sprintf("%s (%d)", helper.DriverCode(snap.DriverName), snap.DriverNumber)
	}
	return fmt.Sprintf("Car %d", snap.DriverNumber)
}
