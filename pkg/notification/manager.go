package notification

import (
	"context"
	"fmt"
	"log"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/nikoksr/notify"

	"openf1companion/pkg/bests"
	"openf1companion/pkg/gaps"
	"openf1companion/pkg/helper"
	"openf1companion/pkg/settings"
	"openf1companion/pkg/tracker"
)

// Lister resolves which chats opted into an alert category.
type Lister interface {
	ListUsersForAlert(category string) ([]settings.TelegramUser, error)
}

// Manager pushes race alerts to opted-in Telegram chats. It subscribes
// to the per-driver overtake and snapshot topics plus the shared
// session-best topic, and derives pit-stop and rainfall alerts from
// consecutive snapshots.
type Manager struct {
	ctx    context.Context
	lister Lister
	bot    *tgbotapi.BotAPI

	snapshots pubsubSnapshots
	overtakes pubsubOvertakes
	bestFeed  pubsubBests

	drivers []int
}

// Narrow views over the shared buses keep the constructor honest about
// what the manager actually consumes.
type pubsubSnapshots interface {
	Subscribe(topic string) <-chan tracker.Snapshot
}
type pubsubOvertakes interface {
	Subscribe(topic string) <-chan gaps.Event
}
type pubsubBests interface {
	Subscribe(topic string) <-chan bests.Best
}

func NewManager(ctx context.Context, bot *tgbotapi.BotAPI, lister Lister,
	snapshots pubsubSnapshots, overtakes pubsubOvertakes, bestFeed pubsubBests, drivers []int) *Manager {
	return &Manager{
		ctx:       ctx,
		bot:       bot,
		lister:    lister,
		snapshots: snapshots,
		overtakes: overtakes,
		bestFeed:  bestFeed,
		drivers:   drivers,
	}
}

// Start consumes the feeds until ctx is cancelled. One goroutine per
// subscription; the pubsub sends are synchronous so a stalled consumer
// would stall the tracker.
func (m *Manager) Start() {
	for _, driver := range m.drivers {
		suffix := strconv.Itoa(driver)
		go m.watchOvertakes(m.overtakes.Subscribe(tracker.OvertakeTopicPrefix + suffix))
		go m.watchSnapshots(m.snapshots.Subscribe(tracker.SnapshotTopicPrefix + suffix))
	}
	go m.watchBests(m.bestFeed.Subscribe(tracker.BestsTopic))
}

func (m *Manager) watchOvertakes(events <-chan gaps.Event) {
	for {
		select {
		case <-m.ctx.Done():
			return
		case e := <-events:
			m.push(settings.Overtakes, "Overtake alert", e.Description)
		}
	}
}

func (m *Manager) watchBests(hits <-chan bests.Best) {
	for {
		select {
		case <-m.ctx.Done():
			return
		case hit := <-hits:
			text := fmt.Sprintf("Car %d sets the session-best %s: %s",
				hit.DriverNumber, hit.Sector, helper.ToSectorTime(hit.Value))
			m.push(settings.SessionBests, "Session best", text)
		}
	}
}

func (m *Manager) watchSnapshots(snapshots <-chan tracker.Snapshot) {
	var lastPitLap int
	var raining bool
	for {
		select {
		case <-m.ctx.Done():
			return
		case snap := <-snapshots:
			if snap.LastPit != nil && snap.LastPit.LapNumber != lastPitLap {
				if lastPitLap != 0 {
					text := fmt.Sprintf("%s pitted on lap %d (%.1fs stationary)",
						snap.DriverName, snap.LastPit.LapNumber, snap.LastPit.PitDuration)
					m.push(settings.PitStops, "Pit stop", text)
				}
				lastPitLap = snap.LastPit.LapNumber
			}
			if snap.Weather != nil {
				nowRaining := snap.Weather.Rainfall > 0
				if nowRaining != raining {
					if nowRaining {
						m.push(settings.Weather, "Weather", "Rain has started falling at the circuit")
					} else {
						m.push(settings.Weather, "Weather", "Rain has stopped at the circuit")
					}
					raining = nowRaining
				}
			}
		}
	}
}

func (m *Manager) push(category, subject, message string) {
	recipients, err := m.lister.ListUsersForAlert(category)
	if err != nil {
		log.Printf("error listing chats for %s alert: %s", category, err.Error())
		return
	}
	if len(recipients) == 0 {
		return
	}
	log.Printf("sending %s alert to %d telegram chats", category, len(recipients))

	tg := Telegram{}
	tg.SetClient(m.bot)
	for _, recipient := range recipients {
		chatID, _ := strconv.ParseInt(recipient.ChatID, 0, 64)
		tg.AddReceivers(chatID)
	}

	n := notify.NewWithServices(&tg)
	if err := n.Send(m.ctx, subject, message); err != nil {
		log.Printf("error notifying chats: %s", err.Error())
	}
}
