package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"openf1companion/pkg/apps"
	"openf1companion/pkg/bests"
	"openf1companion/pkg/circuit"
	"openf1companion/pkg/clock"
	"openf1companion/pkg/commentary"
	"openf1companion/pkg/gaps"
	"openf1companion/pkg/livemap"
	"openf1companion/pkg/notification"
	"openf1companion/pkg/openf1"
	"openf1companion/pkg/pubsub"
	"openf1companion/pkg/resources"
	"openf1companion/pkg/settings"
	"openf1companion/pkg/tracker"
	"openf1companion/pkg/webserver"
)

const (
	defaultOpenF1URL  = "https://api.openf1.org"
	defaultCircuitURL = "https://api.multiviewer.app"
	defaultDrivers    = "1,44"
)

var bot *tgbotapi.BotAPI

func main() {
	var err error
	token := os.Getenv("TELEGRAM_TOKEN")
	bot, err = tgbotapi.NewBotAPI(token)
	if err != nil {
		// Abort if something is wrong
		log.Panic(err)
	}
	bot.Debug = false

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clk := buildClock()

	apiURL := envOr("OPENF1_API_URL", defaultOpenF1URL)
	api := openf1.NewClient(apiURL, openf1.NewCache(openf1.DefaultFreshness))

	session, err := api.CurrentSession(ctx, os.Getenv("OPENF1_SESSION_KEY"))
	if err != nil {
		log.Panicf("could not resolve the session to track: %s", err)
	}
	sessionKey := strconv.Itoa(session.SessionKey)
	log.Printf("tracking %s %s (session %s, circuit %d)",
		session.CountryName, session.SessionName, sessionKey, session.CircuitKey)

	meetingKey := envOr("OPENF1_MEETING_KEY", strconv.Itoa(session.MeetingKey))
	if meetings, err := api.Meetings(ctx, meetingKey); err == nil && len(meetings) > 0 {
		log.Printf("race weekend: %s", meetings[len(meetings)-1].MeetingName)
	}

	provider := circuit.NewProvider(envOr("CIRCUIT_API_URL", defaultCircuitURL))

	snapshots := pubsub.NewPubSub[tracker.Snapshot]()
	overtakes := pubsub.NewPubSub[gaps.Event]()
	bestsBus := pubsub.NewPubSub[bests.Best]()

	drivers := parseDrivers(envOr("OPENF1_DRIVERS", defaultDrivers))
	startingLap := envInt("OPENF1_STARTING_LAP", 1)

	driverSessions := make([]apps.DriverSession, 0, len(drivers))
	sources := make([]webserver.SnapshotSource, 0, len(drivers))
	for _, driver := range drivers {
		cfg := tracker.Config{
			SessionKey:   sessionKey,
			CircuitKey:   session.CircuitKey,
			Year:         session.Year,
			DriverNumber: driver,
			StartingLap:  startingLap,
		}
		s := tracker.NewSession(cfg, clk, api, provider, snapshots, overtakes, bestsBus)
		go s.Run(ctx)
		driverSessions = append(driverSessions, s)
		sources = append(sources, s)
	}

	sm, err := settings.NewManager(settings.DbName)
	if err != nil {
		log.Panic(err)
	}
	defer sm.Close()

	nm := notification.NewManager(ctx, bot, sm, snapshots, overtakes, bestsBus, drivers)
	nm.Start()

	web := webserver.NewManager(sources)
	lm := livemap.NewLiveMap(web.Router(), snapshots, drivers)
	if resource, err := resources.BuildCircuitSVG(ctx, provider, session.CircuitKey, session.Year); err != nil {
		log.Printf("circuit map unavailable: %s", err)
	} else if err := lm.Start(resource.FilePath(), resource.FileName()); err != nil {
		log.Printf("live map unavailable: %s", err)
	}
	go web.Serve(ctx, os.Getenv("WEBSERVER_ADDRESS"))

	ai := commentary.NewClient(os.Getenv("AI_PIPELINE_URL"))
	mainApp := apps.NewMainApp(bot, api, ai, sm, sessionKey, driverSessions)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := bot.GetUpdatesChan(u)
	go receiveUpdates(ctx, updates, mainApp)

	log.Println("Start listening for updates. Press Ctrl-C to stop it")

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	<-sigs

	cancel()
}

func buildClock() clock.SessionClock {
	if origin := os.Getenv("OPENF1_SIMULATED_NOW"); origin != "" {
		t, err := time.Parse(time.RFC3339, origin)
		if err != nil {
			log.Panicf("invalid OPENF1_SIMULATED_NOW: %s", err)
		}
		log.Printf("replaying the session from %s", t)
		return clock.NewSimulatedClock(t)
	}
	return clock.NewSystemClock()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Panicf("invalid %s: %s", key, err)
	}
	return n
}

func parseDrivers(raw string) []int {
	var drivers []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			log.Panicf("invalid driver number %q", part)
		}
		drivers = append(drivers, n)
	}
	if len(drivers) == 0 {
		log.Panic("no drivers configured")
	}
	return drivers
}

func receiveUpdates(ctx context.Context, updates tgbotapi.UpdatesChannel, mainApp *apps.MainApp) {
	for {
		select {
		case <-ctx.Done():
			return
		case update := <-updates:
			handleUpdate(ctx, update, mainApp)
		}
	}
}

func handleUpdate(ctx context.Context, update tgbotapi.Update, mainApp *apps.MainApp) {
	switch {
	case update.Message != nil:
		handleMessage(ctx, update.Message, mainApp)
	case update.CallbackQuery != nil:
		handleCallbackQuery(ctx, update.CallbackQuery, mainApp)
	}
}

func handleMessage(ctx context.Context, message *tgbotapi.Message, mainApp *apps.MainApp) {
	user := message.From
	text := message.Text

	if user == nil {
		return
	}

	log.Printf("%s wrote %s", user.FirstName, text)

	ctx = context.WithValue(ctx, apps.UserContextKey, user)
	ctx = context.WithValue(ctx, apps.ChatContextKey, message.Chat)

	var handler func(ctx context.Context, chatId int64) error
	accepted := false
	if message.IsCommand() {
		accepted, handler = mainApp.AcceptCommand(text)
	} else {
		accepted, handler = mainApp.AcceptButton(text)
	}
	if !accepted {
		return
	}
	if err := handler(ctx, message.Chat.ID); err != nil {
		log.Printf("An error occured: %s", err.Error())
	}
}

func handleCallbackQuery(ctx context.Context, query *tgbotapi.CallbackQuery, mainApp *apps.MainApp) {
	if query.Message != nil {
		ctx = context.WithValue(ctx, apps.UserContextKey, query.From)
		ctx = context.WithValue(ctx, apps.ChatContextKey, query.Message.Chat)
	}
	accepted, handler := mainApp.AcceptCallback(query)
	if !accepted {
		return
	}
	if err := handler(ctx, query); err != nil {
		log.Printf("An error occured: %s", err.Error())
	}
}
