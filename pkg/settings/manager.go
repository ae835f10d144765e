package settings

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

const (
	DbName = "./openf1-companion.db"

	Overtakes    = "Overtakes"
	SessionBests = "SessionBests"
	PitStops     = "PitStops"
	Weather      = "Weather"
)

// TelegramUser is a chat that opted into at least one alert category.
type TelegramUser struct {
	ID     string
	Name   string
	ChatID string
}

// Alerts maps an alert category to whether the chat wants it pushed.
type Alerts map[string]bool

func AllEnabled() Alerts {
	return Alerts{
		Overtakes:    true,
		SessionBests: true,
		PitStops:     true,
		Weather:      true,
	}
}

func AllDisabled() Alerts {
	return Alerts{
		Overtakes:    false,
		SessionBests: false,
		PitStops:     false,
		Weather:      false,
	}
}

func (a Alerts) OvertakesSymbol() string {
	return symbolStatus(a[Overtakes])
}

func (a Alerts) SessionBestsSymbol() string {
	return symbolStatus(a[SessionBests])
}

func (a Alerts) PitStopsSymbol() string {
	return symbolStatus(a[PitStops])
}

func (a Alerts) WeatherSymbol() string {
	return symbolStatus(a[Weather])
}

func (a Alerts) String() string {
	lines := []string{}
	for _, category := range []string{Overtakes, SessionBests, PitStops, Weather} {
		lines = append(lines, fmt.Sprintf("%s %s alerts", symbolStatus(a[category]), category))
	}
	return strings.Join(lines, "\n")
}

func symbolStatus(enabled bool) string {
	if enabled {
		return "🔔"
	}
	return "🔕"
}

func (a *Alerts) setCategoryEnabled(category string, enabled bool) {
	(*a)[category] = enabled
}

// Manager persists per-chat alert preferences in sqlite so they survive
// restarts between sessions of a race weekend.
type Manager struct {
	db *sql.DB
	mu sync.Mutex
}

func NewManager(dbPath string) (*Manager, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "opening settings database")
	}

	if _, err := db.Exec(buildCreateAlertsTable()); err != nil {
		return nil, errors.Wrap(err, "initializing settings database")
	}

	return &Manager{db: db}, nil
}

func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.db.Close()
}

// ToggleAlert flips one category for a chat, creating the row with
// everything else disabled when the chat is new.
func (m *Manager) ToggleAlert(userID, name, chatID, category string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !validCategory(category) {
		return errors.Errorf("unknown alert category %q", category)
	}

	a, err := m.listAlerts(userID)
	if err != nil {
		return err
	}

	a.setCategoryEnabled(category, !a[category])
	query, args := buildUpsertUserCommand(userID, name, chatID, a)
	if _, err := m.db.Exec(query, args...); err != nil {
		return errors.Wrap(err, "updating settings database")
	}
	return nil
}

func (m *Manager) ListAlerts(userID string) (Alerts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.listAlerts(userID)
}

// ListUsersForAlert returns every chat that enabled the category.
func (m *Manager) ListUsersForAlert(category string) ([]TelegramUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !validCategory(category) {
		return nil, errors.Errorf("unknown alert category %q", category)
	}

	query, read := buildSelectAlertEnabledCommand(category)
	rows, err := m.db.Query(query)
	if err != nil {
		return nil, errors.Wrap(err, "querying settings database")
	}
	return read(rows)
}

func (m *Manager) listAlerts(userID string) (Alerts, error) {
	query, args, read := buildSelectUserCommand(userID)
	rows, err := m.db.Query(query, args...)
	if err != nil {
		return AllDisabled(), errors.Wrap(err, "querying settings database")
	}
	return read(rows)
}

func validCategory(category string) bool {
	switch category {
	case Overtakes, SessionBests, PitStops, Weather:
		return true
	}
	return false
}
