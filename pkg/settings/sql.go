package settings

import (
	"database/sql"
	"fmt"
)

// category -> column. Categories are validated before they reach the
// query builders, so the column lookup cannot miss.
var categoryColumns = map[string]string{
	Overtakes:    "overtakes",
	SessionBests: "sessionbests",
	PitStops:     "pitstops",
	Weather:      "weather",
}

func buildCreateAlertsTable() string {
	return `CREATE TABLE IF NOT EXISTS alerts (
		userid TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		chatid TEXT NOT NULL,
		overtakes INTEGER,
		sessionbests INTEGER,
		pitstops INTEGER,
		weather INTEGER);`
}

func buildSelectUserCommand(userID string) (string, []any, func(*sql.Rows) (Alerts, error)) {
	fields := "overtakes, sessionbests, pitstops, weather"
	query := fmt.Sprintf(`SELECT %s FROM alerts WHERE userid = ?`, fields)
	return query, []any{userID}, processSelectUserRows
}

func processSelectUserRows(rows *sql.Rows) (Alerts, error) {
	defer rows.Close()

	a := AllDisabled()
	// chats start with everything off; at most one row per user
	if rows.Next() {
		var overtakes, sessionbests, pitstops, weather int
		if err := rows.Scan(&overtakes, &sessionbests, &pitstops, &weather); err != nil {
			return a, err
		}
		a.setCategoryEnabled(Overtakes, overtakes == 1)
		a.setCategoryEnabled(SessionBests, sessionbests == 1)
		a.setCategoryEnabled(PitStops, pitstops == 1)
		a.setCategoryEnabled(Weather, weather == 1)
		return a, nil
	}
	return a, rows.Err()
}

func buildSelectAlertEnabledCommand(category string) (string, func(rows *sql.Rows) ([]TelegramUser, error)) {
	fields := "userid, name, chatid"
	query := fmt.Sprintf(`SELECT %s FROM alerts WHERE %s = 1`, fields, categoryColumns[category])
	return query, processSelectAlertEnabledRows
}

func processSelectAlertEnabledRows(rows *sql.Rows) ([]TelegramUser, error) {
	defer rows.Close()

	users := make([]TelegramUser, 0)
	for rows.Next() {
		var id, name, chatid string
		if err := rows.Scan(&id, &name, &chatid); err != nil {
			return users, err
		}
		users = append(users, TelegramUser{
			ID:     id,
			Name:   name,
			ChatID: chatid,
		})
	}
	return users, rows.Err()
}

func buildUpsertUserCommand(userID, name, chatID string, a Alerts) (string, []any) {
	fields := "userid, name, chatid, overtakes, sessionbests, pitstops, weather"
	query := fmt.Sprintf(`INSERT OR REPLACE INTO alerts (%s) VALUES (?, ?, ?, ?, ?, ?, ?)`, fields)
	args := []any{
		userID, name, chatID,
		enabledInt(a[Overtakes]),
		enabledInt(a[SessionBests]),
		enabledInt(a[PitStops]),
		enabledInt(a[Weather]),
	}
	return query, args
}

func enabledInt(enabled bool) int {
	if enabled {
		return 1
	}
	return 0
}
