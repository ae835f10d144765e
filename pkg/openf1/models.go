package openf1

import "time"

// Records mirror the OpenF1 REST payloads. Feeds arrive as JSON arrays
// and are re-sorted by their time or lap field at the ingestion
// boundary before any derivation sees them.

type Lap struct {
	MeetingKey      int       `json:"meeting_key"`
	SessionKey      int       `json:"session_key"`
	DriverNumber    int       `json:"driver_number"`
	LapNumber       int       `json:"lap_number"`
	DateStart       time.Time `json:"date_start"`
	LapDuration     float64   `json:"lap_duration"`
	DurationSector1 float64   `json:"duration_sector_1"`
	DurationSector2 float64   `json:"duration_sector_2"`
	DurationSector3 float64   `json:"duration_sector_3"`
	IsPitOutLap     bool      `json:"is_pit_out_lap"`
	STSpeed         float64   `json:"st_speed"`
}

type Stint struct {
	MeetingKey     int    `json:"meeting_key"`
	SessionKey     int    `json:"session_key"`
	DriverNumber   int    `json:"driver_number"`
	StintNumber    int    `json:"stint_number"`
	LapStart       int    `json:"lap_start"`
	LapEnd         int    `json:"lap_end"`
	Compound       string `json:"compound"`
	TyreAgeAtStart int    `json:"tyre_age_at_start"`
}

// Interval carries the gap to the car ahead and to the leader. Both are
// null while the driver is in the pits or lapped, so they are pointers;
// only samples with a non-nil Interval take part in gap derivation.
type Interval struct {
	SessionKey   int       `json:"session_key"`
	DriverNumber int       `json:"driver_number"`
	Date         time.Time `json:"date"`
	Interval     *float64  `json:"interval"`
	GapToLeader  *float64  `json:"gap_to_leader"`
}

type Location struct {
	SessionKey   int       `json:"session_key"`
	DriverNumber int       `json:"driver_number"`
	Date         time.Time `json:"date"`
	X            float64   `json:"x"`
	Y            float64   `json:"y"`
	Z            float64   `json:"z"`
}

type CarData struct {
	SessionKey   int       `json:"session_key"`
	DriverNumber int       `json:"driver_number"`
	Date         time.Time `json:"date"`
	Speed        float64   `json:"speed"`
	Throttle     float64   `json:"throttle"`
	Brake        float64   `json:"brake"`
	NGear        int       `json:"n_gear"`
	RPM          float64   `json:"rpm"`
	DRS          int       `json:"drs"`
}

type PitStop struct {
	SessionKey   int       `json:"session_key"`
	DriverNumber int       `json:"driver_number"`
	Date         time.Time `json:"date"`
	LapNumber    int       `json:"lap_number"`
	PitDuration  float64   `json:"pit_duration"`
}

type Weather struct {
	SessionKey       int       `json:"session_key"`
	Date             time.Time `json:"date"`
	AirTemperature   float64   `json:"air_temperature"`
	TrackTemperature float64   `json:"track_temperature"`
	Humidity         float64   `json:"humidity"`
	Rainfall         float64   `json:"rainfall"`
	WindSpeed        float64   `json:"wind_speed"`
}

type TeamRadio struct {
	SessionKey   int       `json:"session_key"`
	DriverNumber int       `json:"driver_number"`
	Date         time.Time `json:"date"`
	RecordingURL string    `json:"recording_url"`
}

type Session struct {
	SessionKey       int       `json:"session_key"`
	MeetingKey       int       `json:"meeting_key"`
	SessionName      string    `json:"session_name"`
	SessionType      string    `json:"session_type"`
	DateStart        time.Time `json:"date_start"`
	DateEnd          time.Time `json:"date_end"`
	CircuitKey       int       `json:"circuit_key"`
	CircuitShortName string    `json:"circuit_short_name"`
	CountryName      string    `json:"country_name"`
	Year             int       `json:"year"`
}

type Meeting struct {
	MeetingKey  int       `json:"meeting_key"`
	MeetingName string    `json:"meeting_name"`
	CircuitKey  int       `json:"circuit_key"`
	CountryName string    `json:"country_name"`
	DateStart   time.Time `json:"date_start"`
	Year        int       `json:"year"`
}

type Driver struct {
	SessionKey   int    `json:"session_key"`
	DriverNumber int    `json:"driver_number"`
	FullName     string `json:"full_name"`
	NameAcronym  string `json:"name_acronym"`
	TeamName     string `json:"team_name"`
	TeamColour   string `json:"team_colour"`
	CountryCode  string `json:"country_code"`
	HeadshotURL  string `json:"headshot_url"`
}
