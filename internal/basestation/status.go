package basestation

// Status is the externally visible base-station position snapshot.
// Latitude/longitude are degrees rounded to 8 decimal places, altitude is
// meters above the WGS84 ellipsoid rounded to 2.
type Status struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Altitude  float64 `json:"altitude"`

	// Reserved for message types outside the current decode path
	// (survey-in and accuracy reporting); always zero today.
	AccuracyMM       float64 `json:"accuracy_mm"`
	IsFixedMode      bool    `json:"is_fixed_mode"`
	IsSurveyInActive bool    `json:"is_survey_in_active"`
	SurveyInDuration int     `json:"survey_in_duration"`
}

// Snapshot is the full diagnostics view served over HTTP, the websocket and
// MQTT: the position Status plus connection state and stream counters.
type Snapshot struct {
	State  string `json:"state"`
	Source string `json:"source"`

	Status      Status `json:"status"`
	HasPosition bool   `json:"has_position"`
	StationID   uint16 `json:"station_id,omitempty"`

	LastError    string `json:"last_error,omitempty"`
	LastFrameUTC string `json:"last_frame_utc,omitempty"`

	FramesTotal         uint64 `json:"frames_total"`
	PositionsTotal      uint64 `json:"positions_total"`
	DecodeFailuresTotal uint64 `json:"decode_failures_total"`
	ResyncBytesTotal    uint64 `json:"resync_bytes_total"`
	ReadErrorsTotal     uint64 `json:"read_errors_total"`
	ConnectsTotal       uint64 `json:"connects_total"`
}
