package activity

import "strings"

// Kind is a destination activity kind as used in generated activity names
// and in the upload API's activity_type field.
type Kind string

const (
	KindRun  Kind = "run"
	KindRide Kind = "ride"
	KindHike Kind = "hike"
	KindWalk Kind = "walk"
	KindSwim Kind = "swim"
)

// translations maps lower-cased RunKeeper activity labels to destination kinds.
// This list can be expanded.
// @see https://developers.strava.com/docs/uploads/#upload-an-activity
var translations = map[string]Kind{
	"running":         KindRun,
	"cycling":         KindRide,
	"mountain biking": KindRide,
	"hiking":          KindHike,
	"walking":         KindWalk,
	"swimming":        KindSwim,
}

// stravaTypes holds the Strava API type names for each kind.
var stravaTypes = map[Kind]string{
	KindRun:  "Run",
	KindRide: "Ride",
	KindHike: "Hike",
	KindWalk: "Walk",
	KindSwim: "Swim",
}

// Translate returns the destination kind for a source activity label.
// Matching is case-insensitive. Unmapped labels return ("", false); there is
// no fallback kind.
func Translate(label string) (Kind, bool) {
	kind, ok := translations[strings.ToLower(strings.TrimSpace(label))]
	return kind, ok
}

// StravaType returns the Strava API type string for the kind, e.g. "Run".
func (k Kind) StravaType() string {
	if t, ok := stravaTypes[k]; ok {
		return t
	}
	return "Workout"
}

func (k Kind) String() string {
	return string(k)
}
