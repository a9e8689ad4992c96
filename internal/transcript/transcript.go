package transcript

import (
	"fmt"
	"time"
)

// represents one unit of transcribed speech with absolute timestamps
type Segment struct {
	Start time.Duration `json:"start"`
	End   time.Duration `json:"end"`
	Text  string        `json:"text"`
}

// display timestamp of the segment start in MM:SS
func (s Segment) Timestamp() string {
	return FormatTimestamp(s.Start)
}

// FormatTimestamp renders a duration as MM:SS. Durations of an hour or more
// roll into the minute field (75:30, not 1:15:30); segment lists address a
// single video, so the flat form is what clients expect.
func FormatTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

// Seconds helpers keep the float-seconds wire form in one place.
func (s Segment) StartSeconds() float64 {
	return s.Start.Seconds()
}

func (s Segment) EndSeconds() float64 {
	return s.End.Seconds()
}
