package format

import "time"

// DateTimeLayout is how reminder times are shown to users
const DateTimeLayout = "02.01.2006 15:04"

// When renders a wall-clock reminder time
func When(t time.Time) string {
	return t.Format(DateTimeLayout)
}
