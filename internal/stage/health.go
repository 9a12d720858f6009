package stage

// Health reports whether one pipeline stage can do useful work right now,
// typically whether its external tool (ffmpeg, whisper, the translation API)
// is reachable. Detail carries the reason when it is not.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

// Healthy returns a ready report for the named stage.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy returns a not-ready report explaining what is missing.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Ready: false, Detail: detail}
}
