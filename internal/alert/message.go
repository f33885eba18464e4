package alert

// BuildMessage assembles the SMS body. An empty fix yields prefix+fallback;
// otherwise the raw sentence is appended after label.
func BuildMessage(prefix, label, fix, fallback string) string {
	if fix == "" {
		return prefix + fallback
	}
	return prefix + label + fix
}
