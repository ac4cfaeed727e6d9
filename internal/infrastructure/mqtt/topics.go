package mqtt

// Topics builds Lumen's topic names under a configurable root.
// The zero value uses the default "lumen" root.
type Topics struct {
	Root string
}

func (t Topics) root() string {
	if t.Root == "" {
		return "lumen"
	}
	return t.Root
}

// SystemStatus is the online/offline status topic. Retained, with a Last
// Will message for crash detection.
func (t Topics) SystemStatus() string {
	return t.root() + "/system/status"
}

// DisplayState is the retained mirror of the current display state.
func (t Topics) DisplayState() string {
	return t.root() + "/display/state"
}
