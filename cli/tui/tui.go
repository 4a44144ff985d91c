package tui

import "fmt"

// Run starts the appropriate TUI based on the view type.
// Returns an error if the view type doesn't support TUI.
func Run(viewType string, data any) error {
	// Validate TUI is only used for supported commands
	if !IsTUISupported(viewType) {
		return fmt.Errorf("TUI mode is not supported for %s", viewType)
	}

	// Route to appropriate TUI
	switch viewType {
	case "status":
		return RunStatusTUI(data)
	case "pack":
		return RunPackTUI(data)
	}

	return fmt.Errorf("unknown view type: %s", viewType)
}

// IsTUISupported returns true if the view type supports TUI mode.
// Only the status and show commands support TUI.
func IsTUISupported(viewType string) bool {
	for _, v := range SupportedTUIViews() {
		if viewType == v {
			return true
		}
	}
	return false
}

// SupportedTUIViews returns a list of view types that support TUI.
func SupportedTUIViews() []string {
	return []string{
		"status",
		"pack",
	}
}
