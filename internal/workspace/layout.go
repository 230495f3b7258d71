package workspace

// Mode is how the inbox is laid out for a given viewport width.
type Mode string

const (
	// ModeStacked shows one pane at a time with back navigation.
	ModeStacked Mode = "stacked"
	// ModeThreePane shows list, transcript and the optional info panel side by side.
	ModeThreePane Mode = "three_pane"
)

// Pane identifies one region of the inbox.
type Pane string

const (
	PaneList       Pane = "list"
	PaneTranscript Pane = "transcript"
	PaneInfo       Pane = "info"
)

// DefaultBreakpoint is the narrowest width that gets the three-pane layout.
const DefaultBreakpoint = 768

// Layout decides which panes are visible. It depends only on its arguments.
func Layout(width, breakpoint int, selected, showInfo bool) (Mode, []Pane) {
	if breakpoint <= 0 {
		breakpoint = DefaultBreakpoint
	}

	if width < breakpoint {
		switch {
		case !selected:
			return ModeStacked, []Pane{PaneList}
		case showInfo:
			return ModeStacked, []Pane{PaneInfo}
		default:
			return ModeStacked, []Pane{PaneTranscript}
		}
	}

	panes := []Pane{PaneList, PaneTranscript}
	if selected && showInfo {
		panes = append(panes, PaneInfo)
	}
	return ModeThreePane, panes
}
