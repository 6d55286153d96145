package uistate

import "sync"

// MenuState is either MenuOpen or MenuClosed.
type MenuState interface {
	isMenuState() bool
}

// MenuOpen means the menu of one item (post or comment id) is shown.
type MenuOpen struct {
	MenuState
	Id string
}

type MenuClosed struct {
	MenuState
}

func (MenuOpen) isMenuState() bool   { return true }
func (MenuClosed) isMenuState() bool { return true }

// MenuEvent drives the menu machine.
type MenuEvent interface {
	isMenuEvent() bool
}

// ToggleMenu is the user pressing an item's menu button.
type ToggleMenu struct {
	MenuEvent
	Id string
}

// ExternalInteraction is any interaction the presentation layer observed.
// InsideId is the item whose open menu received it, empty when it landed
// outside every menu.
type ExternalInteraction struct {
	MenuEvent
	InsideId string
}

func (ToggleMenu) isMenuEvent() bool          { return true }
func (ExternalInteraction) isMenuEvent() bool { return true }

// Next is the transition function. At most one menu is open at a time.
func Next(state MenuState, event MenuEvent) MenuState {
	open, isOpen := state.(MenuOpen)
	switch ev := event.(type) {
	case ToggleMenu:
		if isOpen && open.Id == ev.Id {
			return MenuClosed{}
		}
		return MenuOpen{Id: ev.Id}
	case ExternalInteraction:
		if isOpen && ev.InsideId == open.Id {
			return state
		}
		return MenuClosed{}
	}
	return state
}

// Menu holds the current state for one view.
type Menu struct {
	mu    sync.Mutex
	state MenuState
}

func NewMenu() *Menu {
	return &Menu{state: MenuClosed{}}
}

func (m *Menu) Dispatch(event MenuEvent) MenuState {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = Next(m.state, event)
	return m.state
}

func (m *Menu) State() MenuState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// OpenId returns the id whose menu is open, "" when closed.
func (m *Menu) OpenId() string {
	if open, ok := m.State().(MenuOpen); ok {
		return open.Id
	}
	return ""
}
