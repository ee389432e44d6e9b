// internal/tui/app.go
//
// The control panel menu. It uses bubbletea, which follows The Elm
// Architecture:
//
// 1. Model: the menu state (which phase is highlighted, the idea being typed)
// 2. Update: a function that updates state based on key presses
// 3. View: a function that renders state to a string
//
// The menu only chooses where the pipeline starts. Running the crew happens
// after the program exits.

package tui

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/agency/internal/artifact"
	"github.com/kingrea/agency/internal/pipeline"
	"github.com/kingrea/agency/internal/workflow"
)

// appState represents which "screen" we're on
type appState int

const (
	stateMenu appState = iota // Phase picker
	stateIdea                 // App idea prompt for a fresh run
)

// Selection is what the user picked. Choice is the raw menu number.
type Selection struct {
	Choice    string
	Idea      string
	Cancelled bool
}

// menuItem implements list.Item interface for our menu items
type menuItem struct {
	phase     workflow.Phase
	title     string
	desc      string
	available bool
}

func (i menuItem) Title() string       { return i.title }
func (i menuItem) Description() string { return i.desc }
func (i menuItem) FilterValue() string { return i.title }

// App is the menu model.
type App struct {
	state     appState
	status    pipeline.Status
	menu      list.Model
	idea      textinput.Model
	result    Selection
	statusMsg string

	width  int
	height int
}

// NewApp builds the menu, highlighting the furthest phase that can resume.
func NewApp(status pipeline.Status) *App {
	items := buildMenu(status)
	menu := list.New(items, list.NewDefaultDelegate(), 0, 0)
	menu.Title = "Where would you like to start the pipeline?"
	menu.SetShowStatusBar(false)
	menu.SetFilteringEnabled(false)
	menu.Styles.Title = titleStyle
	if status.Resume.IsRunnable() {
		menu.Select(int(status.Resume) - 1)
	}

	idea := textinput.New()
	idea.Placeholder = "A marketplace for second-hand climbing gear..."
	idea.Prompt = "> "
	idea.CharLimit = 2000
	idea.Width = 72

	return &App{
		state:  stateMenu,
		status: status,
		menu:   menu,
		idea:   idea,
	}
}

// buildMenu annotates each phase with the checkpoints it needs.
func buildMenu(status pipeline.Status) []list.Item {
	items := make([]list.Item, 0, len(workflow.Runnable))
	for _, phase := range workflow.Runnable {
		item := menuItem{
			phase:     phase,
			title:     fmt.Sprintf("%s. %s", phase.Choice(), phase.FriendlyName()),
			available: status.Available(phase),
		}
		switch {
		case len(phase.Requires()) == 0:
			item.desc = "Start fresh · runs all 4 agents"
		case item.available:
			item.desc = "Ready · uses " + strings.Join(phase.Requires(), ", ")
		default:
			item.desc = "Requires " + strings.Join(phase.Requires(), ", ") + " · " + missingFiles(status, phase)
		}
		items = append(items, item)
	}
	return items
}

func missingFiles(status pipeline.Status, phase workflow.Phase) string {
	ready := map[string]bool{}
	for _, cp := range status.Checkpoints {
		ready[cp.Ref.FileName] = cp.State == artifact.StateReady
	}
	var missing []string
	for _, file := range phase.Requires() {
		if !ready[file] {
			missing = append(missing, file)
		}
	}
	return "missing " + strings.Join(missing, ", ")
}

// Result returns the final selection once the program has exited.
func (a *App) Result() Selection {
	return a.result
}

// Init is called once when the program starts.
func (a *App) Init() tea.Cmd {
	return nil
}

// Update is called when a message is received.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.menu.SetSize(max(0, msg.Width-6), max(0, msg.Height-8))
		a.idea.Width = max(20, msg.Width-8)
		return a, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return a.cancel()
		}
		if a.state == stateIdea {
			return a.updateIdea(msg)
		}
		switch msg.String() {
		case "q", "esc":
			return a.cancel()
		case "1", "2", "3", "4":
			phase, _ := workflow.ParseChoice(msg.String())
			a.menu.Select(int(phase) - 1)
			return a.choose()
		case "enter":
			return a.choose()
		}
	}

	var cmd tea.Cmd
	switch a.state {
	case stateMenu:
		a.menu, cmd = a.menu.Update(msg)
	case stateIdea:
		a.idea, cmd = a.idea.Update(msg)
	}
	return a, cmd
}

func (a *App) updateIdea(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		a.state = stateMenu
		a.idea.Blur()
		a.statusMsg = ""
		return a, nil
	case tea.KeyEnter:
		idea := strings.TrimSpace(a.idea.Value())
		if idea == "" {
			a.statusMsg = "Describe the app you want built first."
			return a, nil
		}
		a.result = Selection{Choice: workflow.PhaseProduct.Choice(), Idea: idea}
		return a, tea.Quit
	}
	var cmd tea.Cmd
	a.idea, cmd = a.idea.Update(msg)
	return a, cmd
}

// choose handles the highlighted menu item. Phases whose checkpoints are
// missing stay selectable only in the plain prompt, which reports the error.
func (a *App) choose() (tea.Model, tea.Cmd) {
	item, ok := a.menu.SelectedItem().(menuItem)
	if !ok {
		return a, nil
	}
	if !item.available {
		a.statusMsg = fmt.Sprintf("%s requires %s. Run the previous steps first.",
			item.phase, strings.Join(item.phase.Requires(), ", "))
		return a, nil
	}
	if item.phase == workflow.PhaseProduct {
		a.state = stateIdea
		a.statusMsg = ""
		return a, a.idea.Focus()
	}
	a.result = Selection{Choice: item.phase.Choice()}
	return a, tea.Quit
}

func (a *App) cancel() (tea.Model, tea.Cmd) {
	a.result = Selection{Cancelled: true}
	return a, tea.Quit
}

// View renders the current screen.
func (a *App) View() string {
	sections := []string{bannerStyle.Render(Banner)}
	switch a.state {
	case stateMenu:
		sections = append(sections, a.menu.View())
	case stateIdea:
		sections = append(sections,
			titleStyle.Render("What app would you like us to build?"),
			a.idea.View(),
			hintStyle.Render("enter to start · esc to go back"))
	}
	if a.statusMsg != "" {
		sections = append(sections, warnStyle.Render(a.statusMsg))
	}
	return strings.Join(sections, "\n\n") + "\n"
}

// RunMenu shows the menu until the user picks a phase or quits.
func RunMenu(ctx context.Context, status pipeline.Status, in io.Reader, out io.Writer) (Selection, error) {
	app := NewApp(status)
	program := tea.NewProgram(app,
		tea.WithContext(ctx),
		tea.WithInput(in),
		tea.WithOutput(out),
		tea.WithAltScreen(),
	)
	final, err := program.Run()
	if err != nil {
		return Selection{}, fmt.Errorf("tui: %w", err)
	}
	if done, ok := final.(*App); ok {
		return done.Result(), nil
	}
	return app.Result(), nil
}
