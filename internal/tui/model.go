package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/colonyops/duetoday/internal/core/settings"
	"github.com/colonyops/duetoday/internal/core/task"
	"github.com/colonyops/duetoday/internal/core/timer"
	"github.com/colonyops/duetoday/internal/duetoday"
)

const actionTimeout = 30 * time.Second

type tasksLoadedMsg struct {
	tasks          []task.Task
	completedToday int
	err            error
}

type actionDoneMsg struct {
	status  string
	err     error
	refresh bool
}

type tickMsg time.Time

// Model is the popup listing the tasks due today with complete, snooze,
// and timer actions.
type Model struct {
	app  *duetoday.App
	st   settings.Settings
	keys keyMap

	tasks          []task.Task
	entries        map[string]timer.Entry
	completedToday int

	cursor int
	scroll int
	width  int
	height int

	loading     bool
	snoozing    bool
	showOverdue bool
	spinner     spinner.Model
	errText     string
	status      string
	now         time.Time
}

// New creates the popup model. Settings are read once at open; the
// popup always refetches tasks on open so the list is never stale.
func New(app *duetoday.App, st settings.Settings) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		app:         app,
		st:          st,
		keys:        defaultKeyMap(),
		entries:     app.Timers.Entries(context.Background()),
		loading:     true,
		showOverdue: st.Enabled(settings.FeatureShowOverdue),
		spinner:     sp,
		now:         time.Now(),
	}
}

// Init starts the initial fetch.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loadTasks(), m.spinner.Tick, tick())
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// loadTasks fetches the due list (and the completed-today count when
// that feature is on) off the update loop.
func (m Model) loadTasks() tea.Cmd {
	app, showOverdue, showCompleted := m.app, m.showOverdue, m.st.Enabled(settings.FeatureShowCompletedToday)
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()

		tasks, err := app.Tasks.DueTasks(ctx, showOverdue)
		if err != nil {
			return tasksLoadedMsg{err: err}
		}

		completed := 0
		if showCompleted {
			if done, err := app.Tasks.CompletedToday(ctx); err == nil {
				completed = len(done)
			}
		}

		return tasksLoadedMsg{tasks: tasks, completedToday: completed}
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tickMsg:
		m.now = time.Time(msg)
		m.entries = m.app.Timers.Entries(context.Background())
		return m, tick()

	case tasksLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.errText = msg.err.Error()
			return m, nil
		}
		m.errText = ""
		m.tasks = msg.tasks
		m.completedToday = msg.completedToday
		if m.cursor >= len(m.tasks) {
			m.cursor = max(len(m.tasks)-1, 0)
		}
		return m, nil

	case actionDoneMsg:
		if msg.err != nil {
			m.errText = msg.err.Error()
			return m, nil
		}
		m.errText = ""
		m.status = msg.status
		if msg.refresh {
			m.loading = true
			return m, tea.Batch(m.loadTasks(), m.spinner.Tick)
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.snoozing {
		return m.handleSnoozeKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
			m.ensureVisible()
		}
		return m, nil

	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.tasks)-1 {
			m.cursor++
			m.ensureVisible()
		}
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		m.loading = true
		m.status = ""
		return m, tea.Batch(m.loadTasks(), m.spinner.Tick)

	case key.Matches(msg, m.keys.Overdue):
		m.showOverdue = !m.showOverdue
		m.loading = true
		return m, tea.Batch(m.loadTasks(), m.spinner.Tick)

	case key.Matches(msg, m.keys.Complete):
		t, ok := m.selected()
		if !ok {
			return m, nil
		}
		return m, m.completeTask(t)

	case key.Matches(msg, m.keys.Snooze):
		if _, ok := m.selected(); ok && m.st.Enabled(settings.FeatureSnooze) {
			m.snoozing = true
		}
		return m, nil

	case key.Matches(msg, m.keys.Timer):
		t, ok := m.selected()
		if !ok || !m.st.Enabled(settings.FeatureTimeTracking) {
			return m, nil
		}
		return m, m.toggleTimer(t)

	case key.Matches(msg, m.keys.Open):
		t, ok := m.selected()
		if !ok {
			return m, nil
		}
		return m, m.openTask(t)
	}

	return m, nil
}

func (m Model) handleSnoozeKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.snoozing = false

	var days int
	switch msg.String() {
	case "1":
		days = 1
	case "2":
		days = 2
	case "7":
		days = 7
	default:
		return m, nil
	}

	t, ok := m.selected()
	if !ok {
		return m, nil
	}
	return m, m.snoozeTask(t, days)
}

func (m Model) selected() (task.Task, bool) {
	if m.cursor < 0 || m.cursor >= len(m.tasks) {
		return task.Task{}, false
	}
	return m.tasks[m.cursor], true
}

func (m Model) completeTask(t task.Task) tea.Cmd {
	app := m.app
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()

		if err := app.Tasks.CompleteTask(ctx, t.ID); err != nil {
			return actionDoneMsg{err: err}
		}
		return actionDoneMsg{status: fmt.Sprintf("completed %q", t.Name), refresh: true}
	}
}

func (m Model) snoozeTask(t task.Task, days int) tea.Cmd {
	app := m.app
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()

		target, err := app.Tasks.SnoozeTask(ctx, t.ID, days)
		if err != nil {
			return actionDoneMsg{err: err}
		}
		return actionDoneMsg{
			status:  fmt.Sprintf("snoozed %q until %s", t.Name, target.Format("Mon 15:04")),
			refresh: true,
		}
	}
}

func (m Model) toggleTimer(t task.Task) tea.Cmd {
	app := m.app
	_, running := m.entries[t.ID]
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()

		if running {
			elapsed, err := app.Tasks.StopTimer(ctx, t.ID)
			if err != nil {
				return actionDoneMsg{err: err}
			}
			return actionDoneMsg{status: fmt.Sprintf("logged %s on %q", formatElapsed(elapsed), t.Name)}
		}

		if err := app.Tasks.StartTimer(ctx, t.ID); err != nil {
			return actionDoneMsg{err: err}
		}
		return actionDoneMsg{status: fmt.Sprintf("timer started on %q", t.Name)}
	}
}

func (m Model) openTask(t task.Task) tea.Cmd {
	app := m.app
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()

		if err := app.Tasks.OpenTask(ctx, t.ID); err != nil {
			return actionDoneMsg{err: err}
		}
		return actionDoneMsg{status: fmt.Sprintf("opened %q", t.Name)}
	}
}

// View renders the popup.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.viewHeader())
	b.WriteString("\n\n")

	switch {
	case m.loading:
		b.WriteString(m.spinner.View() + " loading tasks…\n")
	case m.errText != "":
		b.WriteString(errorStyle.Render("error: "+m.errText) + "\n")
		b.WriteString(mutedStyle.Render("press r to retry") + "\n")
	case len(m.tasks) == 0:
		b.WriteString(mutedStyle.Render("Nothing due today 🎉") + "\n")
	default:
		b.WriteString(m.viewList())
	}

	b.WriteString("\n")
	b.WriteString(m.viewFooter())
	return b.String()
}

func (m Model) viewHeader() string {
	header := titleStyle.Render("duetoday") + "  " + headerStyle.Render(m.now.Format("Mon, Jan 2"))

	if !m.loading && m.errText == "" {
		counts := fmt.Sprintf("%d due", len(m.tasks))
		if m.st.Enabled(settings.FeatureShowCompletedToday) {
			counts += fmt.Sprintf(" · %d done", m.completedToday)
		}
		if m.showOverdue {
			counts += " · overdue shown"
		}
		header += "  " + headerStyle.Render(counts)
	}
	return header
}

func (m Model) viewList() string {
	rows := m.buildRows()

	visible := rows
	if h := m.listHeight(); len(rows) > h {
		end := min(m.scroll+h, len(rows))
		visible = rows[m.scroll:end]
	}

	return strings.Join(visible, "\n") + "\n"
}

// buildRows renders the task rows, grouped by list when that feature
// is on.
func (m Model) buildRows() []string {
	grouped := m.st.Enabled(settings.FeatureGroupByList)

	var rows []string
	prevList := ""
	for i, t := range m.tasks {
		if grouped && t.ListName != prevList {
			if prevList != "" {
				rows = append(rows, "")
			}
			rows = append(rows, groupStyle.Render(t.ListName))
			prevList = t.ListName
		}
		rows = append(rows, m.renderRow(t, i == m.cursor))
	}
	return rows
}

func (m Model) renderRow(t task.Task, selected bool) string {
	marker := "  "
	if selected {
		marker = cursorStyle.Render("❯ ")
	}

	indicator := "  "
	if entry, ok := m.entries[t.ID]; ok {
		if entry.Running() {
			indicator = recordingStyle.Render("⏺ ")
		} else {
			indicator = pausedStyle.Render("⏸ ")
		}
	}

	row := marker + indicator + t.Name

	var meta []string
	if m.st.Enabled(settings.FeatureShowDueTime) && t.HasDueTime() {
		due := t.DueDate.Local().Format("15:04")
		if t.Overdue(m.now) {
			meta = append(meta, overdueStyle.Render(due+" overdue"))
		} else {
			meta = append(meta, mutedStyle.Render(due))
		}
	}
	if entry, ok := m.entries[t.ID]; ok {
		meta = append(meta, recordingStyle.Render(formatElapsed(entry.Elapsed(m.now))))
	} else if m.st.Enabled(settings.FeatureShowTimeTracked) && t.TimeSpent > 0 {
		meta = append(meta, mutedStyle.Render(formatElapsed(t.TimeSpent)))
	}

	if len(meta) > 0 {
		row += "  " + strings.Join(meta, "  ")
	}
	return row
}

func (m Model) viewFooter() string {
	if m.snoozing {
		return helpStyle.Render("snooze: 1 tomorrow · 2 in two days · 7 next week · any other key cancels")
	}

	var b strings.Builder
	if m.status != "" {
		b.WriteString(statusStyle.Render(m.status) + "\n")
	}

	parts := []string{"↑/↓ move", "enter open", "c complete"}
	if m.st.Enabled(settings.FeatureSnooze) {
		parts = append(parts, "s snooze")
	}
	if m.st.Enabled(settings.FeatureTimeTracking) {
		parts = append(parts, "t timer")
	}
	parts = append(parts, "r refresh", "a overdue", "q quit")
	b.WriteString(helpStyle.Render(strings.Join(parts, "  ")))
	return b.String()
}

func (m Model) listHeight() int {
	if m.height == 0 {
		return 20
	}
	return max(m.height-6, 3)
}

func (m *Model) ensureVisible() {
	h := m.listHeight()
	if m.cursor < m.scroll {
		m.scroll = m.cursor
	}
	if m.cursor >= m.scroll+h {
		m.scroll = m.cursor - h + 1
	}
}

// formatElapsed renders a duration compactly: 42s, 12m03s, 1h05m.
func formatElapsed(d time.Duration) string {
	d = d.Round(time.Second)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	}
}
