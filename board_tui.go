package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"planmyday/internal/auth"
	"planmyday/internal/cardstore"
	"planmyday/internal/dropzone"
	"planmyday/internal/errors"
	"planmyday/internal/logger"
	"planmyday/internal/task"
	"planmyday/internal/taskapi"
	"planmyday/internal/usercfg"

	"github.com/charmbracelet/bubbles/spinner"
	textinput "github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/browser"
)

// Screen geometry, in rows. The board is laid out as:
//
//	header, help line, blank           (headerRows)
//	column boxes                       (border, title, body, border)
//	burn barrel                        (barrelRows)
//	footer                             (toast / filter)
//
// Inside a column body every visible card takes slotRows: its drop marker line
// followed by cardRows of card text.
const (
	headerRows   = 3
	cardRows     = 2
	slotRows     = cardRows + 1
	boxChrome    = 2
	barrelRows   = 3
	footerRows   = 2
	toastTimeout = 4 * time.Second
	opTimeout    = 30 * time.Second
	bulkTimeout  = 3 * time.Minute
)

type dropState int

const (
	stateIdle dropState = iota
	stateDragOver
)

func (s dropState) String() string {
	if s == stateDragOver {
		return "drag-over"
	}
	return "idle"
}

type kanbanColumnView struct {
	column task.Column
	cards  []task.Card // store order, possibly filtered
	cursor int
	offset int // top index of the visible window
	state  dropState
}

// dragState tracks one gesture from pick-up to drop.
type dragState struct {
	cardID     string
	overCol    int // -1 when the pointer is outside every column
	overBarrel bool
	pointerY   float64
	keyboard   bool
	slot       int // keyboard carry position, len(cards) means the end slot
}

type loadedMsg struct{ err error }

type storeChangedMsg struct{ err error }

type bulkDoneMsg struct{ err error }

type noticeMsg cardstore.Notice

type clockMsg time.Time

type boardModel struct {
	cfg         usercfg.Config
	store       *cardstore.Store
	notices     chan cardstore.Notice
	locator     dropzone.Locator
	columns     []kanbanColumnView
	selectedCol int
	waiting     string // non-empty while the waiting screen owns the display
	spinner     spinner.Model
	width       int
	height      int
	now         time.Time
	drag        *dragState
	seenRev     uint64 // store revision the column views were built from
	form        *cardForm
	filtering   bool
	filterInput textinput.Model
	filter      string
	showExtra   bool
	toast       *cardstore.Notice
	toastUntil  time.Time
	showingHelp bool
	helpOffset  int // scroll offset within help overlay
	styles      boardStyles
}

// newBoardStyles returns hardcoded dark theme styles
func newBoardStyles() boardStyles {
	return boardStyles{
		header:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")),
		title:       lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		boxStyle:    lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1).BorderForeground(lipgloss.Color("240")),
		boxActive:   lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1).BorderForeground(lipgloss.Color("10")),
		boxDragOver: lipgloss.NewStyle().Border(lipgloss.DoubleBorder()).Padding(0, 1).BorderForeground(lipgloss.Color("214")),
		barrel:      lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")).Foreground(lipgloss.Color("244")).Align(lipgloss.Center),
		barrelHot:   lipgloss.NewStyle().Border(lipgloss.DoubleBorder()).BorderForeground(lipgloss.Color("1")).Foreground(lipgloss.Color("1")).Bold(true).Align(lipgloss.Center),
		selected:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57")),
		carried:     lipgloss.NewStyle().Faint(true).Strikethrough(true),
		marker:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214")),
		muted:       lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		help:        lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		helpOverlay: lipgloss.NewStyle().Background(lipgloss.Color("235")).Foreground(lipgloss.Color("255")).Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("99")).Padding(1, 2),
		helpTitle:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99")),
		helpKey:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10")),
		success:     lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		warning:     lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		error:       lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
	}
}

type boardStyles struct {
	header      lipgloss.Style
	title       lipgloss.Style
	boxStyle    lipgloss.Style
	boxActive   lipgloss.Style
	boxDragOver lipgloss.Style
	barrel      lipgloss.Style
	barrelHot   lipgloss.Style
	selected    lipgloss.Style
	carried     lipgloss.Style
	marker      lipgloss.Style
	muted       lipgloss.Style
	help        lipgloss.Style
	helpOverlay lipgloss.Style
	helpTitle   lipgloss.Style
	helpKey     lipgloss.Style
	success     lipgloss.Style
	warning     lipgloss.Style
	error       lipgloss.Style
}

// initialBoardModel wires a store over api. Notices from the store are fed back
// into the event loop through a buffered channel.
func initialBoardModel(cfg usercfg.Config, api cardstore.API) boardModel {
	ti := textinput.New()
	ti.Placeholder = "filter..."
	ti.CharLimit = 256

	notices := make(chan cardstore.Notice, 64)
	store := cardstore.New(api,
		cardstore.WithNotifier(cardstore.NotifierFunc(func(n cardstore.Notice) {
			select {
			case notices <- n:
			default:
				logger.Warn("dropped notice %q", n.Message)
			}
		})),
		cardstore.WithRollback(cfg.RollbackEnabled()),
	)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	anchor := cfg.AnchorRows
	if anchor <= 0 {
		anchor = slotRows
	}

	uiPrefs := usercfg.GetUIPrefs()
	var initialCol int
	if uiPrefs.LastSelectedCol >= 0 && uiPrefs.LastSelectedCol < len(task.Columns) {
		initialCol = uiPrefs.LastSelectedCol
	}

	columns := make([]kanbanColumnView, len(task.Columns))
	for i, col := range task.Columns {
		columns[i] = kanbanColumnView{column: col}
	}

	return boardModel{
		cfg:         cfg,
		store:       store,
		notices:     notices,
		locator:     dropzone.New(float64(anchor)),
		columns:     columns,
		selectedCol: initialCol,
		waiting:     "Loading your day…",
		spinner:     sp,
		now:         time.Now(),
		filterInput: ti,
		filter:      uiPrefs.LastFilter,
		showExtra:   uiPrefs.ShowExtraFields,
		styles:      newBoardStyles(),
	}
}

func (m boardModel) Init() tea.Cmd {
	return tea.Batch(m.loadCmd(), m.spinner.Tick, waitForNotice(m.notices), clockTick())
}

func (m boardModel) loadCmd() tea.Cmd {
	store := m.store
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		return loadedMsg{err: store.Load(ctx)}
	}
}

// commitCmd sends a mutation whose local phase has already been rendered.
func (m boardModel) commitCmd(mut *cardstore.Mutation) tea.Cmd {
	store := m.store
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		return storeChangedMsg{err: store.Commit(ctx, mut)}
	}
}

func (m boardModel) bulkCmd(run func(ctx context.Context, s *cardstore.Store) error) tea.Cmd {
	store := m.store
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), bulkTimeout)
		defer cancel()
		return bulkDoneMsg{err: run(ctx, store)}
	}
}

func waitForNotice(ch <-chan cardstore.Notice) tea.Cmd {
	return func() tea.Msg {
		return noticeMsg(<-ch)
	}
}

func clockTick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return clockMsg(t) })
}

// startBulk hands the screen to the waiting surface until run finishes.
func (m boardModel) startBulk(label string, run func(ctx context.Context, s *cardstore.Store) error) (boardModel, tea.Cmd) {
	m.waiting = label
	m.cancelDrag()
	return m, tea.Batch(m.bulkCmd(run), m.spinner.Tick)
}

// refreshColumns rebuilds every column view from the store.
func (m *boardModel) refreshColumns() {
	m.seenRev = m.store.Revision()
	for i := range m.columns {
		c := &m.columns[i]
		c.cards = task.Filter(m.store.Column(c.column), m.filter)
		m.ensureCursorVisible(c)
	}
}

func (m *boardModel) setToast(n cardstore.Notice) {
	m.toast = &n
	m.toastUntil = m.now.Add(toastTimeout)
}

// afterLocal renders the optimistic state of a local mutation and schedules
// its commit. Validation failures were already notified by the store.
func (m boardModel) afterLocal(mut *cardstore.Mutation, err error) (boardModel, tea.Cmd) {
	if err != nil {
		if !task.IsValidation(err) {
			m.setToast(cardstore.Notice{Level: cardstore.LevelError, Message: errors.Brief(err)})
		}
		return m, nil
	}
	m.refreshColumns()
	if mut == nil {
		return m, nil
	}
	return m, m.commitCmd(mut)
}

func (m boardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		// Keep cursor visible in each column after resize
		for i := range m.columns {
			m.ensureCursorVisible(&m.columns[i])
		}
		return m, nil
	case loadedMsg:
		m.waiting = ""
		m.refreshColumns()
		return m, nil
	case storeChangedMsg:
		if m.store.Revision() != m.seenRev {
			m.refreshColumns()
		}
		return m, nil
	case bulkDoneMsg:
		m.waiting = ""
		m.refreshColumns()
		return m, nil
	case noticeMsg:
		m.setToast(cardstore.Notice(msg))
		return m, waitForNotice(m.notices)
	case clockMsg:
		m.now = time.Time(msg)
		if m.toast != nil && !m.now.Before(m.toastUntil) {
			m.toast = nil
		}
		return m, clockTick()
	case spinner.TickMsg:
		if m.waiting == "" {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.MouseMsg:
		if m.waiting != "" || m.form != nil || m.showingHelp {
			return m, nil
		}
		return m.handleMouse(msg)
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m boardModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if m.waiting != "" {
		if key == "ctrl+c" {
			m.saveUIPreferences()
			return m, tea.Quit
		}
		return m, nil
	}
	if m.showingHelp {
		// Compute wrapped help lines and viewport
		lines, _, viewport := m.helpLayout()
		maxOffset := 0
		if viewport < len(lines) {
			maxOffset = len(lines) - viewport
		}
		switch key {
		case "q", "?", "esc":
			m.showingHelp = false
		case "up", "k":
			if m.helpOffset > 0 {
				m.helpOffset--
			}
		case "down", "j":
			if m.helpOffset < maxOffset {
				m.helpOffset++
			}
		case "pgup":
			step := max(1, viewport-1)
			m.helpOffset = max(0, m.helpOffset-step)
		case "pgdown":
			step := max(1, viewport-1)
			m.helpOffset = min(maxOffset, m.helpOffset+step)
		case "home":
			m.helpOffset = 0
		case "end":
			m.helpOffset = maxOffset
		}
		return m, nil
	}
	if m.form != nil {
		return m.updateForm(msg)
	}
	if m.filtering {
		switch msg.Type {
		case tea.KeyEsc, tea.KeyCtrlC:
			m.filtering = false
			return m, nil
		case tea.KeyEnter:
			m.filtering = false
			return m, nil
		default:
			// Live update filter as user types; no refetch
			var cmd tea.Cmd
			m.filterInput, cmd = m.filterInput.Update(msg)
			m.filter = m.filterInput.Value()
			m.refreshColumns()
			return m, cmd
		}
	}
	if m.drag != nil && m.drag.keyboard {
		return m.handleCarryKey(key)
	}

	switch {
	// Critical actions first to avoid conflicts with navigation keys
	case key == "q" || key == "ctrl+c":
		m.saveUIPreferences()
		return m, tea.Quit
	case key == "?":
		m.showingHelp = !m.showingHelp
	case key == "esc":
		if m.filter != "" {
			m.filter = ""
			m.filterInput.SetValue("")
			m.refreshColumns()
		}
	case key == "/":
		m.filtering = true
		m.filterInput.SetValue(m.filter)
		cmd := m.filterInput.Focus()
		return m, cmd
	case key == "a" || key == "n":
		return m.openAddForm(m.columns[m.selectedCol].column)
	case key == "t":
		if c, ok := m.currentCard(); ok {
			return m.openTimeForm(c)
		}
	case key == "x" || key == "delete":
		if c, ok := m.currentCard(); ok {
			return m.deleteCard(c.ID)
		}
	case key == " " || key == "space":
		if c, ok := m.currentCard(); ok {
			m.pickUp(c.ID)
		}
	case key == "e":
		m.showExtra = !m.showExtra
	case key == "o":
		if err := browser.OpenURL(m.cfg.WebURL); err != nil {
			m.setToast(cardstore.Notice{Level: cardstore.LevelError, Message: "Failed to open browser: " + err.Error()})
		}
	case key == "g":
		return m.openPromptForm()
	case key == "A":
		return m.startBulk("Aligning tasks with your plan…", func(ctx context.Context, s *cardstore.Store) error {
			_, err := s.Align(ctx)
			return err
		})
	case key == "C":
		return m.startBulk("Archiving completed tasks…", func(ctx context.Context, s *cardstore.Store) error {
			_, err := s.Archive(ctx, true)
			return err
		})
	case key == "r":
		m.waiting = "Refreshing…"
		return m, tea.Batch(m.loadCmd(), m.spinner.Tick)
	// Navigation last so action keys don't get shadowed
	case key == "l" || key == "right" || key == "tab":
		m.selectedCol = (m.selectedCol + 1) % len(m.columns)
		m.ensureCursorVisible(&m.columns[m.selectedCol])
	case key == "h" || key == "left" || key == "shift+tab":
		m.selectedCol = (m.selectedCol - 1 + len(m.columns)) % len(m.columns)
		m.ensureCursorVisible(&m.columns[m.selectedCol])
	case key == "j" || key == "down":
		col := &m.columns[m.selectedCol]
		if len(col.cards) > 0 && col.cursor < len(col.cards)-1 {
			col.cursor++
			m.ensureCursorVisible(col)
		}
	case key == "k" || key == "up":
		col := &m.columns[m.selectedCol]
		if len(col.cards) > 0 && col.cursor > 0 {
			col.cursor--
			m.ensureCursorVisible(col)
		}
	}
	return m, nil
}

func (m boardModel) deleteCard(id string) (boardModel, tea.Cmd) {
	mut, err := m.store.Delete(id)
	return m.afterLocal(mut, err)
}

func (m boardModel) currentCard() (task.Card, bool) {
	if len(m.columns) == 0 {
		return task.Card{}, false
	}
	c := m.columns[m.selectedCol]
	if len(c.cards) == 0 {
		return task.Card{}, false
	}
	return c.cards[c.cursor], true
}

func (m boardModel) View() string {
	if m.waiting != "" {
		return m.waitingView()
	}

	clock := m.now.Format("Mon Jan 2 · 15:04:05")
	header := m.styles.header.Render(clip(fmt.Sprintf("📅 PlanMyDay — %s — %d tasks", clock, len(m.store.Cards())), m.width))
	// Compact help to avoid overflowing small terminals; full help with '?'
	help := m.styles.help.Render(clip("(? help • q quit • drag or space to move • a add • t time • x delete • / filter • g generate)", m.width))

	colWidth := m.columnWidth()
	bodyRows := m.bodyRows()
	rendered := make([]string, len(m.columns))
	for i := range m.columns {
		rendered[i] = m.renderColumn(i, colWidth, bodyRows)
	}
	board := lipgloss.JoinHorizontal(lipgloss.Top, rendered...)

	barrelStyle := m.styles.barrel
	barrelText := "🔥 burn barrel: drop a card here to delete it"
	if m.drag != nil && m.drag.overBarrel {
		barrelStyle = m.styles.barrelHot
		barrelText = "🔥 release to delete 🔥"
	}
	barrel := barrelStyle.Width(len(m.columns)*(colWidth+2) - 2).Render(barrelText)

	var footer string
	switch {
	case m.filtering:
		footer = "Filter: " + m.filterInput.View()
	case m.toast != nil:
		footer = m.renderToast(*m.toast)
	case m.drag != nil && m.drag.keyboard:
		title := "card"
		if c, ok := m.carriedCard(); ok {
			title = fmt.Sprintf("%q", c.Title)
		}
		footer = m.styles.muted.Render(clip("Carrying "+title+": arrows choose a slot • space/enter drop • x burn • esc cancel", m.width))
	case m.filter != "":
		footer = m.styles.muted.Render("Filter: " + m.filter + " (esc clears)")
	case !m.store.Loaded():
		footer = m.styles.warning.Render("⚠️  Tasks are not loaded. Press r to retry.")
	}
	baseView := header + "\n" + help + "\n\n" + board + "\n" + barrel + "\n" + footer + "\n"

	if m.showingHelp {
		return m.renderWithHelpOverlay(baseView)
	}
	if m.form != nil {
		return m.renderOverlay(baseView, m.formView(), min(64, max(40, m.width-8)))
	}
	return baseView
}

func (m boardModel) renderColumn(i, colWidth, bodyRows int) string {
	c := m.columns[i]
	textWidth := colWidth - 2
	start, end := m.visibleRange(c)

	var lit []bool
	if c.state == stateDragOver && m.drag != nil {
		lit = m.locator.Highlight(m.drag.pointerY, m.markers(i))
	}
	markerLine := func(k int, label string) string {
		if k < len(lit) && lit[k] {
			return m.styles.marker.Render(clip("▶ "+label+" "+strings.Repeat("─", textWidth), textWidth))
		}
		return ""
	}

	var items []string
	// Top indicator or spacer
	if start > 0 {
		items = append(items, m.styles.muted.Render(fmt.Sprintf("… %d above", start)))
	} else {
		items = append(items, "")
	}
	for idx := start; idx < end; idx++ {
		card := c.cards[idx]
		items = append(items, markerLine(idx-start, "drop here"))

		title := clip(card.Title, textWidth)
		meta := clip(cardMeta(card, m.showExtra), textWidth)
		switch {
		case m.drag != nil && m.drag.cardID == card.ID:
			title = m.styles.carried.Render(title)
		case i == m.selectedCol && idx == c.cursor:
			title = m.styles.selected.Render(title)
		}
		if card.Temporary() {
			meta = clip("saving… "+cardMeta(card, m.showExtra), textWidth)
		}
		items = append(items, title, m.styles.muted.Render(meta))
	}
	endLine := markerLine(end-start, "drop at end")
	if endLine == "" && len(c.cards) == 0 {
		endLine = m.styles.muted.Render("(empty)")
	}
	items = append(items, endLine)
	// Bottom indicator or spacer
	if end < len(c.cards) {
		items = append(items, m.styles.muted.Render(fmt.Sprintf("… %d below", len(c.cards)-end)))
	} else {
		items = append(items, "")
	}
	items = append(items, m.styles.muted.Render("+ add"))

	box := m.styles.boxStyle
	switch {
	case c.state == stateDragOver:
		box = m.styles.boxDragOver
	case i == m.selectedCol:
		box = m.styles.boxActive
	}
	title := m.styles.title.Render(clip(fmt.Sprintf("%s (%d)", c.column.Title(), len(c.cards)), textWidth))
	return box.Width(colWidth).Height(1 + bodyRows).Render(title + "\n" + strings.Join(items, "\n"))
}

func (m boardModel) renderToast(n cardstore.Notice) string {
	switch n.Level {
	case cardstore.LevelSuccess:
		return m.styles.success.Render("✅ " + n.Message)
	case cardstore.LevelWarning:
		return m.styles.warning.Render("⚠️  " + n.Message)
	case cardstore.LevelError:
		return m.styles.error.Render("❌ " + n.Message)
	}
	return m.styles.muted.Render(n.Message)
}

// waitingView stands in for the board while a load or bulk operation runs.
func (m boardModel) waitingView() string {
	body := m.spinner.View() + " " + m.waiting + "\n\n" + m.styles.muted.Render("ctrl+c to quit")
	if m.width == 0 || m.height == 0 {
		return body + "\n"
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, body)
}

func (m boardModel) renderWithHelpOverlay(baseView string) string {
	lines, overlayWidth, viewport := m.helpLayout()
	// Clamp offset
	maxOffset := 0
	if viewport < len(lines) {
		maxOffset = len(lines) - viewport
	}
	offset := min(max(0, m.helpOffset), maxOffset)
	end := min(len(lines), offset+viewport)
	helpContent := strings.Join(lines[offset:end], "\n")

	pos := fmt.Sprintf("%d/%d lines — ↑/↓ PgUp/PgDn Home/End — q/? close", end, len(lines))
	return m.renderOverlay(baseView, helpContent+"\n"+m.styles.muted.Render(pos), overlayWidth)
}

// renderOverlay draws block in a framed box centred vertically over baseView.
func (m boardModel) renderOverlay(baseView, block string, width int) string {
	overlay := m.styles.helpOverlay.Width(width).Render(block)
	overlayLines := strings.Split(overlay, "\n")
	y := max(0, (m.height-len(overlayLines))/2)

	baseLines := strings.Split(baseView, "\n")
	for len(baseLines) < y+len(overlayLines) {
		baseLines = append(baseLines, "")
	}
	for i, overlayLine := range overlayLines {
		baseLines[y+i] = overlayLine
	}
	return strings.Join(baseLines, "\n")
}

// helpLayout computes wrapped help lines, target overlay width, and viewport height (content rows)
func (m boardModel) helpLayout() ([]string, int, int) {
	helpContent := m.buildHelpContent()
	overlayWidth := min(80, max(40, m.width-8))
	contentLines := strings.Split(helpContent, "\n")
	wrapped := make([]string, 0, len(contentLines))
	wrapWidth := max(10, overlayWidth-4)
	for _, line := range contentLines {
		for lipgloss.Width(line) > wrapWidth && len([]rune(line)) > wrapWidth {
			r := []rune(line)
			wrapped = append(wrapped, string(r[:wrapWidth]))
			line = string(r[wrapWidth:])
		}
		wrapped = append(wrapped, line)
	}
	// Viewport rows for content (exclude padding/footer lines)
	viewport := max(3, min(m.height-4, len(wrapped)+3)-3)
	return wrapped, overlayWidth, viewport
}

func (m boardModel) buildHelpContent() string {
	title := m.styles.helpTitle.Render("📅 PlanMyDay - Keyboard & Mouse")

	helpLines := []string{
		m.styles.helpKey.Render("q/ctrl+c") + "    Quit application",
		m.styles.helpKey.Render("?") + "           Toggle this help overlay",
		"",
		m.styles.helpTitle.Render("Navigation:"),
		m.styles.helpKey.Render("hjkl/arrows") + " Navigate",
		m.styles.helpKey.Render("tab/shift+tab") + " Switch column",
		"",
		m.styles.helpTitle.Render("Moving cards:"),
		m.styles.helpKey.Render("mouse drag") + "  Drop on a column slot or the burn barrel",
		m.styles.helpKey.Render("space") + "       Pick up the selected card",
		m.styles.helpKey.Render("arrows") + "      Choose a slot while carrying (down past the end reaches the barrel)",
		m.styles.helpKey.Render("space/enter") + " Drop the carried card",
		m.styles.helpKey.Render("esc") + "         Cancel the carry",
		"",
		m.styles.helpTitle.Render("Cards:"),
		m.styles.helpKey.Render("a") + "           Add a card to the selected column",
		m.styles.helpKey.Render("t") + "           Set or clear the scheduled time",
		m.styles.helpKey.Render("x") + "           Delete the selected card",
		m.styles.helpKey.Render("e") + "           Toggle duration and importance",
		m.styles.helpKey.Render("/") + "           Filter cards (live search)",
		"",
		m.styles.helpTitle.Render("Planning:"),
		m.styles.helpKey.Render("g") + "           Generate tasks with AI",
		m.styles.helpKey.Render("A") + "           Align tasks with your plan",
		m.styles.helpKey.Render("C") + "           Archive completed tasks",
		m.styles.helpKey.Render("o") + "           Open the web app",
		m.styles.helpKey.Render("r") + "           Refresh",
		"",
		m.styles.helpTitle.Render("Tips:"),
		"  • Changes show at once and are confirmed by the server afterwards",
		"  • Set rollback_on_failure = true to undo changes the server rejects",
		"  • Run planmyday setup to change the API address or token command",
	}

	return title + "\n\n" + strings.Join(helpLines, "\n") + "\n\n" + m.styles.muted.Render("Press ? again to close")
}

// columnWidth is the lipgloss width of a column box, padding included.
func (m boardModel) columnWidth() int {
	usable := m.width - boxChrome*len(m.columns)
	return max(16, usable/len(m.columns))
}

// itemsWindowCount returns how many cards a column shows at once.
func (m boardModel) itemsWindowCount() int {
	avail := m.height - headerRows - boxChrome - 1 - barrelRows - footerRows
	return max(1, (avail-4)/slotRows)
}

// bodyRows is the fixed height of a column body: top indicator, one slot per
// visible card, end marker, bottom indicator, add line.
func (m boardModel) bodyRows() int {
	return m.itemsWindowCount()*slotRows + 4
}

func (m boardModel) visibleRange(c kanbanColumnView) (int, int) {
	start := min(c.offset, len(c.cards))
	return start, min(len(c.cards), start+m.itemsWindowCount())
}

// firstMarkerRow is the screen row of the marker above the first visible card.
func (m boardModel) firstMarkerRow() int {
	return headerRows + 1 + 1 + 1 // border, title, top indicator
}

func (m boardModel) barrelTop() int {
	return headerRows + boxChrome + 1 + m.bodyRows()
}

// markers lists the drop markers of column i in screen rows: one before each
// visible card and the end marker.
func (m boardModel) markers(i int) []dropzone.Marker {
	c := m.columns[i]
	start, end := m.visibleRange(c)
	top := m.firstMarkerRow()
	out := make([]dropzone.Marker, 0, end-start+1)
	for idx := start; idx < end; idx++ {
		out = append(out, dropzone.Marker{BeforeID: c.cards[idx].ID, Top: float64(top + (idx-start)*slotRows)})
	}
	out = append(out, dropzone.Marker{BeforeID: dropzone.End, Top: float64(top + (end-start)*slotRows)})
	return out
}

// columnAt maps a screen cell to a column index.
func (m boardModel) columnAt(x, y int) (int, bool) {
	if y < headerRows || y >= m.barrelTop() || x < 0 {
		return -1, false
	}
	i := x / (m.columnWidth() + boxChrome)
	if i >= len(m.columns) {
		return -1, false
	}
	return i, true
}

func (m boardModel) overBarrel(x, y int) bool {
	top := m.barrelTop()
	return y >= top && y < top+barrelRows && x >= 0 && x < len(m.columns)*(m.columnWidth()+boxChrome)
}

// cardAt returns the index of the card drawn at row y of column i.
func (m boardModel) cardAt(i, y int) (int, bool) {
	c := m.columns[i]
	start, end := m.visibleRange(c)
	rel := y - m.firstMarkerRow()
	if rel < 0 || rel%slotRows == 0 {
		return -1, false
	}
	idx := start + rel/slotRows
	if idx >= end {
		return -1, false
	}
	return idx, true
}

func (m boardModel) addRow(i int) int {
	start, end := m.visibleRange(m.columns[i])
	return m.firstMarkerRow() + (end-start)*slotRows + 2
}

// ensureCursorVisible adjusts the column offset so that the cursor stays within the
// visible window, honoring the up/down indicators.
func (m boardModel) ensureCursorVisible(c *kanbanColumnView) {
	if len(c.cards) == 0 {
		c.offset = 0
		c.cursor = 0
		return
	}
	if c.cursor < 0 {
		c.cursor = 0
	}
	if c.cursor > len(c.cards)-1 {
		c.cursor = len(c.cards) - 1
	}
	vh := m.itemsWindowCount()
	if c.cursor < c.offset {
		c.offset = c.cursor
	}
	if c.cursor >= c.offset+vh {
		c.offset = c.cursor - vh + 1
	}
	maxOffset := 0
	if len(c.cards) > vh {
		maxOffset = len(c.cards) - vh
	}
	if c.offset > maxOffset {
		c.offset = maxOffset
	}
	if c.offset < 0 {
		c.offset = 0
	}
}

func (m boardModel) saveUIPreferences() {
	prefs := usercfg.UIPreferences{
		LastSelectedCol: m.selectedCol,
		LastFilter:      m.filter,
		ShowExtraFields: m.showExtra,
	}

	// Save preferences (ignore errors as this is best-effort)
	_ = usercfg.SaveUIPrefs(prefs)
}

func StartBoard(cfg usercfg.Config) error {
	tokens := auth.NewSource(cfg.TokenCommand)
	if _, claims, err := auth.Check(context.Background(), tokens); err != nil {
		return err
	} else if claims.Subject != "" {
		logger.TUI("board session for %s", claims.Subject)
	}

	restore := logger.RedirectToFile()
	defer restore()

	model := initialBoardModel(cfg, taskapi.New(cfg.APIURL, tokens))
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion())
	finalModel, err := p.Run()

	// Save UI preferences when the program exits
	if bm, ok := finalModel.(boardModel); ok {
		bm.saveUIPreferences()
	}
	return err
}

// clip shortens s to w terminal cells, marking the cut with an ellipsis.
func clip(s string, w int) string {
	if w <= 0 || lipgloss.Width(s) <= w {
		return s
	}
	var b strings.Builder
	used := 0
	for _, r := range s {
		rw := lipgloss.Width(string(r))
		if used+rw > w-1 {
			break
		}
		b.WriteRune(r)
		used += rw
	}
	return b.String() + "…"
}
