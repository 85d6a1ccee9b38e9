package main

import (
	"planmyday/internal/dropzone"
	"planmyday/internal/logger"
	"planmyday/internal/task"

	tea "github.com/charmbracelet/bubbletea"
)

// Drag and drop runs the same way for the mouse and the keyboard. A gesture
// starts with a pick-up, moves columns between Idle and DragOver as the pointer
// enters and leaves them, and ends with a drop that asks the locator for the
// nearest marker.

func (m boardModel) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	switch msg.Action {
	case tea.MouseActionPress:
		if m.drag != nil {
			return m, nil
		}
		switch msg.Button {
		case tea.MouseButtonWheelUp:
			return m.scroll(msg.X, msg.Y, -1), nil
		case tea.MouseButtonWheelDown:
			return m.scroll(msg.X, msg.Y, 1), nil
		case tea.MouseButtonLeft:
		default:
			return m, nil
		}
		col, ok := m.columnAt(msg.X, msg.Y)
		if !ok {
			return m, nil
		}
		m.selectedCol = col
		if idx, ok := m.cardAt(col, msg.Y); ok {
			m.columns[col].cursor = idx
			m.drag = &dragState{cardID: m.columns[col].cards[idx].ID, overCol: -1}
			m.trackPointer(msg.X, msg.Y)
			return m, nil
		}
		if msg.Y == m.addRow(col) {
			return m.openAddForm(m.columns[col].column)
		}
	case tea.MouseActionMotion:
		if m.drag == nil || m.drag.keyboard {
			return m, nil
		}
		m.trackPointer(msg.X, msg.Y)
	case tea.MouseActionRelease:
		if m.drag == nil || m.drag.keyboard {
			return m, nil
		}
		m.trackPointer(msg.X, msg.Y)
		return m.drop()
	}
	return m, nil
}

func (m boardModel) scroll(x, y, delta int) boardModel {
	col, ok := m.columnAt(x, y)
	if !ok {
		return m
	}
	c := &m.columns[col]
	c.cursor += delta
	m.ensureCursorVisible(c)
	return m
}

// trackPointer updates the drag target for a pointer at (x, y).
func (m *boardModel) trackPointer(x, y int) {
	if col, ok := m.columnAt(x, y); ok {
		m.enterColumn(col)
		m.drag.overBarrel = false
		m.drag.pointerY = float64(y)
		return
	}
	m.leaveColumn()
	m.drag.overBarrel = m.overBarrel(x, y)
}

func (m *boardModel) enterColumn(col int) {
	if m.drag.overCol == col {
		return
	}
	m.leaveColumn()
	m.drag.overCol = col
	m.columns[col].state = stateDragOver
	logger.TUI("%s: %s -> %s", m.columns[col].column, stateIdle, stateDragOver)
}

func (m *boardModel) leaveColumn() {
	if m.drag == nil || m.drag.overCol < 0 {
		return
	}
	c := &m.columns[m.drag.overCol]
	c.state = stateIdle
	logger.TUI("%s: %s -> %s", c.column, stateDragOver, stateIdle)
	m.drag.overCol = -1
}

func (m *boardModel) cancelDrag() {
	if m.drag == nil {
		return
	}
	m.leaveColumn()
	m.drag = nil
}

// drop finishes the gesture. Over the barrel the card is deleted; over a column
// it is moved before the nearest marker; anywhere else nothing happens.
func (m boardModel) drop() (tea.Model, tea.Cmd) {
	d := *m.drag
	var target dropzone.Marker
	if d.overCol >= 0 {
		_, target = m.locator.Nearest(d.pointerY, m.markers(d.overCol))
	}
	m.cancelDrag()

	switch {
	case d.overBarrel:
		return m.deleteCard(d.cardID)
	case d.overCol < 0:
		return m, nil
	case dropzone.IsNoop(d.cardID, target):
		return m, nil
	}

	col := m.columns[d.overCol].column
	logger.TUI("drop %s on %s before %q", d.cardID, col, target.BeforeID)
	mut, err := m.store.Move(d.cardID, col, target.BeforeID)
	m.selectedCol = d.overCol
	next, cmd := m.afterLocal(mut, err)
	next.selectCard(d.cardID)
	return next, cmd
}

// selectCard moves the selection onto id if it is visible.
func (m *boardModel) selectCard(id string) {
	for i := range m.columns {
		for idx, c := range m.columns[i].cards {
			if c.ID == id {
				m.selectedCol = i
				m.columns[i].cursor = idx
				m.ensureCursorVisible(&m.columns[i])
				return
			}
		}
	}
}

// pickUp starts a keyboard carry of id from the selected column.
func (m *boardModel) pickUp(id string) {
	m.drag = &dragState{cardID: id, overCol: -1, keyboard: true}
	m.carryTo(m.selectedCol, m.columns[m.selectedCol].cursor)
}

// carryTo places the keyboard pointer on slot of column col. The pointer sits
// one row above the slot marker's anchor, so the locator picks that marker
// whatever the configured anchor offset.
func (m *boardModel) carryTo(col, slot int) {
	c := &m.columns[col]
	slot = max(0, min(slot, len(c.cards)))
	if len(c.cards) > 0 {
		c.cursor = min(slot, len(c.cards)-1)
		m.ensureCursorVisible(c)
	}
	m.selectedCol = col
	m.drag.slot = slot
	m.drag.overBarrel = false
	m.enterColumn(col)

	markers := m.markers(col)
	k := len(markers) - 1
	if slot < len(c.cards) {
		k = slot - c.offset
	}
	m.drag.pointerY = markers[k].Top + m.locator.AnchorOffset - 1
}

func (m boardModel) handleCarryKey(key string) (tea.Model, tea.Cmd) {
	d := m.drag
	switch key {
	case "ctrl+c":
		m.saveUIPreferences()
		return m, tea.Quit
	case "esc":
		m.cancelDrag()
	case " ", "space", "enter":
		return m.drop()
	case "x", "delete":
		m.leaveColumn()
		d.overBarrel = true
		return m.drop()
	case "up", "k":
		if d.overBarrel {
			m.carryTo(m.selectedCol, len(m.columns[m.selectedCol].cards))
		} else if d.slot > 0 {
			m.carryTo(m.selectedCol, d.slot-1)
		}
	case "down", "j":
		if d.overBarrel {
			break
		}
		if d.slot < len(m.columns[m.selectedCol].cards) {
			m.carryTo(m.selectedCol, d.slot+1)
		} else {
			m.leaveColumn()
			d.overBarrel = true
		}
	case "left", "h", "shift+tab":
		m.carryTo((m.selectedCol-1+len(m.columns))%len(m.columns), d.slot)
	case "right", "l", "tab":
		m.carryTo((m.selectedCol+1)%len(m.columns), d.slot)
	}
	return m, nil
}

// carriedCard returns the card being dragged.
func (m boardModel) carriedCard() (task.Card, bool) {
	if m.drag == nil {
		return task.Card{}, false
	}
	return m.store.Find(m.drag.cardID)
}
