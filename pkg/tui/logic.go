package tui

import (
	"fmt"
	"strings"
	"time"

	"tokendash/pkg/models"
	"tokendash/pkg/utils"
	"tokendash/pkg/watcher"

	tea "github.com/charmbracelet/bubbletea"
)

func (m model) getFilteredTransactions() []models.TransactionRecord {
	if m.txFilter == "all" || m.txFilter == "" {
		return m.snap.History
	}
	var filtered []models.TransactionRecord
	for _, tx := range m.snap.History {
		if string(tx.Direction) == m.txFilter {
			filtered = append(filtered, tx)
		}
	}
	return filtered
}

func (m model) selectedTransaction() (models.TransactionRecord, bool) {
	txs := m.getFilteredTransactions()
	if m.txListIdx < 0 || m.txListIdx >= len(txs) {
		return models.TransactionRecord{}, false
	}
	return txs[m.txListIdx], true
}

func (m model) explorerTxURL(hash string) string {
	if m.config.ExplorerURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/tx/%s", strings.TrimRight(m.config.ExplorerURL, "/"), hash)
}

// writeStatusLine describes the last write, or "" when there is nothing to
// report. The bool is true for failures.
func writeStatusLine(s models.WriteStatus) (string, bool) {
	action := s.Action
	if action == "" {
		action = "transaction"
	}
	switch {
	case s.Pending:
		return fmt.Sprintf("Submitting %s...", action), false
	case s.Confirming:
		return fmt.Sprintf("Waiting for %s confirmation %s", action, utils.ShortAddress(s.TxHash)), false
	case s.Error != "":
		return fmt.Sprintf("Error: %s", utils.FirstLine(s.Error)), true
	case s.Confirmed:
		return fmt.Sprintf("Confirmed %s %s", action, utils.ShortAddress(s.TxHash)), false
	}
	return "", false
}

// syncDraft pushes the text inputs into the controller's draft.
func (m model) syncDraft() {
	m.watcher.SetDraft(m.inputs[inputRecipient].Value(), m.inputs[inputAmount].Value())
}

func (m *model) focusInput(idx int) {
	m.focusIdx = idx
	for i := range m.inputs {
		if i == idx {
			m.inputs[i].Focus()
		} else {
			m.inputs[i].Blur()
		}
	}
}

func (m *model) blurInputs() {
	m.editing = false
	for i := range m.inputs {
		m.inputs[i].Blur()
	}
}

func (m model) transferCmd() tea.Cmd {
	ctx := m.ctx
	c := m.watcher
	return func() tea.Msg {
		hash, err := c.Transfer(ctx)
		return writeResultMsg{action: "transfer", hash: hash, err: err}
	}
}

func (m model) mintCmd() tea.Cmd {
	ctx := m.ctx
	c := m.watcher
	return func() tea.Msg {
		hash, err := c.Mint(ctx)
		return writeResultMsg{action: "mint", hash: hash, err: err}
	}
}

func (m model) refreshCmd() tea.Cmd {
	ctx := m.ctx
	c := m.watcher
	return func() tea.Msg {
		return refreshResultMsg{err: c.Refresh(ctx)}
	}
}

func clearStatusAfter(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return clearStatusMsg{}
	})
}

func listenForWatcher(sub watcher.Subscriber) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-sub
		if !ok {
			return nil
		}
		return ev
	}
}
