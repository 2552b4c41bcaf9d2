package tui

import (
	"errors"
	"fmt"
	"time"

	"tokendash/pkg/utils"
	"tokendash/pkg/wallet"
	"tokendash/pkg/watcher"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
)

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case watcher.Event:
		cmds = append(cmds, listenForWatcher(m.sub))

		m.snap = m.watcher.Snapshot()
		m.loading = !m.snap.MetadataResolved
		switch msg.Type {
		case watcher.EventBalanceUpdated, watcher.EventAccountUpdated:
			m.balanceHistory = m.watcher.BalanceHistory()
		case watcher.EventDraftUpdated:
			if m.inputs[inputRecipient].Value() != m.snap.Draft.Recipient {
				m.inputs[inputRecipient].SetValue(m.snap.Draft.Recipient)
			}
			if m.inputs[inputAmount].Value() != m.snap.Draft.Amount {
				m.inputs[inputAmount].SetValue(m.snap.Draft.Amount)
			}
		case watcher.EventHistoryUpdated:
			if n := len(m.getFilteredTransactions()); m.txListIdx >= n {
				m.txListIdx = 0
				m.showTxDetail = false
			}
		}

	case writeResultMsg:
		if msg.err != nil {
			var rejection *watcher.ChainRejectionError
			if !errors.As(msg.err, &rejection) {
				// Rejections already show through the write status line.
				m.statusMessage = utils.FirstLine(msg.err.Error())
				cmds = append(cmds, clearStatusAfter(3*time.Second))
			}
		} else {
			m.statusMessage = fmt.Sprintf("%s sent: %s", msg.action, utils.ShortAddress(msg.hash.Hex()))
			cmds = append(cmds, clearStatusAfter(3*time.Second))
		}

	case refreshResultMsg:
		if msg.err != nil {
			m.statusMessage = fmt.Sprintf("Refresh failed: %s", utils.FirstLine(msg.err.Error()))
		} else {
			m.statusMessage = "Refreshed"
		}
		cmds = append(cmds, clearStatusAfter(2*time.Second))

	case privacyTimeoutMsg:
		if m.config.PrivacyTimeoutSeconds <= 0 {
			break
		}
		timeoutDuration := time.Duration(m.config.PrivacyTimeoutSeconds) * time.Second
		if !m.privacyMode {
			if time.Since(m.lastInteraction) >= timeoutDuration {
				m.privacyMode = true
				m.statusMessage = "Privacy Mode enabled due to inactivity"
				cmds = append(cmds, clearStatusAfter(2*time.Second))
			} else {
				remaining := timeoutDuration - time.Since(m.lastInteraction)
				cmds = append(cmds, tea.Tick(remaining, func(t time.Time) tea.Msg {
					return privacyTimeoutMsg{}
				}))
			}
		}

	case tea.KeyMsg:
		m.lastInteraction = time.Now()
		return m.handleKey(msg)

	case uiTickMsg:
		cmds = append(cmds, tea.Tick(time.Second, func(t time.Time) tea.Msg { return uiTickMsg(t) }))

	case clearStatusMsg:
		m.statusMessage = ""
	}

	if m.loading {
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	if m.editing {
		return m.handleEditKey(msg)
	}

	if msg.String() == "?" {
		m.showHelp = !m.showHelp
		return m, nil
	}
	if m.showHelp {
		if msg.String() == "q" || msg.String() == "esc" {
			m.showHelp = false
		}
		return m, nil
	}

	if msg.String() == "P" {
		m.privacyMode = !m.privacyMode
		if !m.privacyMode && m.config.PrivacyTimeoutSeconds > 0 {
			cmds = append(cmds, tea.Tick(time.Duration(m.config.PrivacyTimeoutSeconds)*time.Second, func(t time.Time) tea.Msg {
				return privacyTimeoutMsg{}
			}))
		}
		return m, tea.Batch(cmds...)
	}

	if m.showGraph {
		switch msg.String() {
		case "g", "q", "esc":
			m.showGraph = false
		}
		return m, nil
	}

	if m.showTxDetail {
		switch msg.String() {
		case "q", "esc", "backspace":
			m.showTxDetail = false
			return m, nil
		case "o":
			tx, ok := m.selectedTransaction()
			if !ok {
				return m, nil
			}
			url := m.explorerTxURL(tx.ID)
			if url == "" {
				m.statusMessage = "Explorer URL not configured"
			} else if err := openBrowser(url); err != nil {
				m.statusMessage = fmt.Sprintf("Failed to open browser: %v", err)
			} else {
				m.statusMessage = "Opened in browser"
			}
			return m, clearStatusAfter(2 * time.Second)
		case "c":
			tx, ok := m.selectedTransaction()
			if !ok {
				return m, nil
			}
			if err := clipboard.WriteAll(tx.ID); err != nil {
				m.statusMessage = "Failed to copy to clipboard"
			} else {
				m.statusMessage = "Transaction hash copied to clipboard!"
			}
			return m, clearStatusAfter(2 * time.Second)
		}
		return m, nil
	}

	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "tab", "shift+tab":
		if m.activeTab == tabSend {
			m.activeTab = tabHistory
		} else {
			m.activeTab = tabSend
		}
		return m, nil
	case "g":
		m.showGraph = true
		m.balanceHistory = m.watcher.BalanceHistory()
		return m, nil
	case "r":
		m.statusMessage = "Refreshing data..."
		return m, m.refreshCmd()
	case "m":
		if !m.snap.Connected {
			m.statusMessage = "Connect a wallet first (w)"
			return m, clearStatusAfter(2 * time.Second)
		}
		if m.snap.Write.Busy() {
			return m, nil
		}
		m.statusMessage = "Requesting tokens from the faucet..."
		return m, m.mintCmd()
	case "w":
		return m.toggleWallet()
	case "c":
		if !m.snap.Connected {
			return m, nil
		}
		if err := clipboard.WriteAll(m.snap.Account); err != nil {
			m.statusMessage = "Failed to copy to clipboard"
		} else if m.privacyMode {
			m.statusMessage = "Full address copied (Privacy Mode active)!"
		} else {
			m.statusMessage = "Full address copied to clipboard!"
		}
		return m, clearStatusAfter(2 * time.Second)
	}

	if m.activeTab == tabSend {
		switch msg.String() {
		case "enter", "e":
			m.editing = true
			m.focusInput(inputRecipient)
		}
		return m, nil
	}

	switch msg.String() {
	case "i":
		m.txFilter = "in"
		m.txListIdx = 0
	case "o":
		m.txFilter = "out"
		m.txListIdx = 0
	case "a":
		m.txFilter = "all"
		m.txListIdx = 0
	case "up", "k":
		if m.txListIdx > 0 {
			m.txListIdx--
		}
	case "down", "j":
		if m.txListIdx < len(m.getFilteredTransactions())-1 {
			m.txListIdx++
		}
	case "enter":
		if len(m.getFilteredTransactions()) > 0 {
			m.showTxDetail = true
		}
	}
	return m, nil
}

func (m model) handleEditKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.blurInputs()
		return m, nil
	case "tab", "down", "shift+tab", "up":
		m.focusInput((m.focusIdx + 1) % len(m.inputs))
		return m, nil
	case "enter":
		if m.focusIdx == inputRecipient {
			m.focusInput(inputAmount)
			return m, nil
		}
		if !m.watcher.CanSubmit() {
			return m, nil
		}
		m.blurInputs()
		return m, m.transferCmd()
	}

	var cmd tea.Cmd
	m.inputs[m.focusIdx], cmd = m.inputs[m.focusIdx].Update(msg)
	m.syncDraft()
	return m, cmd
}

func (m model) toggleWallet() (tea.Model, tea.Cmd) {
	if m.wallet.Connected() {
		m.wallet.Disconnect()
		m.statusMessage = "Wallet disconnected"
		return m, clearStatusAfter(2 * time.Second)
	}
	if err := m.wallet.Connect(m.config.PrivateKey); err != nil {
		if errors.Is(err, wallet.ErrNoKey) {
			m.statusMessage = "No signing key: set TOKENDASH_PRIVATE_KEY"
		} else {
			m.statusMessage = utils.FirstLine(err.Error())
		}
		return m, clearStatusAfter(3 * time.Second)
	}
	m.statusMessage = "Wallet connected"
	return m, clearStatusAfter(2 * time.Second)
}
