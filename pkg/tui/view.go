package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"tokendash/pkg/models"
	"tokendash/pkg/utils"
)

func (m model) View() string {
	if m.showHelp {
		return m.viewHelp()
	}

	if m.showGraph {
		return m.viewBalanceGraph()
	}

	if m.showTxDetail {
		return m.viewTxDetail()
	}

	targetWidth := m.width - 4
	if targetWidth < 0 {
		targetWidth = 0
	}
	contentWidth := targetWidth - 4
	if contentWidth < 0 {
		contentWidth = 0
	}

	// Header
	tokenName := "Token"
	if m.snap.MetadataResolved {
		tokenName = fmt.Sprintf("%s (%s)", m.snap.Token.Name, m.snap.Token.Symbol)
	}
	header := titleStyle.Render(fmt.Sprintf("tokendash - %s", tokenName))

	accountLine := subtleStyle.Render("Wallet: not connected (w to connect)")
	if m.snap.Connected {
		accountLine = fmt.Sprintf("Account: %s", m.maskAddress(m.snap.Account))
	}
	chainLine := subtleStyle.Render(fmt.Sprintf("Chain: %d • RPC: %s", m.chainID, utils.TruncateString(m.config.RPCURL, 30)))

	var balStr string
	switch {
	case m.loading && !m.snap.MetadataResolved:
		balStr = m.spinner.View() + " Loading token..."
	case !m.snap.Connected:
		balStr = "-"
	case m.snap.Balance == nil:
		balStr = m.spinner.View() + " Reading balance..."
	default:
		balStr = fmt.Sprintf("%s %s", m.displayValue(m.snap.BalanceDisplay), m.snap.Token.Symbol)
	}
	balanceDisplay := balanceStyle.Width(contentWidth).Render(balStr)

	var writeLine string
	if line, failed := writeStatusLine(m.snap.Write); line != "" {
		switch {
		case failed:
			writeLine = errStyle.Render(line)
		case m.snap.Write.Busy():
			writeLine = warnStyle.Render(line)
		default:
			writeLine = infoStyle.Render(line)
		}
	}

	var body string
	if m.activeTab == tabSend {
		body = m.viewSend()
	} else {
		body = m.viewHistory()
	}

	uiBlock := lipgloss.JoinVertical(lipgloss.Center,
		header,
		accountLine,
		chainLine,
		"\n",
		balanceDisplay,
		writeLine,
		"\n",
		m.viewTabs(),
		body,
	)
	content := boxStyle.Width(targetWidth).Align(lipgloss.Center).Render(uiBlock)

	// Footer
	line1 := "tab:switch • w:wallet • m:mint • r:ref • g:graph • c:cpy • P:prv • ?:hlp • q:quit"
	if m.activeTab == tabSend {
		line1 = "enter:edit • " + line1
	} else {
		line1 = "i/o/a:filter • enter:details • " + line1
	}
	line1 += fmt.Sprintf(" • v%s", Version)

	var footer string
	if m.width > 0 {
		footer = subtleStyle.Width(m.width).Align(lipgloss.Center).Render(line1)
	} else {
		footer = subtleStyle.Render(line1)
	}
	if m.statusMessage != "" {
		footer = lipgloss.JoinVertical(lipgloss.Center, infoStyle.Render(m.statusMessage), footer)
	}

	// Top Bar
	privacyIndicator := ""
	if m.privacyMode {
		privacyIndicator = "🔒 "
	}
	lastUpd := "never"
	if !m.snap.LastUpdate.IsZero() {
		lastUpd = m.snap.LastUpdate.Format("15:04:05")
	}
	leftBlock := subtleStyle.Render(fmt.Sprintf(" Token: %s", m.shortAddress(m.config.TokenAddress)))
	rightBlock := subtleStyle.Render(fmt.Sprintf("%sLast updated: %s ", privacyIndicator, lastUpd))
	gap := m.width - lipgloss.Width(leftBlock) - lipgloss.Width(rightBlock)
	if gap < 0 {
		gap = 0
	}
	topBar := lipgloss.JoinHorizontal(lipgloss.Top, leftBlock, strings.Repeat(" ", gap), rightBlock)

	h := m.height - 1
	if h < 0 {
		h = 0
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		topBar,
		lipgloss.Place(
			m.width,
			h,
			lipgloss.Center,
			lipgloss.Center,
			lipgloss.JoinVertical(lipgloss.Center, content, "\n", footer),
		),
	)
}

func (m model) viewTabs() string {
	send, hist := "Send", fmt.Sprintf("History (%d)", len(m.snap.History))
	if m.activeTab == tabSend {
		return lipgloss.JoinHorizontal(lipgloss.Top, activeTabStyle.Render(send), inactiveTabStyle.Render(hist))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, inactiveTabStyle.Render(send), activeTabStyle.Render(hist))
}

func (m model) viewSend() string {
	lines := []string{
		fmt.Sprintf("%-10s %s", "To", m.inputs[inputRecipient].View()),
		fmt.Sprintf("%-10s %s", "Amount", m.inputs[inputAmount].View()),
		"",
	}

	hint := "[enter] Send"
	if m.editing && m.watcher.CanSubmit() {
		lines = append(lines, infoStyle.Render(hint))
	} else {
		lines = append(lines, subtleStyle.Render(hint))
	}
	if m.editing {
		lines = append(lines, subtleStyle.Render("tab: next field • esc: done"))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m model) viewHistory() string {
	if !m.snap.Connected {
		return subtleStyle.Render("Connect a wallet to see its transfers")
	}

	txs := m.getFilteredTransactions()
	if len(txs) == 0 {
		return subtleStyle.Render("No transactions found")
	}

	filterDisplay := "All"
	switch m.txFilter {
	case "in":
		filterDisplay = "Incoming"
	case "out":
		filterDisplay = "Outgoing"
	}

	headers := tableHeaderStyle.Render(fmt.Sprintf("  %-4s %-14s %-16s %-14s %s", "DIR", "HASH", "AMOUNT", "COUNTERPARTY", "SEEN"))
	maxRows := m.height - 20
	if maxRows < 3 {
		maxRows = 3
	}
	start := 0
	if m.txListIdx >= maxRows {
		start = m.txListIdx - maxRows + 1
	}

	rows := ""
	for i := start; i < len(txs) && i < start+maxRows; i++ {
		tx := txs[i]
		cursor := "  "
		if i == m.txListIdx {
			cursor = "> "
		}
		dir := inboundStyle.Render("IN  ")
		if tx.Direction == models.Outbound {
			dir = outboundStyle.Render("OUT ")
		}
		rows += fmt.Sprintf("%s%s %-14s %-16s %-14s %s\n",
			cursor,
			dir,
			m.shortAddress(tx.ID),
			utils.TruncateString(m.displayValue(tx.Amount), 16),
			m.shortAddress(tx.Counterparty()),
			tx.ObservedAt.Format("15:04:05"),
		)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		subtleStyle.Render(fmt.Sprintf("Filter: %s", filterDisplay)),
		headers,
		rows,
	)
}

func (m model) viewTxDetail() string {
	tx, ok := m.selectedTransaction()
	if !ok {
		return "No transaction selected."
	}

	header := titleStyle.Render("Transaction Details")

	direction := "Incoming"
	if tx.Direction == models.Outbound {
		direction = "Outgoing"
	}
	lines := []string{
		fmt.Sprintf("Hash:      %s", m.maskAddress(tx.ID)),
		fmt.Sprintf("Direction: %s", direction),
		fmt.Sprintf("From:      %s", m.maskAddress(tx.From)),
		fmt.Sprintf("To:        %s", m.maskAddress(tx.To)),
		fmt.Sprintf("Amount:    %s %s", m.displayValue(tx.Amount), m.snap.Token.Symbol),
		fmt.Sprintf("Seen:      %s", tx.ObservedAt.Format(time.DateTime)),
	}

	content := boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, header, "\n", strings.Join(lines, "\n")))
	footer := subtleStyle.Render("o: open in explorer • c: copy hash • q/esc: back")
	if m.statusMessage != "" {
		footer = lipgloss.JoinVertical(lipgloss.Center, infoStyle.Render(m.statusMessage), footer)
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, lipgloss.JoinVertical(lipgloss.Center, content, "\n", footer))
}

func (m model) viewBalanceGraph() string {
	header := titleStyle.Render(fmt.Sprintf("Balance History: %s", m.snap.Token.Symbol))

	targetBoxWidth := m.width - 4
	if targetBoxWidth < 0 {
		targetBoxWidth = 0
	}

	var values []float64
	for _, p := range m.balanceHistory {
		values = append(values, p.Value)
	}

	var graph, stats string
	switch {
	case m.privacyMode:
		graph = "Hidden in Privacy Mode."
	case len(values) < 2:
		graph = "Not enough data to draw graph."
	default:
		min, max := values[0], values[0]
		for _, v := range values {
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
		}
		stats = subtleStyle.Render(fmt.Sprintf("Low: %s • High: %s • Samples: %d",
			utils.FormatAmount(fmt.Sprintf("%f", min), m.config.DisplayDecimals),
			utils.FormatAmount(fmt.Sprintf("%f", max), m.config.DisplayDecimals),
			len(values)))

		graphWidth := targetBoxWidth - 14
		if graphWidth < 10 {
			graphWidth = 10
		}
		graphHeight := m.height - 14
		if graphHeight < 1 {
			graphHeight = 1
		}
		graph = asciigraph.Plot(values,
			asciigraph.Height(graphHeight),
			asciigraph.Width(graphWidth),
			asciigraph.Caption(fmt.Sprintf("Balance (%s) this session", m.snap.Token.Symbol)),
		)
	}

	content := boxStyle.Width(targetBoxWidth).Align(lipgloss.Center).Render(lipgloss.JoinVertical(lipgloss.Center, header, "\n", stats, "\n", graph))
	footer := subtleStyle.Render("g/q/esc: back")

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, lipgloss.JoinVertical(lipgloss.Center, content, "\n", footer))
}

func (m model) viewHelp() string {
	var title string
	var shortcuts []string

	if m.activeTab == tabHistory {
		title = "History"
		shortcuts = []string{
			"↑/k: Up",
			"↓/j: Down",
			"i: Incoming only",
			"o: Outgoing only",
			"a: All",
			"enter: Details",
			"o (details): Open in explorer",
			"c (details): Copy hash",
		}
	} else {
		title = "Send"
		shortcuts = []string{
			"enter/e: Edit recipient and amount",
			"tab: Next field",
			"enter (amount): Send",
			"esc: Stop editing",
		}
	}
	shortcuts = append(shortcuts,
		"tab: Switch Send/History",
		"w: Connect/Disconnect wallet",
		"m: Mint from faucet",
		"r: Refresh",
		"g: Balance graph",
		"c: Copy account address",
		"P: Toggle Privacy",
		"q: Quit",
		"?: Toggle Help",
	)

	header := titleStyle.Render(fmt.Sprintf("Help: %s", title))
	content := boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, header, "\n", strings.Join(shortcuts, "\n")))
	footer := subtleStyle.Render("Press '?' or 'esc' to close")

	return lipgloss.Place(
		m.width,
		m.height,
		lipgloss.Center,
		lipgloss.Center,
		lipgloss.JoinVertical(lipgloss.Center, content, "\n", footer),
	)
}
