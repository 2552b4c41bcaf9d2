package tui

import (
	"context"
	"time"

	"tokendash/pkg/config"
	"tokendash/pkg/models"
	"tokendash/pkg/watcher"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/ethereum/go-ethereum/common"
)

// Version is set by Start()
var Version = "dev"

// Controller is the dashboard state owner the UI drives.
type Controller interface {
	Snapshot() models.Snapshot
	BalanceHistory() []models.BalancePoint
	SetDraft(recipient, amount string)
	CanSubmit() bool
	Transfer(ctx context.Context) (common.Hash, error)
	Mint(ctx context.Context) (common.Hash, error)
	Refresh(ctx context.Context) error
	Subscribe() watcher.Subscriber
	Unsubscribe(ch watcher.Subscriber)
}

// Wallet connects and disconnects the configured signing key.
type Wallet interface {
	Connect(hexKey string) error
	Disconnect()
	Connected() bool
}

// --- Messages ---

type clearStatusMsg struct{}
type uiTickMsg time.Time
type privacyTimeoutMsg struct{}

type writeResultMsg struct {
	action string
	hash   common.Hash
	err    error
}

type refreshResultMsg struct {
	err error
}

type tab int

const (
	tabSend tab = iota
	tabHistory
)

const (
	inputRecipient = iota
	inputAmount
)

// --- Model ---

type model struct {
	ctx     context.Context
	watcher Controller
	wallet  Wallet
	sub     watcher.Subscriber
	config  config.Config
	chainID int64

	snap           models.Snapshot
	balanceHistory []models.BalancePoint

	width           int
	height          int
	loading         bool
	spinner         spinner.Model
	statusMessage   string
	activeTab       tab
	inputs          []textinput.Model
	focusIdx        int
	editing         bool
	txFilter        string // "all", "in", "out"
	txListIdx       int
	showTxDetail    bool
	showGraph       bool
	showHelp        bool
	privacyMode     bool
	lastInteraction time.Time
}

func initialModel(ctx context.Context, c Controller, wallet Wallet, cfg config.Config, chainID int64) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	inputs := make([]textinput.Model, 2)
	for i := range inputs {
		inputs[i] = textinput.New()
		inputs[i].Width = 44
	}
	inputs[inputRecipient].Placeholder = "Recipient (0x...)"
	inputs[inputRecipient].CharLimit = 42
	inputs[inputAmount].Placeholder = "Amount (e.g. 1.5)"

	snap := c.Snapshot()
	inputs[inputRecipient].SetValue(snap.Draft.Recipient)
	inputs[inputAmount].SetValue(snap.Draft.Amount)

	return model{
		ctx:             ctx,
		watcher:         c,
		wallet:          wallet,
		sub:             c.Subscribe(),
		config:          cfg,
		chainID:         chainID,
		snap:            snap,
		loading:         !snap.MetadataResolved,
		spinner:         s,
		inputs:          inputs,
		txFilter:        "all",
		lastInteraction: time.Now(),
	}
}

func (m model) Init() tea.Cmd {
	var cmds []tea.Cmd

	cmds = append(cmds, listenForWatcher(m.sub))
	cmds = append(cmds, m.spinner.Tick)

	if !m.privacyMode && m.config.PrivacyTimeoutSeconds > 0 {
		cmds = append(cmds, tea.Tick(time.Duration(m.config.PrivacyTimeoutSeconds)*time.Second, func(t time.Time) tea.Msg {
			return privacyTimeoutMsg{}
		}))
	}
	cmds = append(cmds, tea.Tick(time.Second, func(t time.Time) tea.Msg { return uiTickMsg(t) }))
	return tea.Batch(cmds...)
}
