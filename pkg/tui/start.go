package tui

import (
	"context"

	"tokendash/pkg/config"

	tea "github.com/charmbracelet/bubbletea"
)

// Start runs the dashboard until the user quits.
func Start(ctx context.Context, c Controller, wallet Wallet, cfg config.Config, chainID int64, version string) error {
	Version = version
	m := initialModel(ctx, c, wallet, cfg, chainID)
	defer c.Unsubscribe(m.sub)

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
