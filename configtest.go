package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"tokendash/pkg/config"
	"tokendash/pkg/models"
	"tokendash/pkg/rpc"
	"tokendash/pkg/validator"
)

// runConfigTest checks the configuration against the live node and token.
// When the configured chain id is unset it is filled in from the node and
// saved back to path unless dryRun is set. Human readable progress goes to
// out unless quiet is set.
func runConfigTest(ctx context.Context, path string, cfg config.Config, dryRun, quiet bool, out io.Writer) (models.TestReport, bool) {
	say := func(format string, args ...any) {
		if !quiet {
			fmt.Fprintf(out, format, args...)
		}
	}

	report := models.TestReport{
		ConfigPath:     path,
		ValidStructure: true,
		HasSigningKey:  cfg.PrivateKey != "",
		DryRun:         dryRun,
	}
	say("Testing configuration at: %s\n", path)

	if err := config.Validate(cfg); err != nil {
		report.ValidStructure = false
		for _, line := range strings.Split(err.Error(), "\n") {
			if line == "" || line == validator.ErrValidationFailed.Error() {
				continue
			}
			report.StructureErrors = append(report.StructureErrors, line)
			say("Error: %s\n", line)
		}
		return report, false
	}

	chain := &models.ChainResult{RPCURL: cfg.RPCURL, ConfigChainID: cfg.ChainID}
	report.Chain = chain
	say("RPC: %s ... ", cfg.RPCURL)

	client, err := rpc.Dial(ctx, cfg.RPCURL, cfg.TokenAddress, rpc.WithHTTPRetries(1))
	if err != nil {
		chain.Status = "error"
		chain.Error = err.Error()
		say("Failed: %v\n", err)
		return report, false
	}
	defer client.Close()

	id, err := client.ChainID(ctx)
	if err != nil {
		chain.Status = "error"
		chain.Error = fmt.Sprintf("Failed to get ChainID: %v", err)
		say("Failed to get ChainID: %v\n", err)
		return report, false
	}
	chain.Status = "ok"
	chain.ObservedChainID = id.Int64()
	if lat, err := client.Latency(ctx); err == nil {
		chain.LatencyMs = lat.Milliseconds()
	}
	say("OK (ChainID: %s, %dms)", id.String(), chain.LatencyMs)

	switch {
	case cfg.ChainID == 0:
		chain.ChainIDUpdated = true
		say(" - UPDATED CONFIG")
		if dryRun {
			say(" (DRY RUN)")
		}
	case cfg.ChainID != id.Int64():
		chain.Status = "error"
		chain.Error = fmt.Sprintf("Mismatch! Expected %d", cfg.ChainID)
		say(" - MISMATCH! Expected %d", cfg.ChainID)
	default:
		say(" - Verified")
	}
	say("\n")

	token := &models.TokenResult{Address: cfg.TokenAddress}
	report.Token = token
	say("Token: %s ... ", cfg.TokenAddress)
	meta, err := client.TokenMetadata(ctx)
	if err != nil {
		token.Status = "error"
		token.Error = err.Error()
		say("Failed: %v\n", err)
	} else {
		token.Status = "ok"
		token.Name = meta.Name
		token.Symbol = meta.Symbol
		token.Decimals = meta.Decimals
		say("OK (%s, %s, %d decimals)\n", meta.Name, meta.Symbol, meta.Decimals)
	}

	if report.HasSigningKey {
		say("Signing key: present\n")
	} else {
		say("Signing key: not set (TOKENDASH_PRIVATE_KEY); transfers and minting are disabled\n")
	}

	if chain.ChainIDUpdated {
		report.ConfigUpdated = true
		if dryRun {
			say("Dry run enabled: Configuration NOT saved.\n")
		} else if err := saveObservedChainID(path, chain.ObservedChainID); err != nil {
			report.SaveError = err.Error()
			say("Failed to save config: %v\n", err)
		} else {
			say("Configuration saved successfully.\n")
		}
	}

	return report, chain.Status == "ok" && token.Status == "ok"
}

// saveObservedChainID re-reads the file so environment overrides and the
// private key never end up on disk.
func saveObservedChainID(path string, chainID int64) error {
	fileCfg, err := config.LoadConfigFromFile(path)
	if err != nil {
		return err
	}
	fileCfg.ChainID = chainID
	if err := config.SaveConfig(fileCfg, path); err != nil {
		if errors.Is(err, validator.ErrValidationFailed) {
			return fmt.Errorf("config file is incomplete without environment overrides: %w", err)
		}
		return err
	}
	return nil
}
