package rpc

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"tokendash/pkg/wallet"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Transfer sends raw token units from the signer to recipient.
func (c *Client) Transfer(ctx context.Context, signer *wallet.Signer, recipient string, raw *big.Int) (common.Hash, error) {
	if !common.IsHexAddress(recipient) {
		return common.Hash{}, fmt.Errorf("invalid recipient %q", recipient)
	}
	data, err := TokenABI.Pack("transfer", common.HexToAddress(recipient), raw)
	if err != nil {
		return common.Hash{}, err
	}
	return c.send(ctx, signer, data)
}

// Mint calls the faucet's mint() for the signer.
func (c *Client) Mint(ctx context.Context, signer *wallet.Signer) (common.Hash, error) {
	data, err := TokenABI.Pack("mint")
	if err != nil {
		return common.Hash{}, err
	}
	return c.send(ctx, signer, data)
}

func (c *Client) send(ctx context.Context, signer *wallet.Signer, data []byte) (common.Hash, error) {
	if signer == nil || signer.Key == nil {
		return common.Hash{}, errors.New("no signer")
	}
	ctx, cancel := context.WithTimeout(ctx, CallTimeout)
	defer cancel()

	chainID, err := c.ChainID(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("chain id: %w", err)
	}
	nonce, err := c.eth.PendingNonceAt(ctx, signer.Address)
	if err != nil {
		return common.Hash{}, fmt.Errorf("nonce: %w", err)
	}
	gas, err := c.eth.EstimateGas(ctx, ethereum.CallMsg{From: signer.Address, To: &c.token, Data: data})
	if err != nil {
		return common.Hash{}, fmt.Errorf("estimate gas: %w", err)
	}

	head, err := c.eth.HeaderByNumber(ctx, nil)
	if err != nil {
		return common.Hash{}, fmt.Errorf("latest header: %w", err)
	}

	var tx *types.Transaction
	if head.BaseFee != nil {
		tip, err := c.eth.SuggestGasTipCap(ctx)
		if err != nil {
			return common.Hash{}, fmt.Errorf("gas tip: %w", err)
		}
		feeCap := new(big.Int).Add(tip, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
		tx = types.NewTx(&types.DynamicFeeTx{
			ChainID:   chainID,
			Nonce:     nonce,
			GasTipCap: tip,
			GasFeeCap: feeCap,
			Gas:       gas,
			To:        &c.token,
			Value:     new(big.Int),
			Data:      data,
		})
	} else {
		price, err := c.eth.SuggestGasPrice(ctx)
		if err != nil {
			return common.Hash{}, fmt.Errorf("gas price: %w", err)
		}
		tx = types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			GasPrice: price,
			Gas:      gas,
			To:       &c.token,
			Value:    new(big.Int),
			Data:     data,
		})
	}

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), signer.Key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign: %w", err)
	}
	if err := c.eth.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("send: %w", err)
	}
	return signed.Hash(), nil
}

// WaitConfirmed polls for the receipt of hash until it is mined or ctx is
// done. A mined transaction with a failed status returns ErrReverted along
// with the receipt.
func (c *Client) WaitConfirmed(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	var receipt *types.Receipt
	err := newConfirmRetry(c.confirmInterval).Execute(ctx, func() error {
		r, err := c.eth.TransactionReceipt(ctx, hash)
		if err != nil {
			return err
		}
		receipt = r
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	if receipt.Status == types.ReceiptStatusFailed {
		return receipt, ErrReverted
	}
	return receipt, nil
}
