package executor

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"aidSentinel/internal/model"
	"aidSentinel/internal/retry"
)

// disbursePayout(address to, uint256 amount, string reason)
const vaultABI = `[{"inputs":[{"internalType":"address","name":"to","type":"address"},{"internalType":"uint256","name":"amount","type":"uint256"},{"internalType":"string","name":"reason","type":"string"}],"name":"disbursePayout","outputs":[],"stateMutability":"nonpayable","type":"function"}]`

// amountDecimals converts a USDC-denominated amount into token units.
const amountDecimals = 6

// ChainConfig holds settings for the on-chain executor.
type ChainConfig struct {
	RPCURL          string
	PrivateKeyHex   string
	ContractAddress string
	ChainID         int64
	Cap             float64
	MaxFeeGwei      int64
	MaxRetries      int
	RetryBackoff    time.Duration
}

// ChainExecutor signs and submits payout transactions against the
// vault contract. It blocks until the network accepts the transaction,
// not until finalization.
type ChainExecutor struct {
	cfg      ChainConfig
	client   *ethclient.Client
	key      *ecdsa.PrivateKey
	from     common.Address
	contract common.Address
	parsed   abi.ABI
	logger   *zap.Logger
}

func NewChainExecutor(ctx context.Context, cfg ChainConfig, logger *zap.Logger) (*ChainExecutor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}
	if !common.IsHexAddress(cfg.ContractAddress) {
		return nil, fmt.Errorf("invalid contract address %q", cfg.ContractAddress)
	}
	if cfg.MaxFeeGwei <= 0 {
		cfg.MaxFeeGwei = 30
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse signing key: %w", err)
	}

	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}

	parsed, err := abi.JSON(strings.NewReader(vaultABI))
	if err != nil {
		return nil, fmt.Errorf("parse vault abi: %w", err)
	}

	return &ChainExecutor{
		cfg:      cfg,
		client:   client,
		key:      key,
		from:     crypto.PubkeyToAddress(key.PublicKey),
		contract: common.HexToAddress(cfg.ContractAddress),
		parsed:   parsed,
		logger:   logger,
	}, nil
}

func (e *ChainExecutor) Close() {
	if e.client != nil {
		e.client.Close()
	}
}

// Execute enforces the cap, then signs and submits a disbursePayout
// call. Transport failures are retried within the budget and wrapped
// as ErrTransferTransport once exhausted.
func (e *ChainExecutor) Execute(ctx context.Context, recipient model.Recipient, amount float64, reason string) (Receipt, error) {
	if err := checkCap(amount, e.cfg.Cap); err != nil {
		return Receipt{}, err
	}
	if !common.IsHexAddress(recipient.Address) {
		return Receipt{}, fmt.Errorf("%w: recipient address %q", model.ErrAddressValidation, recipient.Address)
	}

	units := new(big.Int).SetUint64(uint64(amount * math.Pow10(amountDecimals)))

	calldata, err := e.parsed.Pack("disbursePayout", common.HexToAddress(recipient.Address), units, reason)
	if err != nil {
		return Receipt{}, fmt.Errorf("%w: pack calldata: %v", model.ErrTransferTransport, err)
	}

	var txHash common.Hash
	submit := func(ctx context.Context) error {
		nonce, err := e.client.PendingNonceAt(ctx, e.from)
		if err != nil {
			return fmt.Errorf("fetch nonce: %w", err)
		}

		tip := big.NewInt(1_500_000_000) // 1.5 gwei
		feeCap := new(big.Int).Mul(big.NewInt(e.cfg.MaxFeeGwei), big.NewInt(1_000_000_000))

		tx := types.NewTx(&types.DynamicFeeTx{
			ChainID:   big.NewInt(e.cfg.ChainID),
			Nonce:     nonce,
			GasTipCap: tip,
			GasFeeCap: feeCap,
			Gas:       300_000,
			To:        &e.contract,
			Data:      calldata,
		})

		signed, err := types.SignTx(tx, types.LatestSignerForChainID(big.NewInt(e.cfg.ChainID)), e.key)
		if err != nil {
			return fmt.Errorf("sign tx: %w", err)
		}

		if err := e.client.SendTransaction(ctx, signed); err != nil {
			e.logger.Warn("payout submission failed", zap.Error(err))
			return err
		}
		txHash = signed.Hash()
		return nil
	}

	if err := retry.Do(ctx, e.cfg.MaxRetries, e.cfg.RetryBackoff, submit); err != nil {
		return Receipt{}, fmt.Errorf("%w: %v", model.ErrTransferTransport, err)
	}

	e.logger.Info("payout submitted",
		zap.String("to", recipient.Address),
		zap.String("tx", txHash.Hex()),
		zap.Float64("amount", amount),
	)
	return Receipt{Reference: txHash.Hex(), SubmittedAt: time.Now().UTC()}, nil
}

// ConfirmReference checks whether a previously-submitted transaction
// landed with success status. Used by the restart reconciliation pass.
func (e *ChainExecutor) ConfirmReference(ctx context.Context, reference string) (bool, error) {
	receipt, err := e.client.TransactionReceipt(ctx, common.HexToHash(reference))
	if err != nil {
		return false, err
	}
	return receipt.Status == types.ReceiptStatusSuccessful, nil
}
