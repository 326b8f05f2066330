package ledger

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"golang.org/x/time/rate"
	"score_gate/internal/config"
	"score_gate/internal/domain"
	apperrors "score_gate/pkg/errors"
	"score_gate/pkg/logger"
)

// Backend is the subset of an Ethereum RPC client the ledger needs.
// *ethclient.Client satisfies it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	BlockNumber(ctx context.Context) (uint64, error)
}

// Client talks to the game contract. Writes are signed with the game server
// key; without a key the client is read-only and Configured reports false.
type Client struct {
	backend     Backend
	contract    *bind.BoundContract
	address     common.Address
	auth        *bind.TransactOpts
	limiter     *rate.Limiter
	readTimeout time.Duration
	log         logger.Logger
	closeFn     func()

	// sendMu serializes nonce assignment for the single signer.
	sendMu sync.Mutex
}

// Dial connects to cfg.RPCURL and builds a Client on top of it.
func Dial(ctx context.Context, cfg config.LedgerConfig, log logger.Logger) (*Client, error) {
	rpc, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial ledger rpc: %w", err)
	}

	c, err := NewClient(rpc, cfg, log)
	if err != nil {
		rpc.Close()
		return nil, err
	}
	c.closeFn = rpc.Close

	log.Info("Ledger client initialized",
		"rpc", cfg.RPCURL,
		"contract", c.address.Hex(),
		"chain_id", cfg.ChainID,
		"writable", c.Configured(),
	)
	return c, nil
}

func NewClient(backend Backend, cfg config.LedgerConfig, log logger.Logger) (*Client, error) {
	if !common.IsHexAddress(cfg.ContractAddress) {
		return nil, fmt.Errorf("%w: invalid contract address %q", apperrors.ErrConfig, cfg.ContractAddress)
	}

	parsed, err := parseABI()
	if err != nil {
		return nil, fmt.Errorf("failed to parse contract abi: %w", err)
	}

	limit := rate.Inf
	if cfg.MaxTPS > 0 {
		limit = rate.Limit(cfg.MaxTPS)
	}

	readTimeout := cfg.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 15 * time.Second
	}

	address := common.HexToAddress(cfg.ContractAddress)
	c := &Client{
		backend:     backend,
		contract:    bind.NewBoundContract(address, parsed, backend, backend, backend),
		address:     address,
		limiter:     rate.NewLimiter(limit, 1),
		readTimeout: readTimeout,
		log:         log,
	}

	if cfg.PrivateKey == "" {
		log.Warn("GAME_SERVER_PRIVATE_KEY not set, ledger is read-only")
		return c, nil
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(cfg.PrivateKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid GAME_SERVER_PRIVATE_KEY", apperrors.ErrConfig)
	}
	auth, err := bind.NewKeyedTransactorWithChainID(key, big.NewInt(cfg.ChainID))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrConfig, err)
	}
	c.auth = auth
	log.Info("Ledger signer loaded", "address", auth.From.Hex())

	return c, nil
}

func (c *Client) Configured() bool {
	return c.auth != nil
}

func (c *Client) ContractAddress() string {
	return c.address.Hex()
}

func (c *Client) Close() {
	if c.closeFn != nil {
		c.closeFn()
	}
}

// IncrementPlayer sends updatePlayerData and waits until it is mined.
func (c *Client) IncrementPlayer(ctx context.Context, inc domain.LedgerIncrement) (*domain.LedgerReceipt, error) {
	if c.auth == nil {
		return nil, ErrNotConfigured
	}
	if !common.IsHexAddress(inc.Player) {
		return nil, fmt.Errorf("%w: invalid player address %q", ErrSubmitFailed, inc.Player)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	tx, err := c.send(ctx, inc)
	if err != nil {
		return nil, classify(err)
	}
	c.log.Info("Ledger transaction sent",
		"tx_hash", tx.Hash().Hex(),
		"player", inc.Player,
		"score", inc.ScoreIncrement,
		"tx_count", inc.TxCountIncrement,
	)

	receipt, err := bind.WaitMined(ctx, c.backend, tx)
	if err != nil {
		return nil, classify(err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%w: transaction %s reverted", ErrSubmitFailed, tx.Hash().Hex())
	}

	return &domain.LedgerReceipt{
		TransactionHash: tx.Hash().Hex(),
		BlockNumber:     receipt.BlockNumber.Uint64(),
	}, nil
}

func (c *Client) send(ctx context.Context, inc domain.LedgerIncrement) (*types.Transaction, error) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	opts := *c.auth
	opts.Context = ctx
	return c.contract.Transact(&opts, methodUpdatePlayer,
		common.HexToAddress(inc.Player),
		big.NewInt(inc.ScoreIncrement),
		big.NewInt(inc.TxCountIncrement),
	)
}

func (c *Client) PlayerCount(ctx context.Context) (uint64, error) {
	out, err := c.call(ctx, methodPlayersCount)
	if err != nil {
		return 0, err
	}
	n := abi.ConvertType(out[0], new(big.Int)).(*big.Int)
	return n.Uint64(), nil
}

func (c *Client) PlayerAt(ctx context.Context, index uint64) (string, error) {
	out, err := c.call(ctx, methodPlayerByIndex, new(big.Int).SetUint64(index))
	if err != nil {
		return "", err
	}
	a := abi.ConvertType(out[0], new(common.Address)).(*common.Address)
	return a.Hex(), nil
}

func (c *Client) PlayerTotals(ctx context.Context, player string) (*domain.PlayerTotals, error) {
	if !common.IsHexAddress(player) {
		return nil, fmt.Errorf("%w: invalid player address %q", apperrors.ErrBadRequest, player)
	}
	address := common.HexToAddress(player)

	out, err := c.call(ctx, methodPlayerData, address)
	if err != nil {
		return nil, err
	}
	score := abi.ConvertType(out[0], new(big.Int)).(*big.Int)
	txCount := abi.ConvertType(out[1], new(big.Int)).(*big.Int)

	return &domain.PlayerTotals{
		Address:          address.Hex(),
		Score:            score.Int64(),
		TransactionCount: txCount.Int64(),
	}, nil
}

// UpdatedPlayers returns the distinct players that emitted PlayerDataUpdated
// within the last lookback blocks.
func (c *Client) UpdatedPlayers(ctx context.Context, lookback uint64) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.readTimeout)
	defer cancel()

	head, err := c.backend.BlockNumber(ctx)
	if err != nil {
		return nil, classify(err)
	}
	var from uint64
	if head > lookback {
		from = head - lookback
	}

	logs, err := c.backend.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(head),
		Addresses: []common.Address{c.address},
		Topics:    [][]common.Hash{{playerUpdatedTopic}},
	})
	if err != nil {
		return nil, classify(err)
	}

	c.log.Debug("Read player update events", "from", from, "to", head, "events", len(logs))
	return playersFromLogs(logs), nil
}

func (c *Client) call(ctx context.Context, method string, params ...interface{}) ([]interface{}, error) {
	ctx, cancel := context.WithTimeout(ctx, c.readTimeout)
	defer cancel()

	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, method, params...); err != nil {
		return nil, classify(err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: empty result from %s", ErrSubmitFailed, method)
	}
	return out, nil
}

func playersFromLogs(logs []types.Log) []string {
	seen := make(map[common.Address]struct{}, len(logs))
	players := make([]string, 0, len(logs))
	for _, l := range logs {
		if len(l.Topics) < 2 || l.Topics[0] != playerUpdatedTopic || l.Removed {
			continue
		}
		player := common.BytesToAddress(l.Topics[1].Bytes())
		if _, ok := seen[player]; ok {
			continue
		}
		seen[player] = struct{}{}
		players = append(players, player.Hex())
	}
	return players
}
