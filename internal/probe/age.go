package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	"eth-rugcheck/internal/chain"
	"eth-rugcheck/internal/derive"
	"eth-rugcheck/internal/risk"

	"github.com/ethereum/go-ethereum/common"
)

// ErrCreationNotFound is returned by locators that cannot place a contract's creation.
var ErrCreationNotFound = errors.New("contract creation not found")

// Creation places a contract's deployment either by transaction or directly by block.
type Creation struct {
	TxHash common.Hash
	Block  *uint64
}

type CreationLocator interface {
	Locate(ctx context.Context, addr common.Address) (Creation, error)
}

// Age computes whole days since the target was deployed.
func Age(ctx context.Context, env Env) risk.Result[int] {
	if env.Locator == nil {
		return risk.Failed[int]("no creation locator configured")
	}
	c, err := env.Locator.Locate(ctx, env.Pair.Target)
	if err != nil {
		return fail[int](err)
	}

	var block uint64
	switch {
	case c.Block != nil:
		block = *c.Block
	case c.TxHash != (common.Hash{}):
		receipt, err := env.Client.TransactionReceipt(ctx, c.TxHash)
		if err != nil {
			return risk.Failedf[int]("creation receipt %s: %s", c.TxHash.Hex(), Reason(chain.Classify("eth_getTransactionReceipt", err)))
		}
		if receipt == nil || receipt.BlockNumber == nil {
			return risk.Failedf[int]("creation receipt %s has no block", c.TxHash.Hex())
		}
		block = receipt.BlockNumber.Uint64()
	default:
		return fail[int](ErrCreationNotFound)
	}

	header, err := env.Client.HeaderByNumber(ctx, new(big.Int).SetUint64(block))
	if err != nil {
		return risk.Failedf[int]("creation block %d: %s", block, Reason(chain.Classify("eth_getBlockByNumber", err)))
	}
	if header == nil {
		return risk.Failedf[int]("creation block %d not found", block)
	}
	created := time.Unix(int64(header.Time), 0)
	return risk.Ok(derive.AgeDays(env.now(), created))
}

// EtherscanLocator asks the Etherscan v2 API for the creation transaction.
type EtherscanLocator struct {
	BaseURL string
	APIKey  string
	ChainID string
	Client  *http.Client
}

func (l *EtherscanLocator) Locate(ctx context.Context, addr common.Address) (Creation, error) {
	if l.APIKey == "" {
		return Creation{}, errors.New("etherscan: no API key")
	}
	client := l.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	q := url.Values{}
	q.Set("chainid", l.ChainID)
	q.Set("module", "contract")
	q.Set("action", "getcontractcreation")
	q.Set("contractaddresses", addr.Hex())
	q.Set("apikey", l.APIKey)

	var resp struct {
		Status  string          `json:"status"`
		Message string          `json:"message"`
		Result  json.RawMessage `json:"result"`
	}
	if err := getJSON(ctx, client, l.BaseURL+"?"+q.Encode(), &resp); err != nil {
		return Creation{}, fmt.Errorf("etherscan: %w", err)
	}
	if resp.Status != "1" {
		var msg string
		_ = json.Unmarshal(resp.Result, &msg)
		return Creation{}, fmt.Errorf("etherscan: %s %s", resp.Message, msg)
	}

	var rows []struct {
		ContractAddress string `json:"contractAddress"`
		TxHash          string `json:"txHash"`
	}
	if err := json.Unmarshal(resp.Result, &rows); err != nil {
		return Creation{}, fmt.Errorf("etherscan: decode result: %w", err)
	}
	for _, r := range rows {
		if strings.EqualFold(r.ContractAddress, addr.Hex()) && r.TxHash != "" {
			return Creation{TxHash: common.HexToHash(r.TxHash)}, nil
		}
	}
	return Creation{}, ErrCreationNotFound
}

func getJSON(ctx context.Context, client *http.Client, rawURL string, target interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(target)
}

// BisectLocator binary-searches for the first block at which the contract
// has code. It needs a node that serves historical state.
type BisectLocator struct {
	Client chain.Client
}

func (l *BisectLocator) Locate(ctx context.Context, addr common.Address) (Creation, error) {
	latest, err := l.Client.BlockNumber(ctx)
	if err != nil {
		return Creation{}, chain.Classify("eth_blockNumber", err)
	}
	has := func(n uint64) (bool, error) {
		code, err := l.Client.CodeAt(ctx, addr, new(big.Int).SetUint64(n))
		if err != nil {
			return false, chain.Classify("eth_getCode", err)
		}
		return len(code) > 0, nil
	}

	ok, err := has(latest)
	if err != nil {
		return Creation{}, err
	}
	if !ok {
		return Creation{}, ErrCreationNotFound
	}

	lo, hi := uint64(0), latest
	for lo < hi {
		mid := lo + (hi-lo)/2
		ok, err := has(mid)
		if err != nil {
			return Creation{}, err
		}
		if ok {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return Creation{Block: &lo}, nil
}

// ChainLocator tries each locator in order and returns the first hit.
type ChainLocator []CreationLocator

func (c ChainLocator) Locate(ctx context.Context, addr common.Address) (Creation, error) {
	var errs []error
	for _, l := range c {
		found, err := l.Locate(ctx, addr)
		if err == nil {
			return found, nil
		}
		if ctx.Err() != nil {
			return Creation{}, ctx.Err()
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return Creation{}, ErrCreationNotFound
	}
	return Creation{}, errors.Join(errs...)
}
