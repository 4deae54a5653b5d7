package probe

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"eth-rugcheck/internal/chain"
	"eth-rugcheck/internal/derive"
	"eth-rugcheck/internal/risk"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
)

// VolumeSpan is the trailing period the volume probe covers.
const VolumeSpan = 24 * time.Hour

const defaultLogChunk = 5000

// Volume sums amount0In and amount1In of the pair's Swap events over the
// blocks estimated to cover the last VolumeSpan. No swaps is Ok((0, 0)).
func Volume(ctx context.Context, env Env) risk.Result[risk.Volume] {
	window := derive.WindowBlocks(VolumeSpan, env.BlockTime)
	if window == 0 {
		return risk.Failed[risk.Volume]("block time not configured")
	}

	latest, err := env.Client.BlockNumber(ctx)
	if err != nil {
		return fail[risk.Volume](chain.Classify("eth_blockNumber", err))
	}
	from := uint64(0)
	if latest > window {
		from = latest - window
	}

	chunk := env.LogChunkBlocks
	if chunk == 0 {
		chunk = defaultLogChunk
	}

	vol := risk.Volume{Token0: new(uint256.Int), Token1: new(uint256.Int), FromBlock: from, ToBlock: latest}
	for start := from; start <= latest; start += chunk {
		end := start + chunk - 1
		if end > latest || end < start {
			end = latest
		}
		logs, err := env.Client.FilterLogs(ctx, ethereum.FilterQuery{
			FromBlock: new(big.Int).SetUint64(start),
			ToBlock:   new(big.Int).SetUint64(end),
			Addresses: []common.Address{env.Pair.Pair},
			Topics:    [][]common.Hash{{chain.SwapTopic}},
		})
		if err != nil {
			return fail[risk.Volume](chain.Classify("eth_getLogs", err))
		}
		for _, l := range logs {
			if err := addSwap(&vol, l); err != nil {
				return fail[risk.Volume](err)
			}
		}
		if end == latest {
			break
		}
	}
	return risk.Ok(vol)
}

func addSwap(vol *risk.Volume, l types.Log) error {
	if len(l.Topics) == 0 || l.Topics[0] != chain.SwapTopic {
		return nil
	}
	values, err := chain.PairABI.Unpack("Swap", l.Data)
	if err != nil {
		return fmt.Errorf("decode Swap log %s#%d: %v", l.TxHash.Hex(), l.Index, err)
	}
	if len(values) != 4 {
		return fmt.Errorf("decode Swap log %s#%d: got %d values", l.TxHash.Hex(), l.Index, len(values))
	}
	in0, ok0 := values[0].(*big.Int)
	in1, ok1 := values[1].(*big.Int)
	if !ok0 || !ok1 {
		return fmt.Errorf("decode Swap log %s#%d: unexpected amount types", l.TxHash.Hex(), l.Index)
	}
	if err := addChecked(vol.Token0, in0); err != nil {
		return err
	}
	if err := addChecked(vol.Token1, in1); err != nil {
		return err
	}
	vol.Swaps++
	return nil
}

func addChecked(sum *uint256.Int, v *big.Int) error {
	u, overflow := uint256.FromBig(v)
	if overflow {
		return errors.New("swap amount exceeds 256 bits")
	}
	if _, carry := sum.AddOverflow(sum, u); carry {
		return errors.New("volume sum exceeds 256 bits")
	}
	return nil
}
