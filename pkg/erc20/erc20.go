package erc20

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

const erc20ABIJSON = `[
	{"constant":true,"inputs":[{"name":"_owner","type":"address"},{"name":"_spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":false,"inputs":[{"name":"_spender","type":"address"},{"name":"_value","type":"uint256"}],"name":"approve","outputs":[{"name":"","type":"bool"}],"type":"function"},
	{"constant":true,"inputs":[{"name":"_owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"balance","type":"uint256"}],"type":"function"}
]`

var parsedABI = mustParse(erc20ABIJSON)

func mustParse(def string) abi.ABI {
	a, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return a
}

// Caller represents interface for calling contracts.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// MaxApproval is the allowance requested when approving: the largest uint256.
func MaxApproval() *big.Int {
	return new(big.Int).Set(abi.MaxUint256)
}

// PackAllowance encodes allowance(owner, spender).
func PackAllowance(owner, spender common.Address) ([]byte, error) {
	data, err := parsedABI.Pack("allowance", owner, spender)
	if err != nil {
		return nil, errors.Wrap(err, "parsedABI.Pack")
	}
	return data, nil
}

// PackApprove encodes approve(spender, amount).
func PackApprove(spender common.Address, amount *big.Int) ([]byte, error) {
	data, err := parsedABI.Pack("approve", spender, amount)
	if err != nil {
		return nil, errors.Wrap(err, "parsedABI.Pack")
	}
	return data, nil
}

// PackBalanceOf encodes balanceOf(owner).
func PackBalanceOf(owner common.Address) ([]byte, error) {
	data, err := parsedABI.Pack("balanceOf", owner)
	if err != nil {
		return nil, errors.Wrap(err, "parsedABI.Pack")
	}
	return data, nil
}

// UnpackUint decodes the single uint256 returned by allowance or balanceOf.
func UnpackUint(method string, res []byte) (*big.Int, error) {
	out, err := parsedABI.Unpack(method, res)
	if err != nil {
		return nil, errors.Wrap(err, "parsedABI.Unpack")
	}
	if len(out) != 1 {
		return nil, errors.Errorf("%s: unexpected output count %d", method, len(out))
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, errors.Errorf("%s: unexpected output type %T", method, out[0])
	}
	return v, nil
}

// Allowance reads token.allowance(owner, spender) through caller.
func Allowance(ctx context.Context, caller Caller, token, owner, spender common.Address) (*big.Int, error) {
	data, err := PackAllowance(owner, spender)
	if err != nil {
		return nil, err
	}
	res, err := caller.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "caller.CallContract")
	}
	return UnpackUint("allowance", res)
}

// BalanceOf reads token.balanceOf(owner) through caller.
func BalanceOf(ctx context.Context, caller Caller, token, owner common.Address) (*big.Int, error) {
	data, err := PackBalanceOf(owner)
	if err != nil {
		return nil, err
	}
	res, err := caller.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "caller.CallContract")
	}
	return UnpackUint("balanceOf", res)
}
