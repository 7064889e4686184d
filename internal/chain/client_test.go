package chain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"

	"github.com/corewatch/dexarb/internal/domain"
)

// revertError mimics the structured error go-ethereum's rpc package returns
// when a contract reverts an eth_call.
type revertError struct{ msg string }

func (e *revertError) Error() string          { return e.msg }
func (e *revertError) ErrorData() interface{} { return "0x" }

func TestWrapCallErrorClassifiesRevert(t *testing.T) {
	to := common.HexToAddress("0x01")

	err := wrapCallError(to, &revertError{msg: "execution reverted: UniswapV2Library: INSUFFICIENT_LIQUIDITY"})
	assert.ErrorIs(t, err, domain.ErrExecutionReverted)
	assert.NotErrorIs(t, err, domain.ErrRPCFailure)

	// Some endpoints report only the bare revert message without error data.
	err = wrapCallError(to, errors.New("execution reverted"))
	assert.ErrorIs(t, err, domain.ErrExecutionReverted)
}

func TestWrapCallErrorClassifiesTransport(t *testing.T) {
	to := common.HexToAddress("0x01")

	err := wrapCallError(to, fmt.Errorf("dial tcp 127.0.0.1:8545: connection refused"))
	assert.ErrorIs(t, err, domain.ErrRPCFailure)
	assert.NotErrorIs(t, err, domain.ErrExecutionReverted)
}
