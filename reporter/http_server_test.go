package reporter

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/TEENet-io/sbtc-bridge/common"
	"github.com/TEENet-io/sbtc-bridge/pegstate"
	"github.com/TEENet-io/sbtc-bridge/stacks"
)

type staticSource struct {
	state pegstate.State
	err   error
}

func (s *staticSource) Snapshot() (pegstate.State, error) {
	return s.state, s.err
}

func newReader(t *testing.T, source StateSource) *HttpReader {
	gin.SetMode(gin.TestMode)
	srv := httptest.NewServer(NewHttpReporter("", "", source).SetupRouter())
	t.Cleanup(srv.Close)
	return NewHttpReader(srv.URL)
}

func testState(t *testing.T) (*pegstate.Initialized, pegstate.BitcoinTxID, pegstate.BitcoinTxID) {
	recipient, err := stacks.ParsePrincipal("ST2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKQYAC0RQ")
	require.NoError(t, err)

	depositID := pegstate.BitcoinTxID(common.RandBytes32())
	withdrawalID := pegstate.BitcoinTxID(common.RandBytes32())
	return &pegstate.Initialized{
		StacksBlockHeight:  10,
		BitcoinBlockHeight: 20,
		Deposits: []*pegstate.Deposit{{
			TxID:      depositID,
			Amount:    1234,
			Recipient: recipient,
			Mint:      pegstate.Scheduled[stacks.TxID](11),
		}},
		Withdrawals: []*pegstate.Withdrawal{{
			Info: pegstate.WithdrawalInfo{TxID: withdrawalID, Amount: 99, Source: recipient},
		}},
	}, depositID, withdrawalID
}

func TestHello(t *testing.T) {
	code, body, err := newReader(t, &staticSource{state: &pegstate.Uninitialized{}}).GetHello()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "world", gjson.Get(body, "message").String())
}

func TestStateRoutes(t *testing.T) {
	state, depositID, withdrawalID := testState(t)
	r := newReader(t, &staticSource{state: state})

	code, body, err := r.GetState()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "initialized", gjson.Get(body, "kind").String())
	assert.Equal(t, int64(20), gjson.Get(body, "bitcoinBlockHeight").Int())

	_, body, err = r.GetDeposits()
	require.NoError(t, err)
	assert.Equal(t, int64(1), gjson.Get(body, "data.#").Int())
	assert.Equal(t, "scheduled", gjson.Get(body, "data.0.mint.phase").String())

	_, body, err = r.GetWithdrawals()
	require.NoError(t, err)
	assert.Equal(t, int64(99), gjson.Get(body, "data.0.info.amount").Int())

	code, body, err = r.GetDeposit(depositID.String())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(1234), gjson.Get(body, "data.amount").Int())

	code, _, err = r.GetWithdrawal(withdrawalID.String())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, code)

	code, _, err = r.GetDeposit(withdrawalID.String())
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestLookupErrors(t *testing.T) {
	r := newReader(t, &staticSource{state: &pegstate.Uninitialized{}})

	code, _, err := r.GetDeposit("")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _, err = r.GetDeposit("nothex")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, code)

	// not initialized yet: empty lists
	_, body, err := r.GetDeposits()
	require.NoError(t, err)
	assert.Equal(t, "[]", gjson.Get(body, "data").Raw)

	failing := newReader(t, &staticSource{err: errors.New("boom")})
	code, _, err = failing.GetState()
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, code)
}
