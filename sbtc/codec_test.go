package sbtc

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TEENet-io/sbtc-bridge/stacks"
)

const (
	nameFirst = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	nameRest  = nameFirst + "0123456789-_"
)

func randomPrincipal(r *rand.Rand) stacks.Principal {
	var p stacks.Principal
	p.Address.Version = byte(r.Intn(32))
	r.Read(p.Address.Hash160[:])

	if r.Intn(2) == 0 {
		return p
	}

	n := 1 + r.Intn(stacks.ContractNameMaxLength)
	name := []byte{nameFirst[r.Intn(len(nameFirst))]}
	for len(name) < n {
		name = append(name, nameRest[r.Intn(len(nameRest))])
	}
	p.ContractName = string(name)
	return p
}

func TestMagicBytesDistinct(t *testing.T) {
	seen := map[Magic]string{}
	for _, params := range []*chaincfg.Params{
		&chaincfg.MainNetParams,
		&chaincfg.TestNet3Params,
		&chaincfg.SigNetParams,
		&chaincfg.RegressionNetParams,
	} {
		m, err := MagicFor(params)
		require.NoError(t, err)
		_, dup := seen[m]
		assert.False(t, dup, params.Name)
		seen[m] = params.Name
	}
}

func TestEnvelope(t *testing.T) {
	params := &chaincfg.RegressionNetParams

	data, err := Envelope(params, OpDeposit, []byte{1, 2})
	require.NoError(t, err)
	assert.Equal(t, []byte{'i', 'd', '<', 1, 2}, data)

	op, payload, err := ParseEnvelope(params, data)
	require.NoError(t, err)
	assert.Equal(t, OpDeposit, op)
	assert.Equal(t, []byte{1, 2}, payload)

	_, _, err = ParseEnvelope(&chaincfg.MainNetParams, data)
	assert.ErrorIs(t, err, ErrUnknownMagic)

	_, _, err = ParseEnvelope(params, []byte{'i', 'd'})
	assert.ErrorIs(t, err, ErrEnvelopeTooShort)

	_, _, err = ParseEnvelope(params, []byte{'i', 'd', '?'})
	assert.ErrorIs(t, err, ErrUnknownOpcode)
}

func TestDepositPayloadRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(1))

	for i := 0; i < 1000; i++ {
		p := &DepositPayload{Recipient: randomPrincipal(r)}
		if i%3 == 0 {
			p.Memo = []byte("memo")
		}

		b, err := p.Encode()
		require.NoError(t, err)

		back, err := DecodeDepositPayload(b)
		require.NoError(t, err)
		assert.Equal(t, p.Recipient, back.Recipient)
		assert.Equal(t, p.Memo, back.Memo)
	}
}

func TestDepositPayloadCorruption(t *testing.T) {
	r := rand.New(rand.NewSource(2))

	for i := 0; i < 200; i++ {
		p := randomPrincipal(r)
		if !p.IsContract() {
			continue
		}
		b, err := (&DepositPayload{Recipient: p}).Encode()
		require.NoError(t, err)

		// name cut short of its declared length
		_, err = DecodeDepositPayload(b[:len(b)-1])
		assert.ErrorIs(t, err, ErrContractNameTooShort)

		// length byte pointing past the end
		corrupt := append([]byte{}, b...)
		corrupt[StandardPrincipalLength] = byte(len(p.ContractName) + 1)
		_, err = DecodeDepositPayload(corrupt)
		assert.ErrorIs(t, err, ErrContractNameTooShort)

		// shorter valid name, the rest is memo
		if len(p.ContractName) > 1 {
			shorter := append([]byte{}, b...)
			shorter[StandardPrincipalLength] = 1
			back, err := DecodeDepositPayload(shorter)
			require.NoError(t, err)
			assert.Equal(t, p.ContractName[:1], back.Recipient.ContractName)
			assert.Equal(t, []byte(p.ContractName[1:]), back.Memo)
		}
	}
}

func TestDepositPayloadEdgeCases(t *testing.T) {
	_, err := DecodeDepositPayload(make([]byte, StandardPrincipalLength-1))
	assert.ErrorIs(t, err, ErrPayloadTooShort)

	std := bytes.Repeat([]byte{7}, StandardPrincipalLength)
	p, err := DecodeDepositPayload(std)
	require.NoError(t, err)
	assert.False(t, p.Recipient.IsContract())
	assert.Nil(t, p.Memo)

	// zero name length decodes to a standard principal
	p, err = DecodeDepositPayload(append(append([]byte{}, std...), 0, 'm'))
	require.NoError(t, err)
	assert.False(t, p.Recipient.IsContract())
	assert.Equal(t, []byte("m"), p.Memo)

	_, err = DecodeDepositPayload(append(append([]byte{}, std...), 2, 0xff, 0xfe))
	assert.ErrorIs(t, err, ErrInvalidContractName)

	_, err = DecodeDepositPayload(append(append([]byte{}, std...), 2, '1', 'a'))
	assert.ErrorIs(t, err, ErrInvalidContractName)
}

func TestWithdrawalRequestSignature(t *testing.T) {
	key, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	script := []byte{0x00, 0x14, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20}

	p, err := SignWithdrawalRequest(key, 123456, script, []byte("hi"))
	require.NoError(t, err)

	back, err := DecodeWithdrawalRequestPayload(p.Encode())
	require.NoError(t, err)
	assert.Equal(t, p, back)

	pub, err := back.RecoverSigner(script)
	require.NoError(t, err)
	assert.True(t, pub.IsEqual(key.PubKey()))

	// another script recovers another key
	other, err := back.RecoverSigner(append(script[:len(script):len(script)], 0))
	if err == nil {
		assert.False(t, other.IsEqual(key.PubKey()))
	}

	back.RecoveryID = 4
	_, err = back.RecoverSigner(script)
	assert.ErrorIs(t, err, ErrSignatureRecovery)
}

func TestWithdrawalRequestTooShort(t *testing.T) {
	_, err := DecodeWithdrawalRequestPayload(make([]byte, WithdrawalRequestMinLength-1))
	assert.ErrorIs(t, err, ErrPayloadTooShort)

	p, err := DecodeWithdrawalRequestPayload(make([]byte, WithdrawalRequestMinLength))
	require.NoError(t, err)
	assert.Nil(t, p.Memo)
}

func TestFulfillmentPayload(t *testing.T) {
	var tip [ChainTipLength]byte
	tip[0], tip[31] = 1, 2
	p := &WithdrawalFulfillmentPayload{ChainTip: tip, Memo: []byte("x")}

	back, err := DecodeWithdrawalFulfillmentPayload(p.Encode())
	require.NoError(t, err)
	assert.Equal(t, p, back)

	_, err = DecodeWithdrawalFulfillmentPayload(tip[:31])
	assert.ErrorIs(t, err, ErrPayloadTooShort)
}
