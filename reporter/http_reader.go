// Reader is a testing facility to read the output of a http reporter.

package reporter

import (
	"io"
	"net/http"
	"net/url"
)

type HttpReader struct {
	baseURL string // e.g. http://127.0.0.1:8080
}

func NewHttpReader(baseURL string) *HttpReader {
	return &HttpReader{baseURL: baseURL}
}

func (hr *HttpReader) get(path string) (int, string, error) {
	resp, err := http.Get(hr.baseURL + path)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, "", err
	}
	return resp.StatusCode, string(body), nil
}

func (hr *HttpReader) GetHello() (int, string, error) {
	return hr.get(ROUTE_HELLO)
}

func (hr *HttpReader) GetState() (int, string, error) {
	return hr.get(ROUTE_STATE)
}

func (hr *HttpReader) GetDeposits() (int, string, error) {
	return hr.get(ROUTE_DEPOSITS)
}

func (hr *HttpReader) GetWithdrawals() (int, string, error) {
	return hr.get(ROUTE_WITHDRAWALS)
}

func (hr *HttpReader) GetDeposit(btcTxID string) (int, string, error) {
	return hr.get(ROUTE_DEPOSIT + "?txid=" + url.QueryEscape(btcTxID))
}

func (hr *HttpReader) GetWithdrawal(btcTxID string) (int, string, error) {
	return hr.get(ROUTE_WITHDRAWAL + "?txid=" + url.QueryEscape(btcTxID))
}
