// This is a http type of reporter.
// It reads the latest peg state snapshot
// and publishes it on the http routes.

package reporter

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	logger "github.com/sirupsen/logrus"

	"github.com/TEENet-io/sbtc-bridge/pegstate"
)

const (
	ROUTE_HELLO       = "/hello"
	ROUTE_STATE       = "/state"
	ROUTE_DEPOSITS    = "/deposits"
	ROUTE_WITHDRAWALS = "/withdrawals"
	ROUTE_DEPOSIT     = "/deposit"
	ROUTE_WITHDRAWAL  = "/withdrawal"
)

// StateSource hands out private copies of the peg state.
type StateSource interface {
	Snapshot() (pegstate.State, error)
}

type HttpReporter struct {
	serverIP   string // listen ip
	serverPort string // listen port

	// upstream data source
	source StateSource
}

func NewHttpReporter(serverIP string, serverPort string, source StateSource) *HttpReporter {
	return &HttpReporter{
		serverIP:   serverIP,
		serverPort: serverPort,
		source:     source,
	}
}

// Hook up routes & handlers
func (h *HttpReporter) SetupRouter() *gin.Engine {
	router := gin.Default()

	router.GET(ROUTE_HELLO, Hello)
	router.GET(ROUTE_STATE, h.State)
	router.GET(ROUTE_DEPOSITS, h.Deposits)
	router.GET(ROUTE_WITHDRAWALS, h.Withdrawals)
	router.GET(ROUTE_DEPOSIT, h.Deposit)
	router.GET(ROUTE_WITHDRAWAL, h.Withdrawal)

	return router
}

// Run serves until ctx ends.
func (h *HttpReporter) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    h.serverIP + ":" + h.serverPort,
		Handler: h.SetupRouter(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("http reporter shutdown: err=%v", err)
		}
	}()

	logger.WithField("addr", srv.Addr).Info("starting http reporter")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return ctx.Err()
}

// Example route.
func Hello(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "world",
	})
}

func (h *HttpReporter) snapshot(c *gin.Context) (pegstate.State, bool) {
	s, err := h.source.Snapshot()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}
	return s, true
}

// State publishes the whole document with its kind.
func (h *HttpReporter) State(c *gin.Context) {
	s, ok := h.snapshot(c)
	if !ok {
		return
	}
	doc, err := pegstate.Marshal(s)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", doc)
}

func (h *HttpReporter) Deposits(c *gin.Context) {
	s, ok := h.snapshot(c)
	if !ok {
		return
	}
	deposits := []*pegstate.Deposit{}
	if init, ok := s.(*pegstate.Initialized); ok && init.Deposits != nil {
		deposits = init.Deposits
	}
	c.JSON(http.StatusOK, gin.H{"data": deposits})
}

func (h *HttpReporter) Withdrawals(c *gin.Context) {
	s, ok := h.snapshot(c)
	if !ok {
		return
	}
	withdrawals := []*pegstate.Withdrawal{}
	if init, ok := s.(*pegstate.Initialized); ok && init.Withdrawals != nil {
		withdrawals = init.Withdrawals
	}
	c.JSON(http.StatusOK, gin.H{"data": withdrawals})
}

// queryTxID reads the bitcoin txid of the request being asked for.
func queryTxID(c *gin.Context) (pegstate.BitcoinTxID, bool) {
	var txid pegstate.BitcoinTxID
	raw := c.Query("txid")
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "txid must be provided"})
		return txid, false
	}
	if err := txid.UnmarshalText([]byte(raw)); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return txid, false
	}
	return txid, true
}

// Deposit looks one deposit up by its bitcoin txid.
func (h *HttpReporter) Deposit(c *gin.Context) {
	txid, ok := queryTxID(c)
	if !ok {
		return
	}
	s, ok := h.snapshot(c)
	if !ok {
		return
	}

	if init, ok := s.(*pegstate.Initialized); ok {
		for _, d := range init.Deposits {
			if d.TxID == txid {
				c.JSON(http.StatusOK, gin.H{"data": d})
				return
			}
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "No deposit found"})
}

func (h *HttpReporter) Withdrawal(c *gin.Context) {
	txid, ok := queryTxID(c)
	if !ok {
		return
	}
	s, ok := h.snapshot(c)
	if !ok {
		return
	}

	if init, ok := s.(*pegstate.Initialized); ok {
		for _, w := range init.Withdrawals {
			if w.Info.TxID == txid {
				c.JSON(http.StatusOK, gin.H{"data": w})
				return
			}
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "No withdrawal found"})
}
