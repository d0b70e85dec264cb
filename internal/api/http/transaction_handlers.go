package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/pkgmgr/internal/api/middleware"
	"github.com/GriffinCanCode/AgentOS/pkgmgr/internal/service"
	"github.com/GriffinCanCode/AgentOS/pkgmgr/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/pkgmgr/internal/shared/types"
)

// Install installs the package at the given path and waits for the result
func (h *Handlers) Install(c *gin.Context) {
	var req types.InstallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, types.NewError(types.KindInvalidArgument, "install", "", err))
		return
	}

	txn := id.NewTxnID()
	log := h.log.With(
		zap.String("txn", txn.String()),
		zap.String("request_id", middleware.GetRequestID(c)),
	)
	done := make(chan types.TransactionResponse, 1)

	code := h.pm.Install(service.InstallParam{Path: req.Path, TxnID: txn}, service.InstallObserverFuncs{
		Progress: func(pkg string, percent int) {
			log.Debug("Install progress", zap.String("package", pkg), zap.Int("percent", percent))
		},
		Result: func(pkg string, code int32, msg string) {
			done <- types.TransactionResponse{TransactionID: txn.String(), Package: pkg, Code: code, Message: msg}
		},
	})
	h.await(c, txn, req.Path, code, done)
}

// Uninstall removes a package and waits for the result
func (h *Handlers) Uninstall(c *gin.Context) {
	name := c.Param("name")
	clearData := false
	if raw := c.Query("clear_data"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			fail(c, types.Errorf(types.KindInvalidArgument, "uninstall", name, "bad clear_data value %q", raw))
			return
		}
		clearData = parsed
	}

	txn := id.NewTxnID()
	done := make(chan types.TransactionResponse, 1)

	code := h.pm.Uninstall(service.UninstallParam{Package: name, ClearData: clearData, TxnID: txn},
		service.UninstallObserverFunc(func(pkg string, code int32, msg string) {
			done <- types.TransactionResponse{TransactionID: txn.String(), Package: pkg, Code: code, Message: msg}
		}))
	h.await(c, txn, name, code, done)
}

// await writes the terminal result, a refusal, or a pending marker once
// the request deadline passes
func (h *Handlers) await(c *gin.Context, txn id.TxnID, subject string, accepted int32, done <-chan types.TransactionResponse) {
	if accepted != 0 {
		kind := types.ErrorKind(accepted)
		c.JSON(StatusFor(kind), types.TransactionResponse{
			TransactionID: txn.String(),
			Package:       subject,
			Code:          accepted,
			Message:       kind.String(),
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.wait)
	defer cancel()

	select {
	case res := <-done:
		c.JSON(StatusFor(types.ErrorKind(res.Code)), res)
	case <-ctx.Done():
		h.log.Info("Caller stopped waiting for transaction", zap.String("txn", txn.String()), zap.String("subject", subject))
		c.JSON(http.StatusAccepted, types.TransactionResponse{
			TransactionID: txn.String(),
			Package:       subject,
			Message:       "transaction is still running",
			Pending:       true,
		})
	}
}
