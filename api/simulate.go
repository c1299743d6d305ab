package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/banachtech/seqmc/mc"
	"github.com/banachtech/seqmc/option"
	"github.com/banachtech/seqmc/util"
	"github.com/gin-gonic/gin"
)

type simulateRequest struct {
	Contract    option.Contract `json:"contract"`
	Probability float64         `json:"probability" binding:"required"`
	Error       float64         `json:"error" binding:"required"`
	// Seed fixes the uniform source; omitted means the configured seed, or
	// the clock when none is configured.
	Seed *uint64 `json:"seed"`
	// Expiry, as YYYY-MM-DD, replaces the contract duration with the number
	// of trading days from today.
	Expiry string `json:"expiry"`
}

type simulateResponse struct {
	Contract  option.Contract `json:"contract"`
	Price     float64         `json:"price"`
	Trials    int             `json:"trials"`
	HalfWidth float64         `json:"half_width"`
	Mean      float64         `json:"mean"`
	StdDev    float64         `json:"std_dev"`
	Batches   int             `json:"batches"`
	ElapsedMS int64           `json:"elapsed_ms"`
}

func (server *Server) simulate(c *gin.Context) {
	var req simulateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse(err))
		return
	}

	contract := req.Contract
	kind, err := option.ParseKind(string(contract.Kind))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse(err))
		return
	}
	contract.Kind = kind
	if req.Expiry != "" {
		days, err := util.DurationTo(time.Now(), req.Expiry)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse(err))
			return
		}
		contract.Duration = float64(days)
	}

	engine, err := mc.NewEngine(server.backend, util.NewUniform(server.seed(req.Seed)),
		mc.WithBatchSize(server.cfg.Engine.BatchSize),
		mc.WithLogger(server.log),
		mc.WithMetrics(server.metrics),
	)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse(err))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), server.cfg.Server.Timeout)
	defer cancel()
	res, err := engine.Run(ctx, mc.Request{Contract: contract, Probability: req.Probability, Error: req.Error})
	if err != nil {
		c.AbortWithStatusJSON(statusFor(err), errorResponse(fmt.Errorf("simulation stopped after %d trials: %w", res.Trials, err)))
		return
	}

	c.JSON(http.StatusOK, simulateResponse{
		Contract:  contract,
		Price:     res.Price,
		Trials:    res.Trials,
		HalfWidth: res.HalfWidth,
		Mean:      res.Mean,
		StdDev:    res.StdDev,
		Batches:   res.Batches,
		ElapsedMS: res.Elapsed.Milliseconds(),
	})
}

func (server *Server) seed(requested *uint64) uint64 {
	switch {
	case requested != nil:
		return *requested
	case server.cfg.Engine.Seed != 0:
		return server.cfg.Engine.Seed
	default:
		return util.Seed()
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, mc.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, mc.ErrDomain):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout
	case errors.Is(err, mc.ErrBackend):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
