package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"voting-ledger/models"
	"voting-ledger/program"
	"voting-ledger/service"
)

type ErrorResponse struct {
	Code    string          `json:"code"`
	Error   string          `json:"error"`
	Receipt *models.Receipt `json:"receipt,omitempty"`
}

type AddressResponse struct {
	Kind    string        `json:"kind"`
	Owner   models.Pubkey `json:"owner"`
	Address models.Pubkey `json:"address"`
}

type BlockchainResponse struct {
	BlockCount int             `json:"block_count"`
	Blocks     []*models.Block `json:"blocks"`
	IsValid    bool            `json:"is_valid"`
	Error      string          `json:"error,omitempty"`
	LastHash   string          `json:"last_hash,omitempty"`
}

type BlockResponse struct {
	Index      uint64          `json:"index"`
	Timestamp  int64           `json:"timestamp"`
	PrevHash   string          `json:"prev_hash"`
	Hash       string          `json:"hash"`
	Nonce      uint64          `json:"nonce"`
	Difficulty uint8           `json:"difficulty"`
	Receipt    *models.Receipt `json:"receipt"`
}

func (s *Server) registerRoutes(r gin.IRouter) {
	api := r.Group("/api")
	api.POST("/transactions", s.handleSubmitTransaction)
	api.GET("/candidates/:address", s.handleGetCandidate)
	api.GET("/voters/:address", s.handleGetVoter)
	api.GET("/addresses/:kind/:owner", s.handleDeriveAddress)
	api.GET("/tally/verify", s.handleVerifyTally)
	api.GET("/blockchain", s.handleGetBlockchain)
	api.GET("/blockchain/blocks/:index", s.handleGetBlock)
	api.GET("/metrics", s.handleGetMetrics)
}

func (s *Server) handleSubmitTransaction(c *gin.Context) {
	var tx models.Transaction
	if err := c.ShouldBindJSON(&tx); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:  string(program.CodeInvalidInstruction),
			Error: "invalid request body: " + err.Error(),
		})
		return
	}

	receipt, err := s.queue.Submit(c.Request.Context(), &tx)
	if err != nil {
		s.writeError(c, err, receipt)
		return
	}
	c.JSON(http.StatusOK, receipt)
}

func (s *Server) handleGetCandidate(c *gin.Context) {
	address, ok := pubkeyParam(c, "address")
	if !ok {
		return
	}
	candidate, err := s.ledger.GetCandidate(c.Request.Context(), address)
	if err != nil {
		s.writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, candidate)
}

func (s *Server) handleGetVoter(c *gin.Context) {
	address, ok := pubkeyParam(c, "address")
	if !ok {
		return
	}
	voter, err := s.ledger.GetVoter(c.Request.Context(), address)
	if err != nil {
		s.writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, voter)
}

func (s *Server) handleDeriveAddress(c *gin.Context) {
	owner, ok := pubkeyParam(c, "owner")
	if !ok {
		return
	}

	resp := AddressResponse{Kind: c.Param("kind"), Owner: owner}
	switch resp.Kind {
	case models.CandidateSeed:
		resp.Address = s.ledger.CandidateAddress(owner)
	case models.VoterSeed:
		resp.Address = s.ledger.VoterAddress(owner)
	default:
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:  string(program.CodeInvalidInstruction),
			Error: "kind must be candidate or voter",
		})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleVerifyTally(c *gin.Context) {
	report, err := s.ledger.VerifyTally(c.Request.Context())
	if err != nil {
		s.writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) handleGetBlockchain(c *gin.Context) {
	blocks := s.ledger.Journal().Blocks()
	resp := BlockchainResponse{
		BlockCount: len(blocks),
		Blocks:     blocks,
		IsValid:    true,
	}
	if err := models.VerifyChain(blocks); err != nil {
		resp.IsValid = false
		resp.Error = err.Error()
	}
	if len(blocks) > 0 {
		resp.LastHash = hexutil.Encode(blocks[len(blocks)-1].Hash)
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleGetBlock(c *gin.Context) {
	index, err := strconv.ParseUint(c.Param("index"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: string(program.CodeInvalidInstruction), Error: "invalid block index"})
		return
	}

	block, err := s.ledger.Journal().Block(index)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Code: "NOT_FOUND", Error: err.Error()})
		return
	}

	resp := BlockResponse{
		Index:      block.Index,
		Timestamp:  block.Timestamp,
		PrevHash:   hexutil.Encode(block.PrevHash),
		Hash:       hexutil.Encode(block.Hash),
		Nonce:      block.Nonce,
		Difficulty: block.Difficulty,
	}
	var receipt models.Receipt
	if err := json.Unmarshal(block.Data, &receipt); err == nil {
		resp.Receipt = &receipt
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleGetMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, s.ledger.Metrics().GetMetrics())
}

func (s *Server) writeError(c *gin.Context, err error, receipt *models.Receipt) {
	var perr *program.Error
	switch {
	case errors.As(err, &perr):
		c.JSON(perr.Code.HTTPStatus(), ErrorResponse{Code: string(perr.Code), Error: perr.Message, Receipt: receipt})
	case errors.Is(err, service.ErrQueueFull), errors.Is(err, service.ErrQueueStopped):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Code: "UNAVAILABLE", Error: err.Error()})
	default:
		s.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Code: string(program.CodeUnknown), Error: "internal error"})
	}
}

func pubkeyParam(c *gin.Context, name string) (models.Pubkey, bool) {
	pk, err := models.ParsePubkey(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: string(program.CodeInvalidInstruction), Error: err.Error()})
		return models.Pubkey{}, false
	}
	return pk, true
}
