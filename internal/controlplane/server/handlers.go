package server

import (
	"net/http"
	"strconv"

	"github.com/betbot/bjadvisor/internal/domain"
	"github.com/betbot/bjadvisor/internal/recorder"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
)

func writeError(c *gin.Context, code int, err error) {
	c.AbortWithStatusJSON(code, gin.H{"error": err.Error()})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.ctl.Status())
}

func (s *Server) handleLastDecision(c *gin.Context) {
	d, ok := s.ctl.LastDecision()
	if !ok {
		c.JSON(http.StatusOK, gin.H{"decision": nil})
		return
	}
	cards := make([]string, 0, len(d.PlayerCards))
	for _, card := range d.PlayerCards {
		cards = append(cards, card.String())
	}
	c.JSON(http.StatusOK, gin.H{
		"decision":      d,
		"player_cards":  cards,
		"dealer_upcard": d.DealerUpcard.String(),
	})
}

func (s *Server) handleSession(c *gin.Context) {
	c.JSON(http.StatusOK, s.ctl.Info())
}

func (s *Server) handleReset(c *gin.Context) {
	s.ctl.ResetCount()
	c.JSON(http.StatusOK, gin.H{"ok": true, "status": s.ctl.Status()})
}

func (s *Server) handleNext(c *gin.Context) {
	s.ctl.NextHand()
	c.JSON(http.StatusOK, gin.H{"ok": true, "status": s.ctl.Status()})
}

func (s *Server) handleForce(c *gin.Context) {
	ok := s.ctl.ForceDecision()
	code := http.StatusOK
	if !ok {
		// 牌不完整
		code = http.StatusConflict
	}
	c.JSON(code, gin.H{"ok": ok, "status": s.ctl.Status()})
}

func (s *Server) handleComplete(c *gin.Context) {
	s.ctl.MarkHandComplete()
	c.JSON(http.StatusOK, gin.H{"ok": true, "status": s.ctl.Status()})
}

type bankrollRequest struct {
	Bankroll *float64 `json:"bankroll"`
}

func (s *Server) handleBankroll(c *gin.Context) {
	var req bankrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, errors.Wrap(err, "invalid body"))
		return
	}
	if req.Bankroll == nil || *req.Bankroll < 0 {
		writeError(c, http.StatusBadRequest, errors.New("bankroll must be >= 0"))
		return
	}
	s.ctl.SetBankroll(*req.Bankroll)
	c.JSON(http.StatusOK, gin.H{"ok": true, "bankroll": *req.Bankroll})
}

type settleRequest struct {
	Actual  string  `json:"actual"`
	Outcome string  `json:"outcome"`
	Payout  float64 `json:"payout"`
}

func (s *Server) handleSettle(c *gin.Context) {
	seq, err := strconv.Atoi(c.Param("seq"))
	if err != nil || seq <= 0 {
		writeError(c, http.StatusBadRequest, errors.Errorf("invalid hand number %q", c.Param("seq")))
		return
	}
	var req settleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, errors.Wrap(err, "invalid body"))
		return
	}
	actual, err := domain.ParseAction(req.Actual)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	outcome, err := recorder.ParseOutcome(req.Outcome)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}

	rec, err := s.ctl.Settle(c.Request.Context(), seq, actual, outcome, req.Payout)
	switch {
	case errors.Is(err, recorder.ErrUnknownHand):
		writeError(c, http.StatusNotFound, err)
		return
	case errors.Is(err, recorder.ErrNotRecording):
		writeError(c, http.StatusConflict, err)
		return
	case err != nil && rec.ID == "":
		writeError(c, http.StatusInternalServerError, err)
		return
	case err != nil:
		// 已记入内存但落盘失败
		log.WithError(err).Warnf("手牌 #%d 结算未能保存", seq)
	}
	c.JSON(http.StatusOK, gin.H{"hand": rec})
}
