package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"parking-status-backend/internal/apperror"
)

// spotRef accepts a spot reference sent either as a string ("A1") or as a
// bare number (1).
type spotRef string

func (r *spotRef) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*r = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*r = spotRef(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("vaga_id must be a string or a number")
	}
	*r = spotRef(n.String())
	return nil
}

type occupyRequest struct {
	ClientID string  `json:"client_id"`
	VagaID   spotRef `json:"vaga_id"`
}

type payRequest struct {
	ClientID string `json:"client_id"`
}

// bindOptionalJSON decodes the body into dst, treating an empty body as {}.
func bindOptionalJSON(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		return apperror.ValidationError("invalid request")
	}
	return nil
}

// formatElapsed renders a duration as H:MM:SS.
func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Truncate(time.Second)
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)
	return fmt.Sprintf("%d:%02d:%02d", h, m, s)
}

// ClientOccupy handles POST /api/client/occupy.
func (h *Handler) ClientOccupy(c *gin.Context) {
	var req occupyRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		h.writeError(c, err)
		return
	}

	session, err := h.ledger.Claim(c.Request.Context(), req.ClientID, string(req.VagaID))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("Vaga %s ocupada com sucesso", session.SpotName),
		"session": session,
	})
}

// ClientPay handles POST /api/client/pay.
func (h *Handler) ClientPay(c *gin.Context) {
	var req payRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		h.writeError(c, err)
		return
	}

	receipt, err := h.ledger.Pay(c.Request.Context(), req.ClientID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":           "Pagamento realizado e vaga liberada",
		"valor_total":       receipt.Amount,
		"tempo_permanencia": formatElapsed(receipt.Duration),
		"session_info":      receipt.Session,
	})
}

// ClientSession handles GET /api/client/session/:client_id.
func (h *Handler) ClientSession(c *gin.Context) {
	session, quote, ok := h.ledger.Get(c.Param("client_id"))
	if !ok {
		c.JSON(http.StatusOK, gin.H{"session": nil})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session":         session,
		"valor_atual":     quote.Amount,
		"tempo_decorrido": formatElapsed(quote.Elapsed),
	})
}
