package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"minimail/internal/service/mail"
)

const msgMailNotFound = "Mail not found."

type MailHandler struct {
	mailService *mail.Service
	logger      *zap.Logger
}

func NewMailHandler(mailService *mail.Service, logger *zap.Logger) *MailHandler {
	return &MailHandler{
		mailService: mailService,
		logger:      logger,
	}
}

// Send handles POST /api/mail/send
func (h *MailHandler) Send(c *gin.Context) {
	from, ok := currentEmail(c)
	if !ok {
		respondMessage(c, http.StatusUnauthorized, msgTokenRequired)
		return
	}

	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondMessage(c, http.StatusBadRequest, msgInvalidBody)
		return
	}
	req.normalize()
	if err := req.validate(); err != nil {
		respondMessage(c, http.StatusBadRequest, err.Error())
		return
	}

	m, err := h.mailService.Send(c.Request.Context(), from, req.To, req.Subject, req.Body)
	if err != nil {
		respondInternal(c, h.logger, "Send mail failed", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Mail sent successfully.",
		"mail":    m,
	})
}

// Inbox handles GET /api/mail/inbox
func (h *MailHandler) Inbox(c *gin.Context) {
	email, ok := currentEmail(c)
	if !ok {
		respondMessage(c, http.StatusUnauthorized, msgTokenRequired)
		return
	}
	c.JSON(http.StatusOK, gin.H{"mails": h.mailService.Inbox(c.Request.Context(), email)})
}

// Sentbox handles GET /api/mail/sentbox
func (h *MailHandler) Sentbox(c *gin.Context) {
	email, ok := currentEmail(c)
	if !ok {
		respondMessage(c, http.StatusUnauthorized, msgTokenRequired)
		return
	}
	c.JSON(http.StatusOK, gin.H{"mails": h.mailService.Sentbox(c.Request.Context(), email)})
}

// Get handles GET /api/mail/:id; the recipient opening it marks it read.
func (h *MailHandler) Get(c *gin.Context) {
	email, ok := currentEmail(c)
	if !ok {
		respondMessage(c, http.StatusUnauthorized, msgTokenRequired)
		return
	}

	m, err := h.mailService.Open(c.Request.Context(), c.Param("id"), email)
	if errors.Is(err, mail.ErrMailNotFound) {
		respondMessage(c, http.StatusNotFound, msgMailNotFound)
		return
	}
	if err != nil {
		respondInternal(c, h.logger, "Get mail failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"mail": m})
}

// MarkRead handles PUT /api/mail/:id/read
func (h *MailHandler) MarkRead(c *gin.Context) {
	email, ok := currentEmail(c)
	if !ok {
		respondMessage(c, http.StatusUnauthorized, msgTokenRequired)
		return
	}

	m, err := h.mailService.MarkRead(c.Request.Context(), c.Param("id"), email)
	if errors.Is(err, mail.ErrMailNotFound) {
		respondMessage(c, http.StatusNotFound, msgMailNotFound)
		return
	}
	if err != nil {
		respondInternal(c, h.logger, "Mark read failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Mail marked as read.",
		"mail":    m,
	})
}

// Delete handles DELETE /api/mail/:id
func (h *MailHandler) Delete(c *gin.Context) {
	email, ok := currentEmail(c)
	if !ok {
		respondMessage(c, http.StatusUnauthorized, msgTokenRequired)
		return
	}

	err := h.mailService.Delete(c.Request.Context(), c.Param("id"), email)
	if errors.Is(err, mail.ErrMailNotFound) {
		respondMessage(c, http.StatusNotFound, "Mail not found or cannot be deleted.")
		return
	}
	if err != nil {
		respondInternal(c, h.logger, "Delete mail failed", err)
		return
	}
	respondMessage(c, http.StatusOK, "Mail deleted successfully.")
}
