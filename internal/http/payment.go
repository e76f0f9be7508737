package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/storrsec/internal/apipaths"
	"github.com/storrsec/internal/httputil"
)

const paymentFailedMessage = "Payment processing failed. Please try again."

func (s *Server) paymentPage(c *gin.Context) {
	state, ok := s.gate(c)
	if !ok {
		return
	}
	s.render(c, http.StatusOK, "payment", s.newView(c, state, "payment", "Payment"))
}

// checkout creates a hosted checkout session and sends the browser there
func (s *Server) checkout(c *gin.Context) {
	ctx := c.Request.Context()
	sess := sessionFrom(c)

	redirect, err := s.payments.StartCheckout(ctx, sess.Slot())
	if err != nil {
		slog.ErrorContext(ctx, "failed to start checkout", "visitor", sess.Slot().Scope(), "error", err)
		status := statusFor(err)
		if status < http.StatusInternalServerError {
			status = http.StatusBadGateway
		}
		if httputil.WantsJSON(c) {
			c.JSON(status, ErrorResponse{Error: paymentFailedMessage})
			return
		}
		state, ok := s.gate(c)
		if !ok {
			return
		}
		v := s.newView(c, state, "payment", "Payment")
		v.Error = paymentFailedMessage
		s.render(c, status, "payment", v)
		return
	}

	if httputil.WantsJSON(c) {
		c.JSON(http.StatusOK, gin.H{
			"id":             redirect.SessionID,
			"url":            redirect.URL,
			"publishableKey": redirect.PublishableKey,
		})
		return
	}
	if redirect.Direct() {
		c.Redirect(http.StatusSeeOther, redirect.URL)
		return
	}

	// Stripe.js performs the redirect
	state, ok := s.gate(c)
	if !ok {
		return
	}
	v := s.newView(c, state, "checkout", "Checkout")
	v.Checkout = redirect
	s.render(c, http.StatusOK, "checkout", v)
}

// paymentSuccess is the return URL of the hosted checkout
func (s *Server) paymentSuccess(c *gin.Context) {
	if _, ok := s.gate(c); !ok {
		return
	}
	sess := sessionFrom(c)
	sess.CompletePayment(c.Request.Context())
	s.navigate(c, apipaths.User, sess.State())
}
