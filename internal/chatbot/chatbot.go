package chatbot

import (
	"context"
	"strings"

	"github.com/lox/laundrydesk/internal/logging"
	"github.com/lox/laundrydesk/internal/metrics"
)

const (
	Greeting = "Halo! Ada yang bisa saya bantu?"
	Apology  = "Maaf, sedang ada gangguan pada sistem AI kami. Silakan hubungi via WhatsApp " + AdminWhatsApp + "."
	Fallback = "Maaf, saya belum menemukan jawaban untuk pertanyaan tersebut. Silakan hubungi Admin WhatsApp " + AdminWhatsApp + "."
)

// Responder turns a customer message into a reply.
type Responder interface {
	Name() string
	Reply(ctx context.Context, message string) (string, error)
}

// Answer greets on an empty message and otherwise asks r. Responder errors
// are logged and replaced with an apology.
func Answer(ctx context.Context, r Responder, message string) string {
	msg := strings.TrimSpace(message)
	if msg == "" {
		metrics.ChatRepliesTotal.WithLabelValues(r.Name(), "greeting").Inc()
		return Greeting
	}

	reply, err := r.Reply(ctx, msg)
	if err != nil {
		log := logging.Component("chatbot")
		log.Error().Err(err).Str("responder", r.Name()).Msg("reply failed")
		metrics.ChatRepliesTotal.WithLabelValues(r.Name(), "error").Inc()
		return Apology
	}
	metrics.ChatRepliesTotal.WithLabelValues(r.Name(), "ok").Inc()
	return reply
}
