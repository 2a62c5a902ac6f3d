// Package notify renders requester notifications and delivers them over the
// email and text-messaging channels.
package notify

import (
	"fmt"
	"strings"

	"qms/queue-core/internal/models"
)

type Kind string

const (
	KindRegistered  Kind = "registered"
	KindApproaching Kind = "approaching"
	KindCalled      Kind = "called"
)

type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelText  Channel = "text"
)

// Info is what a message may mention about the ticket.
type Info struct {
	Ticket               models.Ticket
	ServiceName          string
	Counter              string
	Position             int
	EstimatedWaitMinutes int
}

type Message struct {
	Kind      Kind
	Channel   Channel
	Recipient string
	// Subject is empty for text messages.
	Subject string
	Body    string
}

// Compose builds one message per eligible channel. A channel is eligible
// when its notify flag is set and the matching contact field is present.
func Compose(kind Kind, info Info) []Message {
	ticket := info.Ticket
	var out []Message
	if ticket.NotifyEmail && strings.TrimSpace(ticket.Email) != "" {
		out = append(out, Message{
			Kind:      kind,
			Channel:   ChannelEmail,
			Recipient: strings.TrimSpace(ticket.Email),
			Subject:   subject(kind, info),
			Body:      emailBody(kind, info),
		})
	}
	if ticket.NotifySMS && strings.TrimSpace(ticket.Phone) != "" {
		out = append(out, Message{
			Kind:      kind,
			Channel:   ChannelText,
			Recipient: strings.TrimSpace(ticket.Phone),
			Body:      textBody(kind, info),
		})
	}
	return out
}

func subject(kind Kind, info Info) string {
	switch kind {
	case KindRegistered:
		return fmt.Sprintf("Nomor Antrian %s - %s", info.Ticket.Number, info.ServiceName)
	case KindApproaching:
		return fmt.Sprintf("Giliran Anda Segera Tiba - %s", info.Ticket.Number)
	case KindCalled:
		return fmt.Sprintf("Nomor Antrian %s Dipanggil", info.Ticket.Number)
	}
	return "Informasi Antrian " + info.Ticket.Number
}

func emailBody(kind Kind, info Info) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Yth. %s,\n\n", info.Ticket.RequesterName)
	switch kind {
	case KindRegistered:
		fmt.Fprintf(&b, "Pendaftaran Anda untuk layanan %s berhasil.\n", info.ServiceName)
		fmt.Fprintf(&b, "Nomor antrian: %s\n", info.Ticket.Number)
		if info.Position > 0 {
			fmt.Fprintf(&b, "Posisi antrian: %d\n", info.Position)
		}
		fmt.Fprintf(&b, "Perkiraan waktu tunggu: %d menit\n", info.EstimatedWaitMinutes)
	case KindApproaching:
		fmt.Fprintf(&b, "Nomor antrian %s untuk layanan %s akan segera dipanggil.\n", info.Ticket.Number, info.ServiceName)
		if info.Position > 0 {
			fmt.Fprintf(&b, "Masih ada %d antrian sebelum Anda.\n", info.Position-1)
		}
		b.WriteString("Mohon bersiap di ruang tunggu.\n")
	case KindCalled:
		fmt.Fprintf(&b, "Nomor antrian %s dipanggil ke loket %s.\n", info.Ticket.Number, info.Counter)
		b.WriteString("Silakan menuju loket sekarang.\n")
	}
	b.WriteString("\nTerima kasih.\n")
	return b.String()
}

func textBody(kind Kind, info Info) string {
	switch kind {
	case KindRegistered:
		return fmt.Sprintf("Antrian %s (%s) terdaftar. Perkiraan tunggu %d menit.", info.Ticket.Number, info.ServiceName, info.EstimatedWaitMinutes)
	case KindApproaching:
		return fmt.Sprintf("Antrian %s (%s) segera dipanggil. Mohon bersiap.", info.Ticket.Number, info.ServiceName)
	case KindCalled:
		return fmt.Sprintf("Antrian %s dipanggil ke loket %s. Silakan menuju loket.", info.Ticket.Number, info.Counter)
	}
	return "Informasi antrian " + info.Ticket.Number
}

// Eligible reports whether any channel would receive a message for ticket.
func Eligible(ticket models.Ticket) bool {
	return (ticket.NotifyEmail && strings.TrimSpace(ticket.Email) != "") ||
		(ticket.NotifySMS && strings.TrimSpace(ticket.Phone) != "")
}
