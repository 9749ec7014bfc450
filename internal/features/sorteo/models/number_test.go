package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatTicketNumber(t *testing.T) {
	prefix := MonthPrefix(time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "202503", prefix)
	assert.Equal(t, "2025030000", FormatTicketNumber(prefix, 0))
	assert.Equal(t, "2025039999", FormatTicketNumber(prefix, 9999))
}

func TestSortTicketsNumeric(t *testing.T) {
	tickets := []Ticket{{Number: "100"}, {Number: "9"}, {Number: "0010"}, {Number: "abc"}, {Number: "2025100002"}}
	SortTickets(tickets)

	var got []string
	for _, tk := range tickets {
		got = append(got, tk.Number)
	}
	assert.Equal(t, []string{"9", "0010", "100", "2025100002", "abc"}, got)
}

func TestParseTicketState(t *testing.T) {
	s, ok := ParseTicketState("vendido")
	assert.True(t, ok)
	assert.Equal(t, TicketSold, s)

	s, ok = ParseTicketState("Disponible")
	assert.True(t, ok)
	assert.Equal(t, TicketAvailable, s)

	_, ok = ParseTicketState("reservado")
	assert.False(t, ok)
}
