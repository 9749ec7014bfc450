package models

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// SequenceDigits is the width of the per-month sequence.
const SequenceDigits = 4

// MonthPrefix is the YYYYMM bucket a ticket minted at t belongs to.
func MonthPrefix(t time.Time) string {
	return t.Format("200601")
}

// FormatTicketNumber renders prefix + zero-padded sequence, e.g. 2025100007.
func FormatTicketNumber(prefix string, seq int) string {
	return fmt.Sprintf("%s%0*d", prefix, SequenceDigits, seq)
}

// CompareTicketNumbers orders numbers numerically when both are digit
// strings and lexically otherwise.
func CompareTicketNumbers(a, b string) int {
	if isDigits(a) && isDigits(b) {
		ta, tb := strings.TrimLeft(a, "0"), strings.TrimLeft(b, "0")
		if len(ta) != len(tb) {
			if len(ta) < len(tb) {
				return -1
			}
			return 1
		}
		if c := strings.Compare(ta, tb); c != 0 {
			return c
		}
	}
	return strings.Compare(a, b)
}

// SortTickets sorts in place by ticket number.
func SortTickets(tickets []Ticket) {
	sort.SliceStable(tickets, func(i, j int) bool {
		return CompareTicketNumbers(tickets[i].Number, tickets[j].Number) < 0
	})
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
