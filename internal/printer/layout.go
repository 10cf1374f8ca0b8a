package printer

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/joao-fontenele/tableside/internal/domain"
)

const (
	defaultKitchenHeader = "KITCHEN ORDER"
	defaultKitchenFooter = "-- end of ticket --"
	defaultReceiptHeader = "RECEIPT"
	defaultReceiptFooter = "Thank you!"

	dateLayout = "2006-01-02 15:04"
)

// Layout controls the text rendering of tickets. Width is counted in runes.
type Layout struct {
	Width    int
	Header   string
	Footer   string
	Location *time.Location
}

func (l Layout) normalize(header, footer string) Layout {
	if l.Width == 0 {
		l.Width = DefaultWidth
	}
	if l.Width < MinWidth {
		l.Width = MinWidth
	}
	if l.Header == "" {
		l.Header = header
	}
	if l.Footer == "" {
		l.Footer = footer
	}
	if l.Location == nil {
		l.Location = time.UTC
	}
	return l
}

// LayoutFor derives the layout for an area from its device settings.
func LayoutFor(s DeviceSettings, loc *time.Location) Layout {
	return Layout{Width: s.Width, Header: s.Header, Footer: s.Footer, Location: loc}
}

// FormatKitchenTicket renders the ticket the kitchen works from. Prices are
// left out on purpose; the kitchen only needs what to cook.
func FormatKitchenTicket(order domain.Order, layout Layout) string {
	l := layout.normalize(defaultKitchenHeader, defaultKitchenFooter)

	var b ticketBuilder
	b.header(order, l)

	for i, line := range order.Lines {
		b.add(justify(fmt.Sprintf("%d. %s", i+1, line.ProductName), fmt.Sprintf("x%d", line.Quantity), l.Width))
		if line.Note != "" {
			b.add(wrapIndented(line.Note, "   * ", "     ", l.Width)...)
		}
		b.add("")
	}

	b.add(rule('=', l.Width))
	if order.Note != "" {
		b.add("NOTE:")
		b.add(wrap(order.Note, l.Width)...)
	}
	b.add(center(l.Footer, l.Width))

	return b.String()
}

// FormatReceipt renders the customer receipt with per-line amounts, the
// total and the payment method.
func FormatReceipt(order domain.Order, paymentMethod string, layout Layout) string {
	l := layout.normalize(defaultReceiptHeader, defaultReceiptFooter)
	if paymentMethod == "" {
		paymentMethod = order.PaymentMethod
	}
	if paymentMethod == "" {
		paymentMethod = domain.DefaultPaymentMethod
	}

	var b ticketBuilder
	b.header(order, l)

	for _, line := range order.Lines {
		b.add(justify(fmt.Sprintf("%d x %s", line.Quantity, line.ProductName), line.Amount().StringFixed(2), l.Width))
		if line.Note != "" {
			b.add(wrapIndented(line.Note, "   * ", "     ", l.Width)...)
		}
	}

	b.add(rule('-', l.Width))
	b.add(justify("TOTAL", domain.SumLines(order.Lines).StringFixed(2), l.Width))
	b.add("Payment: " + paymentMethod)
	b.add(rule('=', l.Width))
	b.add(center(l.Footer, l.Width))

	return b.String()
}

type ticketBuilder struct {
	lines []string
}

func (b *ticketBuilder) add(lines ...string) {
	b.lines = append(b.lines, lines...)
}

func (b *ticketBuilder) header(order domain.Order, l Layout) {
	b.add(center(l.Header, l.Width))
	b.add(rule('=', l.Width))
	b.add(fmt.Sprintf("Ticket: #%d", order.TicketNumber))
	if order.TableNumber != nil {
		b.add(fmt.Sprintf("Table: %d", *order.TableNumber))
	} else {
		b.add("FOR TAKEAWAY")
	}
	b.add("Date: " + order.CreatedAt.In(l.Location).Format(dateLayout))
	if order.ClientName != "" {
		b.add(truncate("Customer: "+order.ClientName, l.Width))
	}
	b.add(rule('-', l.Width))
}

func (b *ticketBuilder) String() string {
	return strings.Join(b.lines, "\n") + "\n"
}

func rule(c rune, width int) string {
	return strings.Repeat(string(c), width)
}

func center(s string, width int) string {
	s = truncate(s, width)
	pad := (width - utf8.RuneCountInString(s)) / 2
	return strings.Repeat(" ", pad) + s
}

// justify puts left and right on one line, right flush with the edge.
// The left part is cut short when both do not fit. When right leaves no
// room at all, left gets its own line above it.
func justify(left, right string, width int) string {
	right = truncate(right, width)
	room := width - utf8.RuneCountInString(right) - 1
	if room < 1 {
		pad := strings.Repeat(" ", width-utf8.RuneCountInString(right))
		return truncate(left, width) + "\n" + pad + right
	}
	left = truncate(left, room)
	gap := width - utf8.RuneCountInString(left) - utf8.RuneCountInString(right)
	return left + strings.Repeat(" ", gap) + right
}

func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= width {
		return s
	}
	return string([]rune(s)[:width])
}

func wrap(s string, width int) []string {
	return wrapIndented(s, "", "", width)
}

// wrapIndented breaks s on spaces so no line exceeds width. Words longer
// than a line are split.
func wrapIndented(s, first, rest string, width int) []string {
	var (
		lines  []string
		prefix = first
		cur    []rune
	)
	flush := func() {
		lines = append(lines, prefix+string(cur))
		prefix = rest
		cur = cur[:0]
	}

	for _, word := range strings.Fields(s) {
		w := []rune(word)
		for len(w) > 0 {
			room := width - utf8.RuneCountInString(prefix)
			if room < 1 {
				room = 1
			}
			switch {
			case len(cur) == 0 && len(w) <= room:
				cur = append(cur, w...)
				w = nil
			case len(cur) > 0 && len(cur)+1+len(w) <= room:
				cur = append(cur, ' ')
				cur = append(cur, w...)
				w = nil
			case len(cur) > 0:
				flush()
			default:
				cur = append(cur, w[:room]...)
				w = w[room:]
				flush()
			}
		}
	}
	if len(cur) > 0 || len(lines) == 0 {
		flush()
	}
	return lines
}
