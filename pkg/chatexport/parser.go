// Package chatexport parses exported WhatsApp-style chat transcripts.
//
// Lines look like "12/05/2024, 09:14 - Jane Agency: Locum needed Tue".
// A line that does not start with a header continues the open message.
package chatexport

import (
	"bufio"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var headerRe = regexp.MustCompile(`^([0-3]\d/[0-1]\d/\d{2,4}),\s([0-2]\d:[0-5]\d)\s-\s(.+)$`)

// Message is one chat message. Author is nil for system announcements;
// Timestamp is nil when the header date does not form a real date.
type Message struct {
	Timestamp *time.Time
	Author    *string
	Body      string
}

// Parser is a single-pass line scanner. Feed lines in order, then Flush.
type Parser struct {
	loc     *time.Location
	current *Message
	body    strings.Builder
}

// NewParser interprets header timestamps in loc (time.Local when nil).
func NewParser(loc *time.Location) *Parser {
	if loc == nil {
		loc = time.Local
	}
	return &Parser{loc: loc}
}

// Feed consumes one line. When the line opens a new message, the previously
// open one is returned with ok set.
func (p *Parser) Feed(line string) (msg Message, ok bool) {
	line = strings.TrimPrefix(strings.TrimRight(line, "\r"), "\u200e")

	m := headerRe.FindStringSubmatch(line)
	if m == nil {
		if p.current != nil {
			p.body.WriteString("\n")
			p.body.WriteString(line)
		}
		return Message{}, false
	}

	msg, ok = p.Flush()

	next := &Message{Timestamp: parseTimestamp(m[1], m[2], p.loc)}
	rest := m[3]
	if idx := strings.Index(rest, ":"); idx >= 0 {
		author := strings.TrimSpace(rest[:idx])
		next.Author = &author
		p.body.WriteString(strings.TrimSpace(rest[idx+1:]))
	} else {
		p.body.WriteString(rest)
	}
	p.current = next
	return msg, ok
}

// Flush finalizes the open message, if any, and resets the parser.
func (p *Parser) Flush() (Message, bool) {
	if p.current == nil {
		return Message{}, false
	}
	msg := *p.current
	msg.Body = strings.TrimSpace(p.body.String())
	p.Reset()
	return msg, true
}

// Reset drops any open message.
func (p *Parser) Reset() {
	p.current = nil
	p.body.Reset()
}

// Parse reads a whole transcript. Only reader errors are returned.
func Parse(r io.Reader, loc *time.Location) ([]Message, error) {
	p := NewParser(loc)
	var out []Message

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		if msg, ok := p.Feed(scanner.Text()); ok {
			out = append(out, msg)
		}
	}
	if err := scanner.Err(); err != nil {
		return out, err
	}
	if msg, ok := p.Flush(); ok {
		out = append(out, msg)
	}
	return out, nil
}

// ParseString is Parse over an in-memory transcript.
func ParseString(text string, loc *time.Location) []Message {
	msgs, _ := Parse(strings.NewReader(text), loc)
	return msgs
}

func parseTimestamp(date, clock string, loc *time.Location) *time.Time {
	parts := strings.Split(date, "/")
	hm := strings.Split(clock, ":")
	if len(parts) != 3 || len(hm) != 2 {
		return nil
	}
	day, err1 := strconv.Atoi(parts[0])
	month, err2 := strconv.Atoi(parts[1])
	year, err3 := strconv.Atoi(parts[2])
	hour, err4 := strconv.Atoi(hm[0])
	minute, err5 := strconv.Atoi(hm[1])
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil {
		return nil
	}
	if year < 100 {
		year += 2000
	}
	if hour > 23 {
		return nil
	}

	t := time.Date(year, time.Month(month), day, hour, minute, 0, 0, loc)
	// time.Date normalizes 31/02 into March; reject instead.
	if t.Day() != day || int(t.Month()) != month || t.Year() != year {
		return nil
	}
	return &t
}
