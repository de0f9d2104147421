package chatexport

import (
	"strings"
	"testing"
	"time"
)

func TestParse_ContinuationLines(t *testing.T) {
	transcript := strings.Join([]string{
		"12/05/2024, 09:14 - Jane Agency: Locum needed Tue 14th",
		"Bright Smiles, BS1 4DJ",
		"£450 per day",
	}, "\n")

	msgs := ParseString(transcript, time.UTC)
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	want := "Locum needed Tue 14th\nBright Smiles, BS1 4DJ\n£450 per day"
	if msgs[0].Body != want {
		t.Errorf("Body = %q, want %q", msgs[0].Body, want)
	}
	if msgs[0].Author == nil || *msgs[0].Author != "Jane Agency" {
		t.Errorf("Author = %v", msgs[0].Author)
	}
	wantTS := time.Date(2024, 5, 12, 9, 14, 0, 0, time.UTC)
	if msgs[0].Timestamp == nil || !msgs[0].Timestamp.Equal(wantTS) {
		t.Errorf("Timestamp = %v, want %v", msgs[0].Timestamp, wantTS)
	}
}

func TestParse_SystemMessage(t *testing.T) {
	msgs := ParseString("01/06/24, 18:00 - Messages and calls are end-to-end encrypted", time.UTC)
	if len(msgs) != 1 {
		t.Fatalf("got %d messages", len(msgs))
	}
	if msgs[0].Author != nil {
		t.Errorf("Author = %q, want nil", *msgs[0].Author)
	}
	if msgs[0].Body != "Messages and calls are end-to-end encrypted" {
		t.Errorf("Body = %q", msgs[0].Body)
	}
	if msgs[0].Timestamp == nil || msgs[0].Timestamp.Year() != 2024 {
		t.Errorf("two-digit year not normalized: %v", msgs[0].Timestamp)
	}
}

func TestParse_MultipleMessagesInOrder(t *testing.T) {
	transcript := "stray line before any header\n" +
		"01/06/2024, 10:00 - A: first\n" +
		"01/06/2024, 10:05 - B: second\r\n" +
		"more of second\n" +
		"01/06/2024, 10:06 - B joined using this group's invite link\n"

	msgs := ParseString(transcript, time.UTC)
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}
	if msgs[0].Body != "first" || msgs[1].Body != "second\nmore of second" {
		t.Errorf("bodies = %q, %q", msgs[0].Body, msgs[1].Body)
	}
	if msgs[2].Author != nil {
		t.Errorf("join notice should be a system message")
	}
}

func TestParse_InvalidDateYieldsNilTimestamp(t *testing.T) {
	msgs := ParseString("31/02/2024, 09:00 - A: impossible date", time.UTC)
	if len(msgs) != 1 {
		t.Fatalf("got %d messages", len(msgs))
	}
	if msgs[0].Timestamp != nil {
		t.Errorf("Timestamp = %v, want nil", msgs[0].Timestamp)
	}
	if msgs[0].Body != "impossible date" {
		t.Errorf("Body = %q", msgs[0].Body)
	}
}

func TestParser_FeedAndFlush(t *testing.T) {
	p := NewParser(time.UTC)
	if _, ok := p.Feed("10/10/2024, 08:00 - A: one"); ok {
		t.Fatal("first header should not emit")
	}
	msg, ok := p.Feed("10/10/2024, 08:01 - A: two")
	if !ok || msg.Body != "one" {
		t.Fatalf("Feed emitted %+v, %v", msg, ok)
	}
	msg, ok = p.Flush()
	if !ok || msg.Body != "two" {
		t.Fatalf("Flush = %+v, %v", msg, ok)
	}
	if _, ok := p.Flush(); ok {
		t.Fatal("second Flush should be empty")
	}
}

func TestParse_Empty(t *testing.T) {
	if msgs := ParseString("", time.UTC); len(msgs) != 0 {
		t.Errorf("got %d messages from empty input", len(msgs))
	}
}
