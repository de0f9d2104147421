package domain

import "testing"

func TestParseNotification(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"numeric", `{"emailAddress":"me@example.com","historyId":123456}`, "123456"},
		{"string", `{"emailAddress":"me@example.com","historyId":"987"}`, "987"},
		{"missing", `{"emailAddress":"me@example.com"}`, ""},
		{"garbage", `not json`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseNotification([]byte(tt.data)).HistoryID.String(); got != tt.want {
				t.Errorf("HistoryID = %q, want %q", got, tt.want)
			}
		})
	}
}
