package telegram

import (
	"testing"

	"github.com/go-telegram/bot/models"
)

func TestArgs(t *testing.T) {
	tests := []struct {
		text string
		want []string
	}{
		{"/play never gonna give you up", []string{"never", "gonna", "give", "you", "up"}},
		{"/volume 150", []string{"150"}},
		{"/pause", nil},
		{"", nil},
		{"  /skip  ", nil},
	}
	for _, tt := range tests {
		got := args(&models.Message{Text: tt.text})
		if len(got) != len(tt.want) {
			t.Errorf("args(%q) = %v, want %v", tt.text, got, tt.want)
			continue
		}
		for i := range tt.want {
			if got[i] != tt.want[i] {
				t.Errorf("args(%q)[%d] = %q, want %q", tt.text, i, got[i], tt.want[i])
			}
		}
	}
}

func TestRequesterID(t *testing.T) {
	msg := &models.Message{From: &models.User{ID: 42}}
	if got := requesterID(msg); got != 42 {
		t.Errorf("requesterID = %d, want 42", got)
	}

	// Channel posts have no sender.
	post := &models.Message{Text: "/play something"}
	if got := requesterID(post); got != 0 {
		t.Errorf("requesterID for channel post = %d, want 0", got)
	}
}
