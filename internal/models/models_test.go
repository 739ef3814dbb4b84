package models

import "testing"

func TestMessageFileDerivedProperties(t *testing.T) {
	tests := []struct {
		name    string
		file    MessageFile
		image   bool
		video   bool
		wantExt string
	}{
		{"png", MessageFile{FileName: "photo.PNG", FileType: "image/png"}, true, false, ".png"},
		{"mp4", MessageFile{FileName: "clip.mp4", FileType: "video/mp4"}, false, true, ".mp4"},
		{"pdf", MessageFile{FileName: "doc.tar.pdf", FileType: "application/pdf"}, false, false, ".pdf"},
		{"no extension", MessageFile{FileName: "README", FileType: "text/plain"}, false, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.file.IsImage(); got != tt.image {
				t.Errorf("IsImage() = %v, want %v", got, tt.image)
			}
			if got := tt.file.IsVideo(); got != tt.video {
				t.Errorf("IsVideo() = %v, want %v", got, tt.video)
			}
			if got := tt.file.Extension(); got != tt.wantExt {
				t.Errorf("Extension() = %q, want %q", got, tt.wantExt)
			}
		})
	}
}

func TestChatRoomParticipants(t *testing.T) {
	room := ChatRoom{User1ID: 3, User2ID: 7}

	if !room.HasParticipant(3) || !room.HasParticipant(7) {
		t.Fatal("expected both users to be participants")
	}
	if room.HasParticipant(5) {
		t.Fatal("user 5 is not a participant")
	}
	if got := room.PartnerOf(3); got != 7 {
		t.Fatalf("PartnerOf(3) = %d, want 7", got)
	}
	if got := room.PartnerOf(7); got != 3 {
		t.Fatalf("PartnerOf(7) = %d, want 3", got)
	}
}

func TestUserNickname(t *testing.T) {
	name := "Alice"
	blank := "  "
	if got := (&User{Username: "alice", DisplayName: &name}).Nickname(); got != "Alice" {
		t.Fatalf("Nickname() = %q", got)
	}
	if got := (&User{Username: "alice", DisplayName: &blank}).Nickname(); got != "alice" {
		t.Fatalf("Nickname() with blank display name = %q", got)
	}
	if got := (&User{Username: "alice"}).Nickname(); got != "alice" {
		t.Fatalf("Nickname() without display name = %q", got)
	}
}
