package session

import (
	"testing"

	"github.com/pion/webrtc/v4"

	"github.com/ph8tel/vr-telepresence/internal/config"
)

func TestNewMediaStream_TrackIdentity(t *testing.T) {
	ms, err := NewMediaStream(config.DefaultWebRTCConfig())
	if err != nil {
		t.Fatalf("new media stream: %v", err)
	}

	if ms.LeftTrack().ID() != "left-eye" {
		t.Errorf("expected left track id left-eye, got %s", ms.LeftTrack().ID())
	}
	if ms.RightTrack().ID() != "right-eye" {
		t.Errorf("expected right track id right-eye, got %s", ms.RightTrack().ID())
	}

	// 两个轨道属于同一个流
	if ms.LeftTrack().StreamID() != ms.RightTrack().StreamID() {
		t.Error("left and right tracks must share a stream id")
	}

	if ms.LeftSlot().Eye() != "left" || ms.RightSlot().Eye() != "right" {
		t.Errorf("slot eyes mismatch: %s/%s", ms.LeftSlot().Eye(), ms.RightSlot().Eye())
	}
}

func TestVideoMimeType(t *testing.T) {
	cases := map[string]string{
		"h264":    webrtc.MimeTypeH264,
		"vp8":     webrtc.MimeTypeVP8,
		"vp9":     webrtc.MimeTypeVP9,
		"unknown": webrtc.MimeTypeH264,
	}

	for codec, want := range cases {
		if got := videoMimeType(codec); got != want {
			t.Errorf("codec %s: expected %s, got %s", codec, want, got)
		}
	}
}
