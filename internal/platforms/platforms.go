package platforms

import (
	"fmt"
	"strings"
)

type Platform string

const (
	Facebook  Platform = "facebook"
	Instagram Platform = "instagram"
	Twitter   Platform = "twitter"
	TikTok    Platform = "tiktok"
	Amazon    Platform = "amazon"
)

var all = []Platform{Facebook, Instagram, Twitter, TikTok, Amazon}

func All() []Platform {
	out := make([]Platform, len(all))
	copy(out, all)
	return out
}

func Parse(s string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("unknown platform: %q", s)
	}
	return p, nil
}

func (p Platform) Valid() bool {
	switch p {
	case Facebook, Instagram, Twitter, TikTok, Amazon:
		return true
	}
	return false
}

func (p Platform) String() string {
	return string(p)
}
