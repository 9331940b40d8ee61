package platforms

// Constraints is the static per-platform rule set consulted by the content
// validator. Entries are read-only; nothing mutates them at runtime.
type Constraints struct {
	MaxTextChars    int
	MaxMediaCount   int
	MaxImages       int
	MaxVideos       int
	RequiresMedia   bool
	ImagesOnly      bool
	VideosOnly      bool
	AllowMixedMedia bool
	MaxImageBytes   int64
	MaxVideoBytes   int64
	MaxVideoSeconds int
	ImageMimeTypes  []string
	VideoMimeTypes  []string
}

var constraintTable = map[Platform]Constraints{
	Facebook: {
		MaxTextChars:    63206,
		MaxMediaCount:   10,
		MaxImages:       10,
		MaxVideos:       10,
		AllowMixedMedia: true,
		MaxImageBytes:   10 << 20,
		MaxVideoBytes:   1 << 30,
		MaxVideoSeconds: 14400,
		ImageMimeTypes:  []string{"image/jpeg", "image/png", "image/gif", "image/webp"},
		VideoMimeTypes:  []string{"video/mp4", "video/quicktime"},
	},
	Instagram: {
		MaxTextChars:    2200,
		MaxMediaCount:   10,
		MaxImages:       10,
		MaxVideos:       10,
		RequiresMedia:   true,
		AllowMixedMedia: true,
		MaxImageBytes:   8 << 20,
		MaxVideoBytes:   100 << 20,
		MaxVideoSeconds: 60,
		ImageMimeTypes:  []string{"image/jpeg", "image/png"},
		VideoMimeTypes:  []string{"video/mp4", "video/quicktime"},
	},
	Twitter: {
		MaxTextChars:    280,
		MaxMediaCount:   4,
		MaxImages:       4,
		MaxVideos:       1,
		AllowMixedMedia: false,
		MaxImageBytes:   5 << 20,
		MaxVideoBytes:   512 << 20,
		MaxVideoSeconds: 140,
		ImageMimeTypes:  []string{"image/jpeg", "image/png", "image/gif", "image/webp"},
		VideoMimeTypes:  []string{"video/mp4"},
	},
	TikTok: {
		MaxTextChars:    2200,
		MaxMediaCount:   1,
		MaxVideos:       1,
		RequiresMedia:   true,
		VideosOnly:      true,
		MaxVideoBytes:   500 << 20,
		MaxVideoSeconds: 600,
		VideoMimeTypes:  []string{"video/mp4", "video/quicktime", "video/webm"},
	},
	Amazon: {
		MaxTextChars:  2200,
		MaxMediaCount: 1,
		MaxImages:     1,
		RequiresMedia: true,
		ImagesOnly:    true,
		MaxImageBytes: 10 << 20,
		ImageMimeTypes: []string{"image/jpeg", "image/png"},
	},
}

func ConstraintsFor(p Platform) (Constraints, bool) {
	c, ok := constraintTable[p]
	return c, ok
}

func (c Constraints) SupportsImageMime(mime string) bool {
	return containsMime(c.ImageMimeTypes, mime)
}

func (c Constraints) SupportsVideoMime(mime string) bool {
	return containsMime(c.VideoMimeTypes, mime)
}

func containsMime(set []string, mime string) bool {
	for _, m := range set {
		if m == mime {
			return true
		}
	}
	return false
}
