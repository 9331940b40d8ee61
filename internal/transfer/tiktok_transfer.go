package transfer

type TiktokTokenResponse struct {
	AccessToken      string `json:"access_token"`
	ExpiresIn        int64  `json:"expires_in"`
	OpenID           string `json:"open_id"`
	RefreshExpiresIn int64  `json:"refresh_expires_in"`
	RefreshToken     string `json:"refresh_token"`
	Scope            string `json:"scope"`
	TokenType        string `json:"token_type"`
}

type TiktokUserResponse struct {
	Data  TiktokUserData `json:"data"`
	Error TiktokError    `json:"error"`
}

type TiktokUserData struct {
	User TiktokUser `json:"user"`
}

type TiktokUser struct {
	OpenID      string `json:"open_id"`
	AvatarURL   string `json:"avatar_url"`
	DisplayName string `json:"display_name"`
	Username    string `json:"username"`
}

type TiktokError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	LogID   string `json:"log_id"`
}

// Business API envelope: code 0 means success, anything else carries the
// failure message.
type TiktokUploadInitRequest struct {
	AdvertiserID string `json:"advertiser_id"`
	VideoSize    int64  `json:"video_size"`
	VideoFormat  string `json:"video_format"`
}

type TiktokUploadInitResponse struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Data      struct {
		UploadURL string `json:"upload_url"`
		VideoID   string `json:"video_id"`
		ExpiresAt int64  `json:"expires_at"`
	} `json:"data"`
}

type TiktokVideoStatusResponse struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Data      struct {
		Status string `json:"status"`
	} `json:"data"`
}

type TiktokPublishRequest struct {
	AdvertiserID     string `json:"advertiser_id"`
	VideoID          string `json:"video_id"`
	Caption          string `json:"caption"`
	PrivacyLevel     string `json:"privacy_level,omitempty"`
	DisableComment   bool   `json:"disable_comment,omitempty"`
	DisableDuet      bool   `json:"disable_duet,omitempty"`
	DisableStitch    bool   `json:"disable_stitch,omitempty"`
	CoverTimestampMs int64  `json:"video_cover_timestamp_ms,omitempty"`
}

type TiktokPublishResponse struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Data      struct {
		PostID   string `json:"post_id"`
		ShareURL string `json:"share_url"`
	} `json:"data"`
}

type TiktokRevokeData struct {
	ErrorCode   int64  `json:"error_code"`
	Description string `json:"description"`
}
