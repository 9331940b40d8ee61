package transfer

type AmazonTokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

type AmazonProfile struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}

type AmazonPostRequest struct {
	BrandEntityID string   `json:"brandEntityId"`
	Headline      string   `json:"headline,omitempty"`
	BodyText      string   `json:"bodyText"`
	ASINs         []string `json:"asins,omitempty"`
	MediaURLs     []string `json:"mediaUrls,omitempty"`
}

type AmazonPostResponse struct {
	PostID string `json:"postId"`
	Status string `json:"status"`
}

type AmazonErrorResponse struct {
	Code    string `json:"code"`
	Details string `json:"details"`
}
