package transfer

type ApiKeyCreateRequest struct {
	Label string `json:"label"`
}

type ApiKeyRemoveRequest struct {
	ID int64 `json:"id"`
}
