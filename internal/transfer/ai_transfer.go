package transfer

type GenerateRequest struct {
	Prompt string `json:"prompt"`
	Tone   string `json:"tone"`
}

type GenerateResponse struct {
	Content string `json:"content"`
}
