package transfer

type ThreadsToken struct {
	AccessToken string `json:"access_token"`
	UserID      int64  `json:"user_id"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type ThreadsProfile struct {
	ID             string `json:"id"`
	Username       string `json:"username"`
	ProfilePicture string `json:"threads_profile_picture_url"`
}
