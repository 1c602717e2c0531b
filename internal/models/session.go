package models

// Session is the simulated login state.
type Session struct {
	Username string `json:"username"`
	Service  string `json:"service"`
	Token    string `json:"token,omitempty"`
}
