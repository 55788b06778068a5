package model

type SubmitEntryRequest struct {
	Date      string `json:"date"`
	Yesterday string `json:"yesterday"`
	Today     string `json:"today"`
	Blockers  string `json:"blockers"`
	Notes     string `json:"notes"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type User struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Avatar    string `json:"avatar"`
	Role      string `json:"role"`
	Workspace string `json:"workspace"`
}

type JobResponse struct {
	Job       string `json:"job"`
	Workspace string `json:"workspace"`
	RunID     string `json:"run_id"`
}
