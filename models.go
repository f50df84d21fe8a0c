package main

// UserSummary is the public view of a user.
type UserSummary struct {
	Username    string `json:"username"`
	Avatar      string `json:"avatar"`
	IsOnline    bool   `json:"is_online"`
	Interviewed bool   `json:"interviewed"`
	IsAdmin     bool   `json:"is_admin,omitempty"`
}

// MatchView is one ranked user as returned by /compare.
type MatchView struct {
	Username string  `json:"username"`
	Distance float64 `json:"distance"`
	Avatar   string  `json:"avatar"`
	IsOnline bool    `json:"is_online"`
}

// RankingResponse lists the users closest to Username first.
type RankingResponse struct {
	Username string      `json:"username"`
	Matches  []MatchView `json:"matches"`
}

// PairResponse compares two users genre by genre.
type PairResponse struct {
	Username string             `json:"username"`
	Other    string             `json:"other"`
	Distance float64            `json:"distance"`
	Deltas   map[string]float64 `json:"deltas"`
}
