package domain

import "time"

// Post is a publication of the feed.
type Post struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	UserEmail string     `json:"userEmail"`
	Timestamp *time.Time `json:"timestamp"`
}

type Comment struct {
	ID        string     `json:"id"`
	Content   string     `json:"content"`
	UserEmail string     `json:"userEmail"`
	Timestamp *time.Time `json:"timestamp"`
}
