package entity

import (
	"net/http"
	"strings"
	"time"

	"docspace/lib/validate"
)

// PageView is one navigation within a session. Duration is filled in once,
// when the page is closed by the next view, an exit or the session end.
type PageView struct {
	Id        string    `json:"id" bson:"id"`
	PageId    string    `json:"page_id,omitempty" bson:"page_id,omitempty"`
	PagePath  string    `json:"page_path" bson:"page_path"`
	PageTitle string    `json:"page_title" bson:"page_title"`
	UserId    string    `json:"user_id,omitempty" bson:"user_id,omitempty"`
	SessionId string    `json:"session_id" bson:"session_id"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
	Duration  *int      `json:"duration,omitempty" bson:"duration,omitempty"`
	Referrer  string    `json:"referrer,omitempty" bson:"referrer,omitempty"`
}

func (v *PageView) Clone() PageView {
	cp := *v
	if v.Duration != nil {
		d := *v.Duration
		cp.Duration = &d
	}
	return cp
}

type PageViewRequest struct {
	Path     string `json:"path" validate:"required,max=2048"`
	Title    string `json:"title" validate:"max=512"`
	PageId   string `json:"page_id,omitempty" validate:"omitempty,max=128"`
	Referrer string `json:"referrer,omitempty" validate:"omitempty,max=2048"`
}

func (r *PageViewRequest) Bind(_ *http.Request) error {
	r.Path = strings.TrimSpace(r.Path)
	return validate.Struct(r)
}
