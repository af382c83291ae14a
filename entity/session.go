package entity

import (
	"net/http"
	"time"

	"docspace/lib/validate"
)

// UserSession is one browsing session, identified per browser tab.
// PageViews counts tracked views; Duration is set once, at session end.
type UserSession struct {
	Id        string     `json:"id" bson:"id"`
	UserId    string     `json:"user_id,omitempty" bson:"user_id,omitempty"`
	StartTime time.Time  `json:"start_time" bson:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty" bson:"end_time,omitempty"`
	Duration  *int       `json:"duration,omitempty" bson:"duration,omitempty"`
	PageViews int        `json:"page_views" bson:"page_views"`
	UserAgent string     `json:"user_agent,omitempty" bson:"user_agent,omitempty"`
	IpAddress string     `json:"ip_address,omitempty" bson:"ip_address,omitempty"`
	Country   string     `json:"country,omitempty" bson:"country,omitempty"`
}

func (s *UserSession) IsEnded() bool {
	return s.EndTime != nil
}

func (s *UserSession) Clone() UserSession {
	cp := *s
	if s.EndTime != nil {
		t := *s.EndTime
		cp.EndTime = &t
	}
	if s.Duration != nil {
		d := *s.Duration
		cp.Duration = &d
	}
	return cp
}

// SessionRequest starts a session. IpAddress and Country are filled in
// from the request by the HTTP layer when the body leaves them empty.
type SessionRequest struct {
	UserId    string `json:"user_id,omitempty" validate:"omitempty,max=128"`
	UserAgent string `json:"user_agent,omitempty" validate:"omitempty,max=512"`
	IpAddress string `json:"ip_address,omitempty" validate:"omitempty,ip"`
	Country   string `json:"country,omitempty" validate:"omitempty,max=64"`
}

func (r *SessionRequest) Bind(req *http.Request) error {
	if r.UserAgent == "" {
		r.UserAgent = req.UserAgent()
	}
	return validate.Struct(r)
}
