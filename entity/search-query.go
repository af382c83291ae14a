package entity

import (
	"net/http"
	"strings"
	"time"

	"docspace/lib/validate"
)

type SearchQuery struct {
	Id            string    `json:"id" bson:"id"`
	Query         string    `json:"query" bson:"query"`
	UserId        string    `json:"user_id,omitempty" bson:"user_id,omitempty"`
	SessionId     string    `json:"session_id" bson:"session_id"`
	Timestamp     time.Time `json:"timestamp" bson:"timestamp"`
	ResultsCount  int       `json:"results_count" bson:"results_count"`
	ClickedResult string    `json:"clicked_result,omitempty" bson:"clicked_result,omitempty"`
}

type SearchRequest struct {
	Query         string `json:"query" validate:"required,max=512"`
	ResultsCount  int    `json:"results_count" validate:"min=0"`
	ClickedResult string `json:"clicked_result,omitempty" validate:"omitempty,max=2048"`
}

func (r *SearchRequest) Bind(_ *http.Request) error {
	r.Query = strings.TrimSpace(r.Query)
	return validate.Struct(r)
}
