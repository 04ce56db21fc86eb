package models

import (
	"net/http"
	"time"
)

// ResponseModel Base response structure that can be reused
type ResponseModel struct {
	Code        int    `json:"code"`
	CurrentTime int64  `json:"currentTime"`
	Data        any    `json:"data"`
	Text        string `json:"text"`
	Version     int    `json:"version"`
}

// ResponseCurrentTime is the currentTime stamp of a response, in milliseconds.
func ResponseCurrentTime() int64 {
	return time.Now().UnixMilli()
}

func NewResponse(code int, data any, text string) ResponseModel {
	return ResponseModel{
		Code:        code,
		CurrentTime: ResponseCurrentTime(),
		Data:        data,
		Text:        text,
		Version:     2,
	}
}

func NewOKResponse(data any) ResponseModel {
	return NewResponse(http.StatusOK, data, "OK")
}

// NewEntryResponse wraps a single object as {"entry": ...}.
func NewEntryResponse(entry any) ResponseModel {
	return NewOKResponse(map[string]any{"entry": entry})
}

// NewListResponse wraps a collection as {"list": [...], "limitExceeded": ...}.
func NewListResponse(list any, limitExceeded bool) ResponseModel {
	return NewOKResponse(map[string]any{
		"list":          list,
		"limitExceeded": limitExceeded,
	})
}
