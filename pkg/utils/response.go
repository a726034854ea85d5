package utils

import (
	"github.com/sirupsen/logrus"
)

type ResponseData struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Results any    `json:"results,omitempty"`
}

// PanicIfNeeded hands err to the Recovery middleware.
func PanicIfNeeded(err any) {
	if err != nil {
		if e, ok := err.(error); ok {
			logrus.WithError(e).Debug("[REST] request failed")
		}
		panic(err)
	}
}
