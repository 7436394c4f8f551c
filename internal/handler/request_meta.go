package handler

import (
	"net/http"

	"go-tour-auth/internal/middleware"
	"go-tour-auth/internal/model"
)

func requestMeta(r *http.Request) model.RequestMeta {
	return model.RequestMeta{IP: middleware.ClientIP(r)}
}
