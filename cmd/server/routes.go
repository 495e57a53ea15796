package main

import (
	"github.com/gin-gonic/gin"
	"stream-donate.backend/internal/interfaces/http/handlers"
	"stream-donate.backend/internal/interfaces/http/middleware"
)

type routeDeps struct {
	donationHandler *handlers.DonationHandler
}

func setupRouter(d routeDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.LoggerMiddleware())

	r.GET("/", d.donationHandler.GetInfo)
	r.GET("/health", d.donationHandler.HealthCheck)
	r.GET("/qr/:nonce", d.donationHandler.GetQR)

	v1 := r.Group("/api/v1")
	{
		donations := v1.Group("/donations")
		{
			donations.POST("", middleware.IdempotencyMiddleware(), d.donationHandler.CreateDonation)
			donations.GET("", d.donationHandler.ListDonations)
			donations.GET("/:nonce", d.donationHandler.GetDonation)
			donations.GET("/:nonce/status", d.donationHandler.GetStatus)
			donations.PUT("/:nonce/status", d.donationHandler.OverrideStatus)
		}
	}

	return r
}
