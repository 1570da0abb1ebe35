package main

import (
	"log"
	"net/http"
	_ "net/http/pprof"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"goposthoc/adapters/report"
	"goposthoc/app"
	"goposthoc/internal/api"
	"goposthoc/internal/config"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	gin.SetMode(appConfig.Server.GinMode)

	svc := app.NewPosthocService(appConfig.Posthoc, appConfig.Outliers).
		WithLogger(appConfig.Logging.Logger("PosthocService"))
	server := api.NewServer(svc, report.NewRenderer(), appConfig.Logging.Logger("Server"))

	// Start pprof server for performance profiling
	if appConfig.Profiling.Enabled {
		go func() {
			log.Printf("Profiling server starting on :%s", appConfig.Profiling.Port)
			if err := http.ListenAndServe(":"+appConfig.Profiling.Port, nil); err != nil {
				log.Printf("pprof server failed: %v", err)
			}
		}()
	}

	log.Printf("Starting posthoc server on port %s (p_adjust=%s, alpha=%g)",
		appConfig.Server.Port, appConfig.Posthoc.PAdjust, appConfig.Posthoc.Alpha)
	log.Fatal(server.Start(":" + appConfig.Server.Port))
}
