package main

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/dvcastilho/serviceorder-app/config"
	"github.com/dvcastilho/serviceorder-app/models"
	"github.com/dvcastilho/serviceorder-app/router"
	"github.com/dvcastilho/serviceorder-app/services"
	"github.com/dvcastilho/serviceorder-app/utils"
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or error loading: %v", err)
	}

	utils.InfoLogger = logrus.New()
	utils.ErrorLogger = logrus.New()

	utils.InfoLogger.SetOutput(os.Stdout)
	utils.ErrorLogger.SetOutput(os.Stderr)

	utils.InfoLogger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
		ForceColors:   true,
	})
	utils.ErrorLogger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
		ForceColors:   true,
	})
}

func main() {
	db, err := config.InitDB()
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to connect to database: %v", err)
	}

	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	autoMigrate(db)

	// Notification rule engine: periodic tick plus a pass at boot
	engine := services.NewNotificationEngine(db)
	engine.Interval = envDuration("NOTIF_CHECK_INTERVAL", 5*time.Minute)
	engine.Start()
	defer engine.Stop()

	// Change monitor feeds the engine between ticks
	monitor := services.NewChangeMonitor(db, engine)
	monitor.Interval = envDuration("CHANGE_POLL_INTERVAL", 1*time.Second)
	monitor.Start()
	defer monitor.Stop()

	// Recycle-bin reaper
	reaper := services.NewReaper(db)
	reaper.Interval = envDuration("REAPER_INTERVAL", 30*time.Minute)
	reaper.RetentionDays = envInt("RETENTION_DAYS", services.DefaultRetentionDays)
	reaper.Start()
	defer reaper.Stop()

	shares := services.NewShareService(db, envBool("SHARE_HIDE_ON_OFFER", true))

	// Token blacklist hygiene
	go func() {
		for {
			time.Sleep(1 * time.Hour)
			utils.CleanupBlacklist()
		}
	}()

	r := router.SetupRouter(db, engine, reaper, shares)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	utils.InfoLogger.Printf("Listening on port %s", port)
	if err := r.Run(":" + port); err != nil {
		utils.ErrorLogger.Fatal(err)
	}
}

func autoMigrate(db *gorm.DB) {
	err := db.AutoMigrate(
		&models.User{},
		&models.ServiceOrder{},
		&models.Notification{},
		&models.ShareOffer{},
		&models.DBChange{},
	)
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to AutoMigrate: %v", err)
	}
	utils.InfoLogger.Println("AutoMigrate completed.")
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		utils.ErrorLogger.Printf("Invalid %s, using default %v", key, fallback)
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		utils.ErrorLogger.Printf("Invalid %s, using default %d", key, fallback)
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
		utils.ErrorLogger.Printf("Invalid %s, using default %v", key, fallback)
	}
	return fallback
}
